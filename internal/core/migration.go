package core

import (
	"time"
)

// MigrationScope distinguishes migrations that target the shared core schema
// from migrations that target a per-template schema.
type MigrationScope string

const (
	ScopeCore     MigrationScope = "core"
	ScopeTemplate MigrationScope = "template"
)

// MigrationRecord is one row of the migration ledger. Version is the 14-digit
// timestamp prefix of the migration file name.
type MigrationRecord struct {
	Version     int64          `json:"version"`
	Name        string         `json:"name"`
	Scope       MigrationScope `json:"scope"`
	TemplateKey string         `json:"templateKey,omitempty"`
	ModuleName  string         `json:"moduleName,omitempty"`
	Checksum    string         `json:"checksum"`
	UpSQL       []string       `json:"upSql"`
	DownSQL     []string       `json:"downSql"`
	AppliedAt   time.Time      `json:"appliedAt"`
	ExecutedBy  string         `json:"executedBy,omitempty"`
}

// ComputeChecksum returns the hex SHA-256 over the concatenated up and down
// statements. The ledger stores it at apply time; verify recomputes it from
// the files on disk.
func (m *MigrationRecord) ComputeChecksum() string {
	return StatementsChecksum(m.UpSQL, m.DownSQL)
}

// Module describes an independently versioned migration namespace with
// declared dependencies on other modules.
type Module struct {
	Name            string   `json:"name"`
	DisplayName     string   `json:"displayName,omitempty"`
	Description     string   `json:"description,omitempty"`
	Version         string   `json:"version,omitempty"`
	MigrationPrefix string   `json:"migrationPrefix,omitempty"`
	Dependencies    []string `json:"dependencies,omitempty"`
}
