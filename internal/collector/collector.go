// Package collector discovers migration files on disk and parses them into
// ordered, structured records. Each top-level subdirectory of the base
// directory is a module source; files inside match
// <version>__<name>.sql and carry "-- up" / "-- down" section markers.
package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"launchpad/internal/core"
)

var fileNamePattern = regexp.MustCompile(`^(\d+)__(.+)\.sql$`)

var (
	upMarker   = regexp.MustCompile(`(?i)^--\s*up\b`)
	downMarker = regexp.MustCompile(`(?i)^--\s*down\b`)
)

// MigrationFile is one parsed migration file, before it reaches the ledger.
type MigrationFile struct {
	Version    int64
	Name       string
	ModuleName string
	Path       string
	UpSQL      []string
	DownSQL    []string
}

// Checksum hashes the parsed statement lists the same way the ledger does.
func (m *MigrationFile) Checksum() string {
	return core.StatementsChecksum(m.UpSQL, m.DownSQL)
}

// Record converts the file into a ledger record shell (applied-at and
// executor are filled in by the runner).
func (m *MigrationFile) Record(scope core.MigrationScope, templateKey string) *core.MigrationRecord {
	return &core.MigrationRecord{
		Version:     m.Version,
		Name:        m.Name,
		Scope:       scope,
		TemplateKey: templateKey,
		ModuleName:  m.ModuleName,
		Checksum:    m.Checksum(),
		UpSQL:       m.UpSQL,
		DownSQL:     m.DownSQL,
	}
}

// Collector scans a base directory of per-module migration directories.
type Collector struct {
	BaseDir string
}

// New returns a collector rooted at baseDir.
func New(baseDir string) *Collector {
	return &Collector{BaseDir: baseDir}
}

// Collect enumerates module directories and parses every migration file into
// a globally ordered list: version ascending, then module name ascending. A
// missing base directory yields an empty list, never an error.
func (c *Collector) Collect() ([]*MigrationFile, error) {
	entries, err := os.ReadDir(c.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migrations dir %s: %w", c.BaseDir, err)
	}

	var files []*MigrationFile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		moduleFiles, err := c.collectModule(entry.Name())
		if err != nil {
			return nil, err
		}
		files = append(files, moduleFiles...)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Version != files[j].Version {
			return files[i].Version < files[j].Version
		}
		return files[i].ModuleName < files[j].ModuleName
	})
	return files, nil
}

// CollectModule parses only the named module directory, still in version
// order.
func (c *Collector) CollectModule(module string) ([]*MigrationFile, error) {
	files, err := c.collectModule(module)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})
	return files, nil
}

func (c *Collector) collectModule(module string) ([]*MigrationFile, error) {
	dir := filepath.Join(c.BaseDir, module)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read module dir %s: %w", dir, err)
	}

	var files []*MigrationFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := fileNamePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version prefix: %w", entry.Name(), err)
		}

		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}

		up, down, ok := splitSections(string(content))
		if !ok {
			// No up section: not a migration we can run.
			continue
		}

		files = append(files, &MigrationFile{
			Version:    version,
			Name:       match[2],
			ModuleName: module,
			Path:       path,
			UpSQL:      SplitStatements(up),
			DownSQL:    SplitStatements(down),
		})
	}
	return files, nil
}

// splitSections cuts the file into its up and down halves. The up section is
// everything after the "-- up" marker line, up to "-- down" or end of file;
// the down section is everything after "-- down". ok is false when no up
// marker exists.
func splitSections(content string) (up, down string, ok bool) {
	lines := strings.Split(content, "\n")

	section := ""
	var upLines, downLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case upMarker.MatchString(trimmed):
			section = "up"
			ok = true
			continue
		case downMarker.MatchString(trimmed):
			section = "down"
			continue
		}
		switch section {
		case "up":
			upLines = append(upLines, line)
		case "down":
			downLines = append(downLines, line)
		}
	}
	return strings.Join(upLines, "\n"), strings.Join(downLines, "\n"), ok
}
