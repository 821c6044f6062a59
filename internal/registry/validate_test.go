package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad/internal/core"
)

func validTable(name string) *core.TableDefinition {
	return &core.TableDefinition{
		Name: name,
		Columns: []*core.ColumnDefinition{
			{Name: "id", Type: core.TypeUUID, PrimaryKey: true},
			{Name: "app_id", Type: core.TypeString, Tenant: true},
			{Name: "organization_id", Type: core.TypeString, Tenant: true},
		},
	}
}

func TestValidateAcceptsWellFormedSchema(t *testing.T) {
	s := &core.SchemaDefinition{Tables: []*core.TableDefinition{validTable("users")}}
	require.NoError(t, Validate(s))
}

func TestValidateRequiresStandardColumns(t *testing.T) {
	table := validTable("users")
	table.Columns = table.Columns[:2] // drop organization_id
	s := &core.SchemaDefinition{Tables: []*core.TableDefinition{table}}

	err := Validate(s)
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "users", vErr.Table)
	assert.Contains(t, err.Error(), "organization_id")
	assert.Contains(t, err.Error(), "users")
}

func TestValidateRequiresTenantFlags(t *testing.T) {
	table := validTable("orders")
	table.FindColumn("app_id").Tenant = false
	s := &core.SchemaDefinition{Tables: []*core.TableDefinition{table}}

	err := Validate(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant flag")
	assert.Contains(t, err.Error(), "orders")
}

func TestValidateRejectsMultiplePrimaryKeyFlags(t *testing.T) {
	table := validTable("users")
	table.FindColumn("app_id").PrimaryKey = true
	s := &core.SchemaDefinition{Tables: []*core.TableDefinition{table}}

	err := Validate(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composite key")
}

func TestValidateRejectsSingleColumnCompositeKey(t *testing.T) {
	table := validTable("users")
	table.Columns[0].PrimaryKey = false
	table.PrimaryKey = []string{"id"}
	s := &core.SchemaDefinition{Tables: []*core.TableDefinition{table}}

	require.Error(t, Validate(s))
}

func TestValidateAcceptsCompositeKey(t *testing.T) {
	table := validTable("memberships")
	table.Columns[0].PrimaryKey = false
	table.PrimaryKey = []string{"id", "app_id"}
	s := &core.SchemaDefinition{Tables: []*core.TableDefinition{table}}

	require.NoError(t, Validate(s))
}

func TestValidateRejectsUnknownType(t *testing.T) {
	table := validTable("users")
	table.Columns = append(table.Columns, &core.ColumnDefinition{Name: "shape", Type: "polygon"})
	s := &core.SchemaDefinition{Tables: []*core.TableDefinition{table}}

	err := Validate(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "polygon")
}

func TestValidateRejectsIndexOnUnknownColumn(t *testing.T) {
	table := validTable("users")
	table.Indexes = []*core.IndexDefinition{{Columns: []string{"missing"}}}
	s := &core.SchemaDefinition{Tables: []*core.TableDefinition{table}}

	require.Error(t, Validate(s))
}

func TestValidateAllowsExternalReferenceTargets(t *testing.T) {
	table := validTable("users")
	table.Columns = append(table.Columns, &core.ColumnDefinition{
		Name: "plan_id", Type: core.TypeUUID, Nullable: true,
		References: &core.Reference{Table: "plans", Column: "id"},
	})
	s := &core.SchemaDefinition{Tables: []*core.TableDefinition{table}}

	// plans is not declared here; it is assumed pre-existing.
	require.NoError(t, Validate(s))
}

func TestValidateEmptySchema(t *testing.T) {
	require.Error(t, Validate(nil))
	require.Error(t, Validate(&core.SchemaDefinition{}))
}
