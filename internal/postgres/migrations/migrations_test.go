package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEmbedsSchema(t *testing.T) {
	migrations, err := List()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, "0001_statements.sql", migrations[0].Version)

	for _, table := range []string{"organizations", "wards", "patients", "statements", "statement_ward_allocations"} {
		assert.True(t, strings.Contains(migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
	assert.Contains(t, migrations[0].SQL, "statements_one_target")
}
