package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedSchema(t *testing.T) {
	migs, err := Load()

	require.NoError(t, err)
	require.NotEmpty(t, migs)
	assert.Equal(t, "0001_fulfillment", migs[0].Version)

	var ledger string
	for _, m := range migs {
		if m.Version == "0002_assignments_commissions" {
			ledger = m.SQL
		}
	}
	assert.Contains(t, ledger, "UNIQUE (order_id, user_id, commission_type, source_reference)")
}

func TestLoad_SortsByName(t *testing.T) {
	fsys := fstest.MapFS{
		"0010_late.sql":  {Data: []byte("SELECT 10")},
		"0002_early.sql": {Data: []byte("SELECT 2")},
		"README.md":      {Data: []byte("ignored")},
	}

	migs, err := load(fsys)

	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "0002_early", migs[0].Version)
	assert.Equal(t, "SELECT 10", migs[1].SQL)
}
