package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", n)
		}
	}
	assert.Equal(t, ups, downs)
	assert.Len(t, ups, 4)
}

func TestSchemaDeclaresUniqueIndexes(t *testing.T) {
	want := map[string]string{
		"000001_users.up.sql":    "uq_users_email",
		"000002_items.up.sql":    "uq_items_name_type",
		"000003_bookings.up.sql": "uq_bookings_reference",
		"000004_orders.up.sql":   "uq_orders_number",
	}
	for file, index := range want {
		b, err := migrationFS.ReadFile("migrations/" + file)
		require.NoError(t, err)
		assert.Contains(t, string(b), index, file)
	}
}
