package db

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVersion(t *testing.T) {
	tests := map[string]string{
		"001_test.sql": "001_test",
		"002_test.SQL": "002_test",
		"004_test.Sql": "004_test",
		"003_test":     "003_test",
		".sql":         ".sql",
		"":             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeVersion(in), "normalizeVersion(%q)", in)
	}
}

func TestFindMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":    {Data: []byte("SELECT 1;")},
		"002_second.SQL":   {Data: []byte("SELECT 1;")},
		"001_first.sql":    {Data: []byte("SELECT 1;")},
		"README.md":        {Data: []byte("docs")},
		"nested/003_x.sql": {Data: []byte("SELECT 1;")},
	}

	migrations, err := findMigrations(fsys)
	require.NoError(t, err)

	var versions []string
	for _, m := range migrations {
		versions = append(versions, m.Version)
	}
	assert.Equal(t, []string{"001_first", "002_second", "010_later"}, versions)
	assert.Equal(t, "002_second.SQL", migrations[1].Name)
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := findMigrations(Migrations())
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_ranked_items", migrations[0].Version)
	assert.Equal(t, "002_feed_entries", migrations[1].Version)

	body, err := fs.ReadFile(Migrations(), migrations[1].Name)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS feed_entries")
}

func TestRunMigrations_NilPool(t *testing.T) {
	_, err := RunMigrations(context.Background(), nil, Migrations())
	assert.Error(t, err)

	_, err = GetMigrationStatus(context.Background(), nil, Migrations())
	assert.Error(t, err)
}

func TestRunMigrations_Live(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	_, err := RunMigrations(ctx, pool, Migrations())
	require.NoError(t, err)

	again, err := RunMigrations(ctx, pool, Migrations())
	require.NoError(t, err)
	assert.Empty(t, again.Applied)
	assert.Equal(t, []string{"001_ranked_items", "002_feed_entries"}, again.Skipped)

	status, err := GetMigrationStatus(ctx, pool, Migrations())
	require.NoError(t, err)
	assert.Len(t, status.Applied, 2)
	assert.Empty(t, status.Pending)
}
