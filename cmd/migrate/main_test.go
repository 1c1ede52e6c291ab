package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/billing-olap/internal/logger"
)

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_etl_runs.sql", true, 1, "create_etl_runs"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m, ok := parseMigrationName(tt.filename)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.Equal(t, tt.version, m.Version)
				assert.Equal(t, tt.name, m.Name)
				assert.Equal(t, tt.filename, m.Filename)
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	a := checksum([]byte("CREATE TABLE test (id INT64);"))
	assert.Equal(t, a, checksum([]byte("CREATE TABLE test (id INT64);")))
	assert.NotEqual(t, a, checksum([]byte("CREATE TABLE different (id INT64);")))
	assert.Len(t, a, 64)
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("0002_second.sql", "SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`;")
	write("0001_first.sql", "SELECT 1;")
	write("README.md", "not a migration")

	log := logger.NewWithWriter(io.Discard)
	migrations, err := readMigrations(log, dir, target{projectID: "p", datasetID: "d"})
	require.NoError(t, err)

	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "second", migrations[1].Name)
	assert.Equal(t, "SELECT 2 FROM `p.d.t`;", migrations[1].SQL)
	assert.Equal(t, checksum([]byte("SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`;")), migrations[1].Checksum)
}

func TestReadMigrations_Repository(t *testing.T) {
	dir, err := resolveDir("migrations/bigquery")
	require.NoError(t, err)

	log := logger.NewWithWriter(io.Discard)
	migrations, err := readMigrations(log, dir, target{projectID: "p", datasetID: "stripe_olap"})
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, "create_etl_runs", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "`p.stripe_olap.etl_runs`")
}

func TestPendingMigrations(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "a", Checksum: "c1"},
		{Version: 2, Name: "b", Checksum: "c2"},
		{Version: 3, Name: "c", Checksum: "c3"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "c1"},
		{Version: 2, Checksum: "changed"},
	}

	pending := pendingMigrations(logger.NewWithWriter(io.Discard), migrations, applied)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].Version)
}

func TestTargetTable(t *testing.T) {
	assert.Equal(t, "`p.d.schema_migrations`", target{projectID: "p", datasetID: "d"}.table("schema_migrations"))
}
