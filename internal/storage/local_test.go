package storage

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	require.NoError(t, store.Write(ctx, "dump/db_dump_prod_1.json", []byte(`{}`), "application/json"))
	require.NoError(t, store.Write(ctx, "olap_outputs/fact_invoices.csv", []byte("a\n"), "text/csv"))

	objects, err := store.List(ctx, "dump/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "dump/db_dump_prod_1.json", objects[0].Name)
	assert.Equal(t, int64(2), objects[0].Size)
	assert.False(t, objects[0].Updated.IsZero())

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, o := range all {
		names[i] = o.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"dump/db_dump_prod_1.json", "olap_outputs/fact_invoices.csv"}, names)

	data, err := store.Read(ctx, "olap_outputs/fact_invoices.csv")
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(data))

	_, err = store.Read(ctx, "missing.csv")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, filepath.Join(dir, "olap_outputs", "fact_invoices.csv"), store.URI("olap_outputs/fact_invoices.csv"))
}

func TestLocalStore_MissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "nope"))
	objects, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"gs://bucket/dump/db_dump_prod_1.json", "db_dump_prod_1.json"},
		{"s3://bucket/a.csv", "a.csv"},
		{"dump/x.json", "x.json"},
		{"x.json", "x.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseName(tt.in), tt.in)
	}
}
