package staging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/billing-olap/internal/olap"
	"github.com/dvloznov/billing-olap/internal/snapshot"
	"github.com/dvloznov/billing-olap/internal/storage"
)

// memStore is an in-memory ObjectStore.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	updated map[string]time.Time
	listErr error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, updated: map[string]time.Time{}}
}

func (m *memStore) put(name string, data string, updated time.Time) {
	m.objects[name] = []byte(data)
	m.updated[name] = updated
}

func (m *memStore) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []storage.Object
	for name, data := range m.objects {
		if strings.HasPrefix(name, prefix) {
			out = append(out, storage.Object{Name: name, Size: int64(len(data)), Updated: m.updated[name]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) Read(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", name, storage.ErrNotFound)
	}
	return data, nil
}

func (m *memStore) Write(ctx context.Context, name string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = append([]byte(nil), data...)
	m.updated[name] = time.Now()
	return nil
}

func (m *memStore) URI(name string) string {
	return "mem://bucket/" + name
}

func TestSnapshotSource_Latest(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.put("dump/db_dump_prod_2024-04-30.json", `{"invoices": []}`, base.Add(-24*time.Hour))
	store.put("dump/db_dump_prod_2024-05-01.json", `{"invoices": [{"id": "in_1"}]}`, base)
	store.put("dump/db_dump_dev_2024-05-02.json", `{}`, base.Add(24*time.Hour))
	store.put("dump/notes.txt", ``, base.Add(48*time.Hour))

	src := NewSnapshotSource(store, "dump/")

	obj, err := src.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dump/db_dump_prod_2024-05-01.json", obj.Name)

	snap, obj, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dump/db_dump_prod_2024-05-01.json", obj.Name)
	assert.Equal(t, 1, snap.Count(snapshot.EntityInvoices))
}

func TestSnapshotSource_None(t *testing.T) {
	store := newMemStore()
	store.put("dump/readme.md", "", time.Now())

	_, err := NewSnapshotSource(store, "dump/").Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)

	store.listErr = errors.New("boom")
	_, err = NewSnapshotSource(store, "dump/").Latest(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSnapshot)
}

func TestSnapshotSource_InvalidExport(t *testing.T) {
	store := newMemStore()
	store.put("dump/db_dump_prod_1.json", `not json`, time.Now())

	_, _, err := NewSnapshotSource(store, "dump/").Load(context.Background())
	assert.Error(t, err)
}

func TestLayout(t *testing.T) {
	prod := Layout{Prefix: "olap_outputs/", Timestamped: true}
	assert.Equal(t, "olap_outputs/2024-05-01_10-00-00/fact_invoices.csv", prod.ObjectName("2024-05-01_10-00-00", olap.TableFactInvoices))
	assert.Equal(t, "olap_outputs/2024-05-01_10-00-00/staged/dim_prices.csv", prod.StagedName("2024-05-01_10-00-00", olap.TableDimPrices))

	dev := Layout{}
	assert.Equal(t, "fact_invoices.csv", dev.ObjectName("ignored", olap.TableFactInvoices))
}

func TestRunTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 5, 0, time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, "2024-05-01_10-30-05", RunTimestamp(ts))
}

func sampleTables() []*olap.Table {
	tables := make([]*olap.Table, 0, len(olap.TableNames))
	for _, name := range olap.TableNames {
		cols, _ := olap.ColumnsFor(name)
		tables = append(tables, olap.NewTable(name, cols))
	}
	_ = tables[0].Append(make([]snapshot.Value, len(tables[0].Columns)))
	return tables
}

func TestSinkAndLoader_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	layout := Layout{Prefix: "olap_outputs/", Timestamped: true}
	sink := NewSink(store, layout)

	_, err := sink.SaveAll(ctx, sampleTables(), "2024-05-01_10-00-00")
	require.NoError(t, err)
	uris, err := sink.SaveAll(ctx, sampleTables(), "2024-05-02_10-00-00")
	require.NoError(t, err)
	require.Len(t, uris, len(olap.TableNames))
	assert.Equal(t, "mem://bucket/olap_outputs/2024-05-02_10-00-00/fact_invoices.csv", uris[0])

	// Unrelated folders are ignored.
	store.put("olap_outputs/latest/fact_invoices.csv", "x\n", time.Now())

	outputs, err := NewOutputLoader(store, layout).Load(ctx, olap.TableNames)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02_10-00-00", outputs.RunTS)
	require.Len(t, outputs.Tables, len(olap.TableNames))
	assert.Equal(t, 1, outputs.Tables[0].Len())
	assert.Equal(t, olap.FactInvoiceColumns, outputs.Tables[0].Columns)
}

func TestOutputLoader_Incomplete(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	layout := Layout{Prefix: "olap_outputs/", Timestamped: true}

	_, err := NewOutputLoader(store, layout).Load(ctx, olap.TableNames)
	assert.ErrorIs(t, err, ErrNoOutputs)

	store.put("olap_outputs/2024-05-01_10-00-00/fact_invoices.csv", strings.Join(olap.FactInvoiceColumns, ",")+"\n", time.Now())
	_, err = NewOutputLoader(store, layout).Load(ctx, olap.TableNames)
	assert.ErrorIs(t, err, ErrNoOutputs)
}

func TestOutputLoader_Untimestamped(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	layout := Layout{}

	_, err := NewSink(store, layout).SaveAll(ctx, sampleTables(), "2024-05-01_10-00-00")
	require.NoError(t, err)
	_, ok := store.objects["dim_charges.csv"]
	assert.True(t, ok)

	outputs, err := NewOutputLoader(store, layout).Load(ctx, olap.TableNames)
	require.NoError(t, err)
	assert.Empty(t, outputs.RunTS)
	assert.Len(t, outputs.Tables, len(olap.TableNames))
}
