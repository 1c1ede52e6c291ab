// Package staging locates snapshots and persists output tables in an object
// store.
package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/dvloznov/billing-olap/internal/snapshot"
	"github.com/dvloznov/billing-olap/internal/storage"
)

// ErrNoSnapshot is returned when no export matches under the dump prefix.
var ErrNoSnapshot = errors.New("staging: no snapshot found")

// DumpPattern matches production export object names.
var DumpPattern = regexp.MustCompile(`db_dump_prod_.*\.json$`)

// SnapshotSource finds and decodes the newest export under a prefix.
type SnapshotSource struct {
	store  storage.ObjectStore
	prefix string
}

func NewSnapshotSource(store storage.ObjectStore, prefix string) *SnapshotSource {
	return &SnapshotSource{store: store, prefix: prefix}
}

// Latest returns the most recently updated export object. Ties are broken by
// name so the choice is stable.
func (s *SnapshotSource) Latest(ctx context.Context) (storage.Object, error) {
	objects, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return storage.Object{}, fmt.Errorf("Latest: %w", err)
	}

	var dumps []storage.Object
	for _, o := range objects {
		if DumpPattern.MatchString(o.Name) {
			dumps = append(dumps, o)
		}
	}
	if len(dumps) == 0 {
		return storage.Object{}, fmt.Errorf("Latest: %s: %w", s.store.URI(s.prefix), ErrNoSnapshot)
	}

	sort.Slice(dumps, func(i, j int) bool {
		if !dumps[i].Updated.Equal(dumps[j].Updated) {
			return dumps[i].Updated.After(dumps[j].Updated)
		}
		return dumps[i].Name > dumps[j].Name
	})
	return dumps[0], nil
}

// Load decodes the newest export.
func (s *SnapshotSource) Load(ctx context.Context) (*snapshot.Snapshot, storage.Object, error) {
	obj, err := s.Latest(ctx)
	if err != nil {
		return nil, storage.Object{}, err
	}
	data, err := s.store.Read(ctx, obj.Name)
	if err != nil {
		return nil, obj, fmt.Errorf("Load: %w", err)
	}
	snap, err := snapshot.Parse(data)
	if err != nil {
		return nil, obj, fmt.Errorf("Load: %s: %w", obj.Name, err)
	}
	return snap, obj, nil
}

// FileSource loads one export from a local path.
type FileSource struct {
	Path string
}

func (f FileSource) Load(ctx context.Context) (*snapshot.Snapshot, storage.Object, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, storage.Object{}, fmt.Errorf("Load: %w", err)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return nil, storage.Object{}, fmt.Errorf("Load: %w", err)
	}
	snap, err := snapshot.Decode(fh)
	if err != nil {
		return nil, storage.Object{}, fmt.Errorf("Load: %s: %w", f.Path, err)
	}
	return snap, storage.Object{Name: f.Path, Size: info.Size(), Updated: info.ModTime().UTC()}, nil
}

// RunTimestampLayout names a run's output folder.
const RunTimestampLayout = "2006-01-02_15-04-05"

// RunTimestamp formats t as a run folder name in UTC.
func RunTimestamp(t time.Time) string {
	return t.UTC().Format(RunTimestampLayout)
}
