package staging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/billing-olap/internal/olap"
	"github.com/dvloznov/billing-olap/internal/storage"
)

// ErrNoOutputs is returned when no complete output set can be found.
var ErrNoOutputs = errors.New("staging: no outputs found")

const (
	csvContentType = "text/csv"
	stagedDir      = "staged"
	uploadLimit    = 4
)

// Layout fixes where a run's files live. Timestamped layouts nest every run
// under its own run-timestamp folder; untimestamped layouts overwrite one
// fixed location.
type Layout struct {
	Prefix      string
	Timestamped bool
}

func (l Layout) dir(runTS string) string {
	if l.Timestamped {
		return path.Join(l.Prefix, runTS)
	}
	return path.Join(l.Prefix)
}

// ObjectName returns the name of a table's output file for a run.
func (l Layout) ObjectName(runTS, table string) string {
	return path.Join(l.dir(runTS), olap.FileName(table))
}

// StagedName returns the name of a table's flattened, load-ready file.
func (l Layout) StagedName(runTS, table string) string {
	return path.Join(l.dir(runTS), stagedDir, olap.FileName(table))
}

// Sink persists output tables as CSV.
type Sink struct {
	store  storage.ObjectStore
	layout Layout
}

func NewSink(store storage.ObjectStore, layout Layout) *Sink {
	return &Sink{store: store, layout: layout}
}

// Layout returns the sink's layout.
func (s *Sink) Layout() Layout {
	return s.layout
}

// Save writes one table and returns its URI.
func (s *Sink) Save(ctx context.Context, t *olap.Table, runTS string) (string, error) {
	return s.write(ctx, t, s.layout.ObjectName(runTS, t.Name))
}

// Stage writes a load-ready copy of a table next to the run's outputs and
// returns its URI.
func (s *Sink) Stage(ctx context.Context, t *olap.Table, runTS string) (string, error) {
	return s.write(ctx, t, s.layout.StagedName(runTS, t.Name))
}

func (s *Sink) write(ctx context.Context, t *olap.Table, name string) (string, error) {
	var buf bytes.Buffer
	if err := olap.WriteCSV(&buf, t); err != nil {
		return "", err
	}
	if err := s.store.Write(ctx, name, buf.Bytes(), csvContentType); err != nil {
		return "", fmt.Errorf("save %s: %w", t.Name, err)
	}
	return s.store.URI(name), nil
}

// SaveAll writes every table concurrently. URIs are returned in table order.
func (s *Sink) SaveAll(ctx context.Context, tables []*olap.Table, runTS string) ([]string, error) {
	uris := make([]string, len(tables))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadLimit)
	for i, t := range tables {
		i, t := i, t
		g.Go(func() error {
			uri, err := s.Save(ctx, t, runTS)
			if err != nil {
				return err
			}
			uris[i] = uri
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("SaveAll: %w", err)
	}
	return uris, nil
}

// Outputs is one complete set of output tables read back from storage.
type Outputs struct {
	RunTS  string
	Tables []*olap.Table
}

// OutputLoader reads back the newest output set.
type OutputLoader struct {
	store  storage.ObjectStore
	layout Layout
}

func NewOutputLoader(store storage.ObjectStore, layout Layout) *OutputLoader {
	return &OutputLoader{store: store, layout: layout}
}

// LatestRun returns the newest run-timestamp folder under the prefix. It
// returns "" for untimestamped layouts.
func (l *OutputLoader) LatestRun(ctx context.Context) (string, error) {
	if !l.layout.Timestamped {
		return "", nil
	}

	prefix := strings.TrimSuffix(l.layout.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	objects, err := l.store.List(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("LatestRun: %w", err)
	}

	seen := make(map[string]struct{})
	var runs []string
	for _, o := range objects {
		rest := strings.TrimPrefix(o.Name, prefix)
		folder, _, nested := strings.Cut(rest, "/")
		if !nested {
			continue
		}
		if _, err := time.Parse(RunTimestampLayout, folder); err != nil {
			continue
		}
		if _, ok := seen[folder]; !ok {
			seen[folder] = struct{}{}
			runs = append(runs, folder)
		}
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("LatestRun: %s: %w", l.store.URI(prefix), ErrNoOutputs)
	}

	// The layout sorts lexically in time order.
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	return runs[0], nil
}

// Load reads every expected table of the newest run.
func (l *OutputLoader) Load(ctx context.Context, tables []string) (*Outputs, error) {
	runTS, err := l.LatestRun(ctx)
	if err != nil {
		return nil, err
	}

	out := &Outputs{RunTS: runTS, Tables: make([]*olap.Table, 0, len(tables))}
	for _, name := range tables {
		objectName := l.layout.ObjectName(runTS, name)
		data, err := l.store.Read(ctx, objectName)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("Load: %s: %w", objectName, ErrNoOutputs)
		}
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		t, err := olap.ReadCSV(name, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		out.Tables = append(out.Tables, t)
	}
	return out, nil
}
