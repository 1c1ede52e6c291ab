// Package storage provides the object stores snapshots are read from and
// output tables are written to.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned by Read when the object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Object describes one stored object.
type Object struct {
	Name    string
	Size    int64
	Updated time.Time
}

// ObjectStore provides an interface for the object operations a run needs.
// This interface enables fakes in tests and lets the pipeline run against
// GCS, S3-compatible storage or the local filesystem.
type ObjectStore interface {
	// List returns every object whose name starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Read returns the bytes of the named object.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write stores data under name, replacing any existing object.
	Write(ctx context.Context, name string, data []byte, contentType string) error

	// URI returns the fully-qualified location of name, e.g. gs://bucket/name.
	URI(name string) string
}

// BaseName extracts the last path element of an object name or URI.
// e.g., "gs://bucket/dump/db_dump_prod_1.json" → "db_dump_prod_1.json"
func BaseName(name string) string {
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	return path.Base(name)
}
