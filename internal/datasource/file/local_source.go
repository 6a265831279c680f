// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"io"
	"os"

	"ordersetl/internal/datasource"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a Local data source bound to the provided path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the configured path for reading.
//
// If the context is already canceled at the time of the call, Open returns
// the context error without touching the filesystem. Filesystem errors are
// wrapped in a datasource.SourceReadError while still permitting
// errors.Is(err, os.ErrNotExist) checks by callers.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, &datasource.SourceReadError{Path: l.path, Err: err}
	}
	return f, nil
}
