// Package datasource defines where raw input bytes come from.
package datasource

import (
	"context"
	"fmt"
	"io"
)

// Source supplies the raw input stream for one pipeline run.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// SourceReadError reports an unreadable source or an unsupported format.
// It is fatal for the run: nothing has been written when it surfaces.
type SourceReadError struct {
	Path string // offending path or format descriptor
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("source read %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }
