// Package parser turns raw source bytes into loosely typed records.
package parser

import (
	"context"
	"io"

	"ordersetl/pkg/records"
)

// RowFunc receives one parsed record with its 1-based source line number.
// Returning an error stops the parse and propagates.
type RowFunc func(line int, rec records.Record) error

// ErrFunc receives recoverable per-row parse errors (soft-drop).
type ErrFunc func(line int, err error)

// Parser reads an input stream and emits one Record per data row.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, fn RowFunc, onErr ErrFunc) error
}
