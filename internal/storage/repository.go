// Package storage contains the storage-agnostic repository contract and the
// backend factory. Concrete backends (postgres, mssql, sqlite) register
// themselves at init time; callers select one by kind and otherwise stay
// fully backend-agnostic.
//
// Every mutating operation is one all-or-nothing unit: the backend runs it in
// a single transaction and rolls back all partial writes before surfacing an
// error. There is no retry logic here; failures propagate to the caller.
package storage

import (
	"context"
	"fmt"
	"sync"

	"ordersetl/internal/schema"
)

// Mode selects bulk-write behavior against an existing table.
type Mode string

const (
	// ModeAppend adds rows to whatever the table already holds.
	ModeAppend Mode = "append"
	// ModeReplace deletes all existing rows, then inserts, in the same
	// transaction.
	ModeReplace Mode = "replace"
	// ModeFailIfExists aborts when the target table already holds rows.
	ModeFailIfExists Mode = "fail_if_exists"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeAppend, ModeReplace, ModeFailIfExists:
		return true
	}
	return false
}

// Config carries backend-independent connection and layout settings.
type Config struct {
	// Kind selects the registered backend: "postgres", "mssql", "sqlite".
	Kind string
	// DSN is the driver connection string.
	DSN string
	// Table is the orders table name (possibly schema-qualified).
	Table string
	// StatsTable is the statistics snapshot table name.
	StatsTable string
	// ChunkSize bounds rows per insert batch inside a bulk write.
	ChunkSize int
}

// Repository is the persistent-store contract used by the pipeline.
type Repository interface {
	// EnsureSchema creates the orders and statistics tables if absent.
	EnsureSchema(ctx context.Context) error

	// BulkWrite persists a batch of cleaned records according to mode and
	// reports the rows written and the chunks flushed. The whole batch is
	// one transaction; on error nothing is committed.
	BulkWrite(ctx context.Context, recs []schema.CleanedRecord, mode Mode) (int64, int64, error)

	// ScanRecords streams the full persisted record set to fn in undefined
	// order. A non-nil error from fn stops the scan and is returned.
	ScanRecords(ctx context.Context, fn func(schema.CleanedRecord) error) error

	// AdjustDiscounts adds each region's delta to the discount of every
	// matching row, all regions in one transaction. The returned map holds
	// the affected row count per requested region; zero matches is not an
	// error.
	AdjustDiscounts(ctx context.Context, adj schema.DiscountAdjustment) (map[string]int64, error)

	// LogStatistics appends a statistics snapshot in one transaction.
	// Prior snapshots are never touched.
	LogStatistics(ctx context.Context, stats []schema.ProductStat) (int64, error)

	// Close releases the underlying connections.
	Close()
}

// SinkError wraps a driver failure from any repository operation.
type SinkError struct {
	Driver string // backend kind, e.g. "sqlite"
	Op     string // failing operation, e.g. "bulk write"
	Err    error  // underlying driver error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Driver, e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Sink wraps err as a SinkError unless it is nil.
func Sink(driver, op string, err error) error {
	if err == nil {
		return nil
	}
	return &SinkError{Driver: driver, Op: op, Err: err}
}

// Factory builds a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a storage kind. Backends
// call this from init.
func Register(kind string, fn Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = fn
}

// New opens a Repository of the configured kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	factoryMu.RLock()
	fn, ok := factories[cfg.Kind]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
	return fn(ctx, cfg)
}
