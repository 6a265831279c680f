// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql. SQLite has no dedicated bulk-load API, but batched prepared
// INSERTs inside one transaction keep performance acceptable for the volumes
// this pipeline handles, and an in-memory database makes the backend handy
// for tests and local runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	// SQLite driver; cgo-free.
	_ "modernc.org/sqlite"

	"ordersetl/internal/schema"
	"ordersetl/internal/storage"
)

const driverName = "sqlite"

// dateLayout is how order_date round-trips through TEXT affinity.
const dateLayout = "2006-01-02 15:04:05"

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	DSN        string
	Table      string
	StatsTable string
	ChunkSize  int
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
//
// DSN is passed directly to database/sql; for example:
//
//	"file:orders.db?cache=shared"
//	"file::memory:?cache=shared"
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = storage.DefaultChunkSize
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// EnsureSchema creates the orders and statistics tables if absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	orders := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  order_id INTEGER NOT NULL,
  order_date TEXT,
  ship_mode TEXT NOT NULL,
  segment TEXT NOT NULL,
  country TEXT NOT NULL,
  city TEXT NOT NULL,
  state TEXT NOT NULL,
  postal_code TEXT NOT NULL,
  region TEXT NOT NULL,
  category TEXT NOT NULL,
  sub_category TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  discount REAL NOT NULL DEFAULT 0,
  sale_price REAL NOT NULL DEFAULT 0,
  profit REAL NOT NULL DEFAULT 0
);`, quoteIdent(r.cfg.Table))

	stats := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  stat_id INTEGER PRIMARY KEY AUTOINCREMENT,
  product_id TEXT,
  category TEXT,
  sub_category TEXT,
  total_revenue REAL,
  total_profit REAL,
  total_quantity INTEGER,
  order_count INTEGER,
  profit_margin_pct REAL,
  log_date TEXT NOT NULL DEFAULT (datetime('now'))
);`, quoteIdent(r.cfg.StatsTable))

	for _, ddl := range []string{orders, stats} {
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return storage.Sink(driverName, "ensure schema", err)
		}
	}
	return nil
}

// BulkWrite inserts the batch inside one transaction using a prepared
// statement, honoring the write mode.
func (r *Repository) BulkWrite(ctx context.Context, recs []schema.CleanedRecord, mode storage.Mode) (int64, int64, error) {
	if !mode.Valid() {
		return 0, 0, storage.Sink(driverName, "bulk write", fmt.Errorf("unknown mode %q", mode))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, storage.Sink(driverName, "bulk write: begin", err)
	}
	defer tx.Rollback()

	table := quoteIdent(r.cfg.Table)
	switch mode {
	case storage.ModeReplace:
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return 0, 0, storage.Sink(driverName, "bulk write: replace", err)
		}
	case storage.ModeFailIfExists:
		var n int64
		row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table)
		if err := row.Scan(&n); err != nil {
			return 0, 0, storage.Sink(driverName, "bulk write: existence check", err)
		}
		if n > 0 {
			return 0, 0, storage.Sink(driverName, "bulk write",
				fmt.Errorf("table %s already holds %d rows", r.cfg.Table, n))
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(schema.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(schema.Columns, ", "), placeholders,
	))
	if err != nil {
		return 0, 0, storage.Sink(driverName, "bulk write: prepare", err)
	}
	defer stmt.Close()

	total, batches, err := storage.LoadChunks(recs, r.cfg.ChunkSize, func(batch []schema.CleanedRecord) (int64, error) {
		var n int64
		for _, rec := range batch {
			if _, err := stmt.ExecContext(ctx, bindValues(rec)...); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	})
	if err != nil {
		return 0, 0, storage.Sink(driverName, "bulk write", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, storage.Sink(driverName, "bulk write: commit", err)
	}
	return total, batches, nil
}

// ScanRecords streams every persisted order row to fn.
func (r *Repository) ScanRecords(ctx context.Context, fn func(schema.CleanedRecord) error) error {
	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(schema.Columns, ", "), quoteIdent(r.cfg.Table))
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return storage.Sink(driverName, "scan records", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec  schema.CleanedRecord
			date sql.NullString
		)
		if err := rows.Scan(
			&rec.OrderID, &date, &rec.ShipMode, &rec.Segment,
			&rec.Country, &rec.City, &rec.State, &rec.PostalCode, &rec.Region,
			&rec.Category, &rec.SubCategory, &rec.ProductID,
			&rec.Quantity, &rec.Discount, &rec.SalePrice, &rec.Profit,
		); err != nil {
			return storage.Sink(driverName, "scan records", err)
		}
		if date.Valid {
			t, err := time.Parse(dateLayout, date.String)
			if err != nil {
				log.Printf("scan: order_id=%d bad order_date=%q err=%v", rec.OrderID, date.String, err)
			} else {
				rec.OrderDate = &t
			}
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return storage.Sink(driverName, "scan records", rows.Err())
}

// AdjustDiscounts applies all region deltas in one transaction. Regions are
// processed in sorted order so failures are deterministic.
func (r *Repository) AdjustDiscounts(ctx context.Context, adj schema.DiscountAdjustment) (map[string]int64, error) {
	counts := make(map[string]int64, len(adj))
	if len(adj) == 0 {
		return counts, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.Sink(driverName, "adjust discounts: begin", err)
	}
	defer tx.Rollback()

	update := fmt.Sprintf("UPDATE %s SET discount = discount + ? WHERE region = ?",
		quoteIdent(r.cfg.Table))
	for _, region := range sortedRegions(adj) {
		res, err := tx.ExecContext(ctx, update, adj[region], region)
		if err != nil {
			return nil, storage.Sink(driverName, "adjust discounts", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, storage.Sink(driverName, "adjust discounts", err)
		}
		counts[region] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, storage.Sink(driverName, "adjust discounts: commit", err)
	}
	return counts, nil
}

// LogStatistics appends one snapshot row per stat; stat_id and log_date come
// from the table defaults.
func (r *Repository) LogStatistics(ctx context.Context, stats []schema.ProductStat) (int64, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storage.Sink(driverName, "log statistics: begin", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(schema.StatColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(r.cfg.StatsTable), strings.Join(schema.StatColumns, ", "), placeholders,
	))
	if err != nil {
		return 0, storage.Sink(driverName, "log statistics: prepare", err)
	}
	defer stmt.Close()

	var n int64
	for _, s := range stats {
		var margin any
		if s.ProfitMarginPct != nil {
			margin = *s.ProfitMarginPct
		}
		if _, err := stmt.ExecContext(ctx,
			s.ProductID, s.Category, s.SubCategory,
			s.TotalRevenue, s.TotalProfit, s.TotalQuantity,
			s.OrderCount, margin,
		); err != nil {
			return 0, storage.Sink(driverName, "log statistics", err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, storage.Sink(driverName, "log statistics: commit", err)
	}
	return n, nil
}

// bindValues maps a record onto the schema.Columns order, formatting the
// date for TEXT affinity and NULLing it when absent.
func bindValues(rec schema.CleanedRecord) []any {
	vals := rec.Row()
	if rec.OrderDate != nil {
		vals[1] = rec.OrderDate.Format(dateLayout)
	} else {
		vals[1] = nil
	}
	return vals
}

func sortedRegions(adj schema.DiscountAdjustment) []string {
	regions := make([]string, 0, len(adj))
	for region := range adj {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

func quoteIdent(id string) string {
	parts := strings.Split(id, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
