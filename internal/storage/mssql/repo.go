// Package mssql implements a SQL Server-backed storage.Repository using the
// go-mssqldb driver. Bulk loads go through the driver's bulk copy API inside
// the operation's transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"ordersetl/internal/schema"
	"ordersetl/internal/storage"
)

const driverName = "mssql"

// Config holds MSSQL repository configuration.
type Config struct {
	DSN        string
	Table      string // e.g. "dbo.orders_"
	StatsTable string // e.g. "dbo.product_statistics"
	ChunkSize  int
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for
// cleanup. The DSN is validated early to fail fast on obvious mistakes.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = storage.DefaultChunkSize
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// EnsureSchema creates the orders and statistics tables if absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	orders := fmt.Sprintf(`IF OBJECT_ID('%s', 'U') IS NULL
CREATE TABLE %s (
  order_id BIGINT NOT NULL,
  order_date DATE NULL,
  ship_mode VARCHAR(50) NOT NULL,
  segment VARCHAR(50) NOT NULL,
  country VARCHAR(100) NOT NULL,
  city VARCHAR(100) NOT NULL,
  state VARCHAR(100) NOT NULL,
  postal_code VARCHAR(20) NOT NULL,
  region VARCHAR(50) NOT NULL,
  category VARCHAR(50) NOT NULL,
  sub_category VARCHAR(50) NOT NULL,
  product_id VARCHAR(50) NOT NULL,
  quantity INT NOT NULL DEFAULT 0,
  discount DECIMAL(10,2) NOT NULL DEFAULT 0,
  sale_price DECIMAL(10,2) NOT NULL DEFAULT 0,
  profit DECIMAL(10,2) NOT NULL DEFAULT 0
);`, r.cfg.Table, msFQN(r.cfg.Table))

	stats := fmt.Sprintf(`IF OBJECT_ID('%s', 'U') IS NULL
CREATE TABLE %s (
  stat_id INT IDENTITY(1,1) PRIMARY KEY,
  product_id VARCHAR(50),
  category VARCHAR(50),
  sub_category VARCHAR(50),
  total_revenue DECIMAL(10,2),
  total_profit DECIMAL(10,2),
  total_quantity INT,
  order_count INT,
  profit_margin_pct DECIMAL(5,2),
  log_date DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
);`, r.cfg.StatsTable, msFQN(r.cfg.StatsTable))

	for _, ddl := range []string{orders, stats} {
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return storage.Sink(driverName, "ensure schema", err)
		}
	}
	return nil
}

// BulkWrite bulk-copies the batch into the target table inside one
// transaction.
func (r *Repository) BulkWrite(ctx context.Context, recs []schema.CleanedRecord, mode storage.Mode) (int64, int64, error) {
	if !mode.Valid() {
		return 0, 0, storage.Sink(driverName, "bulk write", fmt.Errorf("unknown mode %q", mode))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, storage.Sink(driverName, "bulk write: begin", err)
	}
	defer tx.Rollback()

	fq := msFQN(r.cfg.Table)
	switch mode {
	case storage.ModeReplace:
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+fq); err != nil {
			return 0, 0, storage.Sink(driverName, "bulk write: replace", err)
		}
	case storage.ModeFailIfExists:
		var n int64
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+fq).Scan(&n); err != nil {
			return 0, 0, storage.Sink(driverName, "bulk write: existence check", err)
		}
		if n > 0 {
			return 0, 0, storage.Sink(driverName, "bulk write",
				fmt.Errorf("table %s already holds %d rows", r.cfg.Table, n))
		}
	}

	total, batches, err := storage.LoadChunks(recs, r.cfg.ChunkSize, func(batch []schema.CleanedRecord) (int64, error) {
		stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(r.cfg.Table, mssql.BulkOptions{}, schema.Columns...))
		if err != nil {
			return 0, fmt.Errorf("prepare bulk copy: %w", err)
		}
		for _, rec := range batch {
			if _, err := stmt.ExecContext(ctx, rec.Row()...); err != nil {
				_ = stmt.Close()
				return 0, fmt.Errorf("bulk copy row: %w", err)
			}
		}
		// Final Exec with no args flushes the bulk copy.
		res, err := stmt.ExecContext(ctx)
		if err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("flush bulk copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return 0, fmt.Errorf("close bulk copy: %w", err)
		}
		return res.RowsAffected()
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
		strings.Join(schema.Columns, ", "), msFQN(r.cfg.Table))
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return storage.Sink(driverName, "scan records", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec schema.CleanedRecord
		if err := rows.Scan(
			&rec.OrderID, &rec.OrderDate, &rec.ShipMode, &rec.Segment,
			&rec.Country, &rec.City, &rec.State, &rec.PostalCode, &rec.Region,
			&rec.Category, &rec.SubCategory, &rec.ProductID,
			&rec.Quantity, &rec.Discount, &rec.SalePrice, &rec.Profit,
		); err != nil {
			return storage.Sink(driverName, "scan records", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return storage.Sink(driverName, "scan records", rows.Err())
}

// AdjustDiscounts applies all region deltas in one transaction.
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

	update := fmt.Sprintf("UPDATE %s SET discount = discount + @p1 WHERE region = @p2", msFQN(r.cfg.Table))
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

// LogStatistics appends one snapshot row per stat in one transaction.
func (r *Repository) LogStatistics(ctx context.Context, stats []schema.ProductStat) (int64, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storage.Sink(driverName, "log statistics: begin", err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8)",
		msFQN(r.cfg.StatsTable), strings.Join(schema.StatColumns, ", "),
	)
	var n int64
	for _, s := range stats {
		var margin any
		if s.ProfitMarginPct != nil {
			margin = *s.ProfitMarginPct
		}
		if _, err := tx.ExecContext(ctx, insert,
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

func sortedRegions(adj schema.DiscountAdjustment) []string {
	regions := make([]string, 0, len(adj))
	for region := range adj {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

// msFQN bracket-quotes each dot-separated segment of a table name.
func msFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	}
	return strings.Join(parts, ".")
}
