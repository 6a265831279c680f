// Package postgres implements a Postgres-backed storage.Repository using pgx
// v5. Bulk loads use the COPY protocol inside the operation's transaction.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ordersetl/internal/schema"
	"ordersetl/internal/storage"
)

const driverName = "postgres"

// Config holds Postgres repository configuration.
type Config struct {
	DSN        string // connection string for pgxpool
	Table      string // orders table, e.g. "public.orders_"
	StatsTable string // statistics table, e.g. "public.product_statistics"
	ChunkSize  int
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = storage.DefaultChunkSize
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, closeFn, nil
}

// EnsureSchema creates the orders and statistics tables if absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	orders := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  order_id BIGINT NOT NULL,
  order_date DATE,
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
  quantity BIGINT NOT NULL DEFAULT 0,
  discount NUMERIC(10,2) NOT NULL DEFAULT 0,
  sale_price NUMERIC(10,2) NOT NULL DEFAULT 0,
  profit NUMERIC(10,2) NOT NULL DEFAULT 0
)`, pgFQN(r.cfg.Table))

	stats := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  stat_id BIGSERIAL PRIMARY KEY,
  product_id VARCHAR(50),
  category VARCHAR(50),
  sub_category VARCHAR(50),
  total_revenue NUMERIC(10,2),
  total_profit NUMERIC(10,2),
  total_quantity BIGINT,
  order_count BIGINT,
  profit_margin_pct NUMERIC(5,2),
  log_date TIMESTAMPTZ NOT NULL DEFAULT now()
)`, pgFQN(r.cfg.StatsTable))

	for _, ddl := range []string{orders, stats} {
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return storage.Sink(driverName, "ensure schema", err)
		}
	}
	return nil
}

// BulkWrite COPYies the batch into the target table inside one transaction.
func (r *Repository) BulkWrite(ctx context.Context, recs []schema.CleanedRecord, mode storage.Mode) (int64, int64, error) {
	if !mode.Valid() {
		return 0, 0, storage.Sink(driverName, "bulk write", fmt.Errorf("unknown mode %q", mode))
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, storage.Sink(driverName, "bulk write: begin", err)
	}
	defer tx.Rollback(ctx)

	fq := pgFQN(r.cfg.Table)
	switch mode {
	case storage.ModeReplace:
		if _, err := tx.Exec(ctx, "DELETE FROM "+fq); err != nil {
			return 0, 0, storage.Sink(driverName, "bulk write: replace", err)
		}
	case storage.ModeFailIfExists:
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+fq+")").Scan(&exists); err != nil {
			return 0, 0, storage.Sink(driverName, "bulk write: existence check", err)
		}
		if exists {
			return 0, 0, storage.Sink(driverName, "bulk write",
				fmt.Errorf("table %s already holds rows", r.cfg.Table))
		}
	}

	ident := pgIdentifier(r.cfg.Table)
	total, batches, err := storage.LoadChunks(recs, r.cfg.ChunkSize, func(batch []schema.CleanedRecord) (int64, error) {
		rows := make([][]any, 0, len(batch))
		for _, rec := range batch {
			rows = append(rows, rec.Row())
		}
		return tx.CopyFrom(ctx, ident, schema.Columns, pgx.CopyFromRows(rows))
	})
	if err != nil {
		return 0, 0, storage.Sink(driverName, "bulk write: copy", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, storage.Sink(driverName, "bulk write: commit", err)
	}
	return total, batches, nil
}

// ScanRecords streams every persisted order row to fn.
func (r *Repository) ScanRecords(ctx context.Context, fn func(schema.CleanedRecord) error) error {
	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(schema.Columns, ", "), pgFQN(r.cfg.Table))
	rows, err := r.pool.Query(ctx, query)
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

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storage.Sink(driverName, "adjust discounts: begin", err)
	}
	defer tx.Rollback(ctx)

	update := fmt.Sprintf("UPDATE %s SET discount = discount + $1 WHERE region = $2", pgFQN(r.cfg.Table))
	for _, region := range sortedRegions(adj) {
		tag, err := tx.Exec(ctx, update, adj[region], region)
		if err != nil {
			return nil, storage.Sink(driverName, "adjust discounts", err)
		}
		counts[region] = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storage.Sink(driverName, "adjust discounts: commit", err)
	}
	return counts, nil
}

// LogStatistics appends one snapshot row per stat in one transaction.
func (r *Repository) LogStatistics(ctx context.Context, stats []schema.ProductStat) (int64, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, storage.Sink(driverName, "log statistics: begin", err)
	}
	defer tx.Rollback(ctx)

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		pgFQN(r.cfg.StatsTable), strings.Join(schema.StatColumns, ", "),
	)
	var n int64
	for _, s := range stats {
		if _, err := tx.Exec(ctx, insert,
			s.ProductID, s.Category, s.SubCategory,
			s.TotalRevenue, s.TotalProfit, s.TotalQuantity,
			s.OrderCount, s.ProfitMarginPct,
		); err != nil {
			return 0, storage.Sink(driverName, "log statistics", err)
		}
		n++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storage.Sink(driverName, "log statistics: commit", err)
	}
	return n, nil
}

func sortedRegions(adj schema.DiscountAdjustment) []string {
	regions := make([]string, 0, len(adj))
	for region := range adj {
		regions = append(regions, region)
	}
	// deterministic order keeps failures reproducible
	sort.Strings(regions)
	return regions
}

// pgIdentifier splits a possibly schema-qualified name for pgx COPY.
func pgIdentifier(fqn string) pgx.Identifier {
	return pgx.Identifier(strings.Split(fqn, "."))
}

// pgFQN quotes each dot-separated segment of a table name.
func pgFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
