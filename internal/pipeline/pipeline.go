// Package pipeline wires the order ingestion flow end-to-end: source →
// parser → normalize → derive → clean → dedup → watermark filter → bulk
// write. It depends only on storage-agnostic interfaces and never imports
// database drivers or backend-specific packages directly.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ordersetl/internal/config"
	"ordersetl/internal/datasource"
	"ordersetl/internal/datasource/file"
	"ordersetl/internal/metrics"
	csvparser "ordersetl/internal/parser/csv"
	"ordersetl/internal/schema"
	"ordersetl/internal/stats"
	"ordersetl/internal/storage"
	"ordersetl/internal/transform"
	"ordersetl/pkg/records"
)

const sampleErrs = 3

// Summary holds the end-of-run statistics for one ingestion.
//
// Row accounting (excluding the header line):
//
//	processed + parse_errors == total_data_rows
//	processed == inserted + rejected + duplicates + filtered_out
type Summary struct {
	Processed          int64 // rows that parsed into a record
	ParseErrors        int64 // lines the reader could not parse
	Rejected           int64 // rows dropped for an unusable order_id
	DerivationDefaults int64 // derived fields that fell back to zero
	Duplicates         int64 // rows dropped by order_id dedup (keep-last)
	Conflicts          int64 // dropped duplicates that differed from the survivor
	FilteredOut        int64 // rows at or before the watermark
	Inserted           int64 // rows committed to storage
	Batches            int64 // write batches flushed
}

// counters is the atomic cross-goroutine form of Summary.
type counters struct {
	processed          atomic.Int64
	parseErrors        atomic.Int64
	rejected           atomic.Int64
	derivationDefaults atomic.Int64
}

// errAgg keeps a total count plus the first few messages for the run log.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg { return &errAgg{limit: limit} }

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) log(label string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return
	}
	log.Printf("%s: %d (showing first %d)", label, a.count, len(a.first))
	for i, s := range a.first {
		log.Printf("  #%03d: %s", i+1, s)
	}
}

// openSource maps the source configuration onto a datasource implementation.
func openSource(ctx context.Context, spec config.Pipeline) (datasource.Source, error) {
	switch spec.Source.Kind {
	case "file":
		return file.NewLocal(spec.Source.File.Path), nil
	default:
		return nil, &datasource.SourceReadError{
			Path: spec.Source.File.Path,
			Err:  fmt.Errorf("unsupported source.kind=%s", spec.Source.Kind),
		}
	}
}

// buildParser maps parser configuration onto a concrete parser.
func buildParser(p config.Parser) (*csvparser.Parser, error) {
	switch p.Kind {
	case "csv":
		return csvparser.NewParser(csvparser.Options{
			Comma:      p.Options.Rune("comma", ','),
			TrimSpace:  p.Options.Bool("trim_space", true),
			LazyQuotes: p.Options.Bool("lazy_quotes", false),
		}), nil
	default:
		return nil, &datasource.SourceReadError{
			Err: fmt.Errorf("unsupported parser.kind=%s", p.Kind),
		}
	}
}

// Ingest executes one full ingestion run against repo.
//
// The reader streams raw rows on a bounded channel while the consumer
// normalizes, derives, and cleans them batch by batch; dedup and the
// watermark filter need the whole cleaned set, so they run once the reader
// drains. Bad rows are dropped before the database (fail-soft), and the
// whole surviving set is written in one transaction.
func Ingest(ctx context.Context, spec config.Pipeline, repo storage.Repository) (Summary, error) {
	start := time.Now()
	sum, err := ingest(ctx, spec, repo)
	metrics.RecordStep(spec.Job, "ingest", err, time.Since(start))
	return sum, err
}

func ingest(ctx context.Context, spec config.Pipeline, repo storage.Repository) (Summary, error) {
	var c counters

	src, err := openSource(ctx, spec)
	if err != nil {
		return Summary{}, err
	}
	p, err := buildParser(spec.Parser)
	if err != nil {
		return Summary{}, err
	}

	chunk := spec.Load.ChunkSize
	if chunk <= 0 {
		chunk = storage.DefaultChunkSize
	}

	parseAgg := newErrAgg(sampleErrs)
	rejectAgg := newErrAgg(sampleErrs)

	chain := transform.Chain{
		transform.NewNormalize(),
		transform.Derive{Incomplete: func(field string, _ records.Record) {
			c.derivationDefaults.Add(1)
		}},
	}
	cleaner := transform.Cleaner{Reject: func(r transform.Rejection) {
		rejectAgg.add(r.Reason)
		c.rejected.Add(1)
	}}

	rowCh := make(chan records.Record, chunk)

	eg, ctx := errgroup.WithContext(ctx)

	// Reader: stream raw rows off the source.
	eg.Go(func() error {
		defer close(rowCh)

		rc, err := src.Open(ctx)
		if err != nil {
			return err
		}
		defer rc.Close()

		return p.Parse(ctx, rc,
			func(_ int, rec records.Record) error {
				c.processed.Add(1)
				select {
				case rowCh <- rec:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			func(line int, err error) {
				parseAgg.add(fmt.Sprintf("line=%d: %v", line, err))
				c.parseErrors.Add(1)
			},
		)
	})

	// Consumer: normalize, derive, and clean batch by batch.
	var cleaned []schema.CleanedRecord
	eg.Go(func() error {
		batch := make([]records.Record, 0, chunk)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			cleaned = append(cleaned, cleaner.Apply(chain.Apply(batch))...)
			batch = batch[:0]
		}
		for rec := range rowCh {
			batch = append(batch, rec)
			if len(batch) >= chunk {
				flush()
			}
		}
		flush()
		return nil
	})

	if err := eg.Wait(); err != nil {
		return snapshot(&c, transform.DedupResult{}, 0, 0, 0), err
	}

	deduped, dd := transform.DedupByOrderID(cleaned)

	watermark, err := spec.Load.WatermarkTime()
	if err != nil {
		return snapshot(&c, dd, 0, 0, 0), fmt.Errorf("watermark: %w", err)
	}
	selected := transform.SelectSince(deduped, watermark)
	filteredOut := int64(len(deduped) - len(selected))

	inserted, batches, err := repo.BulkWrite(ctx, selected, storage.Mode(spec.Load.Mode))
	if err != nil {
		return snapshot(&c, dd, filteredOut, inserted, batches), err
	}

	parseAgg.log("parse errors")
	rejectAgg.log("rejected rows")

	sum := snapshot(&c, dd, filteredOut, inserted, batches)
	logSummary(sum)
	recordRows(spec.Job, sum)

	return sum, nil
}

func snapshot(c *counters, dd transform.DedupResult, filteredOut, inserted, batches int64) Summary {
	return Summary{
		Processed:          c.processed.Load(),
		ParseErrors:        c.parseErrors.Load(),
		Rejected:           c.rejected.Load(),
		DerivationDefaults: c.derivationDefaults.Load(),
		Duplicates:         dd.Dropped,
		Conflicts:          dd.Conflicts,
		FilteredOut:        filteredOut,
		Inserted:           inserted,
		Batches:            batches,
	}
}

func logSummary(s Summary) {
	log.Printf(
		"summary: processed=%d parse_errors=%d rejected=%d derivation_defaults=%d duplicates=%d conflicts=%d filtered_out=%d inserted=%d batches=%d",
		s.Processed, s.ParseErrors, s.Rejected, s.DerivationDefaults,
		s.Duplicates, s.Conflicts, s.FilteredOut, s.Inserted, s.Batches,
	)

	accounted := s.Rejected + s.Duplicates + s.FilteredOut + s.Inserted
	if accounted != s.Processed {
		log.Printf(
			"WARNING: row accounting mismatch: processed=%d accounted=%d (delta=%d)",
			s.Processed, accounted, s.Processed-accounted,
		)
	}
}

func recordRows(job string, s Summary) {
	metrics.RecordRow(job, "processed", s.Processed)
	metrics.RecordRow(job, "parse_errors", s.ParseErrors)
	metrics.RecordRow(job, "rejected", s.Rejected)
	metrics.RecordRow(job, "derivation_defaults", s.DerivationDefaults)
	metrics.RecordRow(job, "duplicates", s.Duplicates)
	metrics.RecordRow(job, "filtered_out", s.FilteredOut)
	metrics.RecordRow(job, "inserted", s.Inserted)
	metrics.RecordBatches(job, s.Batches)
}

// RecomputeStats scans the persisted orders, aggregates per-product
// statistics, and appends a snapshot to the statistics table. It returns the
// number of snapshot rows written.
func RecomputeStats(ctx context.Context, spec config.Pipeline, repo storage.Repository) (int64, error) {
	start := time.Now()
	n, err := recomputeStats(ctx, repo)
	metrics.RecordStep(spec.Job, "stats", err, time.Since(start))
	return n, err
}

func recomputeStats(ctx context.Context, repo storage.Repository) (int64, error) {
	agg := stats.NewAggregator()
	if err := repo.ScanRecords(ctx, func(r schema.CleanedRecord) error {
		agg.Add(r)
		return nil
	}); err != nil {
		return 0, err
	}

	results := agg.Results()
	if len(results) == 0 {
		log.Printf("stats: no orders to aggregate")
		return 0, nil
	}

	n, err := repo.LogStatistics(ctx, results)
	if err != nil {
		return 0, err
	}
	log.Printf("stats: logged %d product rows", n)
	return n, nil
}

// ApplyAdjustments adds the configured per-region deltas to the discount of
// every matching persisted row. It returns the affected row count per region.
func ApplyAdjustments(ctx context.Context, spec config.Pipeline, repo storage.Repository) (map[string]int64, error) {
	if len(spec.Adjustments) == 0 {
		return nil, nil
	}

	start := time.Now()
	affected, err := repo.AdjustDiscounts(ctx, schema.DiscountAdjustment(spec.Adjustments))
	metrics.RecordStep(spec.Job, "adjust", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	for region, n := range affected {
		log.Printf("adjust: region=%s rows=%d", region, n)
	}
	return affected, nil
}
