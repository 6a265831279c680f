package storage

import (
	"fmt"
	"log"
	"time"

	"ordersetl/internal/schema"
)

// DefaultChunkSize is used when Config.ChunkSize is zero.
const DefaultChunkSize = 1000

// ChunkFn inserts one batch of records and returns the rows written.
// Backends call it inside their bulk-write transaction, so a failing chunk
// aborts the whole unit.
type ChunkFn func(batch []schema.CleanedRecord) (int64, error)

// LoadChunks feeds recs to fn in consecutive batches of at most size rows and
// returns the total written and the number of batches flushed. It logs one
// concise progress line per flushed batch with running totals and
// instantaneous rows/sec.
func LoadChunks(recs []schema.CleanedRecord, size int, fn ChunkFn) (int64, int64, error) {
	if size <= 0 {
		return 0, 0, fmt.Errorf("chunk size must be > 0")
	}
	if fn == nil {
		return 0, 0, fmt.Errorf("chunk fn must not be nil")
	}

	var (
		total     int64
		batches   int64
		start     = time.Now()
		lastFlush = start
	)
	for off := 0; off < len(recs); off += size {
		end := off + size
		if end > len(recs) {
			end = len(recs)
		}
		n, err := fn(recs[off:end])
		total += n
		if err != nil {
			log.Printf("loader: chunk failed after=%d total=%d err=%v", n, total, err)
			return total, batches, err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlush)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(n) / sinceLast.Seconds()
		}
		log.Printf(
			"batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
			batches, rps, n, total, now.Sub(start).Truncate(time.Millisecond),
		)
		lastFlush = now
	}
	return total, batches, nil
}
