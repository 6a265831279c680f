package transform

import (
	"time"

	"ordersetl/internal/schema"
)

// SelectSince filters a batch down to records strictly newer than the
// watermark. Records with a nil order_date are excluded: an unknown date is
// never "newer" than the watermark. A nil watermark passes everything
// through unchanged.
//
// Boundary semantics are strict-greater: a record dated exactly at the
// watermark is skipped.
func SelectSince(in []schema.CleanedRecord, watermark *time.Time) []schema.CleanedRecord {
	if watermark == nil {
		return in
	}
	out := make([]schema.CleanedRecord, 0, len(in))
	for _, r := range in {
		if r.OrderDate != nil && r.OrderDate.After(*watermark) {
			out = append(out, r)
		}
	}
	return out
}
