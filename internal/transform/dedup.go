package transform

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"

	"ordersetl/internal/schema"
)

// DedupResult reports what an intra-batch de-duplication pass removed.
type DedupResult struct {
	// Dropped is the number of records removed (any duplicate order_id).
	Dropped int64
	// Conflicts counts dropped records whose content fingerprint differed
	// from the winner's, i.e. same order_id but different field values.
	Conflicts int64
}

// DedupByOrderID collapses duplicate order_id values within a batch, keeping
// the last occurrence (later rows in the file win). Output preserves the
// input order of the winning rows. Content conflicts are detected by an xxh3
// fingerprint over the record's persisted values so callers can log them.
func DedupByOrderID(in []schema.CleanedRecord) ([]schema.CleanedRecord, DedupResult) {
	var res DedupResult
	if len(in) == 0 {
		return in, res
	}

	type slot struct {
		index int
		sum   uint64
	}
	winners := make(map[int64]slot, len(in))
	for i, r := range in {
		sum := fingerprint(r)
		if prev, ok := winners[r.OrderID]; ok {
			res.Dropped++
			if prev.sum != sum {
				res.Conflicts++
			}
		}
		winners[r.OrderID] = slot{index: i, sum: sum}
	}
	if res.Dropped == 0 {
		return in, res
	}

	out := make([]schema.CleanedRecord, 0, len(winners))
	for i, r := range in {
		if winners[r.OrderID].index == i {
			out = append(out, r)
		}
	}
	return out, res
}

// fingerprint hashes the persisted values of a record into a single xxh3 sum.
func fingerprint(r schema.CleanedRecord) uint64 {
	h := xxh3.New()
	var buf [8]byte

	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	writeText := func(s string) {
		h.WriteString(s)
		h.Write([]byte{0x1f}) // field separator
	}

	writeInt(r.OrderID)
	if r.OrderDate != nil {
		writeInt(r.OrderDate.Unix())
	} else {
		writeInt(math.MinInt64)
	}
	for _, s := range []string{
		r.ShipMode, r.Segment, r.Country, r.City, r.State,
		r.PostalCode, r.Region, r.Category, r.SubCategory, r.ProductID,
	} {
		writeText(s)
	}
	writeInt(r.Quantity)
	writeFloat(r.Discount)
	writeFloat(r.SalePrice)
	writeFloat(r.Profit)
	return h.Sum64()
}
