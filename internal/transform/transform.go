// Package transform contains the row transformation stages of the ingestion
// pipeline. Stages are pure: each produces a new slice (and new records where
// values change) and never mutates its input after returning it.
package transform

import (
	"math"

	"ordersetl/pkg/records"
)

// Stage transforms a batch of raw records.
type Stage interface {
	Apply([]records.Record) []records.Record
}

// Chain is an ordered list of stages.
type Chain []Stage

func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, s := range c {
		out = s.Apply(out)
	}
	return out
}

// round2 rounds to 2 decimal places, half away from zero. Both derived money
// fields use this so repeated derivation is stable.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
