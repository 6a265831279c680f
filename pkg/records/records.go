// Package records defines the loosely typed row shape passed between the
// parser and the transform stages.
package records

// Record is a single raw row: source column name -> scalar value.
// Values are strings as read from the source, or nil for absent cells;
// transform stages may replace them with typed values.
type Record map[string]any

// Clone returns a shallow copy of r. Stages that rewrite a record produce a
// copy instead of mutating their input.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
