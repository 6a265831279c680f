package transform

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"ordersetl/internal/schema"
	"ordersetl/pkg/records"
)

// Normalize maps arbitrary source column names onto canonical field names.
// Matching is by folded form (lowercase, accents stripped, spacing and
// punctuation collapsed to underscores), so header variants like "Order Id",
// "order id" and "ORDER-ID" all land on "order_id". Unrecognized columns are
// dropped; canonical fields absent from the source are simply missing.
//
// Normalize is total: it never fails a row.
type Normalize struct {
	canon map[string]string // folded name -> canonical name
}

// NewNormalize builds the stage from the canonical column set, the derivation
// input fields, and the alias table.
func NewNormalize() Normalize {
	canon := make(map[string]string, len(schema.Columns)+len(schema.InputFields)+len(schema.Aliases))
	for _, c := range schema.Columns {
		canon[c] = c
	}
	for _, c := range schema.InputFields {
		canon[c] = c
	}
	for from, to := range schema.Aliases {
		canon[from] = to
	}
	return Normalize{canon: canon}
}

func (n Normalize) Apply(in []records.Record) []records.Record {
	out := make([]records.Record, 0, len(in))
	for _, r := range in {
		m := make(records.Record, len(r))
		for k, v := range r {
			if canonical, ok := n.canon[FoldFieldName(k)]; ok {
				m[canonical] = v
			}
		}
		out = append(out, m)
	}
	return out
}

// foldTransformer decomposes, removes nonspacing marks (accents), recomposes.
var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// FoldFieldName reduces a source column name to its canonical lookup form:
// lowercase ASCII letters and digits, with runs of spaces, dashes, dots and
// underscores collapsed to a single underscore.
func FoldFieldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	ascii, _, err := transform.String(foldTransformer, s)
	if err != nil {
		ascii = s
	}

	var b strings.Builder
	prevUnderscore := true // also trims leading separators
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
