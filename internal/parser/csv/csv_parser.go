// Package csv implements a streaming parser for delimited text. It never
// buffers the whole file, tolerates variable row widths, and maps cells onto
// the original header names; canonicalizing those names is the normalizer's
// job, not the parser's.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"ordersetl/internal/parser"
	"ordersetl/pkg/records"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Options configures the parser. Zero values get sensible defaults.
type Options struct {
	// Comma is the field delimiter; ',' when zero. A tab covers TSV input.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each cell value.
	TrimSpace bool

	// LazyQuotes tolerates unescaped quotes in real-world data.
	LazyQuotes bool
}

// Parser is a streaming delimited-text parser. The first row is always
// treated as the header; rows wider than the header are truncated and short
// rows leave the missing cells absent.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	if opt.Comma == 0 {
		opt.Comma = ','
	}
	return &Parser{opt: opt}
}

var _ parser.Parser = (*Parser)(nil)

// Parse streams records to fn. Rows that fail to parse are reported to onErr
// and skipped; a header read failure is fatal because no field mapping can
// exist without it.
func (p *Parser) Parse(ctx context.Context, r io.Reader, fn parser.RowFunc, onErr parser.ErrFunc) error {
	cr := csv.NewReader(r)
	cr.Comma = p.opt.Comma
	cr.ReuseRecord = true
	cr.LazyQuotes = p.opt.LazyQuotes
	cr.FieldsPerRecord = -1 // tolerant by default
	cr.TrimLeadingSpace = p.opt.TrimSpace

	line := 0
	read := func() ([]string, error) { line++; return cr.Read() }

	hdr, err := read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	header := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		header[i] = strings.TrimSpace(h)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, err := read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, err)
			}
			continue
		}

		rec := make(records.Record, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i >= len(row) {
				rec[name] = nil
				continue
			}
			cell := row[i]
			if p.opt.TrimSpace {
				cell = strings.TrimSpace(cell)
			}
			if cell == "" {
				rec[name] = nil
				continue
			}
			rec[name] = cell
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}
