// Package config defines the canonical, JSON-serializable configuration
// model for the ingestion tool. It is intentionally small, explicit, and
// dependency-free so that pipeline specs can be loaded from disk and passed
// through the program without additional glue code.
//
// Example (trimmed):
//
//	{
//	  "job":     "orders",
//	  "source":  { "kind": "file", "file": { "path": "orders.csv" } },
//	  "parser":  { "kind": "csv", "options": { "comma": "," } },
//	  "load":    { "mode": "append", "chunk_size": 1000 },
//	  "storage": { "kind": "sqlite", "db": { "dsn": "file:orders.db", "table": "orders_" } },
//	  "adjustments": { "South": 0.5, "West": -1.0 }
//	}
package config

import "time"

// WatermarkLayout is the date format accepted for load.watermark.
const WatermarkLayout = "2006-01-02"

// Defaults applied by ApplyDefaults.
const (
	DefaultTable      = "orders_"
	DefaultStatsTable = "product_statistics"
	DefaultMode       = "append"
	DefaultChunkSize  = 1000
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run; it labels metrics and log lines.
	Job string `json:"job"`

	// Source describes where input data comes from.
	Source Source `json:"source"`

	// Parser configures how raw bytes become records.
	Parser Parser `json:"parser"`

	// Load controls write mode, chunking, and the incremental watermark.
	Load Load `json:"load"`

	// Storage selects and configures the persistent store.
	Storage Storage `json:"storage"`

	// Adjustments maps region name -> signed discount delta, applied by the
	// discount adjustment step.
	Adjustments map[string]float64 `json:"adjustments,omitempty"`
}

// Source identifies the data source. Current kind: "file".
type Source struct {
	Kind string     `json:"kind"`
	File SourceFile `json:"file"`
}

// SourceFile holds options for the "file" source kind.
type SourceFile struct {
	Path string `json:"path"`
}

// Parser selects how to parse the raw source. Current kind: "csv".
type Parser struct {
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the parser implementation.
	// For CSV: comma (string), trim_space (bool), lazy_quotes (bool).
	Options Options `json:"options"`
}

// Load controls the persistence step of an ingest run.
type Load struct {
	// Mode is one of "append", "replace", "fail_if_exists".
	Mode string `json:"mode"`

	// ChunkSize bounds rows per insert batch inside the bulk write.
	ChunkSize int `json:"chunk_size"`

	// Watermark, when set (YYYY-MM-DD), keeps only records with a strictly
	// newer order_date. Records without a date never pass the watermark.
	Watermark string `json:"watermark,omitempty"`
}

// WatermarkTime parses the configured watermark; (nil, nil) when unset.
func (l Load) WatermarkTime() (*time.Time, error) {
	if l.Watermark == "" {
		return nil, nil
	}
	t, err := time.Parse(WatermarkLayout, l.Watermark)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Storage selects the sink used to persist records.
type Storage struct {
	// Kind selects the storage backend: "postgres", "mssql", "sqlite".
	Kind string `json:"kind"`

	DB DBConfig `json:"db"`
}

// DBConfig configures the database sink.
type DBConfig struct {
	// DSN is the driver connection string.
	DSN string `json:"dsn"`

	// Table is the orders table name (possibly schema-qualified,
	// e.g. "dbo.orders_").
	Table string `json:"table"`

	// StatsTable is the statistics snapshot table name.
	StatsTable string `json:"stats_table"`

	// AutoCreateTable creates both tables on startup when true.
	AutoCreateTable bool `json:"auto_create_table"`
}

// ApplyDefaults fills unset fields with the documented defaults.
func (p *Pipeline) ApplyDefaults() {
	if p.Storage.DB.Table == "" {
		p.Storage.DB.Table = DefaultTable
	}
	if p.Storage.DB.StatsTable == "" {
		p.Storage.DB.StatsTable = DefaultStatsTable
	}
	if p.Load.Mode == "" {
		p.Load.Mode = DefaultMode
	}
	if p.Load.ChunkSize == 0 {
		p.Load.ChunkSize = DefaultChunkSize
	}
	if p.Parser.Kind == "" {
		p.Parser.Kind = "csv"
	}
	if p.Source.Kind == "" {
		p.Source.Kind = "file"
	}
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without a third-party configuration library. It performs only minimal type
// coercion and returns provided defaults when a key is absent or of an
// unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so float64 is accepted and cast.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def. Useful for
// single-character parser settings such as the delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}
