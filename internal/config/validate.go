// This file adds a lightweight linter for Pipeline values. It performs
// static checks over a decoded Pipeline and returns a list of issues that
// callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
	"time"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates an issue that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates an issue to surface but not necessarily
	// block on.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config (e.g. "storage.kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where needed.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline statically validates a Pipeline without mutating it.
// Callers decide whether warnings are fatal. Run ApplyDefaults first so that
// defaultable fields do not produce spurious findings.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}

	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateLoad(p.Load)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateAdjustments(p.Adjustments)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "":
		issues = append(issues, Issue{SeverityError, "source.kind", "source.kind must not be empty"})
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{SeverityError, "source.file.path", "file source requires a non-empty path"})
		}
	default:
		issues = append(issues, Issue{
			SeverityWarning, "source.kind",
			fmt.Sprintf("unknown source kind %q; ensure a matching implementation exists", s.Kind),
		})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	switch p.Kind {
	case "":
		issues = append(issues, Issue{SeverityError, "parser.kind", "parser.kind must not be empty"})
	case "csv":
		if c := p.Options.String("comma", ","); len([]rune(c)) != 1 {
			issues = append(issues, Issue{
				SeverityError, "parser.options.comma",
				fmt.Sprintf("comma must be a single character, got %q", c),
			})
		}
	default:
		issues = append(issues, Issue{
			SeverityError, "parser.kind",
			fmt.Sprintf("unsupported parser kind %q (supported: csv)", p.Kind),
		})
	}
	return issues
}

func validateLoad(l Load) []Issue {
	var issues []Issue
	switch l.Mode {
	case "append", "replace", "fail_if_exists":
	case "":
		issues = append(issues, Issue{SeverityError, "load.mode", "load.mode must not be empty"})
	default:
		issues = append(issues, Issue{
			SeverityError, "load.mode",
			fmt.Sprintf("unknown mode %q (append, replace, fail_if_exists)", l.Mode),
		})
	}
	if l.ChunkSize < 0 {
		issues = append(issues, Issue{SeverityError, "load.chunk_size", "chunk_size must not be negative"})
	}
	if l.Watermark != "" {
		if _, err := time.Parse(WatermarkLayout, l.Watermark); err != nil {
			issues = append(issues, Issue{
				SeverityError, "load.watermark",
				fmt.Sprintf("watermark %q must be %s", l.Watermark, WatermarkLayout),
			})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	known := map[string]struct{}{"postgres": {}, "mssql": {}, "sqlite": {}}
	if s.Kind == "" {
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	} else if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			SeverityWarning, "storage.kind",
			fmt.Sprintf("unknown storage kind %q; ensure a backend is registered for it", s.Kind),
		})
	}

	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.dsn", "dsn must not be empty"})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.table", "table must not be empty"})
	}
	if strings.TrimSpace(s.DB.StatsTable) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.stats_table", "stats_table must not be empty"})
	}
	return issues
}

func validateAdjustments(adj map[string]float64) []Issue {
	var issues []Issue
	for region, delta := range adj {
		if strings.TrimSpace(region) == "" {
			issues = append(issues, Issue{SeverityError, "adjustments", "region name must not be empty"})
		}
		if delta == 0 {
			issues = append(issues, Issue{
				SeverityWarning, "adjustments." + region,
				"zero delta has no effect",
			})
		}
	}
	return issues
}
