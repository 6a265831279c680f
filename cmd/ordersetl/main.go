// Command ordersetl runs the sales order ingestion pipeline: it loads a
// pipeline config, optionally initializes a metrics backend, and executes
// the requested operations (load, statistics snapshot, discount
// adjustments) against the configured storage backend.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ordersetl/internal/config"
	"ordersetl/internal/metrics"
	"ordersetl/internal/metrics/prompush"
	"ordersetl/internal/pipeline"
	"ordersetl/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "ordersetl/internal/storage/all"
)

func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		watermarkFlg      string
		modeFlg           string
		validate          bool
		skipLoad          bool
		runStats          bool
		runAdjust         bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/orders.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&watermarkFlg, "watermark", "", "only load orders dated strictly after this date (YYYY-MM-DD; overrides config)")
	flag.StringVar(&modeFlg, "mode", "", "load mode: append, replace, fail_if_exists (overrides config)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&skipLoad, "skip-load", false, "skip the file load step")
	flag.BoolVar(&runStats, "stats", false, "append a product statistics snapshot after the load")
	flag.BoolVar(&runAdjust, "adjust", false, "apply the configured region discount adjustments")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	defer f.Close()

	var p config.Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		fatalf("decode config: %v", err)
	}
	p.ApplyDefaults()

	if watermarkFlg != "" {
		p.Load.Watermark = watermarkFlg
	}
	if modeFlg != "" {
		p.Load.Mode = modeFlg
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	initMetrics(p, metricsBackendFlg, pushGatewayURLFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: source=%s parser=%s storage=%s table=%s",
			p.Source.Kind, p.Parser.Kind, p.Storage.Kind, p.Storage.DB.Table)
	}

	repo, err := storage.New(ctx, storage.Config{
		Kind:       p.Storage.Kind,
		DSN:        p.Storage.DB.DSN,
		Table:      p.Storage.DB.Table,
		StatsTable: p.Storage.DB.StatsTable,
		ChunkSize:  p.Load.ChunkSize,
	})
	if err != nil {
		log.Fatalf("init repo: %v", err)
	}
	defer repo.Close()

	if p.Storage.DB.AutoCreateTable {
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
	}

	if !skipLoad {
		if _, err := pipeline.Ingest(ctx, p, repo); err != nil {
			log.Fatalf("ingest: %v", err)
		}
	}

	if runAdjust {
		if _, err := pipeline.ApplyAdjustments(ctx, p, repo); err != nil {
			log.Fatalf("adjust discounts: %v", err)
		}
	}

	if runStats {
		if _, err := pipeline.RecomputeStats(ctx, p, repo); err != nil {
			log.Fatalf("log statistics: %v", err)
		}
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// initMetrics decides the metrics backend: flag → env → disabled.
func initMetrics(p config.Pipeline, backendName, gwFlag string, verbose bool) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := gwFlag
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := prompush.NewBackend(p.Job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=%v, job=%v", gwURL, backendName, p.Job)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
