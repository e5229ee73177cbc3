// Package main provides the entry point for the evidence aggregation service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helixir/evidence-aggregation-service/internal/config"
	"github.com/helixir/evidence-aggregation-service/internal/dedup"
	"github.com/helixir/evidence-aggregation-service/internal/fanout"
	"github.com/helixir/evidence-aggregation-service/internal/observability"
	"github.com/helixir/evidence-aggregation-service/internal/pipeline"
	"github.com/helixir/evidence-aggregation-service/internal/refine"
	"github.com/helixir/evidence-aggregation-service/internal/scoring"
	httpserver "github.com/helixir/evidence-aggregation-service/internal/server/http"
	"github.com/helixir/evidence-aggregation-service/internal/sources"
	"github.com/helixir/evidence-aggregation-service/internal/sources/crossref"
	"github.com/helixir/evidence-aggregation-service/internal/sources/europepmc"
	"github.com/helixir/evidence-aggregation-service/internal/sources/openalex"
	"github.com/helixir/evidence-aggregation-service/internal/sources/pubmed"
	"github.com/helixir/evidence-aggregation-service/internal/sources/semanticscholar"
)

const metricsNamespace = "evidence"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("evidence-aggregation-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(metricsNamespace, registry)

	// Register source adapters.
	adapterRegistry := buildAdapterRegistry(cfg)
	enabled := adapterRegistry.EnabledAdapters()
	names := make([]string, len(enabled))
	for i, a := range enabled {
		names[i] = string(a.SourceType())
	}
	logger.Info().Strs("sources", names).Msg("source adapters registered")

	// Assemble the aggregation pipeline.
	refiner := refine.New(logger, refine.Options{
		TargetResultCount: cfg.Filter.TargetResultCount,
		MaxPerSourceFetch: cfg.Sources.FetchLimits(),
	})
	coordinator := fanout.New(logger, metrics, fanout.Options{
		OverallTimeout:   cfg.Fanout.OverallTimeout,
		PerSourceTimeout: cfg.Fanout.PerSourceTimeout,
		FetchLimit:       cfg.Fanout.FetchLimit,
	})
	deduplicator := dedup.New(logger, dedup.Options{
		TitleSimilarityThreshold: cfg.Dedup.TitleSimilarityThreshold,
		AuthorOverlapThreshold:   cfg.Dedup.AuthorOverlapThreshold,
		YearTolerance:            cfg.Dedup.YearTolerance,
	})
	scorer := scoring.New(scoring.Weights{
		Relevance: cfg.Scoring.RelevanceWeight,
		Evidence:  cfg.Scoring.EvidenceWeight,
	})

	pipe, err := pipeline.New(refiner, coordinator, adapterRegistry, deduplicator, scorer, logger, metrics, pipeline.Options{
		Tiers:             cfg.Filter.Tiers,
		TargetResultCount: cfg.Filter.TargetResultCount,
		DiversityWindow:   cfg.Filter.DiversityWindow,
		CacheEnabled:      cfg.Cache.Enabled,
		CacheSize:         cfg.Cache.Size,
		CacheTTL:          cfg.Cache.TTL,
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	// Create the HTTP server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if cfg.Metrics.Enabled {
		httpCfg.MetricsPath = cfg.Metrics.Path
		httpCfg.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	httpSrv := httpserver.NewServer(httpCfg, pipe, logger)

	// Channel to collect server errors.
	errCh := make(chan error, 1)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// buildAdapterRegistry creates and registers every configured source adapter.
// Disabled sources are still registered; the registry filters them out per
// run, so enabling a source is a config flip plus restart.
func buildAdapterRegistry(cfg *config.Config) *sources.Registry {
	registry := sources.NewRegistry()

	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:    cfg.Sources.PubMed.BaseURL,
		APIKey:     cfg.Sources.PubMed.APIKey,
		Timeout:    cfg.Sources.PubMed.Timeout,
		RateLimit:  cfg.Sources.PubMed.RateLimit,
		MaxResults: cfg.Sources.PubMed.MaxResults,
		Enabled:    cfg.Sources.PubMed.Enabled,
	}))

	registry.Register(openalex.New(openalex.Config{
		BaseURL:    cfg.Sources.OpenAlex.BaseURL,
		MailTo:     cfg.Sources.OpenAlex.Mailto,
		Timeout:    cfg.Sources.OpenAlex.Timeout,
		RateLimit:  cfg.Sources.OpenAlex.RateLimit,
		MaxResults: cfg.Sources.OpenAlex.MaxResults,
		Enabled:    cfg.Sources.OpenAlex.Enabled,
	}))

	registry.Register(semanticscholar.New(semanticscholar.Config{
		BaseURL:    cfg.Sources.SemanticScholar.BaseURL,
		APIKey:     cfg.Sources.SemanticScholar.APIKey,
		Timeout:    cfg.Sources.SemanticScholar.Timeout,
		RateLimit:  cfg.Sources.SemanticScholar.RateLimit,
		MaxResults: cfg.Sources.SemanticScholar.MaxResults,
		Enabled:    cfg.Sources.SemanticScholar.Enabled,
	}))

	registry.Register(europepmc.New(europepmc.Config{
		BaseURL:    cfg.Sources.EuropePMC.BaseURL,
		Timeout:    cfg.Sources.EuropePMC.Timeout,
		RateLimit:  cfg.Sources.EuropePMC.RateLimit,
		MaxResults: cfg.Sources.EuropePMC.MaxResults,
		Enabled:    cfg.Sources.EuropePMC.Enabled,
	}))

	registry.Register(crossref.New(crossref.Config{
		BaseURL:    cfg.Sources.Crossref.BaseURL,
		Mailto:     cfg.Sources.Crossref.Mailto,
		Timeout:    cfg.Sources.Crossref.Timeout,
		RateLimit:  cfg.Sources.Crossref.RateLimit,
		MaxResults: cfg.Sources.Crossref.MaxResults,
		Enabled:    cfg.Sources.Crossref.Enabled,
	}))

	return registry
}
