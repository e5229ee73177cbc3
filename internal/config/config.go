// Package config provides configuration management for the evidence
// aggregation service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
	"github.com/helixir/evidence-aggregation-service/internal/pipeline"
)

// Config holds all configuration for the evidence aggregation service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Sources contains source adapter configurations.
	Sources SourcesConfig `mapstructure:"sources"`
	// Fanout contains fan-out deadline settings.
	Fanout FanoutConfig `mapstructure:"fanout"`
	// Dedup contains deduplication tuning.
	Dedup DedupConfig `mapstructure:"dedup"`
	// Scoring contains scoring weight settings.
	Scoring ScoringConfig `mapstructure:"scoring"`
	// Filter contains the progressive filter ladder.
	Filter FilterConfig `mapstructure:"filter"`
	// Cache contains result cache settings.
	Cache CacheConfig `mapstructure:"cache"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// SourcesConfig holds configuration for all source adapters.
type SourcesConfig struct {
	// PubMed contains PubMed E-utilities settings.
	PubMed SourceConfig `mapstructure:"pubmed"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex SourceConfig `mapstructure:"openalex"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar SourceConfig `mapstructure:"semantic_scholar"`
	// EuropePMC contains Europe PMC REST API settings.
	EuropePMC SourceConfig `mapstructure:"europepmc"`
	// Crossref contains Crossref works API settings.
	Crossref SourceConfig `mapstructure:"crossref"`
}

// FetchLimits maps each source to its configured per-query result bound.
// Sources with no bound configured are omitted and fall back to the global
// fan-out fetch limit.
func (s *SourcesConfig) FetchLimits() map[domain.SourceType]int {
	limits := make(map[domain.SourceType]int, 5)
	for source, cfg := range map[domain.SourceType]*SourceConfig{
		domain.SourceTypePubMed:          &s.PubMed,
		domain.SourceTypeOpenAlex:        &s.OpenAlex,
		domain.SourceTypeSemanticScholar: &s.SemanticScholar,
		domain.SourceTypeEuropePMC:       &s.EuropePMC,
		domain.SourceTypeCrossref:        &s.Crossref,
	} {
		if cfg.MaxResults > 0 {
			limits[source] = cfg.MaxResults
		}
	}
	return limits
}

// SourceConfig holds configuration for a single source adapter.
type SourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g.
	// EVIDENCE_SOURCES_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Mailto joins provider polite pools where supported (OpenAlex, Crossref).
	Mailto string `mapstructure:"mailto"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
}

// FanoutConfig holds fan-out deadline settings.
type FanoutConfig struct {
	// OverallTimeout bounds one whole gather operation.
	OverallTimeout time.Duration `mapstructure:"overall_timeout"`
	// PerSourceTimeout bounds each adapter call; capped by the remaining
	// overall budget.
	PerSourceTimeout time.Duration `mapstructure:"per_source_timeout"`
	// FetchLimit is the per-adapter raw item bound per run.
	FetchLimit int `mapstructure:"fetch_limit"`
}

// DedupConfig holds deduplication tuning.
type DedupConfig struct {
	// TitleSimilarityThreshold is the normalized-title similarity above
	// which records with compatible years are merged (0.0-1.0).
	TitleSimilarityThreshold float64 `mapstructure:"title_similarity_threshold"`
	// AuthorOverlapThreshold is the author overlap required to confirm a
	// title match (0.0-1.0).
	AuthorOverlapThreshold float64 `mapstructure:"author_overlap_threshold"`
	// YearTolerance is the allowed publication year skew for title matches.
	YearTolerance int `mapstructure:"year_tolerance"`
}

// ScoringConfig holds scoring weight settings.
type ScoringConfig struct {
	// RelevanceWeight is the topical-relevance share of the composite rank.
	RelevanceWeight float64 `mapstructure:"relevance_weight"`
	// EvidenceWeight is the evidence-quality share of the composite rank.
	EvidenceWeight float64 `mapstructure:"evidence_weight"`
}

// FilterConfig holds the progressive filter ladder.
type FilterConfig struct {
	// TargetResultCount is the contracted output size per search.
	TargetResultCount int `mapstructure:"target_result_count"`
	// DiversityWindow bounds reordering during source diversity
	// rebalancing; 0 disables it.
	DiversityWindow int `mapstructure:"diversity_window"`
	// Tiers is the tier ladder, strictest first. Empty means the built-in
	// default ladder.
	Tiers []pipeline.FilterTier `mapstructure:"tiers"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	// Enabled turns the front result cache on.
	Enabled bool `mapstructure:"enabled"`
	// Size is the maximum number of cached results.
	Size int `mapstructure:"size"`
	// TTL is how long a cached result stays valid.
	TTL time.Duration `mapstructure:"ttl"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("EVIDENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/evidence-aggregation-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Sources.PubMed.APIKey = os.Getenv("EVIDENCE_SOURCES_PUBMED_API_KEY")
	cfg.Sources.SemanticScholar.APIKey = os.Getenv("EVIDENCE_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Source defaults - PubMed
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("sources.pubmed.enabled", true)
	v.SetDefault("sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("sources.pubmed.timeout", "30s")
	v.SetDefault("sources.pubmed.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key
	v.SetDefault("sources.pubmed.max_results", 50)

	// Source defaults - OpenAlex
	v.SetDefault("sources.openalex.enabled", true)
	v.SetDefault("sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("sources.openalex.timeout", "30s")
	v.SetDefault("sources.openalex.rate_limit", 10.0)
	v.SetDefault("sources.openalex.max_results", 50)

	// Source defaults - Semantic Scholar
	v.SetDefault("sources.semantic_scholar.enabled", true)
	v.SetDefault("sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("sources.semantic_scholar.timeout", "30s")
	v.SetDefault("sources.semantic_scholar.rate_limit", 1.0) // unauthenticated shared pool limit
	v.SetDefault("sources.semantic_scholar.max_results", 50)

	// Source defaults - Europe PMC
	v.SetDefault("sources.europepmc.enabled", true)
	v.SetDefault("sources.europepmc.base_url", "https://www.ebi.ac.uk/europepmc/webservices/rest")
	v.SetDefault("sources.europepmc.timeout", "30s")
	v.SetDefault("sources.europepmc.rate_limit", 5.0)
	v.SetDefault("sources.europepmc.max_results", 50)

	// Source defaults - Crossref
	v.SetDefault("sources.crossref.enabled", true)
	v.SetDefault("sources.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("sources.crossref.timeout", "30s")
	v.SetDefault("sources.crossref.rate_limit", 5.0)
	v.SetDefault("sources.crossref.max_results", 50)

	// Fanout defaults
	v.SetDefault("fanout.overall_timeout", "30s")
	v.SetDefault("fanout.per_source_timeout", "20s")
	v.SetDefault("fanout.fetch_limit", 50)

	// Dedup defaults
	v.SetDefault("dedup.title_similarity_threshold", 0.85)
	v.SetDefault("dedup.author_overlap_threshold", 0.5)
	v.SetDefault("dedup.year_tolerance", 1)

	// Scoring defaults
	v.SetDefault("scoring.relevance_weight", 0.6)
	v.SetDefault("scoring.evidence_weight", 0.4)

	// Filter defaults; the tier ladder defaults in code, not here, so a
	// partially specified ladder never silently mixes with built-ins.
	v.SetDefault("filter.target_result_count", 10)
	v.SetDefault("filter.diversity_window", 3)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", "15m")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// At least one source must be enabled or every search degenerates to
	// no_results.
	if !c.Sources.PubMed.Enabled && !c.Sources.OpenAlex.Enabled &&
		!c.Sources.SemanticScholar.Enabled && !c.Sources.EuropePMC.Enabled &&
		!c.Sources.Crossref.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}

	// Validate fanout budgets
	if c.Fanout.OverallTimeout <= 0 {
		return fmt.Errorf("fanout overall_timeout must be positive")
	}
	if c.Fanout.PerSourceTimeout <= 0 {
		return fmt.Errorf("fanout per_source_timeout must be positive")
	}
	if c.Fanout.PerSourceTimeout > c.Fanout.OverallTimeout {
		return fmt.Errorf("fanout per_source_timeout (%s) must not exceed overall_timeout (%s)",
			c.Fanout.PerSourceTimeout, c.Fanout.OverallTimeout)
	}

	// Validate dedup thresholds
	if c.Dedup.TitleSimilarityThreshold <= 0 || c.Dedup.TitleSimilarityThreshold > 1 {
		return fmt.Errorf("dedup title_similarity_threshold must be in (0,1]")
	}
	if c.Dedup.AuthorOverlapThreshold < 0 || c.Dedup.AuthorOverlapThreshold > 1 {
		return fmt.Errorf("dedup author_overlap_threshold must be in [0,1]")
	}
	if c.Dedup.YearTolerance < 0 {
		return fmt.Errorf("dedup year_tolerance must not be negative")
	}

	// Validate scoring weights
	if c.Scoring.RelevanceWeight < 0 || c.Scoring.EvidenceWeight < 0 {
		return fmt.Errorf("scoring weights must not be negative")
	}
	if c.Scoring.RelevanceWeight+c.Scoring.EvidenceWeight == 0 {
		return fmt.Errorf("at least one scoring weight must be positive")
	}

	// Validate filter config
	if c.Filter.TargetResultCount <= 0 {
		return fmt.Errorf("filter target_result_count must be positive")
	}
	if len(c.Filter.Tiers) > 0 {
		if err := pipeline.ValidateTiers(c.Filter.Tiers); err != nil {
			return fmt.Errorf("invalid filter tiers: %w", err)
		}
	}

	// Validate cache config
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive when the cache is enabled")
	}

	return nil
}
