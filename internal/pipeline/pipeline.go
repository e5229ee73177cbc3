// Package pipeline wires the evidence aggregation stages together: refine,
// fan out, dedupe, score, progressively filter, and assemble. Only
// pipeline-level outcomes cross this boundary; adapter failures are absorbed
// into diagnostics.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
	"github.com/helixir/evidence-aggregation-service/internal/observability"
	"github.com/helixir/evidence-aggregation-service/internal/sources"
)

// DefaultTargetResultCount is the contracted output size when the caller
// does not specify one.
const DefaultTargetResultCount = 10

// QueryRefiner expands a raw query into per-source query strings.
type QueryRefiner interface {
	Refine(rawQuery string) domain.Query
}

// Gatherer fans a query out to a set of adapters under a shared deadline.
type Gatherer interface {
	Gather(ctx context.Context, query domain.Query, adapters []sources.SourceAdapter) ([]domain.Record, []domain.SourceReport, bool)
}

// Deduplicator merges near-duplicate records into canonical ones.
type Deduplicator interface {
	Dedupe(records []domain.Record) []domain.Record
}

// RecordScorer scores one record against the refined query.
type RecordScorer interface {
	Score(rec domain.Record, query domain.Query) domain.Record
}

// AdapterProvider supplies the enabled source adapters for a run.
type AdapterProvider interface {
	EnabledAdapters() []sources.SourceAdapter
}

// Options tunes a Pipeline.
type Options struct {
	// Tiers is the filter ladder, strictest first. Defaults to DefaultTiers.
	Tiers []FilterTier

	// TargetResultCount is the default contracted output size.
	TargetResultCount int

	// DiversityWindow bounds reordering during source diversity rebalancing.
	// Zero disables rebalancing.
	DiversityWindow int

	// CacheEnabled turns the front result cache on.
	CacheEnabled bool

	// CacheSize and CacheTTL configure the result cache.
	CacheSize int
	CacheTTL  time.Duration
}

func (o *Options) applyDefaults() {
	if len(o.Tiers) == 0 {
		o.Tiers = DefaultTiers()
	}
	if o.TargetResultCount <= 0 {
		o.TargetResultCount = DefaultTargetResultCount
	}
}

// Pipeline is the evidence aggregation facade consumed by the transport
// layer.
type Pipeline struct {
	refiner  QueryRefiner
	gatherer Gatherer
	adapters AdapterProvider
	dedup    Deduplicator
	scorer   RecordScorer

	cache   *resultCache
	logger  zerolog.Logger
	metrics *observability.Metrics
	opts    Options
}

// New creates a Pipeline. It returns an error when the tier ladder is not
// monotonically permissive.
func New(
	refiner QueryRefiner,
	gatherer Gatherer,
	adapters AdapterProvider,
	dedup Deduplicator,
	scorer RecordScorer,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	opts Options,
) (*Pipeline, error) {
	opts.applyDefaults()
	if err := ValidateTiers(opts.Tiers); err != nil {
		return nil, fmt.Errorf("validating filter tiers: %w", err)
	}

	p := &Pipeline{
		refiner:  refiner,
		gatherer: gatherer,
		adapters: adapters,
		dedup:    dedup,
		scorer:   scorer,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		metrics:  metrics,
		opts:     opts,
	}
	if opts.CacheEnabled {
		p.cache = newResultCache(opts.CacheSize, opts.CacheTTL)
	}
	return p, nil
}

// Search runs the whole pipeline for one raw query. targetCount and
// timeBudget fall back to configured defaults when non-positive.
//
// The returned error is ErrInvalidInput for a rejected query, ErrNoResults
// when every adapter contributed nothing, and ErrDeadlineExceeded when the
// time budget elapsed first; for the latter two the returned Result still
// carries full diagnostics. Partial fulfillment is not an error: the Result
// reports OutcomePartial with everything eligible, ranked.
func (p *Pipeline) Search(ctx context.Context, rawQuery string, targetCount int, timeBudget time.Duration) (domain.Result, error) {
	raw := strings.TrimSpace(rawQuery)
	if raw == "" {
		return domain.Result{}, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidInput)
	}
	if targetCount <= 0 {
		targetCount = p.opts.TargetResultCount
	}

	key := cacheKey(raw, targetCount)
	if p.cache != nil {
		if res, ok := p.cache.get(key); ok {
			p.metrics.CacheHits.Inc()
			return res, nil
		}
		p.metrics.CacheMisses.Inc()
	}

	// Per-run logger carrying the transport-assigned request ID, so pipeline
	// log lines correlate with the HTTP access log.
	logger := observability.WithSearchContext(p.logger, observability.RequestIDFromContext(ctx), raw)

	start := time.Now()
	p.metrics.SearchesStarted.Inc()

	query := p.refiner.Refine(raw)
	query.TargetResultCount = targetCount

	if timeBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeBudget)
		defer cancel()
	}

	pool, reports, expired := p.gatherer.Gather(ctx, query, p.adapters.EnabledAdapters())
	diag := domain.Diagnostics{
		Sources:         reports,
		RawRecords:      len(pool),
		DeadlineExpired: expired,
	}

	if len(pool) == 0 {
		outcome, err := domain.OutcomeNoResults, domain.ErrNoResults
		if expired {
			outcome, err = domain.OutcomeDeadlineExceeded, domain.ErrDeadlineExceeded
		}
		res := assemble(nil, outcome, diag, 0)
		p.finish(logger, res, start)
		return res, err
	}

	deduped := p.dedup.Dedupe(pool)
	diag.DuplicatesCollapsed = len(pool) - len(deduped)
	p.metrics.DuplicatesCollapsed.Add(float64(diag.DuplicatesCollapsed))

	scored := make([]domain.Record, len(deduped))
	for i := range deduped {
		scored[i] = p.scorer.Score(deduped[i], query)
	}

	selected, tier, reached := applyTiers(scored, p.opts.Tiers, query.Domain, targetCount)
	diag.TierReached = tier
	p.metrics.TierReached.WithLabelValues(tier).Inc()

	outcome := domain.OutcomeComplete
	if !reached {
		outcome = domain.OutcomePartial
	}

	res := assemble(selected, outcome, diag, p.opts.DiversityWindow)
	p.finish(logger, res, start)

	if p.cache != nil {
		p.cache.put(key, res)
	}
	return res, nil
}

// Tiers returns a copy of the configured filter ladder.
func (p *Pipeline) Tiers() []FilterTier {
	return append([]FilterTier(nil), p.opts.Tiers...)
}

func (p *Pipeline) finish(logger zerolog.Logger, res domain.Result, start time.Time) {
	elapsed := time.Since(start)
	p.metrics.SearchesByOutcome.WithLabelValues(string(res.Outcome)).Inc()
	p.metrics.SearchDuration.Observe(elapsed.Seconds())

	logger.Info().
		Str("outcome", string(res.Outcome)).
		Int("records", len(res.Records)).
		Int("raw_records", res.Diagnostics.RawRecords).
		Int("duplicates_collapsed", res.Diagnostics.DuplicatesCollapsed).
		Str("tier", res.Diagnostics.TierReached).
		Dur("duration", elapsed).
		Msg("search finished")
}
