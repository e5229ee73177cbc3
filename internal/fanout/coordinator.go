// Package fanout drives every enabled source adapter concurrently under a
// shared deadline and collects whatever arrives. A dead or slow provider is
// excluded from the run; the gather itself never fails.
package fanout

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
	"github.com/helixir/evidence-aggregation-service/internal/observability"
	"github.com/helixir/evidence-aggregation-service/internal/sources"
)

const (
	// DefaultOverallTimeout bounds one whole gather when the caller supplied
	// no deadline of its own.
	DefaultOverallTimeout = 30 * time.Second

	// DefaultPerSourceTimeout bounds each adapter call. An individual
	// sub-deadline never exceeds the remaining overall budget.
	DefaultPerSourceTimeout = 20 * time.Second

	// DefaultFetchLimit is the per-adapter raw item bound when the query
	// carries none.
	DefaultFetchLimit = 50
)

// Options tunes a Coordinator. Zero fields take the package defaults.
type Options struct {
	OverallTimeout   time.Duration
	PerSourceTimeout time.Duration
	FetchLimit       int
}

func (o *Options) applyDefaults() {
	if o.OverallTimeout == 0 {
		o.OverallTimeout = DefaultOverallTimeout
	}
	if o.PerSourceTimeout == 0 {
		o.PerSourceTimeout = DefaultPerSourceTimeout
	}
	if o.FetchLimit == 0 {
		o.FetchLimit = DefaultFetchLimit
	}
}

// Coordinator fans a refined query out to a set of source adapters.
type Coordinator struct {
	logger  zerolog.Logger
	metrics *observability.Metrics
	opts    Options
}

// New creates a Coordinator.
func New(logger zerolog.Logger, metrics *observability.Metrics, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		logger:  logger.With().Str("component", "fanout").Logger(),
		metrics: metrics,
		opts:    opts,
	}
}

// fetchResult is one adapter's contribution, carried over the gather channel.
type fetchResult struct {
	source   domain.SourceType
	records  []domain.Record
	err      error
	duration time.Duration
}

// Gather invokes every adapter concurrently and returns the raw record pool,
// a per-source report ordered by source type, and whether the overall gather
// deadline expired. Adapter failures are absorbed into the reports; an
// all-empty pool is a valid outcome.
func (c *Coordinator) Gather(ctx context.Context, query domain.Query, adapters []sources.SourceAdapter) ([]domain.Record, []domain.SourceReport, bool) {
	if len(adapters) == 0 {
		return nil, nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.OverallTimeout)
	defer cancel()

	results := make(chan fetchResult, len(adapters))
	for _, adapter := range adapters {
		go c.fetchOne(ctx, query, adapter, results)
	}

	var pool []domain.Record
	reports := make([]domain.SourceReport, 0, len(adapters))
	for range adapters {
		res := <-results

		report := domain.SourceReport{
			Source:   res.source,
			Records:  len(res.records),
			Duration: res.duration,
		}
		if res.err != nil {
			report.Error = res.err.Error()
		}
		reports = append(reports, report)
		pool = append(pool, res.records...)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Source < reports[j].Source
	})

	return pool, reports, errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// fetchOne runs a single adapter under its sub-deadline and reports on the
// results channel. It recovers panics so one misbehaved parser cannot take
// down the gather.
func (c *Coordinator) fetchOne(ctx context.Context, query domain.Query, adapter sources.SourceAdapter, results chan<- fetchResult) {
	source := adapter.SourceType()
	logger := observability.WithSourceContext(c.logger, string(source))

	ctx, cancel := context.WithTimeout(ctx, c.opts.PerSourceTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("adapter panicked")
			results <- fetchResult{
				source:   source,
				err:      domain.NewProviderError(source, errors.New("adapter panic")),
				duration: time.Since(start),
			}
		}
	}()

	c.metrics.SourceFetches.WithLabelValues(string(source)).Inc()

	records, err := adapter.Fetch(ctx, query.QueryFor(source), query.FetchLimitFor(source, c.opts.FetchLimit))
	duration := time.Since(start)

	c.metrics.SourceFetchDuration.WithLabelValues(string(source)).Observe(duration.Seconds())

	switch {
	case err != nil:
		c.metrics.SourceFetchFailures.WithLabelValues(string(source)).Inc()
		if errors.Is(err, domain.ErrRateLimited) {
			c.metrics.SourceRateLimited.WithLabelValues(string(source)).Inc()
		}
		logger.Warn().Err(err).Dur("duration", duration).Msg("source fetch failed")
	default:
		c.metrics.RecordsPerSource.WithLabelValues(string(source)).Observe(float64(len(records)))
		logger.Debug().Int("records", len(records)).Dur("duration", duration).Msg("source fetch complete")
	}

	results <- fetchResult{source: source, records: records, err: err, duration: duration}
}
