// Package sources provides interfaces and shared plumbing for bibliographic
// source adapters.
//
// Each external provider (PubMed, OpenAlex, Semantic Scholar, Europe PMC,
// Crossref) implements the SourceAdapter interface, allowing the aggregation
// pipeline to fan a refined query out to every enabled provider concurrently
// behind one uniform contract. Provider heterogeneity (query syntax, wire
// format, pagination protocol) is an adapter-internal concern and never leaks
// into the rest of the pipeline.
//
// Example usage:
//
//	adapter := pubmed.New(cfg)
//	records, err := adapter.Fetch(ctx, "metformin AND diabetes", 25)
package sources

import (
	"context"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

// SourceAdapter defines the contract every bibliographic provider client
// must satisfy. Adapters are stateless and independently swappable; adding a
// new provider means adding a new adapter, with no changes elsewhere.
type SourceAdapter interface {
	// Fetch issues the provider-optimized query against the external API
	// and returns normalized records, at most limit of them. Fields the
	// provider does not supply are left zero, never fabricated.
	//
	// Implementations must:
	//   - Respect context cancellation and deadlines
	//   - Apply their own rate limiting and retry policy
	//   - Return a typed error and an empty slice on provider failure
	//   - Never panic
	Fetch(ctx context.Context, query string, limit int) ([]domain.Record, error)

	// SourceType returns the type identifier for this source.
	// Used for attribution, deduplication, and diagnostics.
	SourceType() domain.SourceType

	// Name returns a human-readable name for this source.
	Name() string

	// IsEnabled returns whether this source is currently enabled and
	// available for fetches. A source may be disabled by configuration
	// or a missing API key.
	IsEnabled() bool
}
