package domain

// Query is one refined search request. TargetResultCount is fixed for the
// lifetime of one pipeline run; when it cannot be met the caller is told via
// the Result outcome, never by silently changing the contract.
type Query struct {
	// RawText is the user-provided query, unmodified.
	RawText string

	// Terms are the significant tokens of the raw query after stop-word
	// removal, used for relevance scoring.
	Terms []string

	// ExpandedTerms are domain-vocabulary expansions (synonyms,
	// controlled-vocabulary terms) added by the refiner.
	ExpandedTerms []string

	// PerSourceQueries maps each source type to its optimized query string.
	PerSourceQueries map[SourceType]string

	// Intent is the coarse query intent detected by the refiner.
	Intent QueryIntent

	// Domain is the coarse medical specialty detected by the refiner.
	Domain MedicalDomain

	// TargetResultCount is the contracted output size.
	TargetResultCount int

	// MaxPerSourceFetch bounds how many raw items each adapter may return.
	MaxPerSourceFetch map[SourceType]int
}

// QueryFor returns the optimized query string for a source, falling back to
// the raw text when the refiner produced no variant for that source.
func (q *Query) QueryFor(source SourceType) string {
	if s, ok := q.PerSourceQueries[source]; ok && s != "" {
		return s
	}
	return q.RawText
}

// FetchLimitFor returns the per-source fetch bound, or def when unset.
func (q *Query) FetchLimitFor(source SourceType, def int) int {
	if n, ok := q.MaxPerSourceFetch[source]; ok && n > 0 {
		return n
	}
	return def
}
