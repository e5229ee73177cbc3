package dedup

import (
	"sort"

	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

const (
	// DefaultTitleSimilarityThreshold is the normalized-title similarity above
	// which two records with compatible years are considered the same work.
	// Tunable, found experimentally, not a hard law.
	DefaultTitleSimilarityThreshold = 0.85

	// DefaultAuthorOverlapThreshold is the fuzzy author overlap required to
	// confirm a title-similarity match when both records carry author lists.
	DefaultAuthorOverlapThreshold = 0.5

	// DefaultYearTolerance is how far apart publication years may be for a
	// title-similarity match (online-first vs. print year skew).
	DefaultYearTolerance = 1
)

// Options tunes a Deduplicator. Zero fields take the package defaults.
type Options struct {
	TitleSimilarityThreshold float64
	AuthorOverlapThreshold   float64
	YearTolerance            int
}

func (o *Options) applyDefaults() {
	if o.TitleSimilarityThreshold == 0 {
		o.TitleSimilarityThreshold = DefaultTitleSimilarityThreshold
	}
	if o.AuthorOverlapThreshold == 0 {
		o.AuthorOverlapThreshold = DefaultAuthorOverlapThreshold
	}
	if o.YearTolerance == 0 {
		o.YearTolerance = DefaultYearTolerance
	}
}

// Deduplicator groups records into identity clusters and merges each cluster
// into one canonical record. Clustering is deterministic: the same input set
// in any order produces the same output, with identifier-lexicographic order
// deciding which duplicate's fields win a merge.
type Deduplicator struct {
	logger zerolog.Logger
	opts   Options
}

// New creates a Deduplicator.
func New(logger zerolog.Logger, opts Options) *Deduplicator {
	opts.applyDefaults()
	return &Deduplicator{
		logger: logger.With().Str("component", "dedup").Logger(),
		opts:   opts,
	}
}

// Dedupe merges near-duplicate records into canonical records. Records are
// clustered by, in priority order: exact DOI match, exact provider-identifier
// match, and normalized-title similarity combined with a compatible
// publication year (confirmed by author overlap when both sides have
// authors). The output is ordered by canonical identifier.
func (d *Deduplicator) Dedupe(records []domain.Record) []domain.Record {
	if len(records) <= 1 {
		return append([]domain.Record(nil), records...)
	}

	// Sort a copy by identifier so clustering and merging never depend on
	// arrival order.
	pool := append([]domain.Record(nil), records...)
	sort.SliceStable(pool, func(i, j int) bool {
		return identifierLess(&pool[i], &pool[j])
	})

	uf := newUnionFind(len(pool))

	// Exact identifier matches.
	byDOI := make(map[string]int)
	byProvider := make(map[string]int)
	for i := range pool {
		if doi := pool[i].Identifiers.DOI; doi != "" {
			if j, ok := byDOI[doi]; ok {
				uf.union(i, j)
			} else {
				byDOI[doi] = i
			}
		}
		if pid := pool[i].Identifiers.ProviderID; pid != "" {
			if j, ok := byProvider[pid]; ok {
				uf.union(i, j)
			} else {
				byProvider[pid] = i
			}
		}
	}

	// Fuzzy title matches. The pool is small (tens to low hundreds), so the
	// pairwise scan is cheap.
	normalized := make([]string, len(pool))
	for i := range pool {
		normalized[i] = domain.NormalizeTitle(pool[i].Title)
	}
	for i := 0; i < len(pool); i++ {
		for j := i + 1; j < len(pool); j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if d.sameWork(&pool[i], &pool[j], normalized[i], normalized[j]) {
				uf.union(i, j)
			}
		}
	}

	// Collect clusters keyed by root, then merge each in sorted member order.
	clusters := make(map[int][]int)
	for i := range pool {
		root := uf.find(i)
		clusters[root] = append(clusters[root], i)
	}

	merged := make([]domain.Record, 0, len(clusters))
	for _, members := range clusters {
		merged = append(merged, mergeCluster(pool, members))
	}
	sort.Slice(merged, func(i, j int) bool {
		return identifierLess(&merged[i], &merged[j])
	})

	if collapsed := len(records) - len(merged); collapsed > 0 {
		d.logger.Debug().
			Int("input", len(records)).
			Int("output", len(merged)).
			Int("collapsed", collapsed).
			Msg("duplicates collapsed")
	}

	return merged
}

// identifierLess orders records by canonical identifier, breaking ties on the
// full identifier tuple. Records sharing a DOI have equal canonical
// identifiers, so without the tie-break the merge winner would depend on
// arrival order.
func identifierLess(a, b *domain.Record) bool {
	if ca, cb := a.CanonicalID(), b.CanonicalID(); ca != cb {
		return ca < cb
	}
	if a.Identifiers.DOI != b.Identifiers.DOI {
		return a.Identifiers.DOI < b.Identifiers.DOI
	}
	if a.Identifiers.ProviderID != b.Identifiers.ProviderID {
		return a.Identifiers.ProviderID < b.Identifiers.ProviderID
	}
	return a.Identifiers.TitleHash < b.Identifiers.TitleHash
}

// sameWork reports whether two records without a shared identifier look like
// the same publication: similar normalized titles, compatible years, and
// (when both carry authors) overlapping author lists.
func (d *Deduplicator) sameWork(a, b *domain.Record, titleA, titleB string) bool {
	if titleA == "" || titleB == "" {
		return false
	}
	if !yearsCompatible(a.Year, b.Year, d.opts.YearTolerance) {
		return false
	}

	sim, err := edlib.StringsSimilarity(titleA, titleB, edlib.Levenshtein)
	if err != nil || float64(sim) < d.opts.TitleSimilarityThreshold {
		return false
	}

	if len(a.Authors) > 0 && len(b.Authors) > 0 {
		return AuthorOverlap(a.Authors, b.Authors) >= d.opts.AuthorOverlapThreshold
	}
	return true
}

// yearsCompatible treats an unknown year (0) as compatible with anything.
func yearsCompatible(a, b, tolerance int) bool {
	if a == 0 || b == 0 {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// mergeCluster merges a cluster's members into one canonical record by
// field-wise most-complete-wins. Members arrive in identifier-lexicographic
// order, so the first member's fields show first and later members only fill
// gaps or supply strictly more complete values.
func mergeCluster(pool []domain.Record, members []int) domain.Record {
	canonical := pool[members[0]]

	for _, idx := range members[1:] {
		other := &pool[idx]

		if canonical.Identifiers.DOI == "" {
			canonical.Identifiers.DOI = other.Identifiers.DOI
		}
		if canonical.Identifiers.ProviderID == "" {
			canonical.Identifiers.ProviderID = other.Identifiers.ProviderID
		}
		if canonical.Identifiers.TitleHash == "" {
			canonical.Identifiers.TitleHash = other.Identifiers.TitleHash
		}
		if canonical.Title == "" {
			canonical.Title = other.Title
		}
		if len(other.Abstract) > len(canonical.Abstract) {
			canonical.Abstract = other.Abstract
		}
		if len(other.Authors) > len(canonical.Authors) {
			canonical.Authors = other.Authors
		}
		if canonical.Venue == "" {
			canonical.Venue = other.Venue
		}
		if canonical.Year == 0 {
			canonical.Year = other.Year
		}
		if canonical.URL == "" {
			canonical.URL = other.URL
		}
		if other.CitationCount > canonical.CitationCount {
			canonical.CitationCount = other.CitationCount
		}
		if canonical.StudyType == domain.StudyTypeUnknown {
			canonical.StudyType = other.StudyType
		}
		canonical.Sources = unionSources(canonical.Sources, other.Sources)
	}

	return canonical
}

// unionSources unions two source sets, keeping the result sorted.
func unionSources(a, b []domain.SourceType) []domain.SourceType {
	seen := make(map[domain.SourceType]bool, len(a)+len(b))
	out := make([]domain.SourceType, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// unionFind is a plain union-find over record indices, with path compression.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union attaches the larger root to the smaller so cluster roots stay stable
// under input permutation.
func (u *unionFind) union(i, j int) {
	ri, rj := u.find(i), u.find(j)
	if ri == rj {
		return
	}
	if ri < rj {
		u.parent[rj] = ri
	} else {
		u.parent[ri] = rj
	}
}
