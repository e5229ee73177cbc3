// Package refine turns a free-text query into per-source optimized query
// strings plus the coarse intent and medical-domain signals the scorer uses.
package refine

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

// Options tunes a Refiner. The zero value is usable.
type Options struct {
	// TargetResultCount is the contracted output size for one pipeline run.
	TargetResultCount int

	// MaxPerSourceFetch bounds how many raw items each adapter may return.
	MaxPerSourceFetch map[domain.SourceType]int
}

// Refiner expands raw queries against static term tables. Refinement never
// fails: when nothing matches, every source falls back to the raw query.
type Refiner struct {
	logger zerolog.Logger
	opts   Options
}

// New creates a Refiner with the given options.
func New(logger zerolog.Logger, opts Options) *Refiner {
	return &Refiner{
		logger: logger.With().Str("component", "refiner").Logger(),
		opts:   opts,
	}
}

// Refine builds the per-source query set for a raw query.
func (r *Refiner) Refine(rawQuery string) domain.Query {
	raw := strings.TrimSpace(rawQuery)
	terms := tokenize(raw)

	q := domain.Query{
		RawText:           raw,
		Terms:             terms,
		ExpandedTerms:     expandTerms(raw, terms),
		Intent:            detectIntent(terms),
		Domain:            detectDomain(raw, terms),
		TargetResultCount: r.opts.TargetResultCount,
		MaxPerSourceFetch: r.opts.MaxPerSourceFetch,
	}
	q.PerSourceQueries = buildSourceQueries(q)

	r.logger.Debug().
		Str("intent", string(q.Intent)).
		Str("domain", string(q.Domain)).
		Strs("expanded_terms", q.ExpandedTerms).
		Msg("query refined")

	return q
}

// tokenize lowercases the raw query and drops stop words and single
// characters.
func tokenize(raw string) []string {
	fields := strings.Fields(strings.ToLower(raw))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) <= 1 || stopWords[f] {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// expandTerms collects synonym expansions for single tokens and for
// adjacent-token phrases, deduplicated and excluding terms already present
// in the query.
func expandTerms(raw string, terms []string) []string {
	present := make(map[string]bool, len(terms))
	for _, t := range terms {
		present[t] = true
	}
	lowerRaw := strings.ToLower(raw)

	seen := make(map[string]bool)
	var expanded []string
	add := func(syns []string) {
		for _, s := range syns {
			if seen[s] || present[s] || strings.Contains(lowerRaw, s) {
				continue
			}
			seen[s] = true
			expanded = append(expanded, s)
		}
	}

	// Phrase entries first so "type 2 diabetes" wins over "diabetes".
	// Sorted so the expansion order (and every derived query string) is
	// stable across runs.
	phrases := make([]string, 0, len(synonyms))
	for phrase := range synonyms {
		if strings.Contains(phrase, " ") {
			phrases = append(phrases, phrase)
		}
	}
	sort.Strings(phrases)
	for _, phrase := range phrases {
		if strings.Contains(lowerRaw, phrase) {
			add(synonyms[phrase])
		}
	}
	for _, t := range terms {
		if syns, ok := synonyms[t]; ok {
			add(syns)
		}
	}

	return expanded
}

// detectIntent returns the first intent (in precedence order) any query term
// matches, or IntentGeneral.
func detectIntent(terms []string) domain.QueryIntent {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}

	for _, intent := range intentOrder {
		for _, kw := range intentKeywords[intent] {
			if set[kw] {
				return intent
			}
		}
	}
	return domain.IntentGeneral
}

// detectDomain returns the first medical specialty (in precedence order)
// the query matches, or DomainGeneral. Multi-word keywords are matched
// against the full raw query.
func detectDomain(raw string, terms []string) domain.MedicalDomain {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	lowerRaw := strings.ToLower(raw)

	for _, d := range domainOrder {
		for _, kw := range domainKeywords[d] {
			if strings.Contains(kw, " ") {
				if strings.Contains(lowerRaw, kw) {
					return d
				}
			} else if set[kw] {
				return d
			}
		}
	}
	return domain.DomainGeneral
}

// buildSourceQueries produces one optimized query string per source family.
// PubMed gets a boolean field-qualified query; Europe PMC gets a plain
// boolean query; the JSON search APIs take natural language with expansion
// terms appended.
func buildSourceQueries(q domain.Query) map[domain.SourceType]string {
	natural := q.RawText
	if len(q.ExpandedTerms) > 0 {
		natural = q.RawText + " " + strings.Join(q.ExpandedTerms, " ")
	}

	return map[domain.SourceType]string{
		domain.SourceTypePubMed:          buildPubMedQuery(q),
		domain.SourceTypeEuropePMC:       buildBooleanQuery(q),
		domain.SourceTypeOpenAlex:        natural,
		domain.SourceTypeSemanticScholar: natural,
		domain.SourceTypeCrossref:        natural,
	}
}

// buildPubMedQuery builds a field-qualified boolean query: the raw text
// OR-joined with its expansions over Title/Abstract, AND-joined with an
// intent qualifier when the intent warrants one.
func buildPubMedQuery(q domain.Query) string {
	clauses := make([]string, 0, 1+len(q.ExpandedTerms))
	clauses = append(clauses, quoted(q.RawText)+"[Title/Abstract]")
	for _, t := range q.ExpandedTerms {
		clauses = append(clauses, quoted(t)+"[Title/Abstract]")
	}

	query := "(" + strings.Join(clauses, " OR ") + ")"
	if qualifier, ok := intentQualifiers[q.Intent]; ok {
		query += " AND " + qualifier
	}
	return query
}

// buildBooleanQuery builds an unqualified boolean query for providers with
// plain boolean syntax.
func buildBooleanQuery(q domain.Query) string {
	if len(q.ExpandedTerms) == 0 {
		return quoted(q.RawText)
	}

	clauses := make([]string, 0, 1+len(q.ExpandedTerms))
	clauses = append(clauses, quoted(q.RawText))
	for _, t := range q.ExpandedTerms {
		clauses = append(clauses, quoted(t))
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

func quoted(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}
