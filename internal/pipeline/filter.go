package pipeline

import (
	"fmt"
	"sort"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
	"github.com/helixir/evidence-aggregation-service/internal/scoring"
)

// FilterTier is one step of the progressive filter: records whose scores meet
// the tier's thresholds are retained. Tiers run strictest first; a later tier
// is only consulted when the earlier tiers could not fill the target count.
type FilterTier struct {
	// Label identifies the tier in diagnostics and metrics.
	Label string `mapstructure:"label"`

	// MinTopicalRelevance is the lowest relevance score the tier accepts.
	MinTopicalRelevance float64 `mapstructure:"min_topical_relevance"`

	// MinEvidenceQuality is the lowest evidence score the tier accepts.
	MinEvidenceQuality float64 `mapstructure:"min_evidence_quality"`

	// RequireDomainMatch restricts the tier to records mentioning the
	// query's detected medical-domain vocabulary.
	RequireDomainMatch bool `mapstructure:"require_domain_match"`
}

// Accepts reports whether a scored record passes this tier for a query in
// the given medical domain.
func (t FilterTier) Accepts(rec *domain.Record, md domain.MedicalDomain) bool {
	if rec.Scores.TopicalRelevance < t.MinTopicalRelevance {
		return false
	}
	if rec.Scores.EvidenceQuality < t.MinEvidenceQuality {
		return false
	}
	if t.RequireDomainMatch && !scoring.MatchesDomain(rec, md) {
		return false
	}
	return true
}

// DefaultTiers returns the default tier ladder, strictest first. Threshold
// values are tunables, exposed through configuration.
func DefaultTiers() []FilterTier {
	return []FilterTier{
		{Label: "strict", MinTopicalRelevance: 0.6, MinEvidenceQuality: 0.5, RequireDomainMatch: true},
		{Label: "standard", MinTopicalRelevance: 0.4, MinEvidenceQuality: 0.3, RequireDomainMatch: true},
		{Label: "relaxed", MinTopicalRelevance: 0.2, MinEvidenceQuality: 0.15},
		{Label: "minimal"},
	}
}

// ValidateTiers checks that the ladder is non-empty and strictly ordered from
// strictest to most permissive: every threshold is non-increasing, and a
// domain-match requirement never reappears once dropped. This guarantees the
// set passing one tier is a subset of the set passing any later tier.
func ValidateTiers(tiers []FilterTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: at least one filter tier is required", domain.ErrInvalidInput)
	}

	for i, t := range tiers {
		if t.Label == "" {
			return fmt.Errorf("%w: tier %d has no label", domain.ErrInvalidInput, i)
		}
		if t.MinTopicalRelevance < 0 || t.MinTopicalRelevance > 1 ||
			t.MinEvidenceQuality < 0 || t.MinEvidenceQuality > 1 {
			return fmt.Errorf("%w: tier %q thresholds must be in [0,1]", domain.ErrInvalidInput, t.Label)
		}
		if i == 0 {
			continue
		}

		prev := tiers[i-1]
		if t.MinTopicalRelevance > prev.MinTopicalRelevance ||
			t.MinEvidenceQuality > prev.MinEvidenceQuality {
			return fmt.Errorf("%w: tier %q is stricter than %q", domain.ErrInvalidInput, t.Label, prev.Label)
		}
		if t.RequireDomainMatch && !prev.RequireDomainMatch {
			return fmt.Errorf("%w: tier %q reintroduces a domain-match requirement dropped by %q",
				domain.ErrInvalidInput, t.Label, prev.Label)
		}
	}
	return nil
}

// applyTiers walks the ladder and returns the retained records of the first
// tier that yields at least target candidates, that tier's label, and whether
// the target was reached. When even the last tier falls short, it returns
// that tier's full (ranked) candidate set with reached=false. The returned
// slice is sorted and capped to target when the target was reached.
func applyTiers(records []domain.Record, tiers []FilterTier, md domain.MedicalDomain, target int) ([]domain.Record, string, bool) {
	var (
		retained []domain.Record
		label    string
	)
	for _, tier := range tiers {
		retained = retained[:0]
		label = tier.Label
		for i := range records {
			if tier.Accepts(&records[i], md) {
				retained = append(retained, records[i])
			}
		}
		if len(retained) >= target {
			sortRanked(retained)
			return append([]domain.Record(nil), retained[:target]...), label, true
		}
	}

	sortRanked(retained)
	return append([]domain.Record(nil), retained...), label, false
}

// sortRanked orders records by composite rank descending, then evidence
// quality descending, then canonical identifier ascending. The identifier
// tie-break makes the ordering fully deterministic.
func sortRanked(records []domain.Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := &records[i], &records[j]
		if a.Scores.CompositeRank != b.Scores.CompositeRank {
			return a.Scores.CompositeRank > b.Scores.CompositeRank
		}
		if a.Scores.EvidenceQuality != b.Scores.EvidenceQuality {
			return a.Scores.EvidenceQuality > b.Scores.EvidenceQuality
		}
		return a.CanonicalID() < b.CanonicalID()
	})
}
