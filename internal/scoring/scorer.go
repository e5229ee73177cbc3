// Package scoring derives a topical-relevance score, a clinical
// evidence-quality score, and a composite rank for each record. Scoring is a
// pure function of the record and the refined query.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
	"github.com/helixir/evidence-aggregation-service/internal/refine"
)

const (
	// DefaultRelevanceWeight and DefaultEvidenceWeight set the composite
	// rank split. The 60/40 default is a tuning value, not ground truth;
	// it is exposed as configuration.
	DefaultRelevanceWeight = 0.6
	DefaultEvidenceWeight  = 0.4

	// Relevance component weights: query-term coverage of title+abstract,
	// domain vocabulary presence, and an exact-phrase title bonus.
	termCoverageWeight = 0.6
	domainMatchWeight  = 0.2
	phraseBonusWeight  = 0.2

	// recencyFloor is the lowest the recency multiplier decays to: old
	// evidence loses weight but never vanishes.
	recencyFloor = 0.6

	// recencyHorizonYears is the age at which the decay reaches the floor.
	recencyHorizonYears = 15

	// unknownYearRecency is the multiplier for records with no year.
	unknownYearRecency = 0.8

	// citationSaturation is the citation count treated as "fully cited";
	// the log transform keeps outliers above it from dominating.
	citationSaturation = 1000

	// Evidence component weights: study-design base (after recency decay)
	// versus citation standing.
	designWeight   = 0.8
	citationWeight = 0.2
)

// Weights configures the composite rank split.
type Weights struct {
	Relevance float64
	Evidence  float64
}

// DefaultWeights returns the default composite split.
func DefaultWeights() Weights {
	return Weights{Relevance: DefaultRelevanceWeight, Evidence: DefaultEvidenceWeight}
}

// Scorer scores records against a refined query. The zero value is not
// usable; construct with New.
type Scorer struct {
	weights Weights
	// now anchors recency decay; fixed at construction so one pipeline run
	// scores every record against the same clock.
	now time.Time
}

// New creates a Scorer with the given composite weights.
func New(weights Weights) *Scorer {
	if weights.Relevance <= 0 && weights.Evidence <= 0 {
		weights = DefaultWeights()
	}
	return &Scorer{weights: weights, now: time.Now()}
}

// NewAt creates a Scorer with a fixed clock, for reproducible tests.
func NewAt(weights Weights, now time.Time) *Scorer {
	s := New(weights)
	s.now = now
	return s
}

// Score returns a copy of the record with all three scores populated. It
// never mutates its input and depends only on the record, the query, and the
// scorer's fixed clock.
func (s *Scorer) Score(rec domain.Record, query domain.Query) domain.Record {
	rec.StudyType = InferStudyType(&rec)
	rec.Scores.TopicalRelevance = s.topicalRelevance(&rec, &query)
	rec.Scores.EvidenceQuality = s.evidenceQuality(&rec)
	rec.Scores.CompositeRank = clamp01(
		s.weights.Relevance*rec.Scores.TopicalRelevance +
			s.weights.Evidence*rec.Scores.EvidenceQuality)
	return rec
}

// topicalRelevance combines query-term coverage of the title and abstract,
// domain vocabulary presence, and an exact-phrase title bonus.
func (s *Scorer) topicalRelevance(rec *domain.Record, query *domain.Query) float64 {
	text := strings.ToLower(rec.Title + " " + rec.Abstract)

	score := termCoverageWeight * termCoverage(text, query.Terms, query.ExpandedTerms)

	if query.Domain != domain.DomainGeneral && matchesDomainVocabulary(text, query.Domain) {
		score += domainMatchWeight
	}

	if phrase := strings.ToLower(strings.TrimSpace(query.RawText)); phrase != "" &&
		strings.Contains(strings.ToLower(rec.Title), phrase) {
		score += phraseBonusWeight
	}

	return clamp01(score)
}

// termCoverage is the fraction of query terms present in the text. Expanded
// synonym terms count at half weight so vocabulary expansion broadens recall
// without letting synonyms outvote the user's own words.
func termCoverage(text string, terms, expanded []string) float64 {
	total := float64(len(terms)) + 0.5*float64(len(expanded))
	if total == 0 {
		return 0
	}

	hit := 0.0
	for _, t := range terms {
		if strings.Contains(text, t) {
			hit++
		}
	}
	for _, t := range expanded {
		if strings.Contains(text, t) {
			hit += 0.5
		}
	}
	return hit / total
}

// matchesDomainVocabulary reports whether the text mentions any vocabulary
// of the query's detected medical specialty.
func matchesDomainVocabulary(text string, md domain.MedicalDomain) bool {
	for _, term := range refine.DomainTerms[md] {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// MatchesDomain reports whether a record's title or abstract mentions
// vocabulary of the given medical specialty. A general-domain query matches
// everything. Used by filter tiers that require a domain match.
func MatchesDomain(rec *domain.Record, md domain.MedicalDomain) bool {
	if md == domain.DomainGeneral || md == "" {
		return true
	}
	return matchesDomainVocabulary(strings.ToLower(rec.Title+" "+rec.Abstract), md)
}

// evidenceQuality combines the study-design rank (decayed by age toward a
// floor) with the record's citation standing under a log transform.
func (s *Scorer) evidenceQuality(rec *domain.Record) float64 {
	base := studyTypeRank[rec.StudyType]
	if base == 0 {
		base = studyTypeRank[domain.StudyTypeUnknown]
	}

	quality := designWeight*base*s.recencyMultiplier(rec.Year) +
		citationWeight*citationScore(rec.CitationCount)
	return clamp01(quality)
}

// recencyMultiplier decays linearly from 1.0 (current year) to recencyFloor
// at recencyHorizonYears, never below the floor.
func (s *Scorer) recencyMultiplier(year int) float64 {
	if year <= 0 {
		return unknownYearRecency
	}

	age := s.now.Year() - year
	if age <= 0 {
		return 1.0
	}
	if age >= recencyHorizonYears {
		return recencyFloor
	}
	return 1.0 - (1.0-recencyFloor)*float64(age)/recencyHorizonYears
}

// citationScore maps a citation count to [0,1] with log1p saturation so
// high-citation outliers do not dominate.
func citationScore(count int) float64 {
	if count <= 0 {
		return 0
	}
	score := math.Log1p(float64(count)) / math.Log1p(citationSaturation)
	return math.Min(score, 1.0)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
