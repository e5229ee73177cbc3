package scoring

import (
	"strings"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

// studyTypeRank positions each study type in the clinical evidence hierarchy.
// Values are the base evidence-quality score before recency and citation
// adjustment. Unknown sits mid-low: unclassified work is not penalized to the
// case-report floor, but never outranks classified high-tier evidence.
var studyTypeRank = map[domain.StudyType]float64{
	domain.StudyTypeMetaAnalysis:     1.0,
	domain.StudyTypeSystematicReview: 0.95,
	domain.StudyTypeRandomizedTrial:  0.85,
	domain.StudyTypeGuideline:        0.8,
	domain.StudyTypeCohortStudy:      0.6,
	domain.StudyTypeCaseControl:      0.5,
	domain.StudyTypeUnknown:          0.4,
	domain.StudyTypeCaseReport:       0.3,
	domain.StudyTypePreprint:         0.2,
}

// titlePatterns maps title phrases to study types, checked in order so the
// stronger designs win when a title mentions several.
var titlePatterns = []struct {
	phrase string
	study  domain.StudyType
}{
	{"meta-analysis", domain.StudyTypeMetaAnalysis},
	{"meta analysis", domain.StudyTypeMetaAnalysis},
	{"systematic review", domain.StudyTypeSystematicReview},
	{"randomized controlled trial", domain.StudyTypeRandomizedTrial},
	{"randomised controlled trial", domain.StudyTypeRandomizedTrial},
	{"randomized trial", domain.StudyTypeRandomizedTrial},
	{"randomised trial", domain.StudyTypeRandomizedTrial},
	{"clinical practice guideline", domain.StudyTypeGuideline},
	{"consensus statement", domain.StudyTypeGuideline},
	{"cohort study", domain.StudyTypeCohortStudy},
	{"prospective cohort", domain.StudyTypeCohortStudy},
	{"retrospective cohort", domain.StudyTypeCohortStudy},
	{"case-control study", domain.StudyTypeCaseControl},
	{"case control study", domain.StudyTypeCaseControl},
	{"case report", domain.StudyTypeCaseReport},
	{"case series", domain.StudyTypeCaseReport},
}

// preprintVenues are venue substrings that mark a record as a preprint
// regardless of provider metadata.
var preprintVenues = []string{"medrxiv", "biorxiv", "arxiv", "ssrn", "preprint"}

// InferStudyType refines a record's study type from its title and venue when
// the provider supplied none. Provider metadata wins when present; the
// inference is a fallback, not an override.
func InferStudyType(rec *domain.Record) domain.StudyType {
	if rec.StudyType != "" && rec.StudyType != domain.StudyTypeUnknown {
		return rec.StudyType
	}

	venue := strings.ToLower(rec.Venue)
	for _, v := range preprintVenues {
		if strings.Contains(venue, v) {
			return domain.StudyTypePreprint
		}
	}

	title := strings.ToLower(rec.Title)
	for _, p := range titlePatterns {
		if strings.Contains(title, p.phrase) {
			return p.study
		}
	}

	return domain.StudyTypeUnknown
}
