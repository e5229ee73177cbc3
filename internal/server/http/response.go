package httpserver

import (
	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

// Search response types for JSON serialization.

type searchResponse struct {
	Outcome     string              `json:"outcome"`
	Records     []recordResponse    `json:"records"`
	Diagnostics diagnosticsResponse `json:"diagnostics"`
}

type recordResponse struct {
	CanonicalID   string         `json:"canonical_id"`
	DOI           string         `json:"doi,omitempty"`
	ProviderID    string         `json:"provider_id,omitempty"`
	Title         string         `json:"title"`
	Abstract      string         `json:"abstract,omitempty"`
	Authors       []string       `json:"authors,omitempty"`
	Venue         string         `json:"venue,omitempty"`
	Year          int            `json:"year,omitempty"`
	URL           string         `json:"url,omitempty"`
	Sources       []string       `json:"sources"`
	StudyType     string         `json:"study_type"`
	CitationCount int            `json:"citation_count"`
	Scores        scoresResponse `json:"scores"`
}

type scoresResponse struct {
	TopicalRelevance float64 `json:"topical_relevance"`
	EvidenceQuality  float64 `json:"evidence_quality"`
	CompositeRank    float64 `json:"composite_rank"`
}

type diagnosticsResponse struct {
	Sources             []sourceReportResponse `json:"sources"`
	RawRecords          int                    `json:"raw_records"`
	DuplicatesCollapsed int                    `json:"duplicates_collapsed"`
	TierReached         string                 `json:"tier_reached,omitempty"`
	DeadlineExpired     bool                   `json:"deadline_expired,omitempty"`
}

type sourceReportResponse struct {
	Source     string `json:"source"`
	Records    int    `json:"records"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Converter functions

func domainResultToResponse(res domain.Result) searchResponse {
	records := make([]recordResponse, len(res.Records))
	for i := range res.Records {
		records[i] = domainRecordToResponse(&res.Records[i])
	}
	return searchResponse{
		Outcome:     string(res.Outcome),
		Records:     records,
		Diagnostics: domainDiagnosticsToResponse(res.Diagnostics),
	}
}

func domainRecordToResponse(rec *domain.Record) recordResponse {
	srcs := make([]string, len(rec.Sources))
	for i, s := range rec.Sources {
		srcs[i] = string(s)
	}
	return recordResponse{
		CanonicalID:   rec.CanonicalID(),
		DOI:           rec.Identifiers.DOI,
		ProviderID:    rec.Identifiers.ProviderID,
		Title:         rec.Title,
		Abstract:      rec.Abstract,
		Authors:       rec.Authors,
		Venue:         rec.Venue,
		Year:          rec.Year,
		URL:           rec.URL,
		Sources:       srcs,
		StudyType:     string(rec.StudyType),
		CitationCount: rec.CitationCount,
		Scores: scoresResponse{
			TopicalRelevance: rec.Scores.TopicalRelevance,
			EvidenceQuality:  rec.Scores.EvidenceQuality,
			CompositeRank:    rec.Scores.CompositeRank,
		},
	}
}

func domainDiagnosticsToResponse(d domain.Diagnostics) diagnosticsResponse {
	reports := make([]sourceReportResponse, len(d.Sources))
	for i, sr := range d.Sources {
		reports[i] = sourceReportResponse{
			Source:     string(sr.Source),
			Records:    sr.Records,
			Error:      sr.Error,
			DurationMS: sr.Duration.Milliseconds(),
		}
	}
	return diagnosticsResponse{
		Sources:             reports,
		RawRecords:          d.RawRecords,
		DuplicatesCollapsed: d.DuplicatesCollapsed,
		TierReached:         d.TierReached,
		DeadlineExpired:     d.DeadlineExpired,
	}
}
