package domain

import (
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"
)

// Identifiers holds the best-available stable identifier set for a record.
// At least one field must be non-empty for a record to enter the pipeline.
type Identifiers struct {
	// DOI is the Digital Object Identifier, normalized to lowercase
	// without a resolver prefix.
	DOI string `json:"doi,omitempty"`

	// ProviderID is the provider-native identifier (PMID, OpenAlex work ID,
	// Semantic Scholar paper ID, ...), prefixed with the source type.
	ProviderID string `json:"provider_id,omitempty"`

	// TitleHash is a hash of the normalized title, used as a last-resort
	// identity when the provider supplied no identifier.
	TitleHash string `json:"title_hash,omitempty"`
}

// Scores holds the derived ranking scores for a record.
type Scores struct {
	// TopicalRelevance is the query-topic match score in [0,1].
	TopicalRelevance float64 `json:"topical_relevance"`

	// EvidenceQuality is the clinical evidence hierarchy score in [0,1].
	EvidenceQuality float64 `json:"evidence_quality"`

	// CompositeRank is the weighted combination used for final ordering.
	CompositeRank float64 `json:"composite_rank"`
}

// Record is a normalized bibliographic item produced by a source adapter.
// It is mutated only by the deduplicator (field merge) and the scorer
// (score assignment) and is immutable once assembled into a Result.
type Record struct {
	Identifiers Identifiers `json:"identifiers"`

	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Authors  []string `json:"authors,omitempty"`
	Venue    string   `json:"venue,omitempty"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year,omitempty"`

	URL string `json:"url,omitempty"`

	// Sources lists every provider that contributed to this record.
	// A freshly fetched record has exactly one entry; the deduplicator
	// unions the sets of merged duplicates.
	Sources []SourceType `json:"sources"`

	StudyType     StudyType `json:"study_type"`
	CitationCount int       `json:"citation_count"`

	Scores Scores `json:"scores"`
}

// CanonicalID returns the strongest available identity for the record,
// in priority order DOI, provider-native identifier, normalized-title hash.
// Returns the empty string when the record has no identity at all.
func (r *Record) CanonicalID() string {
	if doi := strings.TrimSpace(r.Identifiers.DOI); doi != "" {
		return "doi:" + strings.ToLower(doi)
	}
	if pid := strings.TrimSpace(r.Identifiers.ProviderID); pid != "" {
		return pid
	}
	if h := strings.TrimSpace(r.Identifiers.TitleHash); h != "" {
		return "title:" + h
	}
	return ""
}

// HasIdentifier returns true if the record has at least one identity field.
func (r *Record) HasIdentifier() bool {
	return r.CanonicalID() != ""
}

// EnsureTitleHash fills the title-hash identity from the record title if no
// other identifier is present. Adapters call this before emitting a record so
// the at-least-one-identity invariant always holds for titled records.
func (r *Record) EnsureTitleHash() {
	if r.Identifiers.DOI != "" || r.Identifiers.ProviderID != "" || r.Identifiers.TitleHash != "" {
		return
	}
	if r.Title == "" {
		return
	}
	r.Identifiers.TitleHash = HashTitle(r.Title)
}

// HashTitle returns a stable FNV-1a hash of the normalized title.
func HashTitle(title string) string {
	h := fnv.New64a()
	h.Write([]byte(NormalizeTitle(title)))
	return strconv.FormatUint(h.Sum64(), 16)
}

// NormalizeTitle lowercases a title, strips punctuation, and collapses
// whitespace so equivalent titles from different providers compare equal.
func NormalizeTitle(title string) string {
	var sb strings.Builder
	sb.Grow(len(title))
	prevSpace := true

	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !prevSpace {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}

// ProviderRecordID builds a provider-native identifier value, prefixed with
// the source type to keep identifier spaces disjoint across providers.
func ProviderRecordID(source SourceType, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return string(source) + ":" + id
}
