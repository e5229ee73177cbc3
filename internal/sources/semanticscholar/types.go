// Package semanticscholar provides a source adapter for the Semantic Scholar
// Graph API.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// SearchResponse represents the response from the paper search endpoint.
type SearchResponse struct {
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Next   int           `json:"next"`
	Data   []PaperResult `json:"data"`
}

// PaperResult represents a single paper in the API response.
type PaperResult struct {
	PaperID          string           `json:"paperId"`
	Title            string           `json:"title"`
	Abstract         string           `json:"abstract"`
	Year             int              `json:"year"`
	Venue            string           `json:"venue"`
	PublicationTypes []string         `json:"publicationTypes"`
	Authors          []Author         `json:"authors"`
	CitationCount    int              `json:"citationCount"`
	URL              string           `json:"url"`
	ExternalIDs      *ExternalIDs     `json:"externalIds,omitempty"`
	Journal          *Journal         `json:"journal,omitempty"`
}

// ExternalIDs contains external identifiers for a paper.
type ExternalIDs struct {
	DOI    string `json:"DOI,omitempty"`
	ArXiv  string `json:"ArXiv,omitempty"`
	PubMed string `json:"PubMed,omitempty"`
}

// Journal contains journal-specific information.
type Journal struct {
	Name string `json:"name,omitempty"`
}

// Author represents a paper author.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}
