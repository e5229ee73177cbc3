// Package europepmc provides a source adapter for the Europe PMC REST API.
//
// Europe PMC aggregates life-science literature including MEDLINE, PMC full
// text, and preprints. The core result type carries abstracts and citation
// counts in a single search call, so no detail-fetch round trip is needed.
//
// API Documentation: https://europepmc.org/RestfulWebService
package europepmc

// SearchResponse represents the response from the search endpoint.
type SearchResponse struct {
	HitCount   int        `json:"hitCount"`
	ResultList ResultList `json:"resultList"`
}

// ResultList wraps the result array.
type ResultList struct {
	Result []Result `json:"result"`
}

// Result represents a single publication in the core result format.
type Result struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	PMID         string `json:"pmid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AuthorString string `json:"authorString"`
	JournalTitle string `json:"journalTitle"`
	PubYear      string `json:"pubYear"`
	AbstractText string `json:"abstractText"`
	CitedByCount int    `json:"citedByCount"`
	PubTypeList  *PubTypeList `json:"pubTypeList,omitempty"`
}

// PubTypeList contains the publication types assigned to a result.
type PubTypeList struct {
	PubType []string `json:"pubType"`
}
