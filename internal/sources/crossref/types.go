package crossref

// WorksResponse is the envelope returned by the Crossref works endpoint.
type WorksResponse struct {
	Status  string  `json:"status"`
	Message Message `json:"message"`
}

// Message holds the paged result list of a works query.
type Message struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// Work is a single Crossref work item. Only the fields the adapter reads
// are declared.
type Work struct {
	DOI            string     `json:"DOI"`
	Type           string     `json:"type"`
	Title          []string   `json:"title"`
	ContainerTitle []string   `json:"container-title"`
	Abstract       string     `json:"abstract"`
	Author         []Author   `json:"author"`
	Issued         DateParts  `json:"issued"`
	Published      *DateParts `json:"published"`
	CitedByCount   int        `json:"is-referenced-by-count"`
	URL            string     `json:"URL"`
}

// Author is a Crossref work contributor.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

// DateParts is the Crossref date representation: an array of
// [year, month, day] triples, possibly truncated.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or 0 when absent.
func (d DateParts) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}
