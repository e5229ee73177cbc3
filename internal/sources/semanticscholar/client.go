package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
	"github.com/helixir/evidence-aggregation-service/internal/sources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the rate limit for unauthenticated requests.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 50

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "paperId,externalIds,title,abstract,year,venue,journal,authors,citationCount,publicationTypes,url"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"

	maxBodySize = 10 << 20
)

// Config contains configuration options for the Semantic Scholar adapter.
type Config struct {
	// BaseURL is the base URL for the API.
	BaseURL string

	// APIKey is the optional API key; authenticated requests get higher
	// rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum results per search.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the sources.SourceAdapter interface for Semantic Scholar.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.SourceAdapter = (*Client)(nil)

// New creates a new Semantic Scholar adapter with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: sources.NewHTTPClient(sources.HTTPClientConfig{
			Timeout:                 cfg.Timeout,
			RateLimit:               cfg.RateLimit,
			BurstSize:               cfg.BurstSize,
			APIKey:                  cfg.APIKey,
			APIKeyHeader:            apiKeyHeader,
			BreakerName:             sourceName,
			BreakerFailureThreshold: 5,
		}),
	}
}

// NewWithHTTPClient creates a new adapter with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Fetch queries Semantic Scholar for papers matching the given query.
func (c *Client) Fetch(ctx context.Context, query string, limit int) ([]domain.Record, error) {
	if !c.config.Enabled {
		return nil, domain.ErrSourceDisabled
	}

	searchURL, err := c.buildSearchURL(query, limit)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return nil, domain.NewExternalAPIError(domain.SourceTypeSemanticScholar, resp.StatusCode, string(body), nil)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]domain.Record, 0, len(searchResp.Data))
	for i := range searchResp.Data {
		records = append(records, c.paperToRecord(&searchResp.Data[i]))
	}
	return records, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the paper search URL.
func (c *Client) buildSearchURL(query string, limit int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}

	searchURL := baseURL.JoinPath("paper", "search")
	q := searchURL.Query()
	q.Set("query", query)
	q.Set("fields", paperFields)
	q.Set("limit", strconv.Itoa(limit))
	searchURL.RawQuery = q.Encode()

	return searchURL.String(), nil
}

// paperToRecord converts a Semantic Scholar paper to a domain.Record.
func (c *Client) paperToRecord(paper *PaperResult) domain.Record {
	var doi string
	if paper.ExternalIDs != nil {
		doi = strings.ToLower(strings.TrimSpace(paper.ExternalIDs.DOI))
	}

	authors := make([]string, 0, len(paper.Authors))
	for _, a := range paper.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	venue := paper.Venue
	if venue == "" && paper.Journal != nil {
		venue = paper.Journal.Name
	}

	rec := domain.Record{
		Identifiers: domain.Identifiers{
			DOI:        doi,
			ProviderID: domain.ProviderRecordID(domain.SourceTypeSemanticScholar, paper.PaperID),
		},
		Title:         strings.TrimSpace(paper.Title),
		Abstract:      strings.TrimSpace(paper.Abstract),
		Authors:       authors,
		Venue:         venue,
		Year:          paper.Year,
		URL:           paper.URL,
		Sources:       []domain.SourceType{domain.SourceTypeSemanticScholar},
		StudyType:     studyTypeFromPublicationTypes(paper.PublicationTypes),
		CitationCount: paper.CitationCount,
	}
	rec.EnsureTitleHash()
	return rec
}

// studyTypeFromPublicationTypes maps Semantic Scholar publication types
// (MetaAnalysis, Review, ClinicalTrial, CaseReport, ...) to the evidence
// study type.
func studyTypeFromPublicationTypes(types []string) domain.StudyType {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[strings.ToLower(t)] = true
	}

	switch {
	case set["metaanalysis"]:
		return domain.StudyTypeMetaAnalysis
	case set["review"]:
		return domain.StudyTypeSystematicReview
	case set["clinicaltrial"]:
		return domain.StudyTypeRandomizedTrial
	case set["casereport"]:
		return domain.StudyTypeCaseReport
	case set["study"]:
		return domain.StudyTypeCohortStudy
	default:
		return domain.StudyTypeUnknown
	}
}
