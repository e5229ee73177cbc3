package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
	"github.com/helixir/evidence-aggregation-service/internal/sources"
)

const (
	// DefaultBaseURL is the default base URL for the OpenAlex API.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the polite-pool rate limit.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 50

	// sourceName is the human-readable name for this source.
	sourceName = "OpenAlex"

	maxBodySize = 10 << 20
)

// Config holds the configuration for the OpenAlex adapter.
type Config struct {
	// BaseURL is the base URL for the API.
	BaseURL string

	// MailTo joins the polite pool when set; sent as the mailto parameter.
	MailTo string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the default maximum results per search.
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

// Client implements the sources.SourceAdapter interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.SourceAdapter = (*Client)(nil)

// New creates a new OpenAlex adapter with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: sources.NewHTTPClient(sources.HTTPClientConfig{
			Timeout:                 cfg.Timeout,
			RateLimit:               cfg.RateLimit,
			BurstSize:               cfg.BurstSize,
			BreakerName:             sourceName,
			BreakerFailureThreshold: 5,
		}),
	}
}

// NewWithHTTPClient creates a new OpenAlex adapter with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Fetch queries OpenAlex for works matching the given query.
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
		return nil, domain.NewExternalAPIError(domain.SourceTypeOpenAlex, resp.StatusCode, string(body), nil)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]domain.Record, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		records = append(records, c.workToRecord(&searchResp.Results[i]))
	}
	return records, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the works search URL.
func (c *Client) buildSearchURL(query string, limit int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}

	searchURL := baseURL.JoinPath("works")
	q := searchURL.Query()
	q.Set("search", query)
	q.Set("per-page", strconv.Itoa(limit))
	if c.config.MailTo != "" {
		q.Set("mailto", c.config.MailTo)
	}
	searchURL.RawQuery = q.Encode()

	return searchURL.String(), nil
}

// workToRecord converts an OpenAlex work to a domain.Record.
func (c *Client) workToRecord(work *Work) domain.Record {
	title := work.Title
	if title == "" {
		title = work.DisplayName
	}

	authors := make([]string, 0, len(work.Authorships))
	for _, a := range work.Authorships {
		if a.Author.DisplayName != "" {
			authors = append(authors, a.Author.DisplayName)
		}
	}

	var venue, pageURL string
	if work.PrimaryLocation != nil {
		pageURL = work.PrimaryLocation.LandingPageURL
		if work.PrimaryLocation.Source != nil {
			venue = work.PrimaryLocation.Source.DisplayName
		}
	}

	rec := domain.Record{
		Identifiers: domain.Identifiers{
			DOI:        normalizeDOI(work.DOI),
			ProviderID: domain.ProviderRecordID(domain.SourceTypeOpenAlex, normalizeWorkID(work.ID)),
		},
		Title:         strings.TrimSpace(title),
		Abstract:      reconstructAbstract(work.AbstractInvertedIndex),
		Authors:       authors,
		Venue:         venue,
		Year:          work.PublicationYear,
		URL:           pageURL,
		Sources:       []domain.SourceType{domain.SourceTypeOpenAlex},
		StudyType:     studyTypeFromWorkType(work.Type),
		CitationCount: work.CitedByCount,
	}
	rec.EnsureTitleHash()
	return rec
}

// normalizeDOI strips the https://doi.org/ resolver prefix and lowercases.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	return strings.ToLower(doi)
}

// normalizeWorkID strips the https://openalex.org/ prefix from a work ID.
func normalizeWorkID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), "https://openalex.org/")
}

// studyTypeFromWorkType maps the OpenAlex work type to the evidence study type.
// OpenAlex types are coarse; most map to unknown and are refined later from
// the title.
func studyTypeFromWorkType(workType string) domain.StudyType {
	switch strings.ToLower(workType) {
	case "review":
		return domain.StudyTypeSystematicReview
	case "preprint":
		return domain.StudyTypePreprint
	default:
		return domain.StudyTypeUnknown
	}
}

// reconstructAbstract rebuilds the abstract text from OpenAlex's inverted
// index format (word -> list of positions).
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}

	// Guard against malicious payloads with excessive position entries.
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	if totalPairs > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, totalPairs)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}
	return builder.String()
}
