package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
	"github.com/helixir/evidence-aggregation-service/internal/sources"
)

const (
	// DefaultBaseURL is the default base URL for the Crossref REST API.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is a polite default request rate.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 50

	// sourceName is the human-readable name for this source.
	sourceName = "Crossref"

	maxBodySize = 10 << 20
)

// jatsTag matches the JATS XML markup Crossref embeds in abstracts.
var jatsTag = regexp.MustCompile(`<[^>]+>`)

// Config holds the configuration for the Crossref adapter.
type Config struct {
	// BaseURL is the base URL for the REST API.
	BaseURL string

	// Mailto is included in requests to join the Crossref polite pool,
	// which gets more reliable service.
	Mailto string

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

// Client implements the sources.SourceAdapter interface for Crossref.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.SourceAdapter = (*Client)(nil)

// New creates a new Crossref adapter with the given configuration.
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

// NewWithHTTPClient creates a new adapter with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Fetch queries Crossref for works matching the given query.
func (c *Client) Fetch(ctx context.Context, query string, limit int) ([]domain.Record, error) {
	if !c.config.Enabled {
		return nil, domain.ErrSourceDisabled
	}

	u, err := url.Parse(c.config.BaseURL + "/works")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}

	q := u.Query()
	q.Set("query.bibliographic", query)
	q.Set("rows", strconv.Itoa(limit))
	q.Set("select", "DOI,type,title,container-title,abstract,author,issued,is-referenced-by-count,URL")
	if c.config.Mailto != "" {
		q.Set("mailto", c.config.Mailto)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
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
		return nil, domain.NewExternalAPIError(domain.SourceTypeCrossref, resp.StatusCode, string(body), nil)
	}

	var worksResp WorksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&worksResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]domain.Record, 0, len(worksResp.Message.Items))
	for i := range worksResp.Message.Items {
		rec, ok := c.workToRecord(&worksResp.Message.Items[i])
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCrossref
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// workToRecord converts a Crossref work to a domain.Record. Works without a
// title are dropped; Crossref carries registration stubs that are useless to
// rank.
func (c *Client) workToRecord(w *Work) (domain.Record, bool) {
	if len(w.Title) == 0 || strings.TrimSpace(w.Title[0]) == "" {
		return domain.Record{}, false
	}

	var venue string
	if len(w.ContainerTitle) > 0 {
		venue = w.ContainerTitle[0]
	}

	year := w.Issued.Year()
	if year == 0 && w.Published != nil {
		year = w.Published.Year()
	}

	doi := strings.ToLower(strings.TrimSpace(w.DOI))

	rec := domain.Record{
		Identifiers: domain.Identifiers{
			DOI:        doi,
			ProviderID: domain.ProviderRecordID(domain.SourceTypeCrossref, doi),
		},
		Title:         strings.TrimSpace(w.Title[0]),
		Abstract:      stripJATS(w.Abstract),
		Authors:       authorNames(w.Author),
		Venue:         venue,
		Year:          year,
		URL:           w.URL,
		Sources:       []domain.SourceType{domain.SourceTypeCrossref},
		StudyType:     studyTypeFromWorkType(w.Type),
		CitationCount: w.CitedByCount,
	}
	rec.EnsureTitleHash()
	return rec, true
}

// authorNames flattens Crossref contributors to "Given Family" strings.
// Organizational contributors carry a single name field.
func authorNames(authors []Author) []string {
	if len(authors) == 0 {
		return nil
	}

	names := make([]string, 0, len(authors))
	for _, a := range authors {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			name = strings.TrimSpace(a.Name)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// stripJATS removes JATS XML tags from a Crossref abstract and collapses
// the leftover whitespace.
func stripJATS(abstract string) string {
	if abstract == "" {
		return ""
	}
	plain := jatsTag.ReplaceAllString(abstract, " ")
	return strings.Join(strings.Fields(plain), " ")
}

// studyTypeFromWorkType maps the Crossref work type to the evidence study
// type. Crossref types are coarse; the scorer refines them from titles.
func studyTypeFromWorkType(workType string) domain.StudyType {
	switch strings.ToLower(workType) {
	case "posted-content":
		return domain.StudyTypePreprint
	default:
		return domain.StudyTypeUnknown
	}
}
