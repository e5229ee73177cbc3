package europepmc

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
	// DefaultBaseURL is the default base URL for the Europe PMC REST API.
	DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	// DefaultRateLimit is a conservative default request rate.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 50

	// sourceName is the human-readable name for this source.
	sourceName = "Europe PMC"

	maxBodySize = 10 << 20
)

// Config holds the configuration for the Europe PMC adapter.
type Config struct {
	// BaseURL is the base URL for the REST API.
	BaseURL string

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

// Client implements the sources.SourceAdapter interface for Europe PMC.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.SourceAdapter = (*Client)(nil)

// New creates a new Europe PMC adapter with the given configuration.
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

// Fetch queries Europe PMC for publications matching the given query.
func (c *Client) Fetch(ctx context.Context, query string, limit int) ([]domain.Record, error) {
	if !c.config.Enabled {
		return nil, domain.ErrSourceDisabled
	}

	u, err := url.Parse(c.config.BaseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}

	q := u.Query()
	q.Set("query", query)
	q.Set("format", "json")
	q.Set("resultType", "core")
	q.Set("pageSize", strconv.Itoa(limit))
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
		return nil, domain.NewExternalAPIError(domain.SourceTypeEuropePMC, resp.StatusCode, string(body), nil)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]domain.Record, 0, len(searchResp.ResultList.Result))
	for i := range searchResp.ResultList.Result {
		records = append(records, c.resultToRecord(&searchResp.ResultList.Result[i]))
	}
	return records, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeEuropePMC
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// resultToRecord converts a Europe PMC result to a domain.Record.
func (c *Client) resultToRecord(res *Result) domain.Record {
	year := 0
	if y, err := strconv.Atoi(res.PubYear); err == nil {
		year = y
	}

	// When Europe PMC knows the PMID, reuse the PubMed identifier space so
	// the record collapses with the PubMed copy of the same article.
	providerID := domain.ProviderRecordID(domain.SourceTypeEuropePMC, res.ID)
	if res.PMID != "" {
		providerID = domain.ProviderRecordID(domain.SourceTypePubMed, res.PMID)
	}

	var pageURL string
	if res.Source != "" && res.ID != "" {
		pageURL = "https://europepmc.org/article/" + res.Source + "/" + res.ID
	}

	rec := domain.Record{
		Identifiers: domain.Identifiers{
			DOI:        strings.ToLower(strings.TrimSpace(res.DOI)),
			ProviderID: providerID,
		},
		Title:         strings.TrimSpace(res.Title),
		Abstract:      strings.TrimSpace(res.AbstractText),
		Authors:       splitAuthorString(res.AuthorString),
		Venue:         res.JournalTitle,
		Year:          year,
		URL:           pageURL,
		Sources:       []domain.SourceType{domain.SourceTypeEuropePMC},
		StudyType:     studyTypeFromPubTypes(res.PubTypeList, res.Source),
		CitationCount: res.CitedByCount,
	}
	rec.EnsureTitleHash()
	return rec
}

// splitAuthorString splits the comma-separated author string, dropping the
// trailing "et al." marker Europe PMC appends for long author lists.
func splitAuthorString(s string) []string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" || strings.EqualFold(name, "et al") {
			continue
		}
		authors = append(authors, name)
	}
	return authors
}

// studyTypeFromPubTypes maps Europe PMC publication types to the evidence
// study type. Preprint servers (PPR source) are always preprints.
func studyTypeFromPubTypes(list *PubTypeList, source string) domain.StudyType {
	if strings.EqualFold(source, "PPR") {
		return domain.StudyTypePreprint
	}
	if list == nil {
		return domain.StudyTypeUnknown
	}

	set := make(map[string]bool, len(list.PubType))
	for _, t := range list.PubType {
		set[strings.ToLower(t)] = true
	}

	switch {
	case set["meta-analysis"]:
		return domain.StudyTypeMetaAnalysis
	case set["systematic review"]:
		return domain.StudyTypeSystematicReview
	case set["randomized controlled trial"]:
		return domain.StudyTypeRandomizedTrial
	case set["practice guideline"], set["guideline"]:
		return domain.StudyTypeGuideline
	case set["observational study"]:
		return domain.StudyTypeCohortStudy
	case set["case reports"]:
		return domain.StudyTypeCaseReport
	case set["preprint"]:
		return domain.StudyTypePreprint
	default:
		return domain.StudyTypeUnknown
	}
}
