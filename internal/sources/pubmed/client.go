package pubmed

import (
	"context"
	"encoding/xml"
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
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 50

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"

	// maxBodySize bounds response bodies to prevent resource exhaustion.
	maxBodySize = 10 << 20
)

// Config holds the configuration for the PubMed adapter.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits. Optional.
	APIKey string

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

// applyDefaults applies default values to the config.
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

// Client implements the sources.SourceAdapter interface for PubMed.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Compile-time check that Client implements SourceAdapter.
var _ sources.SourceAdapter = (*Client)(nil)

// New creates a new PubMed adapter with the given configuration.
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

// NewWithHTTPClient creates a new PubMed adapter with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Fetch queries PubMed for records matching the given query.
// It performs the two-step search: esearch for PMIDs, efetch for metadata.
func (c *Client) Fetch(ctx context.Context, query string, limit int) ([]domain.Record, error) {
	if !c.config.Enabled {
		return nil, domain.ErrSourceDisabled
	}

	searchResult, err := c.esearch(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	// Phrase-not-found is an empty result, not a provider failure.
	if searchResult.ErrorList != nil && len(searchResult.ErrorList.PhraseNotFound) > 0 {
		return []domain.Record{}, nil
	}

	if len(searchResult.IDList.IDs) == 0 {
		return []domain.Record{}, nil
	}

	articles, err := c.efetch(ctx, searchResult.IDList.IDs)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}

	records := make([]domain.Record, 0, len(articles.Articles))
	for i := range articles.Articles {
		records = append(records, c.articleToRecord(&articles.Articles[i]))
	}
	return records, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// esearch performs a search query and returns matching PMIDs.
func (c *Client) esearch(ctx context.Context, query string, limit int) (*ESearchResult, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", query)
	q.Set("retmode", "xml")
	q.Set("retmax", strconv.Itoa(limit))
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result ESearchResult
	if err := c.getXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*ArticleSet, error) {
	if len(pmids) == 0 {
		return &ArticleSet{}, nil
	}

	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result ArticleSet
	if err := c.getXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// getXML executes a GET request and decodes the XML response into v.
func (c *Client) getXML(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return domain.NewExternalAPIError(domain.SourceTypePubMed, resp.StatusCode, string(body), nil)
	}

	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(v); err != nil {
		return fmt.Errorf("failed to parse XML response: %w", err)
	}
	return nil
}

// articleToRecord converts a PubmedArticle to a domain.Record.
func (c *Client) articleToRecord(article *PubmedArticle) domain.Record {
	citation := article.MedlineCitation
	pmid := citation.PMID.Value
	doi := extractDOI(citation.Article, article.PubmedData)

	rec := domain.Record{
		Identifiers: domain.Identifiers{
			DOI:        strings.ToLower(strings.TrimSpace(doi)),
			ProviderID: domain.ProviderRecordID(domain.SourceTypePubMed, pmid),
		},
		Title:     strings.TrimSpace(citation.Article.ArticleTitle),
		Abstract:  extractAbstract(citation.Article.Abstract),
		Authors:   extractAuthors(citation.Article.AuthorList),
		Venue:     extractVenue(citation.Article.Journal),
		Year:      extractYear(citation.Article),
		Sources:   []domain.SourceType{domain.SourceTypePubMed},
		StudyType: studyTypeFromPublicationTypes(citation.Article.PublicationTypeList),
	}
	if pmid != "" {
		rec.URL = "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"
	}
	rec.EnsureTitleHash()
	return rec
}

// extractDOI checks ELocationID first (more reliable), then ArticleIdList.
func extractDOI(article Article, pubmedData PubmedData) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return eloc.Value
		}
	}
	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return aid.Value
		}
	}
	return ""
}

// extractVenue prefers the full journal title over the ISO abbreviation.
func extractVenue(journal Journal) string {
	if journal.Title != "" {
		return journal.Title
	}
	return journal.ISOAbbreviation
}

// extractYear uses ArticleDate when available, otherwise the journal PubDate,
// handling the MedlineDate format ("2020 Jan-Feb", "2020-2021").
func extractYear(article Article) int {
	for _, ad := range article.ArticleDate {
		if y, err := strconv.Atoi(ad.Year); err == nil && y > 0 {
			return y
		}
	}

	pubDate := article.Journal.JournalIssue.PubDate
	if pubDate.Year != "" {
		if y, err := strconv.Atoi(pubDate.Year); err == nil {
			return y
		}
	}
	if pubDate.MedlineDate != "" {
		parts := strings.Fields(pubDate.MedlineDate)
		if len(parts) > 0 {
			yearStr := strings.Split(parts[0], "-")[0]
			if y, err := strconv.Atoi(yearStr); err == nil {
				return y
			}
		}
	}
	return 0
}

// extractAbstract concatenates labeled abstract sections into a single string.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	if len(abstract.AbstractTexts) == 1 && abstract.AbstractTexts[0].Label == "" {
		return strings.TrimSpace(abstract.AbstractTexts[0].Value)
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// extractAuthors converts PubMed authors to ordered name strings.
func extractAuthors(authorList *AuthorList) []string {
	if authorList == nil || len(authorList.Authors) == 0 {
		return nil
	}

	authors := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		var name string
		if a.CollectiveName != "" {
			name = a.CollectiveName
		} else {
			parts := make([]string, 0, 2)
			if a.ForeName != "" {
				parts = append(parts, a.ForeName)
			}
			if a.LastName != "" {
				parts = append(parts, a.LastName)
			}
			name = strings.Join(parts, " ")
		}

		if name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// studyTypeFromPublicationTypes maps PubMed publication types to the evidence
// study type. The first match in hierarchy order wins.
func studyTypeFromPublicationTypes(list *PublicationTypeList) domain.StudyType {
	if list == nil {
		return domain.StudyTypeUnknown
	}

	types := make(map[string]bool, len(list.PublicationTypes))
	for _, pt := range list.PublicationTypes {
		types[strings.ToLower(pt.Value)] = true
	}

	switch {
	case types["meta-analysis"]:
		return domain.StudyTypeMetaAnalysis
	case types["systematic review"]:
		return domain.StudyTypeSystematicReview
	case types["randomized controlled trial"], types["clinical trial, phase iii"]:
		return domain.StudyTypeRandomizedTrial
	case types["practice guideline"], types["guideline"]:
		return domain.StudyTypeGuideline
	case types["observational study"], types["cohort studies"]:
		return domain.StudyTypeCohortStudy
	case types["case reports"]:
		return domain.StudyTypeCaseReport
	case types["preprint"]:
		return domain.StudyTypePreprint
	default:
		return domain.StudyTypeUnknown
	}
}
