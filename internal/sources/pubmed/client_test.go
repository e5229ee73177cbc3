package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
	"github.com/helixir/evidence-aggregation-service/internal/sources"
)

const esearchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>2</Count>
	<RetMax>2</RetMax>
	<RetStart>0</RetStart>
	<IdList>
		<Id>36592100</Id>
		<Id>34511234</Id>
	</IdList>
</eSearchResult>`

const esearchEmptyResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>0</Count>
	<RetMax>0</RetMax>
	<RetStart>0</RetStart>
	<IdList>
	</IdList>
</eSearchResult>`

const esearchPhraseNotFoundXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>0</Count>
	<RetMax>0</RetMax>
	<RetStart>0</RetStart>
	<IdList>
	</IdList>
	<ErrorList>
		<PhraseNotFound>zw9qx_nonexistent</PhraseNotFound>
	</ErrorList>
</eSearchResult>`

const efetchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">36592100</PMID>
			<Article PubModel="Print-Electronic">
				<Journal>
					<JournalIssue CitedMedium="Internet">
						<PubDate>
							<Year>2023</Year>
							<Month>Mar</Month>
						</PubDate>
					</JournalIssue>
					<Title>Diabetes Care</Title>
					<ISOAbbreviation>Diabetes Care</ISOAbbreviation>
				</Journal>
				<ArticleTitle>Metformin versus sulfonylureas as first-line therapy in type 2 diabetes</ArticleTitle>
				<ELocationID EIdType="doi" ValidYN="Y">10.2337/dc22-1234</ELocationID>
				<Abstract>
					<AbstractText Label="OBJECTIVE">To compare glycemic outcomes of first-line agents.</AbstractText>
					<AbstractText Label="RESULTS">Metformin showed superior HbA1c reduction.</AbstractText>
				</Abstract>
				<AuthorList CompleteYN="Y">
					<Author ValidYN="Y">
						<LastName>Nakamura</LastName>
						<ForeName>Keiko</ForeName>
					</Author>
					<Author ValidYN="Y">
						<LastName>Okafor</LastName>
						<ForeName>Chidi</ForeName>
					</Author>
					<Author ValidYN="N">
						<LastName>Retracted</LastName>
						<ForeName>Name</ForeName>
					</Author>
				</AuthorList>
				<PublicationTypeList>
					<PublicationType UI="D016449">Randomized Controlled Trial</PublicationType>
					<PublicationType UI="D016428">Journal Article</PublicationType>
				</PublicationTypeList>
			</Article>
		</MedlineCitation>
		<PubmedData>
			<ArticleIdList>
				<ArticleId IdType="pubmed">36592100</ArticleId>
				<ArticleId IdType="doi">10.2337/dc22-1234</ArticleId>
			</ArticleIdList>
		</PubmedData>
	</PubmedArticle>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">34511234</PMID>
			<Article PubModel="Print">
				<Journal>
					<JournalIssue CitedMedium="Print">
						<PubDate>
							<MedlineDate>2021 Jan-Feb</MedlineDate>
						</PubDate>
					</JournalIssue>
					<Title>BMJ</Title>
				</Journal>
				<ArticleTitle>SGLT2 inhibitors and cardiovascular outcomes: systematic review</ArticleTitle>
				<AuthorList CompleteYN="Y">
					<Author ValidYN="Y">
						<CollectiveName>EMPA Outcomes Collaboration</CollectiveName>
					</Author>
				</AuthorList>
				<PublicationTypeList>
					<PublicationType UI="D017418">Meta-Analysis</PublicationType>
					<PublicationType UI="D000078182">Systematic Review</PublicationType>
				</PublicationTypeList>
			</Article>
		</MedlineCitation>
		<PubmedData>
			<ArticleIdList>
				<ArticleId IdType="pubmed">34511234</ArticleId>
			</ArticleIdList>
		</PubmedData>
	</PubmedArticle>
</PubmedArticleSet>`

// newTestClient points an enabled adapter at the given test server with a
// high rate limit so tests do not wait on tokens.
func newTestClient(serverURL string) *Client {
	return NewWithHTTPClient(Config{
		BaseURL: serverURL,
		Enabled: true,
	}, sources.NewHTTPClient(sources.HTTPClientConfig{
		RateLimit: 1000,
		BurstSize: 100,
	}))
}

func TestClient_Fetch(t *testing.T) {
	t.Run("performs two-step search and normalizes records", func(t *testing.T) {
		var esearchQuery, efetchIDs string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "esearch"):
				esearchQuery = r.URL.Query().Get("term")
				w.Write([]byte(esearchResponseXML))
			case strings.Contains(r.URL.Path, "efetch"):
				efetchIDs = r.URL.Query().Get("id")
				w.Write([]byte(efetchResponseXML))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		records, err := client.Fetch(context.Background(), `metformin AND "type 2 diabetes"`, 25)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, `metformin AND "type 2 diabetes"`, esearchQuery)
		assert.Equal(t, "36592100,34511234", efetchIDs)

		rct := records[0]
		assert.Equal(t, "10.2337/dc22-1234", rct.Identifiers.DOI)
		assert.Equal(t, "pubmed:36592100", rct.Identifiers.ProviderID)
		assert.Equal(t, "Metformin versus sulfonylureas as first-line therapy in type 2 diabetes", rct.Title)
		assert.Contains(t, rct.Abstract, "OBJECTIVE: To compare glycemic outcomes")
		assert.Contains(t, rct.Abstract, "RESULTS: Metformin showed superior")
		assert.Equal(t, []string{"Keiko Nakamura", "Chidi Okafor"}, rct.Authors,
			"ValidYN=N authors are dropped")
		assert.Equal(t, "Diabetes Care", rct.Venue)
		assert.Equal(t, 2023, rct.Year)
		assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/36592100/", rct.URL)
		assert.Equal(t, []domain.SourceType{domain.SourceTypePubMed}, rct.Sources)
		assert.Equal(t, domain.StudyTypeRandomizedTrial, rct.StudyType)

		meta := records[1]
		assert.Empty(t, meta.Identifiers.DOI)
		assert.Equal(t, "pubmed:34511234", meta.Identifiers.ProviderID)
		assert.Equal(t, []string{"EMPA Outcomes Collaboration"}, meta.Authors)
		assert.Equal(t, 2021, meta.Year, "MedlineDate year is parsed")
		assert.Equal(t, domain.StudyTypeMetaAnalysis, meta.StudyType,
			"meta-analysis outranks systematic review")
	})

	t.Run("empty ID list returns empty slice without efetch", func(t *testing.T) {
		var efetchCalled bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "efetch") {
				efetchCalled = true
			}
			w.Write([]byte(esearchEmptyResponseXML))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		records, err := client.Fetch(context.Background(), "anything", 10)
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.False(t, efetchCalled)
	})

	t.Run("phrase not found is empty, not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(esearchPhraseNotFoundXML))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		records, err := client.Fetch(context.Background(), "zw9qx_nonexistent", 10)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("disabled source returns ErrSourceDisabled", func(t *testing.T) {
		client := NewWithHTTPClient(Config{Enabled: false}, sources.NewHTTPClient(sources.HTTPClientConfig{}))

		_, err := client.Fetch(context.Background(), "metformin", 10)
		assert.ErrorIs(t, err, domain.ErrSourceDisabled)
	})

	t.Run("non-200 response is an external API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("invalid query"))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Fetch(context.Background(), "metformin", 10)
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, domain.SourceTypePubMed, apiErr.Source)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})

	t.Run("limit is clamped to configured max", func(t *testing.T) {
		var retmax string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			retmax = r.URL.Query().Get("retmax")
			w.Write([]byte(esearchEmptyResponseXML))
		}))
		defer server.Close()

		client := NewWithHTTPClient(Config{
			BaseURL:    server.URL,
			MaxResults: 20,
			Enabled:    true,
		}, sources.NewHTTPClient(sources.HTTPClientConfig{RateLimit: 1000, BurstSize: 100}))

		_, err := client.Fetch(context.Background(), "metformin", 500)
		require.NoError(t, err)
		assert.Equal(t, "20", retmax)
	})

	t.Run("API key is sent when configured", func(t *testing.T) {
		var apiKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey = r.URL.Query().Get("api_key")
			w.Write([]byte(esearchEmptyResponseXML))
		}))
		defer server.Close()

		client := NewWithHTTPClient(Config{
			BaseURL: server.URL,
			APIKey:  "ncbi-test-key",
			Enabled: true,
		}, sources.NewHTTPClient(sources.HTTPClientConfig{RateLimit: 1000, BurstSize: 100}))

		_, err := client.Fetch(context.Background(), "metformin", 10)
		require.NoError(t, err)
		assert.Equal(t, "ncbi-test-key", apiKey)
	})
}

func TestClient_Metadata(t *testing.T) {
	client := New(Config{Enabled: true})

	assert.Equal(t, domain.SourceTypePubMed, client.SourceType())
	assert.Equal(t, "PubMed", client.Name())
	assert.True(t, client.IsEnabled())
	assert.False(t, New(Config{}).IsEnabled())
}

func TestStudyTypeFromPublicationTypes(t *testing.T) {
	tests := []struct {
		name  string
		types []string
		want  domain.StudyType
	}{
		{"nil list", nil, domain.StudyTypeUnknown},
		{"plain article", []string{"Journal Article"}, domain.StudyTypeUnknown},
		{"rct", []string{"Journal Article", "Randomized Controlled Trial"}, domain.StudyTypeRandomizedTrial},
		{"guideline", []string{"Practice Guideline"}, domain.StudyTypeGuideline},
		{"cohort", []string{"Observational Study"}, domain.StudyTypeCohortStudy},
		{"case report", []string{"Case Reports"}, domain.StudyTypeCaseReport},
		{"preprint", []string{"Preprint"}, domain.StudyTypePreprint},
		{"meta wins over rct", []string{"Randomized Controlled Trial", "Meta-Analysis"}, domain.StudyTypeMetaAnalysis},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var list *PublicationTypeList
			if tt.types != nil {
				list = &PublicationTypeList{}
				for _, v := range tt.types {
					list.PublicationTypes = append(list.PublicationTypes, PublicationType{Value: v})
				}
			}
			assert.Equal(t, tt.want, studyTypeFromPublicationTypes(list))
		})
	}
}
