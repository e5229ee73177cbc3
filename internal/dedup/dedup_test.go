package dedup

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

func newTestDeduplicator() *Deduplicator {
	return New(zerolog.Nop(), Options{})
}

func record(doi, providerID, title string, year int, source domain.SourceType) domain.Record {
	r := domain.Record{
		Identifiers: domain.Identifiers{DOI: doi, ProviderID: providerID},
		Title:       title,
		Year:        year,
		Sources:     []domain.SourceType{source},
	}
	r.EnsureTitleHash()
	return r
}

func TestDedupe_ExactDOIMatch(t *testing.T) {
	t.Parallel()

	d := newTestDeduplicator()
	out := d.Dedupe([]domain.Record{
		record("10.1000/x1", "pubmed:1", "Metformin in type 2 diabetes", 2020, domain.SourceTypePubMed),
		record("10.1000/x1", "openalex:W9", "Metformin in Type 2 Diabetes.", 2020, domain.SourceTypeOpenAlex),
		record("10.1000/x2", "pubmed:2", "An unrelated study", 2019, domain.SourceTypePubMed),
	})

	require.Len(t, out, 2)
	merged := out[0]
	assert.Equal(t, "doi:10.1000/x1", merged.CanonicalID())
	assert.Equal(t, []domain.SourceType{domain.SourceTypeOpenAlex, domain.SourceTypePubMed}, merged.Sources)
}

func TestDedupe_ProviderIDMatch(t *testing.T) {
	t.Parallel()

	d := newTestDeduplicator()
	// Europe PMC reuses the PubMed identifier space for records with a PMID,
	// so the two collapse without a DOI.
	out := d.Dedupe([]domain.Record{
		record("", "pubmed:123", "Aspirin and stroke prevention", 2021, domain.SourceTypePubMed),
		record("", "pubmed:123", "Aspirin and stroke prevention", 2021, domain.SourceTypeEuropePMC),
	})

	require.Len(t, out, 1)
	assert.Len(t, out[0].Sources, 2)
}

func TestDedupe_TitleSimilarityMatch(t *testing.T) {
	t.Parallel()

	d := newTestDeduplicator()

	tests := []struct {
		name string
		a, b domain.Record
		want int
	}{
		{
			name: "near-identical titles, adjacent years",
			a:    record("", "pubmed:10", "Metformin and cardiovascular outcomes in type 2 diabetes", 2020, domain.SourceTypePubMed),
			b:    record("", "crossref:10.1/y", "Metformin and cardiovascular outcomes in type 2 diabetes.", 2021, domain.SourceTypeCrossref),
			want: 1,
		},
		{
			name: "similar titles but years too far apart",
			a:    record("", "pubmed:11", "Metformin and cardiovascular outcomes in type 2 diabetes", 2015, domain.SourceTypePubMed),
			b:    record("", "crossref:10.1/z", "Metformin and cardiovascular outcomes in type 2 diabetes", 2020, domain.SourceTypeCrossref),
			want: 2,
		},
		{
			name: "different titles",
			a:    record("", "pubmed:12", "Metformin and cardiovascular outcomes", 2020, domain.SourceTypePubMed),
			b:    record("", "crossref:10.1/w", "SGLT2 inhibitors and renal outcomes", 2020, domain.SourceTypeCrossref),
			want: 2,
		},
		{
			name: "unknown year is compatible",
			a:    record("", "pubmed:13", "Statin therapy for primary prevention of cardiovascular disease", 0, domain.SourceTypePubMed),
			b:    record("", "crossref:10.1/v", "Statin therapy for primary prevention of cardiovascular disease", 2019, domain.SourceTypeCrossref),
			want: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := d.Dedupe([]domain.Record{tt.a, tt.b})
			assert.Len(t, out, tt.want)
		})
	}
}

func TestDedupe_AuthorMismatchBlocksTitleMatch(t *testing.T) {
	t.Parallel()

	d := newTestDeduplicator()

	a := record("", "pubmed:20", "Effects of exercise on depression", 2020, domain.SourceTypePubMed)
	a.Authors = []string{"Jane Smith", "Wei Chen"}
	b := record("", "crossref:10.2/a", "Effects of exercise on depression", 2020, domain.SourceTypeCrossref)
	b.Authors = []string{"Maria Garcia", "Tom Jones"}

	out := d.Dedupe([]domain.Record{a, b})
	assert.Len(t, out, 2, "same title by different author teams must not merge")

	b.Authors = []string{"J Smith", "W Chen"}
	out = d.Dedupe([]domain.Record{a, b})
	assert.Len(t, out, 1, "initialed variants of the same authors must merge")
}

func TestDedupe_MergeMostCompleteWins(t *testing.T) {
	t.Parallel()

	d := newTestDeduplicator()

	sparse := record("10.1000/m1", "pubmed:30", "A trial of something", 0, domain.SourceTypePubMed)
	full := record("10.1000/m1", "openalex:W30", "A trial of something", 2022, domain.SourceTypeOpenAlex)
	full.Abstract = "Background: a detailed abstract."
	full.Authors = []string{"A One", "B Two", "C Three"}
	full.Venue = "The Lancet"
	full.CitationCount = 57
	full.URL = "https://example.org/m1"

	out := d.Dedupe([]domain.Record{sparse, full})
	require.Len(t, out, 1)

	merged := out[0]
	assert.Equal(t, "Background: a detailed abstract.", merged.Abstract)
	assert.Len(t, merged.Authors, 3)
	assert.Equal(t, "The Lancet", merged.Venue)
	assert.Equal(t, 2022, merged.Year)
	assert.Equal(t, 57, merged.CitationCount)
	assert.Equal(t, "https://example.org/m1", merged.URL)
	// Both provider identifiers survive via the identifier priority merge.
	assert.NotEmpty(t, merged.Identifiers.ProviderID)
}

func TestDedupe_Idempotent(t *testing.T) {
	t.Parallel()

	d := newTestDeduplicator()
	in := []domain.Record{
		record("10.1/a", "pubmed:1", "First title here", 2020, domain.SourceTypePubMed),
		record("10.1/a", "openalex:W1", "First title here", 2020, domain.SourceTypeOpenAlex),
		record("", "pubmed:2", "Second distinct title", 2019, domain.SourceTypePubMed),
		record("", "semantic_scholar:s3", "Third paper on another topic", 2021, domain.SourceTypeSemanticScholar),
	}

	once := d.Dedupe(in)
	twice := d.Dedupe(once)

	assert.Equal(t, once, twice)
}

func TestDedupe_Commutative(t *testing.T) {
	t.Parallel()

	d := newTestDeduplicator()
	in := []domain.Record{
		record("10.1/a", "pubmed:1", "Metformin monotherapy in newly diagnosed diabetes", 2020, domain.SourceTypePubMed),
		record("10.1/a", "openalex:W1", "Metformin monotherapy in newly diagnosed diabetes", 2020, domain.SourceTypeOpenAlex),
		record("", "pubmed:2", "GLP-1 receptor agonists and weight loss", 2021, domain.SourceTypePubMed),
		record("", "crossref:10.1/b", "GLP-1 receptor agonists and weight loss", 2021, domain.SourceTypeCrossref),
		record("", "semantic_scholar:s5", "Bariatric surgery outcomes at ten years", 2018, domain.SourceTypeSemanticScholar),
		// Shared DOI with divergent titles: the merge winner must not depend
		// on which provider answered first.
		record("10.1/c", "pubmed:6", "Sodium restriction in hypertensive diabetic adults", 2019, domain.SourceTypePubMed),
		record("10.1/c", "openalex:W6", "Dietary salt and blood pressure in diabetes", 2019, domain.SourceTypeOpenAlex),
	}

	want := d.Dedupe(in)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := append([]domain.Record(nil), in...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, want, d.Dedupe(shuffled), "shuffle %d changed the output", i)
	}
}

func TestDedupe_SharedDOIMergeWinnerIsOrderIndependent(t *testing.T) {
	t.Parallel()

	d := newTestDeduplicator()

	a := record("10.1/x", "pubmed:40", "Empagliflozin and heart failure hospitalization", 2021, domain.SourceTypePubMed)
	a.Venue = "Diabetes Care"
	b := record("10.1/x", "openalex:W40", "Effects of empagliflozin on hospitalization for heart failure", 2021, domain.SourceTypeOpenAlex)
	b.URL = "https://example.org/x"

	forward := d.Dedupe([]domain.Record{a, b})
	reversed := d.Dedupe([]domain.Record{b, a})

	require.Len(t, forward, 1)
	require.Len(t, reversed, 1)
	assert.Equal(t, forward[0], reversed[0])

	// The lexicographically smaller provider identifier wins the merge.
	merged := forward[0]
	assert.Equal(t, "Effects of empagliflozin on hospitalization for heart failure", merged.Title)
	assert.Equal(t, "openalex:W40", merged.Identifiers.ProviderID)
	assert.Equal(t, "Diabetes Care", merged.Venue)
	assert.Equal(t, "https://example.org/x", merged.URL)
}

func TestDedupe_EmptyAndSingle(t *testing.T) {
	t.Parallel()

	d := newTestDeduplicator()

	assert.Empty(t, d.Dedupe(nil))

	one := []domain.Record{record("10.1/a", "pubmed:1", "Only record", 2020, domain.SourceTypePubMed)}
	assert.Equal(t, one, d.Dedupe(one))
}

func TestDedupe_ScenarioCollapseCount(t *testing.T) {
	t.Parallel()

	d := newTestDeduplicator()

	// Five sources contribute 12+0+8+3+6 raw records with 4 exact-DOI
	// duplicates across them: 25 unique records remain.
	titles := []string{
		"Metformin versus sulfonylurea as first-line therapy",
		"Cardiovascular outcomes with SGLT2 inhibitors",
		"GLP-1 receptor agonists and weight reduction",
		"Intensive glycemic control in elderly patients",
		"Insulin initiation strategies in primary care",
		"Continuous glucose monitoring and HbA1c",
		"Bariatric surgery and diabetes remission",
		"Diabetic retinopathy screening intervals",
		"Renal protection with ACE inhibitors",
		"Lifestyle intervention for prediabetes",
		"Pioglitazone and heart failure risk",
		"DPP-4 inhibitors in chronic kidney disease",
		"Gestational diabetes and later type 2 risk",
		"Metformin pharmacokinetics in renal impairment",
		"Hypoglycemia awareness training programs",
		"Foot ulcer prevention in diabetic neuropathy",
		"Statin therapy in diabetic dyslipidemia",
		"Sleep duration and insulin resistance",
		"Vitamin D supplementation and glycemic control",
		"Telemedicine for diabetes self-management",
		"Beta cell function decline over a decade",
		"Dietary fiber intake and incident diabetes",
		"Periodontal disease and glycemic outcomes",
		"Exercise timing and postprandial glucose",
		"Fasting regimens in insulin-treated patients",
	}
	require.Len(t, titles, 25)

	counts := []struct {
		source domain.SourceType
		n      int
	}{
		{domain.SourceTypePubMed, 12},
		{domain.SourceTypeSemanticScholar, 8},
		{domain.SourceTypeEuropePMC, 3},
		{domain.SourceTypeCrossref, 6},
	}

	var in []domain.Record
	idx := 0
	for _, c := range counts {
		for i := 0; i < c.n; i++ {
			in = append(in, record(
				fmt.Sprintf("10.9/%02d", idx),
				fmt.Sprintf("%s:%02d", c.source, idx),
				titles[idx],
				2015+idx%10,
				c.source,
			))
			idx++
		}
	}

	// 4 duplicates of PubMed records arriving from OpenAlex under the same DOI.
	for i := 0; i < 4; i++ {
		in = append(in, record(
			fmt.Sprintf("10.9/%02d", i),
			fmt.Sprintf("openalex:W%02d", i),
			titles[i],
			2015+i,
			domain.SourceTypeOpenAlex,
		))
	}

	require.Len(t, in, 33)
	out := d.Dedupe(in)
	assert.Len(t, out, 25, "12+0+8+3+6 raw with 4 DOI duplicates collapses to 25")
}
