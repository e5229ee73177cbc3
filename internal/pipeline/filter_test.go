package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

func scoredRecord(id string, relevance, evidence float64) domain.Record {
	composite := 0.6*relevance + 0.4*evidence
	return domain.Record{
		Identifiers: domain.Identifiers{DOI: id},
		Title:       "record " + id,
		Sources:     []domain.SourceType{domain.SourceTypePubMed},
		Scores: domain.Scores{
			TopicalRelevance: relevance,
			EvidenceQuality:  evidence,
			CompositeRank:    composite,
		},
	}
}

func TestValidateTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tiers   []FilterTier
		wantErr bool
	}{
		{
			name:  "default ladder is valid",
			tiers: DefaultTiers(),
		},
		{
			name:    "empty ladder",
			tiers:   nil,
			wantErr: true,
		},
		{
			name: "missing label",
			tiers: []FilterTier{
				{MinTopicalRelevance: 0.5},
			},
			wantErr: true,
		},
		{
			name: "relevance threshold rises",
			tiers: []FilterTier{
				{Label: "a", MinTopicalRelevance: 0.4},
				{Label: "b", MinTopicalRelevance: 0.6},
			},
			wantErr: true,
		},
		{
			name: "evidence threshold rises",
			tiers: []FilterTier{
				{Label: "a", MinEvidenceQuality: 0.5},
				{Label: "b", MinEvidenceQuality: 0.6},
			},
			wantErr: true,
		},
		{
			name: "domain requirement reappears",
			tiers: []FilterTier{
				{Label: "a", MinTopicalRelevance: 0.5, RequireDomainMatch: true},
				{Label: "b", MinTopicalRelevance: 0.3},
				{Label: "c", MinTopicalRelevance: 0.1, RequireDomainMatch: true},
			},
			wantErr: true,
		},
		{
			name: "threshold out of range",
			tiers: []FilterTier{
				{Label: "a", MinTopicalRelevance: 1.5},
			},
			wantErr: true,
		},
		{
			name: "equal thresholds allowed",
			tiers: []FilterTier{
				{Label: "a", MinTopicalRelevance: 0.4, MinEvidenceQuality: 0.3},
				{Label: "b", MinTopicalRelevance: 0.4, MinEvidenceQuality: 0.3},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateTiers(tt.tiers)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilterMonotonicity(t *testing.T) {
	t.Parallel()

	// Any record passing a stricter tier must pass every later tier.
	tiers := DefaultTiers()
	var records []domain.Record
	for i := 0; i < 50; i++ {
		records = append(records, scoredRecord(
			fmt.Sprintf("10.1/%02d", i),
			float64(i%11)/10.0,
			float64(i%7)/6.0,
		))
	}

	md := domain.DomainGeneral
	for ti := 1; ti < len(tiers); ti++ {
		for i := range records {
			if tiers[ti-1].Accepts(&records[i], md) {
				assert.True(t, tiers[ti].Accepts(&records[i], md),
					"record passing %q must pass %q", tiers[ti-1].Label, tiers[ti].Label)
			}
		}
	}
}

func TestApplyTiers_StopsAtFirstSufficientTier(t *testing.T) {
	t.Parallel()

	records := []domain.Record{
		scoredRecord("10.1/a", 0.9, 0.8),
		scoredRecord("10.1/b", 0.8, 0.7),
		scoredRecord("10.1/c", 0.3, 0.2), // standard only
		scoredRecord("10.1/d", 0.1, 0.1), // minimal only
	}
	tiers := []FilterTier{
		{Label: "strict", MinTopicalRelevance: 0.6, MinEvidenceQuality: 0.5},
		{Label: "relaxed", MinTopicalRelevance: 0.2, MinEvidenceQuality: 0.1},
		{Label: "minimal"},
	}

	selected, label, reached := applyTiers(records, tiers, domain.DomainGeneral, 2)
	require.True(t, reached)
	assert.Equal(t, "strict", label)
	assert.Len(t, selected, 2)

	selected, label, reached = applyTiers(records, tiers, domain.DomainGeneral, 3)
	require.True(t, reached)
	assert.Equal(t, "relaxed", label, "strict holds only 2, so the ladder relaxes")
	assert.Len(t, selected, 3)
}

func TestApplyTiers_PartialWhenExhausted(t *testing.T) {
	t.Parallel()

	records := []domain.Record{
		scoredRecord("10.1/a", 0.9, 0.8),
		scoredRecord("10.1/b", 0.5, 0.4),
		scoredRecord("10.1/c", 0.1, 0.1),
	}

	selected, label, reached := applyTiers(records, DefaultTiers(), domain.DomainGeneral, 10)
	assert.False(t, reached)
	assert.Equal(t, "minimal", label)
	assert.Len(t, selected, 3, "everything eligible is returned, never padded")
}

func TestApplyTiers_DeterministicOrdering(t *testing.T) {
	t.Parallel()

	// Identical composite and evidence scores: the identifier breaks the tie.
	records := []domain.Record{
		scoredRecord("10.1/zz", 0.8, 0.6),
		scoredRecord("10.1/aa", 0.8, 0.6),
		scoredRecord("10.1/mm", 0.8, 0.6),
	}

	selected, _, reached := applyTiers(records, DefaultTiers(), domain.DomainGeneral, 3)
	require.True(t, reached)
	assert.Equal(t, "doi:10.1/aa", selected[0].CanonicalID())
	assert.Equal(t, "doi:10.1/mm", selected[1].CanonicalID())
	assert.Equal(t, "doi:10.1/zz", selected[2].CanonicalID())
}

func TestApplyTiers_TopNByCompositeRank(t *testing.T) {
	t.Parallel()

	var records []domain.Record
	for i := 0; i < 20; i++ {
		records = append(records, scoredRecord(
			fmt.Sprintf("10.1/%02d", i),
			0.5+float64(i)*0.02,
			0.5,
		))
	}

	selected, _, reached := applyTiers(records, DefaultTiers(), domain.DomainGeneral, 5)
	require.True(t, reached)
	require.Len(t, selected, 5)
	for i := 1; i < len(selected); i++ {
		assert.GreaterOrEqual(t,
			selected[i-1].Scores.CompositeRank,
			selected[i].Scores.CompositeRank)
	}
	assert.Equal(t, "doi:10.1/19", selected[0].CanonicalID())
}

func TestFilterTier_DomainMatch(t *testing.T) {
	t.Parallel()

	tier := FilterTier{Label: "strict", RequireDomainMatch: true}

	onDomain := scoredRecord("10.1/a", 0.9, 0.9)
	onDomain.Title = "Metformin and insulin resistance in diabetes"
	offDomain := scoredRecord("10.1/b", 0.9, 0.9)
	offDomain.Title = "Bridge maintenance scheduling heuristics"

	assert.True(t, tier.Accepts(&onDomain, domain.DomainEndocrinology))
	assert.False(t, tier.Accepts(&offDomain, domain.DomainEndocrinology))
	assert.True(t, tier.Accepts(&offDomain, domain.DomainGeneral),
		"general-domain queries match everything")
}
