package reasoning_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procureline/engine/internal/models"
	"github.com/procureline/engine/internal/reasoning"
)

func baseContext() models.AssignmentContext {
	return models.AssignmentContext{
		LineItemID: "pr-item-1",
		ProductID:  "prod-1",
		Quantity:   10,
	}
}

func TestScoreConfidenceStrongCandidate(t *testing.T) {
	selected := models.VendorOffer{
		VendorID: "v1", VendorName: "Top Pick", NormalizedPrice: 90, Rating: 4.9,
		IsPreferred: true, Availability: models.AvailabilityAvailable, LeadTime: 1,
	}
	pool := []models.VendorOffer{
		selected,
		{VendorID: "v2", NormalizedPrice: 100, Rating: 4.0, Availability: models.AvailabilityAvailable, LeadTime: 5},
		{VendorID: "v3", NormalizedPrice: 110, Rating: 3.5, Availability: models.AvailabilityLimited, LeadTime: 7},
	}

	score := reasoning.NewEngine().ScoreConfidence(baseContext(), selected, pool)

	assert.GreaterOrEqual(t, score.Overall, 0.8)
	assert.Equal(t, "High Confidence", score.Category)
	// 10% deviation bonus, below-average bonus and best-price bonus.
	assert.InDelta(t, 0.95, score.Components.Price, 1e-9)
	assert.Equal(t, 1.0, score.Components.Quality)
	assert.Equal(t, 1.0, score.Components.Availability)
	assert.NotEmpty(t, score.Factors)
}

func TestScoreConfidenceWeakCandidate(t *testing.T) {
	selected := models.VendorOffer{
		VendorID: "v1", VendorName: "Weak Pick", NormalizedPrice: 200, Rating: 2.5,
		Availability: models.AvailabilityUnavailable, LeadTime: 21, MinQuantity: 500,
	}
	pool := []models.VendorOffer{
		selected,
		{VendorID: "v2", NormalizedPrice: 100, Rating: 4.5, Availability: models.AvailabilityAvailable},
	}

	score := reasoning.NewEngine().ScoreConfidence(baseContext(), selected, pool)

	assert.Less(t, score.Overall, 0.5)
	assert.Equal(t, 0.1, score.Components.Availability)
	assert.Equal(t, 0.3, score.Components.Quality)
}

func TestScoreConfidenceBounded(t *testing.T) {
	e := reasoning.NewEngine()
	offers := []models.VendorOffer{
		{VendorID: "a", NormalizedPrice: 1, Rating: 5, IsPreferred: true, Availability: models.AvailabilityAvailable},
		{VendorID: "b", NormalizedPrice: 10000, Rating: 0, Availability: models.AvailabilityUnavailable, LeadTime: 60, MinQuantity: 9999},
	}
	for _, selected := range offers {
		score := e.ScoreConfidence(baseContext(), selected, offers)
		assert.GreaterOrEqual(t, score.Overall, 0.0)
		assert.LessOrEqual(t, score.Overall, 1.0)
		assert.NotEmpty(t, score.Category)
	}
}

func TestConfidenceCategories(t *testing.T) {
	// Category bands via crafted pools: a sole vendor with a given profile.
	e := reasoning.NewEngine()
	solo := models.VendorOffer{VendorID: "v", NormalizedPrice: 100, Rating: 4.9, IsPreferred: true, Availability: models.AvailabilityAvailable, LeadTime: 1}
	score := e.ScoreConfidence(baseContext(), solo, []models.VendorOffer{solo})
	assert.Equal(t, "High Confidence", score.Category)

	weak := models.VendorOffer{VendorID: "w", NormalizedPrice: 100, Rating: 1.0, Availability: models.AvailabilityUnavailable, LeadTime: 30, MinQuantity: 1000}
	score = e.ScoreConfidence(baseContext(), weak, []models.VendorOffer{weak, {VendorID: "x", NormalizedPrice: 10, Rating: 5, Availability: models.AvailabilityAvailable}})
	assert.Contains(t, []string{"Low Confidence", "Very Low Confidence"}, score.Category)
}

func TestAssessRisks(t *testing.T) {
	budget := 500.0
	ctx := baseContext()
	ctx.BudgetLimit = &budget

	selected := models.VendorOffer{
		VendorID: "risky", VendorName: "Risky Vendor", NormalizedPrice: 120,
		Rating: 3.0, Availability: models.AvailabilityLimited, LeadTime: 14,
	}
	pool := []models.VendorOffer{
		selected,
		{VendorID: "cheap", NormalizedPrice: 80, Rating: 4.5, Availability: models.AvailabilityAvailable},
	}

	risks := reasoning.NewEngine().AssessRisks(ctx, selected, pool)
	require.NotEmpty(t, risks)

	var factors []string
	for _, r := range risks {
		factors = append(factors, r.Factor)
		assert.Contains(t, []string{"low", "medium", "high"}, r.Level)
		assert.NotEmpty(t, r.Mitigation)
	}
	assert.Contains(t, factors, "vendor reports limited availability")

	// price 120 vs avg 100 is 20% over, lead time 14 > 7, rating 3.0 < 4.0,
	// total 1200 > budget 500: four more risks.
	assert.Len(t, risks, 5)
}

func TestAssessRisksCleanCandidate(t *testing.T) {
	selected := models.VendorOffer{
		VendorID: "clean", NormalizedPrice: 90, Rating: 4.8,
		Availability: models.AvailabilityAvailable, LeadTime: 2,
	}
	pool := []models.VendorOffer{selected, {VendorID: "other", NormalizedPrice: 100, Rating: 4.0}}
	risks := reasoning.NewEngine().AssessRisks(baseContext(), selected, pool)
	assert.Empty(t, risks)
}

func TestCompareAlternatives(t *testing.T) {
	selected := models.VendorOffer{VendorID: "sel", VendorName: "Selected", NormalizedPrice: 100, Rating: 4.5, LeadTime: 2, IsPreferred: true}
	pool := []models.VendorOffer{
		selected,
		{VendorID: "a1", VendorName: "Alt One", NormalizedPrice: 110, Rating: 4.0, LeadTime: 5},
		{VendorID: "a2", VendorName: "Alt Two", NormalizedPrice: 95, Rating: 4.8, LeadTime: 1, IsPreferred: true},
		{VendorID: "a3", VendorName: "Alt Three", NormalizedPrice: 130, Rating: 3.0, LeadTime: 10},
		{VendorID: "a4", VendorName: "Alt Four", NormalizedPrice: 140, Rating: 2.0, LeadTime: 20},
	}

	out := reasoning.NewEngine().CompareAlternatives(selected, pool)
	require.Len(t, out, 3, "capped at three alternatives")

	first := out[0]
	assert.Equal(t, "a1", first.VendorID)
	assert.InDelta(t, 10.0, first.PriceDelta, 1e-9)
	assert.InDelta(t, 10.0, first.PriceDeltaPct, 1e-9)
	assert.InDelta(t, -0.5, first.RatingDelta, 1e-9)
	assert.Equal(t, 3, first.LeadTimeDelta)
	assert.Contains(t, first.WhyNotSelected, "higher price")
	assert.Contains(t, first.WhyNotSelected, "not a preferred vendor")

	// a2 beats the selection on every axis; the fallback phrasing applies.
	second := out[1]
	assert.Equal(t, "a2", second.VendorID)
	assert.Equal(t, "narrowly outscored by the selected vendor", second.WhyNotSelected)
}
