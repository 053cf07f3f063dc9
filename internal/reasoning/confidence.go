// Package reasoning implements the granular confidence model and the
// natural-language justification used to enrich assignment results. It is
// intentionally independent from the scalar confidence computed inline by the
// assignment service; the two models serve different callers and must not be
// collapsed into one.
package reasoning

import (
	"fmt"
	"math"
	"strings"

	"github.com/procureline/engine/internal/models"
)

// ConfidenceScore is the structured breakdown consumed for richer reporting.
type ConfidenceScore struct {
	Overall    float64             `json:"overall"`
	Category   string              `json:"category"`
	Components ConfidenceBreakdown `json:"components"`
	Factors    []string            `json:"factors"`
}

// ConfidenceBreakdown holds the per-dimension components, each in [0,1].
type ConfidenceBreakdown struct {
	Price        float64 `json:"price"`
	Vendor       float64 `json:"vendor"`
	Availability float64 `json:"availability"`
	Quality      float64 `json:"quality"`
	Context      float64 `json:"context"`
}

// RiskFactor is a concrete risk with its severity and suggested mitigation.
type RiskFactor struct {
	Factor     string `json:"factor"`
	Level      string `json:"level"` // low, medium, high
	Mitigation string `json:"mitigation"`
}

// AlternativeComparison captures the deltas of one non-selected vendor versus
// the selected one.
type AlternativeComparison struct {
	VendorID       string  `json:"vendorId"`
	VendorName     string  `json:"vendorName"`
	PriceDelta     float64 `json:"priceDelta"` // alternative minus selected
	PriceDeltaPct  float64 `json:"priceDeltaPct"`
	RatingDelta    float64 `json:"ratingDelta"`
	LeadTimeDelta  int     `json:"leadTimeDelta"`
	WhyNotSelected string  `json:"whyNotSelected"`
}

// confidenceCategory maps a score range to a label. Ranges are evaluated top
// down; the first band containing the score wins.
type confidenceCategory struct {
	min   float64
	label string
}

var confidenceCategories = []confidenceCategory{
	{0.8, "High Confidence"},
	{0.65, "Good Confidence"},
	{0.5, "Moderate Confidence"},
	{0.3, "Low Confidence"},
	{0, "Very Low Confidence"},
}

// riskLeadTimeDays is the lead time above which delivery risk is flagged.
const riskLeadTimeDays = 7

// riskRatingFloor is the rating below which vendor quality risk is flagged.
const riskRatingFloor = 4.0

// riskPriceOverAveragePct flags price risk when the selected price exceeds the
// market average by more than this fraction.
const riskPriceOverAveragePct = 0.10

// Engine produces confidence scores, risk assessments and alternative
// analytics. Stateless.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// ScoreConfidence computes the structured confidence breakdown for the
// selected vendor against the full pool. The overall score is the weighted
// sum of the components using the default selection weights.
func (e *Engine) ScoreConfidence(ctx models.AssignmentContext, selected models.VendorOffer, pool []models.VendorOffer) ConfidenceScore {
	avg := averagePrice(pool)
	breakdown := ConfidenceBreakdown{
		Price:        priceComponent(selected, pool, avg),
		Vendor:       vendorComponent(selected),
		Availability: availabilityComponent(selected),
		Quality:      qualityComponent(selected),
		Context:      contextComponent(ctx, selected),
	}

	w := models.DefaultCriteria()
	overall := breakdown.Price*w.PriceWeight +
		breakdown.Quality*w.QualityWeight +
		breakdown.Vendor*w.ReliabilityWeight +
		breakdown.Availability*w.AvailabilityWeight +
		breakdown.Context*w.PreferenceWeight
	overall = clamp01(overall)

	return ConfidenceScore{
		Overall:    overall,
		Category:   categorize(overall),
		Components: breakdown,
		Factors:    describeFactors(breakdown, selected, avg),
	}
}

// priceComponent applies banded bonuses for proximity to the market average
// and a flat bonus for holding the best price in the pool.
func priceComponent(selected models.VendorOffer, pool []models.VendorOffer, avg float64) float64 {
	score := 0.5
	if avg > 0 {
		dev := math.Abs(selected.NormalizedPrice-avg) / avg
		switch {
		case dev <= 0.05:
			score += 0.2
		case dev <= 0.10:
			score += 0.15
		case dev <= 0.15:
			score += 0.1
		}
		if selected.NormalizedPrice < avg {
			score += 0.1
		}
	}
	if isBestPrice(selected, pool) {
		score += 0.2
	}
	return clamp01(score)
}

func vendorComponent(v models.VendorOffer) float64 {
	score := (v.Rating / 5) * 0.8
	if v.IsPreferred {
		score += 0.2
	}
	return clamp01(score)
}

func availabilityComponent(v models.VendorOffer) float64 {
	switch v.Availability {
	case models.AvailabilityAvailable:
		if v.LeadTime <= 3 {
			return 1
		}
		return 0.8
	case models.AvailabilityLimited:
		return 0.5
	default:
		return 0.1
	}
}

func qualityComponent(v models.VendorOffer) float64 {
	switch {
	case v.Rating >= 4.8:
		return 1.0
	case v.Rating >= 4.5:
		return 0.9
	case v.Rating >= 4.0:
		return 0.75
	case v.Rating >= 3.5:
		return 0.6
	case v.Rating >= 3.0:
		return 0.45
	default:
		return 0.3
	}
}

// contextComponent measures how well the offer fits the request's budget,
// urgency and quantity constraints.
func contextComponent(ctx models.AssignmentContext, v models.VendorOffer) float64 {
	score := 0.5
	if ctx.BudgetLimit != nil {
		total := v.NormalizedPrice * float64(ctx.Quantity)
		if total <= *ctx.BudgetLimit {
			score += 0.3
		} else {
			score -= 0.2
		}
	}
	urgent := ctx.UrgencyLevel == models.UrgencyHigh || ctx.UrgencyLevel == models.UrgencyUrgent
	if urgent && v.LeadTime <= 3 {
		score += 0.2
	}
	if urgent && v.LeadTime > riskLeadTimeDays {
		score -= 0.2
	}
	if v.MinQuantity <= ctx.Quantity {
		score += 0.1
	} else {
		score -= 0.3
	}
	return clamp01(score)
}

func categorize(score float64) string {
	for _, c := range confidenceCategories {
		if score >= c.min {
			return c.label
		}
	}
	return confidenceCategories[len(confidenceCategories)-1].label
}

func describeFactors(b ConfidenceBreakdown, v models.VendorOffer, avg float64) []string {
	var factors []string
	if b.Price >= 0.8 {
		factors = append(factors, "pricing is well positioned against the market average")
	}
	if b.Quality >= 0.9 {
		factors = append(factors, fmt.Sprintf("vendor rating of %.1f is among the strongest available", v.Rating))
	}
	if b.Availability >= 0.8 {
		factors = append(factors, "stock is available with a short lead time")
	}
	if v.IsPreferred {
		factors = append(factors, "vendor holds preferred supplier status")
	}
	if avg > 0 && v.NormalizedPrice > avg {
		factors = append(factors, "price is above the market average for this pool")
	}
	return factors
}

// AssessRisks enumerates concrete risk factors crossed by the selected offer.
func (e *Engine) AssessRisks(ctx models.AssignmentContext, selected models.VendorOffer, pool []models.VendorOffer) []RiskFactor {
	var risks []RiskFactor
	avg := averagePrice(pool)
	if avg > 0 && selected.NormalizedPrice > avg*(1+riskPriceOverAveragePct) {
		risks = append(risks, RiskFactor{
			Factor:     fmt.Sprintf("price is %.1f%% above the pool average", (selected.NormalizedPrice/avg-1)*100),
			Level:      "medium",
			Mitigation: "negotiate the quote or revisit lower-priced alternatives before committing",
		})
	}
	if selected.Availability == models.AvailabilityLimited {
		risks = append(risks, RiskFactor{
			Factor:     "vendor reports limited availability",
			Level:      "medium",
			Mitigation: "confirm stock with the vendor and line up a backup supplier",
		})
	}
	if selected.Availability == models.AvailabilityUnavailable {
		risks = append(risks, RiskFactor{
			Factor:     "vendor is currently unavailable for this product",
			Level:      "high",
			Mitigation: "switch to an available vendor or trigger emergency procurement",
		})
	}
	if selected.LeadTime > riskLeadTimeDays {
		risks = append(risks, RiskFactor{
			Factor:     fmt.Sprintf("lead time of %d days exceeds the %d-day norm", selected.LeadTime, riskLeadTimeDays),
			Level:      "medium",
			Mitigation: "adjust the requested date or expedite shipping",
		})
	}
	if selected.Rating < riskRatingFloor {
		risks = append(risks, RiskFactor{
			Factor:     fmt.Sprintf("vendor rating %.1f is below the %.1f quality floor", selected.Rating, riskRatingFloor),
			Level:      "high",
			Mitigation: "add incoming inspection or prefer a higher-rated vendor",
		})
	}
	if ctx.BudgetLimit != nil && selected.NormalizedPrice*float64(ctx.Quantity) > *ctx.BudgetLimit {
		risks = append(risks, RiskFactor{
			Factor:     "total cost exceeds the line-item budget limit",
			Level:      "high",
			Mitigation: "request budget approval or reduce the ordered quantity",
		})
	}
	return risks
}

// CompareAlternatives produces delta analytics for up to three non-selected
// vendors. Deterministic: same input order yields the same output.
func (e *Engine) CompareAlternatives(selected models.VendorOffer, pool []models.VendorOffer) []AlternativeComparison {
	var out []AlternativeComparison
	for _, v := range pool {
		if v.VendorID == selected.VendorID {
			continue
		}
		if len(out) == 3 {
			break
		}
		cmp := AlternativeComparison{
			VendorID:      v.VendorID,
			VendorName:    v.VendorName,
			PriceDelta:    v.NormalizedPrice - selected.NormalizedPrice,
			RatingDelta:   v.Rating - selected.Rating,
			LeadTimeDelta: v.LeadTime - selected.LeadTime,
		}
		if selected.NormalizedPrice > 0 {
			cmp.PriceDeltaPct = cmp.PriceDelta / selected.NormalizedPrice * 100
		}
		cmp.WhyNotSelected = whyNot(cmp, v, selected)
		out = append(out, cmp)
	}
	return out
}

func whyNot(cmp AlternativeComparison, alt, selected models.VendorOffer) string {
	var reasons []string
	if cmp.PriceDelta > 0 {
		reasons = append(reasons, fmt.Sprintf("%.1f%% higher price", cmp.PriceDeltaPct))
	}
	if cmp.RatingDelta < 0 {
		reasons = append(reasons, fmt.Sprintf("rating %.1f below selection", -cmp.RatingDelta))
	}
	if cmp.LeadTimeDelta > 0 {
		reasons = append(reasons, fmt.Sprintf("%d days longer lead time", cmp.LeadTimeDelta))
	}
	if !alt.IsPreferred && selected.IsPreferred {
		reasons = append(reasons, "not a preferred vendor")
	}
	if len(reasons) == 0 {
		return "narrowly outscored by the selected vendor"
	}
	return strings.Join(reasons, ", ")
}

func averagePrice(pool []models.VendorOffer) float64 {
	if len(pool) == 0 {
		return 0
	}
	var sum float64
	for _, v := range pool {
		sum += v.NormalizedPrice
	}
	return sum / float64(len(pool))
}

func isBestPrice(v models.VendorOffer, pool []models.VendorOffer) bool {
	for _, p := range pool {
		if p.NormalizedPrice < v.NormalizedPrice {
			return false
		}
	}
	return true
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
