// Package alternatives scores and ranks the non-selected vendors for a
// completed assignment, with multi-factor comparison, switching cost and
// opportunity analysis.
package alternatives

import (
	"fmt"
	"math"
	"sort"

	"github.com/procureline/engine/internal/models"
)

// Recommendation levels for an alternative option.
const (
	StronglyRecommend = "strongly_recommend"
	Recommend         = "recommend"
	Consider          = "consider"
	NotRecommended    = "not_recommended"
)

// maxOptions caps how many alternatives are returned.
const maxOptions = 5

// switchingAdminCost is the flat administrative cost of changing vendors.
const switchingAdminCost = 50.0

// AdvantageBreakdown holds the independent advantage sub-scores of one
// alternative versus the selected vendor.
type AdvantageBreakdown struct {
	PriceAdvantage        float64 `json:"priceAdvantage"`        // [-0.8, 1.0]
	QualityAdvantage      float64 `json:"qualityAdvantage"`      // [-1, 1]
	DeliveryAdvantage     float64 `json:"deliveryAdvantage"`     // [-1, 1]
	RelationshipAdvantage float64 `json:"relationshipAdvantage"` // {-0.5, 0, 0.5}
	OpportunityScore      float64 `json:"opportunityScore"`
	RiskFactor            float64 `json:"riskFactor"`
}

// Option is one ranked alternative to the selected vendor.
type Option struct {
	Vendor         models.VendorOffer `json:"vendor"`
	Score          float64            `json:"score"` // [-1, 1]
	Breakdown      AdvantageBreakdown `json:"breakdown"`
	Recommendation string             `json:"recommendation"`
	SwitchingCost  float64            `json:"switchingCost"`
	PaybackPeriod  string             `json:"paybackPeriod"`
	Summary        string             `json:"summary"`
}

// Service generates alternative options. Stateless and deterministic.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// GenerateOptions ranks the non-selected vendors against the selected one and
// returns up to five options, best first. Ties keep input order.
func (s *Service) GenerateOptions(selected models.VendorOffer, available []models.VendorOffer, ctx models.AssignmentContext) []Option {
	var options []Option
	for _, v := range available {
		if v.VendorID == selected.VendorID {
			continue
		}
		options = append(options, s.evaluate(selected, v, ctx))
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Score > options[j].Score
	})
	if len(options) > maxOptions {
		options = options[:maxOptions]
	}
	return options
}

func (s *Service) evaluate(selected, alt models.VendorOffer, ctx models.AssignmentContext) Option {
	breakdown := AdvantageBreakdown{
		PriceAdvantage:        priceAdvantage(selected, alt),
		QualityAdvantage:      qualityAdvantage(selected, alt),
		DeliveryAdvantage:     deliveryAdvantage(selected, alt),
		RelationshipAdvantage: relationshipAdvantage(selected, alt),
		RiskFactor:            riskFactor(alt),
	}
	breakdown.OpportunityScore = opportunityScore(selected, alt, ctx, breakdown)

	score := breakdown.PriceAdvantage*0.35 +
		breakdown.QualityAdvantage*0.25 +
		breakdown.DeliveryAdvantage*0.20 +
		breakdown.RelationshipAdvantage*0.10 +
		breakdown.OpportunityScore*0.10 -
		breakdown.RiskFactor*0.2
	score = clamp(score, -1, 1)

	cost := switchingCost(selected, alt)
	return Option{
		Vendor:         alt,
		Score:          score,
		Breakdown:      breakdown,
		Recommendation: recommendation(score),
		SwitchingCost:  cost,
		PaybackPeriod:  paybackPeriod(selected, alt, ctx, cost),
		Summary:        summarize(selected, alt, breakdown),
	}
}

// priceAdvantage steps the percentage savings against the selected price into
// bands. Positive savings favor the alternative.
func priceAdvantage(selected, alt models.VendorOffer) float64 {
	if selected.NormalizedPrice <= 0 {
		return 0
	}
	savings := (selected.NormalizedPrice - alt.NormalizedPrice) / selected.NormalizedPrice
	switch {
	case savings >= 0.20:
		return 1.0
	case savings >= 0.10:
		return 0.7
	case savings >= 0.05:
		return 0.4
	case savings > 0:
		return 0.2
	case savings == 0:
		return 0
	case savings >= -0.05:
		return -0.2
	case savings >= -0.15:
		return -0.5
	default:
		return -0.8
	}
}

func qualityAdvantage(selected, alt models.VendorOffer) float64 {
	delta := alt.Rating - selected.Rating
	switch {
	case delta >= 1.0:
		return 1.0
	case delta >= 0.5:
		return 0.6
	case delta >= 0.2:
		return 0.3
	case delta > -0.2:
		return 0
	case delta > -0.5:
		return -0.3
	case delta > -1.0:
		return -0.6
	default:
		return -1.0
	}
}

// deliveryAdvantage blends availability delta (weight 0.6) with lead-time
// delta bands (weight 0.4).
func deliveryAdvantage(selected, alt models.VendorOffer) float64 {
	availDelta := float64(availabilityRank(alt.Availability)-availabilityRank(selected.Availability)) / 2

	leadDelta := selected.LeadTime - alt.LeadTime // positive = alternative is faster
	var leadComponent float64
	switch {
	case leadDelta >= 7:
		leadComponent = 1.0
	case leadDelta >= 3:
		leadComponent = 0.6
	case leadDelta >= 1:
		leadComponent = 0.3
	case leadDelta == 0:
		leadComponent = 0
	case leadDelta >= -2:
		leadComponent = -0.3
	case leadDelta >= -6:
		leadComponent = -0.6
	default:
		leadComponent = -1.0
	}

	return availDelta*0.6 + leadComponent*0.4
}

func availabilityRank(a models.Availability) int {
	switch a {
	case models.AvailabilityAvailable:
		return 2
	case models.AvailabilityLimited:
		return 1
	default:
		return 0
	}
}

func relationshipAdvantage(selected, alt models.VendorOffer) float64 {
	switch {
	case alt.IsPreferred && !selected.IsPreferred:
		return 0.5
	case !alt.IsPreferred && selected.IsPreferred:
		return -0.5
	default:
		return 0
	}
}

// opportunityScore accumulates bonuses for total-savings, quality, strategic
// and delivery wins.
func opportunityScore(selected, alt models.VendorOffer, ctx models.AssignmentContext, b AdvantageBreakdown) float64 {
	var score float64
	totalSavings := (selected.NormalizedPrice - alt.NormalizedPrice) * float64(ctx.Quantity)
	switch {
	case totalSavings > 500:
		score += 0.3
	case totalSavings > 100:
		score += 0.2
	case totalSavings > 0:
		score += 0.1
	}
	if alt.Rating-selected.Rating >= 0.5 {
		score += 0.2
	}
	if alt.IsPreferred {
		score += 0.2
	}
	if selected.LeadTime-alt.LeadTime >= 3 && alt.Availability == models.AvailabilityAvailable {
		score += 0.2
	}
	return clamp(score, 0, 1)
}

func riskFactor(alt models.VendorOffer) float64 {
	var risk float64
	if alt.Rating < 3.5 {
		risk += 0.4
	}
	switch alt.Availability {
	case models.AvailabilityUnavailable:
		risk += 0.5
	case models.AvailabilityLimited:
		risk += 0.2
	}
	if alt.LeadTime > 7 {
		risk += 0.2
	}
	return clamp(risk, 0, 1)
}

func recommendation(score float64) string {
	switch {
	case score > 0.3:
		return StronglyRecommend
	case score > 0.1:
		return Recommend
	case score > -0.1:
		return Consider
	default:
		return NotRecommended
	}
}

// switchingCost is the flat admin cost plus conditional penalties for
// relationship, quality and delivery regressions.
func switchingCost(selected, alt models.VendorOffer) float64 {
	cost := switchingAdminCost
	if selected.IsPreferred && !alt.IsPreferred {
		cost += 200
	}
	if alt.Rating-selected.Rating <= -0.5 {
		cost += 150
	}
	if alt.LeadTime > selected.LeadTime+3 {
		cost += 100
	}
	return cost
}

// paybackPeriod estimates how long the switching cost takes to recoup from
// monthly savings, assuming the requested quantity reorders monthly.
func paybackPeriod(selected, alt models.VendorOffer, ctx models.AssignmentContext, cost float64) string {
	monthlySavings := (selected.NormalizedPrice - alt.NormalizedPrice) * float64(ctx.Quantity)
	if monthlySavings <= 0 {
		return "no payback; switching increases cost"
	}
	months := cost / monthlySavings
	if months < 1 {
		return "payback within the first month"
	}
	return fmt.Sprintf("payback in approximately %d months", int(math.Ceil(months)))
}

func summarize(selected, alt models.VendorOffer, b AdvantageBreakdown) string {
	switch {
	case b.PriceAdvantage >= 0.4:
		return fmt.Sprintf("%s offers meaningful savings over %s", alt.VendorName, selected.VendorName)
	case b.QualityAdvantage >= 0.6:
		return fmt.Sprintf("%s brings a notably higher rating than %s", alt.VendorName, selected.VendorName)
	case b.DeliveryAdvantage >= 0.5:
		return fmt.Sprintf("%s can deliver materially faster than %s", alt.VendorName, selected.VendorName)
	default:
		return fmt.Sprintf("%s is a viable fallback to %s", alt.VendorName, selected.VendorName)
	}
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
