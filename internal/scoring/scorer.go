// Package scoring computes normalized 0..1 vendor scores from weighted
// sub-scores: price competitiveness, quality, reliability, availability,
// preference, plus any rule boost.
package scoring

import (
	"errors"

	"github.com/procureline/engine/internal/models"
)

// WeightSumTolerance is the allowed deviation from 1.0 for the five criteria
// weights.
const WeightSumTolerance = 0.01

var ErrInvalidCriteria = errors.New("criteria weights must sum to 1.0")

// ValidateCriteria reports whether the five weights sum to 1.0 within
// tolerance. Weights are validated, never auto-normalized.
func ValidateCriteria(c models.VendorSelectionCriteria) bool {
	sum := c.PriceWeight + c.QualityWeight + c.ReliabilityWeight + c.AvailabilityWeight + c.PreferenceWeight
	diff := sum - 1.0
	if diff < 0 {
		diff = -diff
	}
	return diff <= WeightSumTolerance
}

// Scorer computes vendor scores against a candidate pool. Stateless and safe
// for concurrent use.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes the weighted total and breakdown for one vendor relative to
// the candidate pool. ruleBoost is additive on top of the weighted sum; the
// total is clamped to [0,1].
func (s *Scorer) Score(vendor models.VendorOffer, pool []models.VendorOffer, criteria models.VendorSelectionCriteria, ruleBoost float64) models.ScoredVendor {
	breakdown := models.ScoreBreakdown{
		PriceScore:        priceScore(vendor, pool),
		QualityScore:      qualityScore(vendor),
		ReliabilityScore:  reliabilityScore(vendor),
		AvailabilityScore: availabilityScore(vendor),
		PreferenceScore:   preferenceScore(vendor),
		RuleBoost:         ruleBoost,
	}

	total := breakdown.PriceScore*criteria.PriceWeight +
		breakdown.QualityScore*criteria.QualityWeight +
		breakdown.ReliabilityScore*criteria.ReliabilityWeight +
		breakdown.AvailabilityScore*criteria.AvailabilityWeight +
		breakdown.PreferenceScore*criteria.PreferenceWeight +
		ruleBoost

	return models.ScoredVendor{
		Offer:     vendor,
		Total:     clamp01(total),
		Breakdown: breakdown,
	}
}

// priceScore linearly normalizes the vendor's price against the pool's range.
// If all pool prices are equal every vendor scores 1 (no division by zero).
func priceScore(vendor models.VendorOffer, pool []models.VendorOffer) float64 {
	if len(pool) == 0 {
		return 1
	}
	min, max := pool[0].NormalizedPrice, pool[0].NormalizedPrice
	for _, v := range pool[1:] {
		if v.NormalizedPrice < min {
			min = v.NormalizedPrice
		}
		if v.NormalizedPrice > max {
			max = v.NormalizedPrice
		}
	}
	if max == min {
		return 1
	}
	return clamp01((max - vendor.NormalizedPrice) / (max - min))
}

func qualityScore(v models.VendorOffer) float64 {
	return clamp01(v.Rating / 5)
}

func reliabilityScore(v models.VendorOffer) float64 {
	score := (v.Rating / 5) * 0.8
	if v.IsPreferred {
		score += 0.2
	}
	return clamp01(score)
}

func availabilityScore(v models.VendorOffer) float64 {
	leadPenalty := float64(v.LeadTime) / 14
	switch v.Availability {
	case models.AvailabilityAvailable:
		return clamp01(1 - leadPenalty)
	case models.AvailabilityLimited:
		return clamp01(0.6 - leadPenalty)
	default:
		return 0.2
	}
}

func preferenceScore(v models.VendorOffer) float64 {
	if v.IsPreferred {
		return 1
	}
	return 0
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
