// Package selection orchestrates rule filtering, scoring and tie-break
// sorting to produce a ranked vendor list with a selection rationale.
package selection

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/procureline/engine/internal/models"
	"github.com/procureline/engine/internal/rules"
	"github.com/procureline/engine/internal/scoring"
)

var ErrNoVendorsAvailable = errors.New("no vendors available")

// maxAlternatives bounds how many runner-up vendors are surfaced.
const maxAlternatives = 3

// dominantFactorThreshold is the breakdown component value above which a
// factor is cited in the selection reasoning.
const dominantFactorThreshold = 0.8

// Algorithm combines the rule evaluator and the scorer.
type Algorithm struct {
	evaluator *rules.Evaluator
	scorer    *scoring.Scorer
}

func New(evaluator *rules.Evaluator, scorer *scoring.Scorer) *Algorithm {
	return &Algorithm{evaluator: evaluator, scorer: scorer}
}

// SelectOptimalVendor ranks vendorOptions for the context and returns the top
// vendor plus up to three alternatives. The sort is stable: equal scores
// prefer vendors whose minimum order quantity fits the request, then keep
// input order, which callers rely on for deterministic alternative picks.
func (a *Algorithm) SelectOptimalVendor(ctx models.AssignmentContext, vendorOptions []models.VendorOffer, ruleSet []models.BusinessRule, criteria models.VendorSelectionCriteria) (models.VendorSelectionResult, error) {
	if len(vendorOptions) == 0 {
		return models.VendorSelectionResult{}, ErrNoVendorsAvailable
	}
	if !scoring.ValidateCriteria(criteria) {
		return models.VendorSelectionResult{}, scoring.ErrInvalidCriteria
	}

	candidates := preFilter(ctx, vendorOptions, criteria)
	if len(candidates) == 0 {
		// Constraint pre-filtering removed everyone; score the original list
		// so constraint violations become penalties, not silent dead ends.
		candidates = vendorOptions
	}

	eval := a.evaluator.Evaluate(ruleSet, ctx, candidates)
	pool := eval.CandidatePool
	if len(pool) == 0 {
		// Rule filtering must never zero out all options silently.
		pool = vendorOptions
	}

	scored := make([]models.ScoredVendor, 0, len(pool))
	for _, v := range pool {
		scored = append(scored, a.scorer.Score(v, pool, criteria, eval.Boosts[v.VendorID]))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Total != scored[j].Total {
			return scored[i].Total > scored[j].Total
		}
		// Equal scores: a vendor that can serve the requested quantity ranks
		// ahead of one whose minimum order exceeds it.
		return servesQuantity(ctx, scored[i].Offer) && !servesQuantity(ctx, scored[j].Offer)
	})

	selected := scored[0]
	alternatives := buildAlternatives(selected, scored[1:])

	return models.VendorSelectionResult{
		SelectedVendor:     selected,
		AlternativeVendors: alternatives,
		RankedVendors:      scored,
		SelectionReason:    selectionReason(selected),
		RuleApplied:        eval.FilterRule,
	}, nil
}

// servesQuantity reports whether the offer's minimum order quantity allows
// the requested quantity.
func servesQuantity(ctx models.AssignmentContext, v models.VendorOffer) bool {
	return v.MinQuantity <= ctx.Quantity
}

// preFilter enforces minimum-quantity and availability constraints when the
// criteria explicitly request hard exclusion. Otherwise these remain scoring
// penalties only.
func preFilter(ctx models.AssignmentContext, vendors []models.VendorOffer, criteria models.VendorSelectionCriteria) []models.VendorOffer {
	if !criteria.EnforceMinQuantity && !criteria.ExcludeUnavailable {
		return vendors
	}
	out := make([]models.VendorOffer, 0, len(vendors))
	for _, v := range vendors {
		if criteria.EnforceMinQuantity && v.MinQuantity > ctx.Quantity {
			continue
		}
		if criteria.ExcludeUnavailable && v.Availability == models.AvailabilityUnavailable {
			continue
		}
		out = append(out, v)
	}
	return out
}

func buildAlternatives(selected models.ScoredVendor, rest []models.ScoredVendor) []models.AlternativeVendor {
	n := len(rest)
	if n > maxAlternatives {
		n = maxAlternatives
	}
	alts := make([]models.AlternativeVendor, 0, n)
	for _, sv := range rest[:n] {
		alts = append(alts, models.AlternativeVendor{
			VendorID:        sv.Offer.VendorID,
			VendorName:      sv.Offer.VendorName,
			Price:           sv.Offer.Price,
			Currency:        sv.Offer.Currency,
			NormalizedPrice: sv.Offer.NormalizedPrice,
			Score:           sv.Total,
			Reason:          whyNotSelected(selected, sv),
		})
	}
	return alts
}

// whyNotSelected lists the dominant negative factors versus the selected
// vendor, joined by commas.
func whyNotSelected(selected, alt models.ScoredVendor) string {
	var reasons []string
	if alt.Offer.NormalizedPrice > selected.Offer.NormalizedPrice && selected.Offer.NormalizedPrice > 0 {
		pct := (alt.Offer.NormalizedPrice - selected.Offer.NormalizedPrice) / selected.Offer.NormalizedPrice * 100
		reasons = append(reasons, fmt.Sprintf("%.1f%% higher price", pct))
	}
	if alt.Offer.Rating < selected.Offer.Rating {
		reasons = append(reasons, fmt.Sprintf("lower rating (%.1f vs %.1f)", alt.Offer.Rating, selected.Offer.Rating))
	}
	if alt.Offer.LeadTime > selected.Offer.LeadTime {
		reasons = append(reasons, fmt.Sprintf("longer lead time (%d vs %d days)", alt.Offer.LeadTime, selected.Offer.LeadTime))
	}
	if !alt.Offer.IsPreferred && selected.Offer.IsPreferred {
		reasons = append(reasons, "not a preferred vendor")
	}
	if len(reasons) == 0 {
		return "lower overall score"
	}
	return strings.Join(reasons, ", ")
}

// selectionReason cites every breakdown component above the dominant-factor
// threshold by name.
func selectionReason(sv models.ScoredVendor) string {
	var factors []string
	if sv.Breakdown.PriceScore > dominantFactorThreshold {
		factors = append(factors, "competitive pricing")
	}
	if sv.Breakdown.QualityScore > dominantFactorThreshold {
		factors = append(factors, "high quality rating")
	}
	if sv.Breakdown.ReliabilityScore > dominantFactorThreshold {
		factors = append(factors, "proven reliability")
	}
	if sv.Breakdown.AvailabilityScore > dominantFactorThreshold {
		factors = append(factors, "immediate availability")
	}
	if sv.Breakdown.PreferenceScore > dominantFactorThreshold {
		factors = append(factors, "preferred vendor status")
	}
	if sv.Breakdown.RuleBoost > 0 {
		factors = append(factors, "business rule compliance")
	}
	if len(factors) == 0 {
		return fmt.Sprintf("%s selected with the best overall score (%.2f)", sv.Offer.VendorName, sv.Total)
	}
	return fmt.Sprintf("%s selected for %s (score %.2f)", sv.Offer.VendorName, strings.Join(factors, ", "), sv.Total)
}
