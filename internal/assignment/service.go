// Package assignment contains the price assignment service (the primary
// entry point for a single line item) and the orchestrating engine built on
// top of it.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/procureline/engine/internal/audit"
	"github.com/procureline/engine/internal/models"
	"github.com/procureline/engine/internal/rules"
	"github.com/procureline/engine/internal/selection"
	"github.com/procureline/engine/internal/vendors"
)

var ErrNoVendorOptions = errors.New("no vendor options")

// Confidence bounds for the scalar confidence model. Confidence is never
// exactly zero: the floor is 0.1.
const (
	ConfidenceFloor   = 0.1
	ConfidenceCeiling = 1.0
	confidenceBase    = 0.5
)

// Core confidence criterion weights. These are intentionally distinct from
// the selection weights; this is the more conservative second model.
const (
	confWeightPrice        = 0.35
	confWeightReliability  = 0.25
	confWeightQuality      = 0.20
	confWeightAvailability = 0.15
)

// Service resolves vendor options, runs selection and produces the core
// PriceAssignmentResult. Every successful assignment is appended to the
// audit trail.
type Service struct {
	provider  vendors.Provider
	ruleStore rules.Store
	selector  *selection.Algorithm
	auditLog  audit.Store
	criteria  models.VendorSelectionCriteria
	now       func() time.Time
}

func NewService(provider vendors.Provider, ruleStore rules.Store, selector *selection.Algorithm, auditLog audit.Store, criteria models.VendorSelectionCriteria) *Service {
	return &Service{
		provider:  provider,
		ruleStore: ruleStore,
		selector:  selector,
		auditLog:  auditLog,
		criteria:  criteria,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SelectForContext resolves the vendor pool and runs selection without any
// audit side effect. It backs both the committing assignment path and the
// read-only recommendation preview.
func (s *Service) SelectForContext(ctx context.Context, actx models.AssignmentContext) (models.VendorSelectionResult, []models.VendorOffer, error) {
	pool, err := s.resolveVendors(ctx, actx)
	if err != nil {
		return models.VendorSelectionResult{}, nil, err
	}
	if len(pool) == 0 {
		return models.VendorSelectionResult{}, nil, ErrNoVendorOptions
	}

	ruleSet, err := s.ruleStore.ActiveRules(ctx)
	if err != nil {
		return models.VendorSelectionResult{}, nil, fmt.Errorf("load business rules: %w", err)
	}

	sel, err := s.selector.SelectOptimalVendor(actx, pool, ruleSet, s.criteria)
	if err != nil {
		return models.VendorSelectionResult{}, nil, err
	}
	return sel, pool, nil
}

// AssignOptimalPrice selects the optimal vendor for the context and returns
// the assignment with confidence, reasoning and up to three alternatives.
func (s *Service) AssignOptimalPrice(ctx context.Context, actx models.AssignmentContext) (models.PriceAssignmentResult, error) {
	sel, pool, err := s.SelectForContext(ctx, actx)
	if err != nil {
		return models.PriceAssignmentResult{}, err
	}

	result := s.buildResult(actx, sel, pool)
	if err := s.logAssignment(ctx, actx, result); err != nil {
		// The assignment itself succeeded; losing the audit append is logged
		// but not fatal to the caller.
		log.Printf("[assignment] audit append for %s failed: %v", actx.LineItemID, err)
	}

	return result, nil
}

// buildResult materializes the assignment from a selection without any side
// effect. The engine checks business constraints on this result before the
// audit append happens, so a rejected assignment is never recorded as
// completed.
func (s *Service) buildResult(actx models.AssignmentContext, sel models.VendorSelectionResult, pool []models.VendorOffer) models.PriceAssignmentResult {
	selected := sel.SelectedVendor.Offer
	return models.PriceAssignmentResult{
		LineItemID:       actx.LineItemID,
		VendorID:         selected.VendorID,
		VendorName:       selected.VendorName,
		AssignedPrice:    selected.Price,
		Currency:         selected.Currency,
		NormalizedPrice:  selected.NormalizedPrice,
		AssignmentReason: renderReason(selected, pool),
		Confidence:       coreConfidence(selected, pool),
		Alternatives:     sel.AlternativeVendors,
		RuleApplied:      sel.RuleApplied,
		AssignmentDate:   s.now().UTC(),
	}
}

func (s *Service) resolveVendors(ctx context.Context, actx models.AssignmentContext) ([]models.VendorOffer, error) {
	if len(actx.AvailableVendors) > 0 {
		return actx.AvailableVendors, nil
	}
	if s.provider == nil {
		return nil, nil
	}
	offers, err := s.provider.Options(ctx, vendors.Query{
		ProductID:  actx.ProductID,
		CategoryID: actx.CategoryID,
		Location:   actx.Location,
		Quantity:   actx.Quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch vendor options: %w", err)
	}
	return offers, nil
}

func (s *Service) logAssignment(ctx context.Context, actx models.AssignmentContext, result models.PriceAssignmentResult) error {
	if s.auditLog == nil {
		return nil
	}
	ev := &audit.AssignmentEvent{
		Type:     audit.EventAssignmentCompleted,
		PRItemID: actx.LineItemID,
		Action:   "price_assigned",
		Details: map[string]interface{}{
			"vendorId":   result.VendorID,
			"price":      result.AssignedPrice,
			"currency":   result.Currency,
			"reason":     result.AssignmentReason,
			"confidence": result.Confidence,
		},
		AfterState: map[string]interface{}{
			"vendorId":        result.VendorID,
			"normalizedPrice": result.NormalizedPrice,
		},
		Ts: s.now().UTC(),
	}
	return s.auditLog.AppendEvent(ctx, ev)
}

// coreConfidence is the scalar confidence model: base 0.5, adjusted by
// weighted criteria each scaled by a favorability multiplier, clamped to
// [0.1, 1.0]. A fully neutral vendor lands at 0.5.
func coreConfidence(selected models.VendorOffer, pool []models.VendorOffer) float64 {
	avg := averagePrice(pool)

	adjust := confWeightPrice*(priceMultiplier(selected, avg)-1) +
		confWeightReliability*(reliabilityMultiplier(selected)-1) +
		confWeightQuality*(qualityMultiplier(selected)-1) +
		confWeightAvailability*(availabilityMultiplier(selected)-1)

	confidence := confidenceBase + 2*adjust
	if confidence < ConfidenceFloor {
		return ConfidenceFloor
	}
	if confidence > ConfidenceCeiling {
		return ConfidenceCeiling
	}
	return confidence
}

func priceMultiplier(v models.VendorOffer, avg float64) float64 {
	if avg <= 0 {
		return 1.0
	}
	ratio := v.NormalizedPrice / avg
	switch {
	case ratio <= 0.85:
		return 1.2
	case ratio <= 0.95:
		return 1.0
	case ratio <= 1.0:
		return 0.8
	case ratio <= 1.05:
		return 0.6
	case ratio <= 1.15:
		return 0.4
	default:
		return 0.2
	}
}

func reliabilityMultiplier(v models.VendorOffer) float64 {
	switch {
	case v.IsPreferred && v.Rating >= 4.5:
		return 1.2
	case v.IsPreferred:
		return 1.0
	case v.Rating >= 4.0:
		return 0.8
	case v.Rating >= 3.5:
		return 0.6
	case v.Rating >= 3.0:
		return 0.4
	default:
		return 0.2
	}
}

func qualityMultiplier(v models.VendorOffer) float64 {
	switch {
	case v.Rating >= 4.5:
		return 1.2
	case v.Rating >= 4.0:
		return 1.0
	case v.Rating >= 3.5:
		return 0.8
	case v.Rating >= 3.0:
		return 0.6
	case v.Rating >= 2.5:
		return 0.4
	default:
		return 0.2
	}
}

func availabilityMultiplier(v models.VendorOffer) float64 {
	switch v.Availability {
	case models.AvailabilityAvailable:
		if v.LeadTime <= 3 {
			return 1.2
		}
		return 1.0
	case models.AvailabilityLimited:
		switch {
		case v.LeadTime <= 3:
			return 0.8
		case v.LeadTime <= 7:
			return 0.6
		default:
			return 0.4
		}
	default:
		return 0.2
	}
}

// reasonTemplate pairs a predicate with its template. Templates are evaluated
// in table order; the first matching predicate wins. Placeholders
// {vendorName}, {price}, {currency}, {rating} and {leadTime} are substituted
// verbatim.
type reasonTemplate struct {
	name      string
	predicate func(selected models.VendorOffer, pool []models.VendorOffer) bool
	template  string
}

var reasonTemplates = []reasonTemplate{
	{
		name: "only_available",
		predicate: func(selected models.VendorOffer, pool []models.VendorOffer) bool {
			if selected.Availability != models.AvailabilityAvailable {
				return false
			}
			for _, v := range pool {
				if v.VendorID != selected.VendorID && v.Availability == models.AvailabilityAvailable {
					return false
				}
			}
			return true
		},
		template: "{vendorName} is the only vendor with the product currently available ({leadTime} day lead time).",
	},
	{
		name: "best_price_preferred",
		predicate: func(selected models.VendorOffer, pool []models.VendorOffer) bool {
			return selected.IsPreferred && hasBestPrice(selected, pool)
		},
		template: "{vendorName} offers the best price of {price} {currency} and is a preferred supplier.",
	},
	{
		name: "quality_over_price",
		predicate: func(selected models.VendorOffer, pool []models.VendorOffer) bool {
			return selected.Rating >= 4.5 && !hasBestPrice(selected, pool)
		},
		template: "{vendorName} was chosen for its {rating}-star quality record despite not having the lowest price.",
	},
	{
		name: "strategic_relationship",
		predicate: func(selected models.VendorOffer, pool []models.VendorOffer) bool {
			return selected.IsPreferred && !hasBestPrice(selected, pool)
		},
		template: "{vendorName} was chosen to maintain the strategic supplier relationship at {price} {currency}.",
	},
	{
		name: "balanced",
		predicate: func(selected models.VendorOffer, pool []models.VendorOffer) bool {
			return true
		},
		template: "{vendorName} offers the best balance of price ({price} {currency}), quality ({rating} stars) and delivery ({leadTime} days).",
	},
}

func renderReason(selected models.VendorOffer, pool []models.VendorOffer) string {
	for _, t := range reasonTemplates {
		if t.predicate(selected, pool) {
			return substitute(t.template, selected)
		}
	}
	// The balanced template always matches; this is unreachable.
	return substitute(reasonTemplates[len(reasonTemplates)-1].template, selected)
}

func substitute(template string, v models.VendorOffer) string {
	r := strings.NewReplacer(
		"{vendorName}", v.VendorName,
		"{price}", fmt.Sprintf("%.2f", v.Price),
		"{currency}", v.Currency,
		"{rating}", fmt.Sprintf("%.1f", v.Rating),
		"{leadTime}", fmt.Sprintf("%d", v.LeadTime),
	)
	return r.Replace(template)
}

func hasBestPrice(selected models.VendorOffer, pool []models.VendorOffer) bool {
	for _, v := range pool {
		if v.NormalizedPrice < selected.NormalizedPrice {
			return false
		}
	}
	return true
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
