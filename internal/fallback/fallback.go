// Package fallback maps assignment failures to recovery strategies. Scenario
// selection always terminates in a defined state: when no configured scenario
// matches, a hardcoded default manual-review scenario applies.
package fallback

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/procureline/engine/internal/models"
)

// defaultReviewTimeoutHours applies when a scenario carries no timeout.
const defaultReviewTimeoutHours = 24

// Catalog supplies the configured fallback scenarios.
type Catalog interface {
	Scenarios(ctx context.Context) ([]models.FallbackScenario, error)
}

// MemoryCatalog is an in-memory scenario catalog.
type MemoryCatalog struct {
	scenarios []models.FallbackScenario
}

func NewMemoryCatalog(scenarios []models.FallbackScenario) *MemoryCatalog {
	return &MemoryCatalog{scenarios: scenarios}
}

func (c *MemoryCatalog) Scenarios(ctx context.Context) ([]models.FallbackScenario, error) {
	return c.scenarios, nil
}

// Service dispatches failures to strategies. Strategies are pure: a strategy
// that cannot find a qualifying vendor reports success=false in its result
// rather than returning an error.
type Service struct {
	catalog Catalog
	now     func() time.Time
}

func NewService(catalog Catalog) *Service {
	return &Service{catalog: catalog, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HandleFailure selects the best-matching scenario for the failure and
// executes its strategy. The returned result always has NextSteps and an
// estimated resolution time. An error is returned only when the catalog
// itself cannot be read; callers convert that into a last-resort result.
func (s *Service) HandleFailure(ctx context.Context, failure models.AssignmentFailure) (models.FallbackResult, error) {
	scenarios, err := s.catalog.Scenarios(ctx)
	if err != nil {
		return models.FallbackResult{}, fmt.Errorf("load fallback scenarios: %w", err)
	}

	scenario := selectScenario(scenarios, failure)
	result := s.execute(scenario, failure)
	result.FallbackScenario = scenario.Name
	return result, nil
}

// selectScenario filters scenarios by trigger conditions and picks the
// highest priority; ties keep catalog order. Falls back to the built-in
// default manual-review scenario.
func selectScenario(scenarios []models.FallbackScenario, failure models.AssignmentFailure) models.FallbackScenario {
	var matching []models.FallbackScenario
	for _, sc := range scenarios {
		if scenarioMatches(sc, failure) {
			matching = append(matching, sc)
		}
	}
	if len(matching) == 0 {
		return defaultScenario()
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Priority > matching[j].Priority
	})
	return matching[0]
}

func scenarioMatches(sc models.FallbackScenario, failure models.AssignmentFailure) bool {
	if !containsFailureType(sc.TriggerConditions.FailureTypes, failure.Type) {
		return false
	}
	tc := sc.TriggerConditions
	ctx := failure.Context
	if tc.MinVendorsAvailable > 0 && len(ctx.AvailableVendors) < tc.MinVendorsAvailable {
		return false
	}
	if len(tc.UrgencyLevels) > 0 && !containsUrgency(tc.UrgencyLevels, ctx.UrgencyLevel) {
		return false
	}
	if len(tc.CategoryRestrictions) > 0 && !containsString(tc.CategoryRestrictions, ctx.CategoryID) {
		return false
	}
	if tc.QuantityThreshold > 0 && ctx.Quantity < tc.QuantityThreshold {
		return false
	}
	return true
}

func defaultScenario() models.FallbackScenario {
	return models.FallbackScenario{
		ID:           "default-manual-review",
		Name:         "Default Manual Review",
		Priority:     0,
		Strategy:     models.FallbackStrategy{Type: models.StrategyManualReview},
		TimeoutHours: defaultReviewTimeoutHours,
	}
}

func (s *Service) execute(scenario models.FallbackScenario, failure models.AssignmentFailure) models.FallbackResult {
	switch scenario.Strategy.Type {
	case models.StrategyAlternativeVendor:
		return s.alternativeVendor(scenario, failure)
	case models.StrategyManualReview:
		return s.manualReview(scenario, failure)
	case models.StrategyPriceEscalation:
		return s.priceEscalation(scenario, failure)
	case models.StrategyDelayedAssignment:
		return s.delayedAssignment(scenario, failure)
	case models.StrategyEmergencyProcurement:
		return s.emergencyProcurement(scenario, failure)
	case models.StrategySplitOrder:
		return s.splitOrder(scenario, failure)
	default:
		// Unmatched strategy types terminate in manual intervention.
		return models.FallbackResult{
			Success:                    false,
			Strategy:                   scenario.Strategy.Type,
			Action:                     "manual_intervention",
			Message:                    fmt.Sprintf("no handler for strategy %q; manual intervention required", scenario.Strategy.Type),
			RequiresManualIntervention: true,
			NextSteps:                  []string{"route the purchase request to the procurement team"},
			EstimatedResolutionTime:    resolutionTime(scenario),
		}
	}
}

func (s *Service) alternativeVendor(scenario models.FallbackScenario, failure models.AssignmentFailure) models.FallbackResult {
	params := scenario.Strategy.Parameters
	minRating := paramFloat(params, "minRating", 0)
	requireAvailable := paramBool(params, "requireAvailable", true)
	preferredOnly := paramBool(params, "preferredOnly", false)
	selectBy := paramString(params, "selectBy", "rating")

	var candidates []models.VendorOffer
	for _, v := range failure.Context.AvailableVendors {
		if v.Rating < minRating {
			continue
		}
		if requireAvailable && v.Availability == models.AvailabilityUnavailable {
			continue
		}
		if preferredOnly && !v.IsPreferred {
			continue
		}
		candidates = append(candidates, v)
	}

	if len(candidates) == 0 {
		// No qualifying vendor: escalate to manual review instead of failing
		// silently.
		res := s.manualReview(scenario, failure)
		res.Success = false
		res.Strategy = models.StrategyAlternativeVendor
		res.Message = "no vendor met the alternative-vendor filters; escalated to manual review"
		return res
	}

	best := candidates[0]
	for _, v := range candidates[1:] {
		if betterBy(selectBy, v, best) {
			best = v
		}
	}
	vendor := best
	return models.FallbackResult{
		Success:                    true,
		Strategy:                   models.StrategyAlternativeVendor,
		Action:                     "vendor_substituted",
		Message:                    fmt.Sprintf("assigned alternative vendor %s (%s criterion)", vendor.VendorName, selectBy),
		AssignedVendor:             &vendor,
		RequiresManualIntervention: false,
		NextSteps: []string{
			fmt.Sprintf("confirm pricing and terms with %s", vendor.VendorName),
			"notify the requesting department of the vendor change",
		},
		EstimatedResolutionTime: "immediate",
	}
}

func betterBy(criterion string, a, b models.VendorOffer) bool {
	switch criterion {
	case "price":
		return a.NormalizedPrice < b.NormalizedPrice
	case "leadTime":
		return a.LeadTime < b.LeadTime
	default:
		return a.Rating > b.Rating
	}
}

func (s *Service) manualReview(scenario models.FallbackScenario, failure models.AssignmentFailure) models.FallbackResult {
	priority := reviewPriority(failure)
	due := s.now().Add(time.Duration(timeoutHours(scenario)) * time.Hour)
	return models.FallbackResult{
		Success:                    true,
		Strategy:                   models.StrategyManualReview,
		Action:                     "review_queued",
		Message:                    fmt.Sprintf("queued for %s-priority manual review", priority),
		RequiresManualIntervention: true,
		NextSteps: []string{
			fmt.Sprintf("procurement reviews line item %s by %s", failure.Context.LineItemID, due.Format(time.RFC3339)),
			"select a vendor manually or adjust the request",
		},
		EstimatedResolutionTime: fmt.Sprintf("%d hours", timeoutHours(scenario)),
		AdditionalInfo: map[string]interface{}{
			"reviewPriority": priority,
			"dueDate":        due.Format(time.RFC3339),
			"failureReason":  failure.Reason,
		},
	}
}

func reviewPriority(failure models.AssignmentFailure) string {
	switch {
	case failure.Context.UrgencyLevel == models.UrgencyUrgent:
		return "critical"
	case failure.Context.UrgencyLevel == models.UrgencyHigh,
		failure.Type == models.FailureBudgetExceeded:
		return "high"
	case failure.Type == models.FailureBusinessRulesConflict:
		return "medium"
	default:
		return "normal"
	}
}

func (s *Service) priceEscalation(scenario models.FallbackScenario, failure models.AssignmentFailure) models.FallbackResult {
	maxIncrease := paramFloat(scenario.Strategy.Parameters, "maxPriceIncrease", 0.15)
	ctx := failure.Context

	if ctx.BudgetLimit == nil {
		return models.FallbackResult{
			Success:                    false,
			Strategy:                   models.StrategyPriceEscalation,
			Action:                     "budget_approval_required",
			Message:                    "no budget limit on the request; escalation ceiling cannot be computed",
			RequiresManualIntervention: true,
			NextSteps:                  []string{"obtain a budget limit for the line item", "resubmit the assignment"},
			EstimatedResolutionTime:    resolutionTime(scenario),
		}
	}

	ceiling := *ctx.BudgetLimit * (1 + maxIncrease)
	var best *models.VendorOffer
	for i, v := range ctx.AvailableVendors {
		if v.NormalizedPrice*float64(ctx.Quantity) > ceiling {
			continue
		}
		if best == nil || v.Rating > best.Rating {
			best = &ctx.AvailableVendors[i]
		}
	}

	if best == nil {
		return models.FallbackResult{
			Success:                    false,
			Strategy:                   models.StrategyPriceEscalation,
			Action:                     "budget_approval_required",
			Message:                    fmt.Sprintf("no vendor fits even a %.0f%% raised budget ceiling", maxIncrease*100),
			RequiresManualIntervention: true,
			NextSteps:                  []string{"request a manual budget approval", "consider reducing the ordered quantity"},
			EstimatedResolutionTime:    resolutionTime(scenario),
			AdditionalInfo:             map[string]interface{}{"escalatedCeiling": ceiling},
		}
	}

	vendor := *best
	return models.FallbackResult{
		Success:                    true,
		Strategy:                   models.StrategyPriceEscalation,
		Action:                     "budget_escalated",
		Message:                    fmt.Sprintf("budget ceiling raised %.0f%%; assigned best-rated affordable vendor %s", maxIncrease*100, vendor.VendorName),
		AssignedVendor:             &vendor,
		RequiresManualIntervention: true,
		NextSteps: []string{
			"record the budget escalation for finance sign-off",
			fmt.Sprintf("confirm the order with %s", vendor.VendorName),
		},
		EstimatedResolutionTime: resolutionTime(scenario),
		AdditionalInfo:          map[string]interface{}{"escalatedCeiling": ceiling},
	}
}

func (s *Service) delayedAssignment(scenario models.FallbackScenario, failure models.AssignmentFailure) models.FallbackResult {
	delayHours := int(paramFloat(scenario.Strategy.Parameters, "delayHours", 24))
	retry := s.now().Add(time.Duration(delayHours) * time.Hour)
	return models.FallbackResult{
		Success:                    true,
		Strategy:                   models.StrategyDelayedAssignment,
		Action:                     "retry_scheduled",
		Message:                    fmt.Sprintf("assignment deferred; retry scheduled in %d hours", delayHours),
		RequiresManualIntervention: false,
		NextSteps: []string{
			fmt.Sprintf("scheduler re-invokes the assignment at %s", retry.Format(time.RFC3339)),
			"monitor vendor availability in the meantime",
		},
		EstimatedResolutionTime: fmt.Sprintf("%d hours", delayHours),
		RetryDate:               &retry,
	}
}

func (s *Service) emergencyProcurement(scenario models.FallbackScenario, failure models.AssignmentFailure) models.FallbackResult {
	var best *models.VendorOffer
	for i, v := range failure.Context.AvailableVendors {
		if v.Availability == models.AvailabilityUnavailable {
			continue
		}
		if best == nil || v.LeadTime < best.LeadTime {
			best = &failure.Context.AvailableVendors[i]
		}
	}
	if best == nil {
		return models.FallbackResult{
			Success:                    false,
			Strategy:                   models.StrategyEmergencyProcurement,
			Action:                     "no_emergency_source",
			Message:                    "no vendor with any availability for emergency procurement",
			RequiresManualIntervention: true,
			NextSteps:                  []string{"source the product outside the configured vendor list", "notify the requesting department of the delay"},
			EstimatedResolutionTime:    resolutionTime(scenario),
		}
	}

	vendor := *best
	return models.FallbackResult{
		Success:                    true,
		Strategy:                   models.StrategyEmergencyProcurement,
		Action:                     "emergency_order_prepared",
		Message:                    fmt.Sprintf("emergency order prepared with %s (%d day lead time)", vendor.VendorName, vendor.LeadTime),
		AssignedVendor:             &vendor,
		RequiresManualIntervention: true,
		NextSteps: []string{
			"obtain director-level approval for the emergency order",
			fmt.Sprintf("place the order with %s on approval", vendor.VendorName),
		},
		EstimatedResolutionTime: fmt.Sprintf("%d days", vendor.LeadTime),
		AdditionalInfo:          map[string]interface{}{"approvalLevel": "director"},
	}
}

// splitOrder divides the requested quantity across up to maxSplits
// partially-available vendors as evenly as possible. The remainder goes to
// the first vendors in list order.
func (s *Service) splitOrder(scenario models.FallbackScenario, failure models.AssignmentFailure) models.FallbackResult {
	maxSplits := int(paramFloat(scenario.Strategy.Parameters, "maxSplits", 3))
	if maxSplits < 2 {
		maxSplits = 2
	}

	var eligible []models.VendorOffer
	for _, v := range failure.Context.AvailableVendors {
		if v.Availability != models.AvailabilityUnavailable {
			eligible = append(eligible, v)
		}
	}
	if len(eligible) > maxSplits {
		eligible = eligible[:maxSplits]
	}
	if len(eligible) < 2 {
		return models.FallbackResult{
			Success:                    false,
			Strategy:                   models.StrategySplitOrder,
			Action:                     "split_not_possible",
			Message:                    "fewer than two vendors can supply the product; order cannot be split",
			RequiresManualIntervention: true,
			NextSteps:                  []string{"fall back to manual vendor sourcing", "reassess once more vendors stock the product"},
			EstimatedResolutionTime:    resolutionTime(scenario),
		}
	}

	qty := failure.Context.Quantity
	base := qty / len(eligible)
	remainder := qty % len(eligible)
	splits := make([]models.OrderSplit, 0, len(eligible))
	for i, v := range eligible {
		share := base
		if i < remainder {
			share++
		}
		splits = append(splits, models.OrderSplit{
			VendorID:   v.VendorID,
			VendorName: v.VendorName,
			Quantity:   share,
			Price:      v.NormalizedPrice,
		})
	}

	return models.FallbackResult{
		Success:                    true,
		Strategy:                   models.StrategySplitOrder,
		Action:                     "order_split",
		Message:                    fmt.Sprintf("quantity %d split across %d vendors", qty, len(eligible)),
		RequiresManualIntervention: false,
		NextSteps: []string{
			"issue a purchase order per split",
			"track each partial delivery separately",
		},
		EstimatedResolutionTime: "per vendor lead time",
		OrderSplits:             splits,
	}
}

func resolutionTime(scenario models.FallbackScenario) string {
	return fmt.Sprintf("%d hours", timeoutHours(scenario))
}

func timeoutHours(scenario models.FallbackScenario) int {
	if scenario.TimeoutHours > 0 {
		return scenario.TimeoutHours
	}
	return defaultReviewTimeoutHours
}

func containsFailureType(list []models.FailureType, t models.FailureType) bool {
	for _, f := range list {
		if f == t {
			return true
		}
	}
	return false
}

func containsUrgency(list []models.UrgencyLevel, u models.UrgencyLevel) bool {
	for _, l := range list {
		if l == u {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func paramFloat(params map[string]interface{}, key string, fallback float64) float64 {
	if params == nil {
		return fallback
	}
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func paramBool(params map[string]interface{}, key string, fallback bool) bool {
	if params == nil {
		return fallback
	}
	if v, ok := params[key].(bool); ok {
		return v
	}
	return fallback
}

func paramString(params map[string]interface{}, key, fallback string) string {
	if params == nil {
		return fallback
	}
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
