package assignment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/procureline/engine/internal/alternatives"
	"github.com/procureline/engine/internal/audit"
	"github.com/procureline/engine/internal/fallback"
	"github.com/procureline/engine/internal/models"
	"github.com/procureline/engine/internal/reasoning"
	"github.com/procureline/engine/internal/selection"
)

// Outcome is the single return shape of ExecuteAssignment: exactly one of
// Assignment or Fallback is set.
type Outcome struct {
	Assignment *models.PriceAssignmentResult `json:"assignment,omitempty"`
	Enrichment *Enrichment                   `json:"enrichment,omitempty"`
	Fallback   *models.FallbackResult        `json:"fallback,omitempty"`
}

// Enrichment carries the structured confidence breakdown, risk assessment
// and alternative analytics attached to a successful assignment.
type Enrichment struct {
	Confidence   reasoning.ConfidenceScore         `json:"confidence"`
	Risks        []reasoning.RiskFactor            `json:"risks,omitempty"`
	Comparisons  []reasoning.AlternativeComparison `json:"comparisons,omitempty"`
	Alternatives []alternatives.Option             `json:"alternatives,omitempty"`
}

// Recommendation is the read-only preview returned by GetRecommendations.
type Recommendation struct {
	RecommendedVendor models.ScoredVendor        `json:"recommendedVendor"`
	SelectionReason   string                     `json:"selectionReason"`
	Confidence        float64                    `json:"confidence"`
	ConfidenceDetail  reasoning.ConfidenceScore  `json:"confidenceDetail"`
	Alternatives      []models.AlternativeVendor `json:"alternatives"`
	Statistics        PoolStatistics             `json:"statistics"`
	RiskFactors       []reasoning.RiskFactor     `json:"riskFactors,omitempty"`
	Opportunities     []alternatives.Option      `json:"opportunities,omitempty"`
}

// PoolStatistics summarizes the vendor pool a recommendation was drawn from.
type PoolStatistics struct {
	VendorCount   int     `json:"vendorCount"`
	AveragePrice  float64 `json:"averagePrice"`
	LowestPrice   float64 `json:"lowestPrice"`
	HighestPrice  float64 `json:"highestPrice"`
	AverageRating float64 `json:"averageRating"`
}

// Validation is the read path over an item's audit history.
type Validation struct {
	CurrentAssignment map[string]interface{}  `json:"currentAssignment,omitempty"`
	History           []audit.AssignmentEvent `json:"history"`
	Integrity         ChainIntegrity          `json:"integrity"`
	Recommendations   []string                `json:"recommendations,omitempty"`
}

// ChainIntegrity reports whether an item's audit hash chain verifies.
type ChainIntegrity struct {
	Valid      bool   `json:"valid"`
	EventCount int    `json:"eventCount"`
	Error      string `json:"error,omitempty"`
}

// Metrics aggregates assignment activity over a date range.
type Metrics struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	TotalEvents       int       `json:"totalEvents"`
	Assignments       int       `json:"assignments"`
	Fallbacks         int       `json:"fallbacks"`
	Failures          int       `json:"failures"`
	Overrides         int       `json:"overrides"`
	AutomationRate    float64   `json:"automationRate"`
	OverrideRate      float64   `json:"overrideRate"`
	AverageConfidence float64   `json:"averageConfidence"`
	TrendDirection    string    `json:"trendDirection"` // improving, stable, declining
}

// Engine is the top-level orchestrator. ExecuteAssignment never propagates an
// error to the caller: every failure is converted into a FallbackResult.
type Engine struct {
	service      *Service
	reasoner     *reasoning.Engine
	alternatives *alternatives.Service
	fallback     *fallback.Service
	auditLog     audit.Store
	now          func() time.Time
}

func NewEngine(service *Service, reasoner *reasoning.Engine, alts *alternatives.Service, fb *fallback.Service, auditLog audit.Store) *Engine {
	return &Engine{
		service:      service,
		reasoner:     reasoner,
		alternatives: alts,
		fallback:     fb,
		auditLog:     auditLog,
		now:          time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ExecuteAssignment runs the full pipeline: validation, selection, budget and
// availability checks, enrichment and audit. On any failure the context is
// routed through the fallback service; if even that fails, a synthesized
// last-resort result is returned. The outcome is always well formed.
func (e *Engine) ExecuteAssignment(ctx context.Context, actx models.AssignmentContext) Outcome {
	if reason := validateContext(actx); reason != "" {
		return e.toFallback(ctx, models.AssignmentFailure{
			Type:      models.FailureSystemError,
			Reason:    reason,
			Context:   actx,
			Timestamp: e.now().UTC(),
		})
	}

	sel, pool, err := e.service.SelectForContext(ctx, actx)
	if err != nil {
		return e.toFallback(ctx, e.classifyError(err, actx))
	}

	selected := sel.SelectedVendor.Offer
	result := e.service.buildResult(actx, sel, pool)

	// Constraints run before the audit append: a rejected assignment must
	// leave exactly one audit event, the fallback one.
	if fail, ok := e.checkConstraints(actx, selected, result); ok {
		return e.toFallback(ctx, fail)
	}

	if err := e.service.logAssignment(ctx, actx, result); err != nil {
		log.Printf("[assignment.engine] audit append for %s failed: %v", actx.LineItemID, err)
	}

	enrichment := e.enrich(actx, selected, pool)
	return Outcome{Assignment: &result, Enrichment: enrichment}
}

func (e *Engine) enrich(actx models.AssignmentContext, selected models.VendorOffer, pool []models.VendorOffer) *Enrichment {
	return &Enrichment{
		Confidence:   e.reasoner.ScoreConfidence(actx, selected, pool),
		Risks:        e.reasoner.AssessRisks(actx, selected, pool),
		Comparisons:  e.reasoner.CompareAlternatives(selected, pool),
		Alternatives: e.alternatives.GenerateOptions(selected, pool, actx),
	}
}

// checkConstraints enforces business constraints that selection treats as
// soft penalties: budgets and selected-vendor availability.
func (e *Engine) checkConstraints(actx models.AssignmentContext, selected models.VendorOffer, result models.PriceAssignmentResult) (models.AssignmentFailure, bool) {
	if actx.BudgetLimit != nil && result.NormalizedPrice*float64(actx.Quantity) > *actx.BudgetLimit {
		return models.AssignmentFailure{
			Type:      models.FailureBudgetExceeded,
			Reason:    fmt.Sprintf("assigned total %.2f exceeds budget limit %.2f", result.NormalizedPrice*float64(actx.Quantity), *actx.BudgetLimit),
			Context:   actx,
			Timestamp: e.now().UTC(),
		}, true
	}
	if selected.Availability == models.AvailabilityUnavailable {
		return models.AssignmentFailure{
			Type:      models.FailureVendorUnavailable,
			Reason:    fmt.Sprintf("selected vendor %s is unavailable for this product", result.VendorName),
			Context:   actx,
			Timestamp: e.now().UTC(),
		}, true
	}
	return models.AssignmentFailure{}, false
}

// classifyError maps a primary-path error to a typed failure. Unknown errors
// are categorized heuristically from their message.
func (e *Engine) classifyError(err error, actx models.AssignmentContext) models.AssignmentFailure {
	failure := models.AssignmentFailure{
		Reason:    err.Error(),
		Context:   actx,
		Timestamp: e.now().UTC(),
	}
	switch {
	case errors.Is(err, ErrNoVendorOptions), errors.Is(err, selection.ErrNoVendorsAvailable):
		failure.Type = models.FailureNoVendorsAvailable
	default:
		failure.Type = classifyMessage(err.Error())
	}
	return failure
}

func classifyMessage(msg string) models.FailureType {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "budget"):
		return models.FailureBudgetExceeded
	case strings.Contains(lower, "rule"):
		return models.FailureBusinessRulesConflict
	case strings.Contains(lower, "unavailable"):
		return models.FailureVendorUnavailable
	case strings.Contains(lower, "vendor"):
		return models.FailureNoVendorsAvailable
	default:
		return models.FailureSystemError
	}
}

// toFallback routes a failure through the fallback service and audits the
// outcome. A fallback-service error produces the last-resort result; this
// path never returns an error.
func (e *Engine) toFallback(ctx context.Context, failure models.AssignmentFailure) Outcome {
	result, err := e.fallback.HandleFailure(ctx, failure)
	if err != nil {
		log.Printf("[assignment.engine] fallback for %s failed: %v", failure.Context.LineItemID, err)
		result = lastResort(failure)
	}
	e.logFallback(ctx, failure, result)
	return Outcome{Fallback: &result}
}

// lastResort is the synthesized result used when the fallback service itself
// fails.
func lastResort(failure models.AssignmentFailure) models.FallbackResult {
	return models.FallbackResult{
		Success:                    false,
		Strategy:                   models.StrategyManualReview,
		Action:                     "manual_intervention",
		Message:                    fmt.Sprintf("fallback handling failed for %s; manual intervention required", failure.Type),
		RequiresManualIntervention: true,
		NextSteps:                  []string{"escalate the line item to the procurement team"},
		EstimatedResolutionTime:    "24 hours",
		FallbackScenario:           "Last Resort",
	}
}

func (e *Engine) logFallback(ctx context.Context, failure models.AssignmentFailure, result models.FallbackResult) {
	if e.auditLog == nil {
		return
	}
	eventType := audit.EventAssignmentFallback
	if !result.Success {
		eventType = audit.EventAssignmentFailed
	}
	ev := &audit.AssignmentEvent{
		Type:     eventType,
		PRItemID: failure.Context.LineItemID,
		Action:   string(result.Strategy),
		Details: map[string]interface{}{
			"failureType":                string(failure.Type),
			"failureReason":              failure.Reason,
			"strategy":                   string(result.Strategy),
			"success":                    result.Success,
			"requiresManualIntervention": result.RequiresManualIntervention,
		},
		Ts: e.now().UTC(),
	}
	if err := e.auditLog.AppendEvent(ctx, ev); err != nil {
		log.Printf("[assignment.engine] audit append for %s failed: %v", failure.Context.LineItemID, err)
	}
}

// GetRecommendations previews the assignment decision without committing or
// auditing anything.
func (e *Engine) GetRecommendations(ctx context.Context, actx models.AssignmentContext) (Recommendation, error) {
	if reason := validateContext(actx); reason != "" {
		return Recommendation{}, fmt.Errorf("invalid context: %s", reason)
	}
	sel, pool, err := e.service.SelectForContext(ctx, actx)
	if err != nil {
		return Recommendation{}, err
	}
	selected := sel.SelectedVendor.Offer
	return Recommendation{
		RecommendedVendor: sel.SelectedVendor,
		SelectionReason:   sel.SelectionReason,
		Confidence:        coreConfidence(selected, pool),
		ConfidenceDetail:  e.reasoner.ScoreConfidence(actx, selected, pool),
		Alternatives:      sel.AlternativeVendors,
		Statistics:        poolStatistics(pool),
		RiskFactors:       e.reasoner.AssessRisks(actx, selected, pool),
		Opportunities:     e.alternatives.GenerateOptions(selected, pool, actx),
	}, nil
}

// ValidateAssignment reads an item's audit history and verifies the hash
// chain.
func (e *Engine) ValidateAssignment(ctx context.Context, prItemID string) (Validation, error) {
	history, err := e.auditLog.ListByItem(ctx, prItemID)
	if err != nil {
		return Validation{}, fmt.Errorf("read audit history: %w", err)
	}

	v := Validation{
		History:   history,
		Integrity: ChainIntegrity{Valid: true, EventCount: len(history)},
	}
	if err := audit.VerifyChain(history); err != nil {
		v.Integrity.Valid = false
		v.Integrity.Error = err.Error()
		v.Recommendations = append(v.Recommendations, "audit chain is inconsistent; investigate before trusting the recorded history")
	}

	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Type == audit.EventAssignmentCompleted {
			v.CurrentAssignment = history[i].Details
			break
		}
	}
	if v.CurrentAssignment == nil {
		v.Recommendations = append(v.Recommendations, "no completed assignment on record; run the assignment for this item")
	}
	return v, nil
}

// GetAssignmentMetrics aggregates audit activity over [start, end).
func (e *Engine) GetAssignmentMetrics(ctx context.Context, start, end time.Time) (Metrics, error) {
	events, err := e.auditLog.ListRange(ctx, start, end)
	if err != nil {
		return Metrics{}, fmt.Errorf("read audit range: %w", err)
	}

	m := Metrics{Start: start, End: end, TotalEvents: len(events)}
	var confidenceSum float64
	var confidenceCount int
	for _, ev := range events {
		switch ev.Type {
		case audit.EventAssignmentCompleted:
			m.Assignments++
			if c, ok := ev.Details["confidence"].(float64); ok {
				confidenceSum += c
				confidenceCount++
			}
		case audit.EventAssignmentFallback:
			m.Fallbacks++
		case audit.EventAssignmentFailed:
			m.Failures++
		case audit.EventAssignmentOverride:
			m.Overrides++
		}
	}

	attempts := m.Assignments + m.Fallbacks + m.Failures
	if attempts > 0 {
		m.AutomationRate = float64(m.Assignments) / float64(attempts)
	}
	if m.Assignments > 0 {
		m.OverrideRate = float64(m.Overrides) / float64(m.Assignments)
	}
	if confidenceCount > 0 {
		m.AverageConfidence = confidenceSum / float64(confidenceCount)
	}
	m.TrendDirection = trendDirection(events)
	return m, nil
}

// trendDirection compares automation in the first and second half of the
// window.
func trendDirection(events []audit.AssignmentEvent) string {
	if len(events) < 4 {
		return "stable"
	}
	mid := len(events) / 2
	first := automationRate(events[:mid])
	second := automationRate(events[mid:])
	switch {
	case second > first+0.05:
		return "improving"
	case second < first-0.05:
		return "declining"
	default:
		return "stable"
	}
}

func automationRate(events []audit.AssignmentEvent) float64 {
	var completed, attempts int
	for _, ev := range events {
		switch ev.Type {
		case audit.EventAssignmentCompleted:
			completed++
			attempts++
		case audit.EventAssignmentFallback, audit.EventAssignmentFailed:
			attempts++
		}
	}
	if attempts == 0 {
		return 0
	}
	return float64(completed) / float64(attempts)
}

// validateContext returns a human-readable reason when the context is
// invalid, or "" when it is usable.
func validateContext(actx models.AssignmentContext) string {
	if actx.LineItemID == "" {
		return "lineItemId is required"
	}
	if actx.ProductID == "" {
		return "productId is required"
	}
	if actx.Quantity <= 0 {
		return "quantity must be positive"
	}
	for _, v := range actx.AvailableVendors {
		if v.VendorID == "" || v.VendorName == "" {
			return "every vendor offer needs a vendorId and vendorName"
		}
		if v.Price <= 0 {
			return fmt.Sprintf("vendor %s has a non-positive price", v.VendorID)
		}
	}
	return ""
}

func poolStatistics(pool []models.VendorOffer) PoolStatistics {
	if len(pool) == 0 {
		return PoolStatistics{}
	}
	stats := PoolStatistics{
		VendorCount: len(pool),
		LowestPrice: pool[0].NormalizedPrice,
	}
	var priceSum, ratingSum float64
	for _, v := range pool {
		priceSum += v.NormalizedPrice
		ratingSum += v.Rating
		if v.NormalizedPrice < stats.LowestPrice {
			stats.LowestPrice = v.NormalizedPrice
		}
		if v.NormalizedPrice > stats.HighestPrice {
			stats.HighestPrice = v.NormalizedPrice
		}
	}
	stats.AveragePrice = priceSum / float64(len(pool))
	stats.AverageRating = ratingSum / float64(len(pool))
	return stats
}
