package fallback_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procureline/engine/internal/fallback"
	"github.com/procureline/engine/internal/models"
)

var frozen = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newService(scenarios []models.FallbackScenario) *fallback.Service {
	return fallback.NewService(fallback.NewMemoryCatalog(scenarios)).
		WithClock(func() time.Time { return frozen })
}

func failureWith(t models.FailureType, ctx models.AssignmentContext) models.AssignmentFailure {
	return models.AssignmentFailure{Type: t, Reason: "test failure", Context: ctx, Timestamp: frozen}
}

func fallbackVendors() []models.VendorOffer {
	return []models.VendorOffer{
		{VendorID: "v1", VendorName: "Reliable", NormalizedPrice: 100, Rating: 4.6, Availability: models.AvailabilityAvailable, LeadTime: 2},
		{VendorID: "v2", VendorName: "Cheap", NormalizedPrice: 80, Rating: 3.8, Availability: models.AvailabilityLimited, LeadTime: 6},
		{VendorID: "v3", VendorName: "Gone", NormalizedPrice: 60, Rating: 4.9, Availability: models.AvailabilityUnavailable, LeadTime: 1},
	}
}

func TestHandleFailureTotality(t *testing.T) {
	// Every failure type resolves to a defined result, never an error.
	svc := newService(fallback.DefaultScenarios())
	types := []models.FailureType{
		models.FailureNoVendorsAvailable,
		models.FailureBudgetExceeded,
		models.FailureBusinessRulesConflict,
		models.FailureVendorUnavailable,
		models.FailureSystemError,
	}
	for _, ft := range types {
		t.Run(string(ft), func(t *testing.T) {
			ctx := models.AssignmentContext{LineItemID: "pr-1", ProductID: "p-1", Quantity: 10, AvailableVendors: fallbackVendors()}
			res, err := svc.HandleFailure(context.Background(), failureWith(ft, ctx))
			require.NoError(t, err)
			assert.NotEmpty(t, res.NextSteps)
			assert.NotEmpty(t, res.EstimatedResolutionTime)
			assert.NotEmpty(t, res.FallbackScenario)
		})
	}
}

func TestDefaultScenarioWhenNoneMatch(t *testing.T) {
	svc := newService(nil)
	ctx := models.AssignmentContext{LineItemID: "pr-1", Quantity: 5}
	res, err := svc.HandleFailure(context.Background(), failureWith(models.FailureNoVendorsAvailable, ctx))
	require.NoError(t, err)
	assert.Equal(t, "Default Manual Review", res.FallbackScenario)
	assert.Equal(t, models.StrategyManualReview, res.Strategy)
	assert.True(t, res.RequiresManualIntervention)
	assert.Equal(t, "24 hours", res.EstimatedResolutionTime)
}

func TestHighestPriorityScenarioWins(t *testing.T) {
	svc := newService(fallback.DefaultScenarios())
	ctx := models.AssignmentContext{
		LineItemID: "pr-1", Quantity: 100, UrgencyLevel: models.UrgencyUrgent,
		AvailableVendors: fallbackVendors(),
	}
	// Urgent vendor_unavailable matches emergency procurement (90), the
	// substitute scenario (70) and the split scenario (60); 90 wins.
	res, err := svc.HandleFailure(context.Background(), failureWith(models.FailureVendorUnavailable, ctx))
	require.NoError(t, err)
	assert.Equal(t, "Urgent Emergency Procurement", res.FallbackScenario)
	assert.Equal(t, models.StrategyEmergencyProcurement, res.Strategy)
}

func TestAlternativeVendorSelectsBest(t *testing.T) {
	scenario := models.FallbackScenario{
		ID: "s", Name: "Substitute", Priority: 1,
		TriggerConditions: models.TriggerConditions{FailureTypes: []models.FailureType{models.FailureVendorUnavailable}},
		Strategy: models.FallbackStrategy{
			Type:       models.StrategyAlternativeVendor,
			Parameters: map[string]interface{}{"minRating": 3.5, "selectBy": "rating"},
		},
	}
	ctx := models.AssignmentContext{LineItemID: "pr-1", Quantity: 10, AvailableVendors: fallbackVendors()}
	res, err := newService([]models.FallbackScenario{scenario}).
		HandleFailure(context.Background(), failureWith(models.FailureVendorUnavailable, ctx))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.AssignedVendor)
	// v3 is excluded (unavailable); v1 outranks v2.
	assert.Equal(t, "v1", res.AssignedVendor.VendorID)
	assert.False(t, res.RequiresManualIntervention)
}

func TestAlternativeVendorNoCandidatesEscalates(t *testing.T) {
	scenario := models.FallbackScenario{
		ID: "s", Name: "Substitute", Priority: 1,
		TriggerConditions: models.TriggerConditions{FailureTypes: []models.FailureType{models.FailureVendorUnavailable}},
		Strategy: models.FallbackStrategy{
			Type:       models.StrategyAlternativeVendor,
			Parameters: map[string]interface{}{"minRating": 5.0},
		},
	}
	ctx := models.AssignmentContext{LineItemID: "pr-1", Quantity: 10, AvailableVendors: fallbackVendors()}
	res, err := newService([]models.FallbackScenario{scenario}).
		HandleFailure(context.Background(), failureWith(models.FailureVendorUnavailable, ctx))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.StrategyAlternativeVendor, res.Strategy)
	assert.True(t, res.RequiresManualIntervention)
}

func TestManualReviewPriorityAndDueDate(t *testing.T) {
	svc := newService(nil)
	ctx := models.AssignmentContext{LineItemID: "pr-1", Quantity: 1, UrgencyLevel: models.UrgencyUrgent}
	res, err := svc.HandleFailure(context.Background(), failureWith(models.FailureSystemError, ctx))
	require.NoError(t, err)
	assert.Equal(t, "critical", res.AdditionalInfo["reviewPriority"])
	assert.Equal(t, frozen.Add(24*time.Hour).Format(time.RFC3339), res.AdditionalInfo["dueDate"])
}

func TestPriceEscalation(t *testing.T) {
	budget := 500.0
	ctx := models.AssignmentContext{
		LineItemID: "pr-1", Quantity: 5, BudgetLimit: &budget,
		AvailableVendors: []models.VendorOffer{
			// 5 * 110 = 550 fits the 575 ceiling; 5 * 120 = 600 does not.
			{VendorID: "fits", VendorName: "Fits", NormalizedPrice: 110, Rating: 4.0, Availability: models.AvailabilityAvailable},
			{VendorID: "over", VendorName: "Over", NormalizedPrice: 120, Rating: 5.0, Availability: models.AvailabilityAvailable},
		},
	}
	res, err := newService(fallback.DefaultScenarios()).
		HandleFailure(context.Background(), failureWith(models.FailureBudgetExceeded, ctx))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.AssignedVendor)
	assert.Equal(t, "fits", res.AssignedVendor.VendorID)
	assert.True(t, res.RequiresManualIntervention, "escalated budgets need sign-off")
	assert.InDelta(t, 575.0, res.AdditionalInfo["escalatedCeiling"].(float64), 1e-9)
}

func TestPriceEscalationNoneAffordable(t *testing.T) {
	budget := 100.0
	ctx := models.AssignmentContext{
		LineItemID: "pr-1", Quantity: 10, BudgetLimit: &budget,
		AvailableVendors: fallbackVendors(),
	}
	res, err := newService(fallback.DefaultScenarios()).
		HandleFailure(context.Background(), failureWith(models.FailureBudgetExceeded, ctx))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "budget_approval_required", res.Action)
	assert.Nil(t, res.AssignedVendor)
}

func TestPriceEscalationNoBudget(t *testing.T) {
	ctx := models.AssignmentContext{LineItemID: "pr-1", Quantity: 10, AvailableVendors: fallbackVendors()}
	res, err := newService(fallback.DefaultScenarios()).
		HandleFailure(context.Background(), failureWith(models.FailureBudgetExceeded, ctx))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "budget_approval_required", res.Action)
}

func TestDelayedAssignmentSchedulesRetry(t *testing.T) {
	ctx := models.AssignmentContext{LineItemID: "pr-1", Quantity: 10, UrgencyLevel: models.UrgencyLow}
	res, err := newService(fallback.DefaultScenarios()).
		HandleFailure(context.Background(), failureWith(models.FailureNoVendorsAvailable, ctx))
	require.NoError(t, err)
	assert.Equal(t, models.StrategyDelayedAssignment, res.Strategy)
	require.NotNil(t, res.RetryDate)
	assert.Equal(t, frozen.Add(24*time.Hour), *res.RetryDate)
	assert.Nil(t, res.AssignedVendor, "no vendor is assigned before the retry")
}

func TestEmergencyProcurementShortestLead(t *testing.T) {
	scenario := models.FallbackScenario{
		ID: "e", Name: "Emergency", Priority: 1,
		TriggerConditions: models.TriggerConditions{FailureTypes: []models.FailureType{models.FailureVendorUnavailable}},
		Strategy:          models.FallbackStrategy{Type: models.StrategyEmergencyProcurement},
	}
	ctx := models.AssignmentContext{LineItemID: "pr-1", Quantity: 10, AvailableVendors: fallbackVendors()}
	res, err := newService([]models.FallbackScenario{scenario}).
		HandleFailure(context.Background(), failureWith(models.FailureVendorUnavailable, ctx))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.AssignedVendor)
	// v3 has the shortest lead but is unavailable; v1 (2 days) beats v2.
	assert.Equal(t, "v1", res.AssignedVendor.VendorID)
	assert.Equal(t, "director", res.AdditionalInfo["approvalLevel"])
	assert.True(t, res.RequiresManualIntervention)
}

func TestSplitOrderDistributesRemainder(t *testing.T) {
	scenario := models.FallbackScenario{
		ID: "sp", Name: "Split", Priority: 1,
		TriggerConditions: models.TriggerConditions{FailureTypes: []models.FailureType{models.FailureNoVendorsAvailable}},
		Strategy: models.FallbackStrategy{
			Type:       models.StrategySplitOrder,
			Parameters: map[string]interface{}{"maxSplits": 3},
		},
	}
	ctx := models.AssignmentContext{LineItemID: "pr-1", Quantity: 7, AvailableVendors: fallbackVendors()}
	res, err := newService([]models.FallbackScenario{scenario}).
		HandleFailure(context.Background(), failureWith(models.FailureNoVendorsAvailable, ctx))
	require.NoError(t, err)
	assert.True(t, res.Success)
	// v3 is unavailable; 7 across v1 and v2 is 4 + 3 with the extra unit on
	// the first vendor in list order.
	require.Len(t, res.OrderSplits, 2)
	assert.Equal(t, "v1", res.OrderSplits[0].VendorID)
	assert.Equal(t, 4, res.OrderSplits[0].Quantity)
	assert.Equal(t, "v2", res.OrderSplits[1].VendorID)
	assert.Equal(t, 3, res.OrderSplits[1].Quantity)

	var total int
	for _, sp := range res.OrderSplits {
		total += sp.Quantity
	}
	assert.Equal(t, ctx.Quantity, total)
}

func TestSplitOrderTooFewVendors(t *testing.T) {
	scenario := models.FallbackScenario{
		ID: "sp", Name: "Split", Priority: 1,
		TriggerConditions: models.TriggerConditions{FailureTypes: []models.FailureType{models.FailureNoVendorsAvailable}},
		Strategy:          models.FallbackStrategy{Type: models.StrategySplitOrder},
	}
	ctx := models.AssignmentContext{
		LineItemID: "pr-1", Quantity: 10,
		AvailableVendors: []models.VendorOffer{
			{VendorID: "only", VendorName: "Only", Availability: models.AvailabilityAvailable},
		},
	}
	res, err := newService([]models.FallbackScenario{scenario}).
		HandleFailure(context.Background(), failureWith(models.FailureNoVendorsAvailable, ctx))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "split_not_possible", res.Action)
	assert.True(t, res.RequiresManualIntervention)
}

type failingCatalog struct{}

func (failingCatalog) Scenarios(ctx context.Context) ([]models.FallbackScenario, error) {
	return nil, errors.New("catalog backend down")
}

func TestCatalogErrorPropagates(t *testing.T) {
	svc := fallback.NewService(failingCatalog{})
	_, err := svc.HandleFailure(context.Background(), failureWith(models.FailureSystemError, models.AssignmentContext{LineItemID: "pr-1"}))
	assert.Error(t, err)
}

func TestQuantityThresholdGate(t *testing.T) {
	// Below the 50-unit threshold the bulk split scenario must not match; the
	// urgent emergency scenario requires urgency, so the substitute wins.
	svc := newService(fallback.DefaultScenarios())
	ctx := models.AssignmentContext{LineItemID: "pr-1", Quantity: 10, AvailableVendors: fallbackVendors()}
	res, err := svc.HandleFailure(context.Background(), failureWith(models.FailureVendorUnavailable, ctx))
	require.NoError(t, err)
	assert.Equal(t, "Substitute Vendor", res.FallbackScenario)
}
