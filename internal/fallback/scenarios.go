package fallback

import (
	"github.com/procureline/engine/internal/models"
)

// DefaultScenarios returns the catalog shipped with the service. Deployments
// normally replace or extend these through configuration.
func DefaultScenarios() []models.FallbackScenario {
	return []models.FallbackScenario{
		{
			ID:       "budget-escalation",
			Name:     "Budget Escalation",
			Priority: 80,
			TriggerConditions: models.TriggerConditions{
				FailureTypes: []models.FailureType{models.FailureBudgetExceeded},
			},
			Strategy: models.FallbackStrategy{
				Type:       models.StrategyPriceEscalation,
				Parameters: map[string]interface{}{"maxPriceIncrease": 0.15},
			},
			TimeoutHours: 48,
		},
		{
			ID:       "urgent-emergency-procurement",
			Name:     "Urgent Emergency Procurement",
			Priority: 90,
			TriggerConditions: models.TriggerConditions{
				FailureTypes:  []models.FailureType{models.FailureNoVendorsAvailable, models.FailureVendorUnavailable},
				UrgencyLevels: []models.UrgencyLevel{models.UrgencyHigh, models.UrgencyUrgent},
			},
			Strategy:     models.FallbackStrategy{Type: models.StrategyEmergencyProcurement},
			TimeoutHours: 12,
		},
		{
			ID:       "substitute-vendor",
			Name:     "Substitute Vendor",
			Priority: 70,
			TriggerConditions: models.TriggerConditions{
				FailureTypes:        []models.FailureType{models.FailureVendorUnavailable},
				MinVendorsAvailable: 2,
			},
			Strategy: models.FallbackStrategy{
				Type:       models.StrategyAlternativeVendor,
				Parameters: map[string]interface{}{"minRating": 3.5, "requireAvailable": true, "selectBy": "rating"},
			},
		},
		{
			ID:       "bulk-split-order",
			Name:     "Bulk Split Order",
			Priority: 60,
			TriggerConditions: models.TriggerConditions{
				FailureTypes:        []models.FailureType{models.FailureNoVendorsAvailable, models.FailureVendorUnavailable},
				MinVendorsAvailable: 2,
				QuantityThreshold:   50,
			},
			Strategy: models.FallbackStrategy{
				Type:       models.StrategySplitOrder,
				Parameters: map[string]interface{}{"maxSplits": 3},
			},
		},
		{
			ID:       "retry-later",
			Name:     "Retry Later",
			Priority: 40,
			TriggerConditions: models.TriggerConditions{
				FailureTypes:  []models.FailureType{models.FailureNoVendorsAvailable},
				UrgencyLevels: []models.UrgencyLevel{models.UrgencyLow, models.UrgencyNormal},
			},
			Strategy: models.FallbackStrategy{
				Type:       models.StrategyDelayedAssignment,
				Parameters: map[string]interface{}{"delayHours": 24},
			},
		},
		{
			ID:       "rule-conflict-review",
			Name:     "Rule Conflict Review",
			Priority: 50,
			TriggerConditions: models.TriggerConditions{
				FailureTypes: []models.FailureType{models.FailureBusinessRulesConflict, models.FailureSystemError},
			},
			Strategy:     models.FallbackStrategy{Type: models.StrategyManualReview},
			TimeoutHours: 24,
		},
	}
}
