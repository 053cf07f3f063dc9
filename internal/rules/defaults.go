package rules

import "github.com/procureline/engine/internal/models"

// DefaultRules returns the baseline procurement policy set used when no
// tenant-specific rules are configured.
func DefaultRules() []models.BusinessRule {
	return []models.BusinessRule{
		{
			ID:          "urgent-availability",
			Name:        "Urgent orders require available vendors",
			Description: "Urgent requests narrow the pool to vendors that can ship now.",
			Priority:    100,
			IsActive:    true,
			Conditions: []models.RuleCondition{
				{Field: "urgencyLevel", Operator: models.OpEquals, Value: "urgent"},
				{Field: "availability", Operator: models.OpEquals, Value: "available"},
			},
			Actions: []models.RuleAction{
				{Type: models.ActionFilterVendors},
			},
		},
		{
			ID:          "minimum-vendor-rating",
			Name:        "Exclude poorly rated vendors",
			Description: "Vendors below a 3.0 rating are removed from consideration.",
			Priority:    90,
			IsActive:    true,
			Conditions: []models.RuleCondition{
				{Field: "rating", Operator: models.OpGreaterThanOrEqual, Value: 3.0},
			},
			Actions: []models.RuleAction{
				{Type: models.ActionFilterVendors},
			},
		},
		{
			ID:          "prefer-partners-bulk",
			Name:        "Boost preferred vendors on bulk orders",
			Description: "Large orders lean on established partners.",
			Priority:    50,
			IsActive:    true,
			Conditions: []models.RuleCondition{
				{Field: "quantity", Operator: models.OpGreaterThanOrEqual, Value: 100},
				{Field: "isPreferred", Operator: models.OpEquals, Value: true},
			},
			Actions: []models.RuleAction{
				{Type: models.ActionBoostScore, Parameters: map[string]interface{}{"boost": 0.15}},
			},
		},
	}
}
