package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procureline/engine/internal/models"
	"github.com/procureline/engine/internal/rules"
)

func ruleContext() models.AssignmentContext {
	return models.AssignmentContext{
		LineItemID:   "pr-item-1",
		ProductID:    "prod-1",
		CategoryID:   "cat-produce",
		Quantity:     150,
		UrgencyLevel: models.UrgencyUrgent,
		Location:     "downtown",
	}
}

func ruleVendors() []models.VendorOffer {
	return []models.VendorOffer{
		{VendorID: "v1", VendorName: "Fresh Farms", NormalizedPrice: 80, Rating: 4.5, IsPreferred: true, Availability: models.AvailabilityAvailable, LeadTime: 1},
		{VendorID: "v2", VendorName: "City Wholesale", NormalizedPrice: 70, Rating: 3.2, Availability: models.AvailabilityLimited, LeadTime: 4},
		{VendorID: "v3", VendorName: "Discount Goods", NormalizedPrice: 60, Rating: 2.1, Availability: models.AvailabilityUnavailable, LeadTime: 14},
	}
}

func filterRule(id string, priority int, conds ...models.RuleCondition) models.BusinessRule {
	return models.BusinessRule{
		ID: id, Name: id, Priority: priority, IsActive: true,
		Conditions: conds,
		Actions:    []models.RuleAction{{Type: models.ActionFilterVendors}},
	}
}

func TestEvaluateNoRulesKeepsPool(t *testing.T) {
	eval := rules.NewEvaluator().Evaluate(nil, ruleContext(), ruleVendors())
	assert.Len(t, eval.CandidatePool, 3)
	assert.Empty(t, eval.AppliedRules)
	assert.Empty(t, eval.FilterRule)
}

func TestEvaluateFilterReplacesPool(t *testing.T) {
	rule := filterRule("available-only", 10,
		models.RuleCondition{Field: "availability", Operator: models.OpEquals, Value: "available"})
	eval := rules.NewEvaluator().Evaluate([]models.BusinessRule{rule}, ruleContext(), ruleVendors())
	require.Len(t, eval.CandidatePool, 1)
	assert.Equal(t, "v1", eval.CandidatePool[0].VendorID)
	assert.Equal(t, "available-only", eval.FilterRule)
	assert.Equal(t, []string{"available-only"}, eval.AppliedRules)
}

func TestEvaluateEmptyMatchDoesNotFire(t *testing.T) {
	rule := filterRule("impossible", 10,
		models.RuleCondition{Field: "rating", Operator: models.OpGreaterThan, Value: 9.0})
	eval := rules.NewEvaluator().Evaluate([]models.BusinessRule{rule}, ruleContext(), ruleVendors())
	assert.Len(t, eval.CandidatePool, 3, "non-matching filter must not empty the pool")
	assert.Empty(t, eval.AppliedRules)
}

func TestEvaluateBoostAccumulates(t *testing.T) {
	boost := func(id string, priority int, value float64, conds ...models.RuleCondition) models.BusinessRule {
		return models.BusinessRule{
			ID: id, Name: id, Priority: priority, IsActive: true,
			Conditions: conds,
			Actions: []models.RuleAction{
				{Type: models.ActionBoostScore, Parameters: map[string]interface{}{"boost": value}},
			},
		}
	}
	set := []models.BusinessRule{
		boost("preferred-boost", 20, 0.15, models.RuleCondition{Field: "isPreferred", Operator: models.OpEquals, Value: true}),
		boost("fast-boost", 10, 0.05, models.RuleCondition{Field: "leadTime", Operator: models.OpLessThanOrEqual, Value: 2}),
	}
	eval := rules.NewEvaluator().Evaluate(set, ruleContext(), ruleVendors())
	assert.InDelta(t, 0.20, eval.Boosts["v1"], 1e-9)
	assert.Zero(t, eval.Boosts["v2"])
}

func TestEvaluateDefaultBoost(t *testing.T) {
	rule := models.BusinessRule{
		ID: "bare-boost", Name: "bare", Priority: 1, IsActive: true,
		Conditions: []models.RuleCondition{{Field: "isPreferred", Operator: models.OpEquals, Value: true}},
		Actions:    []models.RuleAction{{Type: models.ActionBoostScore}},
	}
	eval := rules.NewEvaluator().Evaluate([]models.BusinessRule{rule}, ruleContext(), ruleVendors())
	assert.InDelta(t, rules.DefaultBoost, eval.Boosts["v1"], 1e-9)
}

func TestEvaluatePriorityOrder(t *testing.T) {
	// The high-priority filter runs first, so the lower one evaluates against
	// the already narrowed pool.
	set := []models.BusinessRule{
		filterRule("low-pri", 1, models.RuleCondition{Field: "rating", Operator: models.OpGreaterThanOrEqual, Value: 3.0}),
		filterRule("high-pri", 100, models.RuleCondition{Field: "availability", Operator: models.OpNotEquals, Value: "unavailable"}),
	}
	eval := rules.NewEvaluator().Evaluate(set, ruleContext(), ruleVendors())
	assert.Equal(t, []string{"high-pri", "low-pri"}, eval.AppliedRules)
	require.Len(t, eval.CandidatePool, 2)
}

func TestEvaluateInactiveSkipped(t *testing.T) {
	rule := filterRule("dormant", 10,
		models.RuleCondition{Field: "isPreferred", Operator: models.OpEquals, Value: true})
	rule.IsActive = false
	eval := rules.NewEvaluator().Evaluate([]models.BusinessRule{rule}, ruleContext(), ruleVendors())
	assert.Len(t, eval.CandidatePool, 3)
	assert.Empty(t, eval.AppliedRules)
}

func TestEvaluateUnknownFieldPasses(t *testing.T) {
	rule := filterRule("typo-field", 10,
		models.RuleCondition{Field: "vendorTier", Operator: models.OpEquals, Value: "gold"})
	eval := rules.NewEvaluator().Evaluate([]models.BusinessRule{rule}, ruleContext(), ruleVendors())
	// Fail-open: the condition matches every vendor, so the filter keeps all.
	assert.Len(t, eval.CandidatePool, 3)
	assert.Equal(t, []string{"typo-field"}, eval.AppliedRules)
}

func TestEvaluateOperators(t *testing.T) {
	ctx := ruleContext()
	vendors := ruleVendors()
	cases := []struct {
		name string
		cond models.RuleCondition
		want []string
	}{
		{"equals string", models.RuleCondition{Field: "location", Operator: models.OpEquals, Value: "downtown"}, []string{"v1", "v2", "v3"}},
		{"notEquals", models.RuleCondition{Field: "vendorId", Operator: models.OpNotEquals, Value: "v3"}, []string{"v1", "v2"}},
		{"greaterThan", models.RuleCondition{Field: "rating", Operator: models.OpGreaterThan, Value: 3.2}, []string{"v1"}},
		{"lessThan", models.RuleCondition{Field: "price", Operator: models.OpLessThan, Value: 75}, []string{"v2", "v3"}},
		{"lessThanOrEqual", models.RuleCondition{Field: "leadTime", Operator: models.OpLessThanOrEqual, Value: 4}, []string{"v1", "v2"}},
		{"in", models.RuleCondition{Field: "vendorId", Operator: models.OpIn, Value: []string{"v1", "v3"}}, []string{"v1", "v3"}},
		{"contains slice", models.RuleCondition{Field: "availability", Operator: models.OpContains, Value: []string{"available", "limited"}}, []string{"v1", "v2"}},
		{"contains substring", models.RuleCondition{Field: "vendorName", Operator: models.OpContains, Value: "Farms"}, []string{"v1"}},
		{"between inclusive", models.RuleCondition{Field: "price", Operator: models.OpBetween, Value: []float64{60, 70}}, []string{"v2", "v3"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eval := rules.NewEvaluator().Evaluate(
				[]models.BusinessRule{filterRule("probe", 1, tc.cond)}, ctx, vendors)
			var got []string
			for _, v := range eval.CandidatePool {
				got = append(got, v.VendorID)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDefaultRulesApply(t *testing.T) {
	store := rules.NewMemoryStore(rules.DefaultRules())
	active, err := store.ActiveRules(nil)
	require.NoError(t, err)
	require.Len(t, active, 3)

	// Urgent context with one unavailable vendor: the urgency rule narrows
	// the pool and the bulk boost rewards the preferred survivor.
	eval := rules.NewEvaluator().Evaluate(active, ruleContext(), ruleVendors())
	require.Len(t, eval.CandidatePool, 1)
	assert.Equal(t, "v1", eval.CandidatePool[0].VendorID)
	assert.InDelta(t, 0.15, eval.Boosts["v1"], 1e-9)
}
