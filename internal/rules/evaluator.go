// Package rules evaluates prioritized business rules against an assignment
// context and its candidate vendors. Filter rules replace the candidate pool;
// boost rules annotate surviving vendors with additive score bonuses.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/procureline/engine/internal/models"
)

// UnknownFieldsPass controls how conditions on unrecognized field names are
// treated. The shipped behavior is fail-open: a typo in a rule config must not
// silently exclude every vendor. Flip to false for fail-closed semantics.
const UnknownFieldsPass = true

// DefaultBoost is applied when a boostScore action carries no boost parameter.
const DefaultBoost = 0.1

// Evaluation is the outcome of running the rule set against one context.
type Evaluation struct {
	// CandidatePool is the vendor subset surviving filter rules. If no filter
	// rule matched, it is the original vendor list.
	CandidatePool []models.VendorOffer
	// Boosts maps vendorId to the accumulated score boost.
	Boosts map[string]float64
	// AppliedRules lists the ids of rules that fired, in evaluation order.
	AppliedRules []string
	// FilterRule is the id of the last filter rule that narrowed the pool.
	FilterRule string
}

// Evaluator applies a business rule set. It holds no per-call state and is
// safe for concurrent use.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate runs active rules in priority-descending order. Filter rules
// replace the candidate pool with their matching subset (later rules evaluate
// against the narrowed pool); boost rules accumulate per-vendor bonuses. A
// rule with an empty matching set does not fire.
func (e *Evaluator) Evaluate(ruleSet []models.BusinessRule, ctx models.AssignmentContext, vendors []models.VendorOffer) Evaluation {
	eval := Evaluation{
		CandidatePool: vendors,
		Boosts:        map[string]float64{},
	}

	active := make([]models.BusinessRule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})

	for _, rule := range active {
		var matching []models.VendorOffer
		for _, v := range eval.CandidatePool {
			if e.conditionsMatch(rule.Conditions, ctx, v) {
				matching = append(matching, v)
			}
		}
		if len(matching) == 0 {
			continue
		}
		fired := false
		for _, action := range rule.Actions {
			switch action.Type {
			case models.ActionFilterVendors:
				eval.CandidatePool = matching
				eval.FilterRule = rule.ID
				fired = true
			case models.ActionBoostScore:
				boost := paramFloat(action.Parameters, "boost", DefaultBoost)
				for _, v := range matching {
					eval.Boosts[v.VendorID] += boost
				}
				fired = true
			default:
				// assignVendor, setPrice, flagForReview, applyDiscount are
				// handled downstream of selection; a rule carrying only those
				// still counts as applied so it surfaces in the result.
				fired = true
			}
		}
		if fired {
			eval.AppliedRules = append(eval.AppliedRules, rule.ID)
		}
	}

	return eval
}

func (e *Evaluator) conditionsMatch(conds []models.RuleCondition, ctx models.AssignmentContext, v models.VendorOffer) bool {
	for _, c := range conds {
		if !e.match(c, ctx, v) {
			return false
		}
	}
	return true
}

// match resolves the condition's field to a concrete value and applies the
// operator. Unknown fields pass or fail according to UnknownFieldsPass.
func (e *Evaluator) match(c models.RuleCondition, ctx models.AssignmentContext, v models.VendorOffer) bool {
	val, ok := resolveField(c.Field, ctx, v)
	if !ok {
		return UnknownFieldsPass
	}

	switch c.Operator {
	case models.OpEquals:
		return compareEqual(val, c.Value)
	case models.OpNotEquals:
		return !compareEqual(val, c.Value)
	case models.OpGreaterThan:
		a, b, ok := bothNumeric(val, c.Value)
		return ok && a > b
	case models.OpGreaterThanOrEqual:
		a, b, ok := bothNumeric(val, c.Value)
		return ok && a >= b
	case models.OpLessThan:
		a, b, ok := bothNumeric(val, c.Value)
		return ok && a < b
	case models.OpLessThanOrEqual:
		a, b, ok := bothNumeric(val, c.Value)
		return ok && a <= b
	case models.OpContains:
		return matchContains(val, c.Value)
	case models.OpIn:
		return valueIn(val, c.Value)
	case models.OpBetween:
		return matchBetween(val, c.Value)
	default:
		return false
	}
}

// resolveField maps a condition field name onto the context or the vendor.
func resolveField(field string, ctx models.AssignmentContext, v models.VendorOffer) (interface{}, bool) {
	switch field {
	case "categoryId":
		return ctx.CategoryID, true
	case "productId":
		return ctx.ProductID, true
	case "location":
		return ctx.Location, true
	case "department":
		return ctx.Department, true
	case "quantity":
		return ctx.Quantity, true
	case "urgencyLevel":
		return string(ctx.UrgencyLevel), true
	case "budgetLimit":
		if ctx.BudgetLimit == nil {
			return nil, false
		}
		return *ctx.BudgetLimit, true
	case "vendorId":
		return v.VendorID, true
	case "vendorName":
		return v.VendorName, true
	case "vendorRating", "rating":
		return v.Rating, true
	case "price", "normalizedPrice":
		return v.NormalizedPrice, true
	case "leadTime":
		return v.LeadTime, true
	case "minQuantity":
		return v.MinQuantity, true
	case "availability":
		return string(v.Availability), true
	case "isPreferred":
		return v.IsPreferred, true
	default:
		return nil, false
	}
}

func compareEqual(a, b interface{}) bool {
	if af, bf, ok := bothNumeric(a, b); ok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func bothNumeric(a, b interface{}) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// matchContains supports both shapes carried over from rule configs: a slice
// value means slice-includes-fieldvalue; a string value means the field's
// string contains it as a substring.
func matchContains(fieldVal, condVal interface{}) bool {
	if items, ok := asSlice(condVal); ok {
		return sliceIncludes(items, fieldVal)
	}
	fs, fok := fieldVal.(string)
	cs, cok := condVal.(string)
	return fok && cok && strings.Contains(fs, cs)
}

func valueIn(fieldVal, condVal interface{}) bool {
	items, ok := asSlice(condVal)
	if !ok {
		return false
	}
	return sliceIncludes(items, fieldVal)
}

func matchBetween(fieldVal, condVal interface{}) bool {
	bounds, ok := asSlice(condVal)
	if !ok || len(bounds) != 2 {
		return false
	}
	val, vok := toFloat(fieldVal)
	lo, lok := toFloat(bounds[0])
	hi, hok := toFloat(bounds[1])
	return vok && lok && hok && val >= lo && val <= hi
}

func asSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

func sliceIncludes(items []interface{}, val interface{}) bool {
	for _, it := range items {
		if compareEqual(val, it) {
			return true
		}
	}
	return false
}

func paramFloat(params map[string]interface{}, key string, fallback float64) float64 {
	if params == nil {
		return fallback
	}
	if raw, ok := params[key]; ok {
		if f, ok := toFloat(raw); ok {
			return f
		}
	}
	return fallback
}
