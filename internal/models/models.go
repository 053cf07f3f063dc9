// Package models contains the value objects exchanged between the assignment
// engine's components. All types are constructed per call and never mutated by
// the engine after construction.
package models

import (
	"time"
)

// UrgencyLevel qualifies how quickly a purchase-request line needs fulfilment.
type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyNormal UrgencyLevel = "normal"
	UrgencyHigh   UrgencyLevel = "high"
	UrgencyUrgent UrgencyLevel = "urgent"
)

// Availability is a vendor's stock status for the requested product.
type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityLimited     Availability = "limited"
	AvailabilityUnavailable Availability = "unavailable"
)

// VendorOffer is one vendor's quote for a product. The engine reasons in
// NormalizedPrice (quote converted to a common currency/unit basis).
type VendorOffer struct {
	VendorID        string       `json:"vendorId"`
	VendorName      string       `json:"vendorName"`
	Price           float64      `json:"price"`
	Currency        string       `json:"currency"`
	NormalizedPrice float64      `json:"normalizedPrice"`
	MinQuantity     int          `json:"minQuantity"`
	Availability    Availability `json:"availability"`
	LeadTime        int          `json:"leadTime"` // days
	Rating          float64      `json:"rating"`   // 0..5
	IsPreferred     bool         `json:"isPreferred"`
}

// AssignmentContext is the request unit flowing through one assignment call.
type AssignmentContext struct {
	LineItemID       string        `json:"lineItemId"`
	ProductID        string        `json:"productId"`
	CategoryID       string        `json:"categoryId"`
	Quantity         int           `json:"quantity"`
	RequestedDate    time.Time     `json:"requestedDate"`
	Location         string        `json:"location"`
	Department       string        `json:"department"`
	BudgetLimit      *float64      `json:"budgetLimit,omitempty"`
	UrgencyLevel     UrgencyLevel  `json:"urgencyLevel,omitempty"`
	AvailableVendors []VendorOffer `json:"availableVendors"`
}

// RuleOperator is the comparison applied by a rule condition.
type RuleOperator string

const (
	OpEquals             RuleOperator = "equals"
	OpNotEquals          RuleOperator = "notEquals"
	OpGreaterThan        RuleOperator = "greaterThan"
	OpGreaterThanOrEqual RuleOperator = "greaterThanOrEqual"
	OpLessThan           RuleOperator = "lessThan"
	OpLessThanOrEqual    RuleOperator = "lessThanOrEqual"
	OpContains           RuleOperator = "contains"
	OpIn                 RuleOperator = "in"
	OpBetween            RuleOperator = "between"
)

// RuleActionType tags what a matching rule does to the candidate pool.
type RuleActionType string

const (
	ActionFilterVendors RuleActionType = "filterVendors"
	ActionBoostScore    RuleActionType = "boostScore"
	ActionAssignVendor  RuleActionType = "assignVendor"
	ActionSetPrice      RuleActionType = "setPrice"
	ActionFlagForReview RuleActionType = "flagForReview"
	ActionApplyDiscount RuleActionType = "applyDiscount"
)

// RuleCondition compares a context or vendor field against a value.
// Value shapes depend on the operator: scalars for comparisons, a slice for
// in/contains, a 2-element [low, high] slice for between (inclusive).
type RuleCondition struct {
	Field    string       `json:"field"`
	Operator RuleOperator `json:"operator"`
	Value    interface{}  `json:"value"`
}

// RuleAction is what a rule does when all of its conditions match.
type RuleAction struct {
	Type       RuleActionType         `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// BusinessRule is a named, prioritized, toggleable procurement policy.
// Conditions AND together; higher priority evaluates first. Rules are
// immutable for the duration of one assignment call.
type BusinessRule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Priority    int             `json:"priority"`
	IsActive    bool            `json:"isActive"`
	Conditions  []RuleCondition `json:"conditions"`
	Actions     []RuleAction    `json:"actions"`
}

// VendorSelectionCriteria weights the scoring components. The five weights
// must sum to 1.0 within a 0.01 tolerance; they are validated, never
// auto-normalized.
type VendorSelectionCriteria struct {
	PriceWeight        float64 `json:"priceWeight"`
	QualityWeight      float64 `json:"qualityWeight"`
	ReliabilityWeight  float64 `json:"reliabilityWeight"`
	AvailabilityWeight float64 `json:"availabilityWeight"`
	PreferenceWeight   float64 `json:"preferenceWeight"`

	// EnforceMinQuantity drops vendors whose MinQuantity exceeds the requested
	// quantity before scoring; ExcludeUnavailable drops unavailable vendors.
	EnforceMinQuantity bool `json:"enforceMinQuantity,omitempty"`
	ExcludeUnavailable bool `json:"excludeUnavailable,omitempty"`
}

// ScoreBreakdown holds the per-vendor sub-scores for one assignment call.
// Components are in [0,1]; RuleBoost is additive and unbounded.
type ScoreBreakdown struct {
	PriceScore        float64 `json:"priceScore"`
	QualityScore      float64 `json:"qualityScore"`
	ReliabilityScore  float64 `json:"reliabilityScore"`
	AvailabilityScore float64 `json:"availabilityScore"`
	PreferenceScore   float64 `json:"preferenceScore"`
	RuleBoost         float64 `json:"ruleBoost"`
}

// ScoredVendor pairs an offer with its total score and breakdown.
type ScoredVendor struct {
	Offer     VendorOffer    `json:"offer"`
	Total     float64        `json:"total"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// AlternativeVendor is a non-selected option surfaced alongside the winner.
type AlternativeVendor struct {
	VendorID        string  `json:"vendorId"`
	VendorName      string  `json:"vendorName"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	NormalizedPrice float64 `json:"normalizedPrice"`
	Score           float64 `json:"score"`
	Reason          string  `json:"reason"`
}

// VendorSelectionResult is the output of the selection algorithm.
type VendorSelectionResult struct {
	SelectedVendor     ScoredVendor        `json:"selectedVendor"`
	AlternativeVendors []AlternativeVendor `json:"alternativeVendors"`
	RankedVendors      []ScoredVendor      `json:"rankedVendors"`
	SelectionReason    string              `json:"selectionReason"`
	RuleApplied        string              `json:"ruleApplied,omitempty"`
}

// PriceAssignmentResult is the output of a successful assignment.
type PriceAssignmentResult struct {
	LineItemID       string              `json:"lineItemId"`
	VendorID         string              `json:"vendorId"`
	VendorName       string              `json:"vendorName"`
	AssignedPrice    float64             `json:"assignedPrice"`
	Currency         string              `json:"currency"`
	NormalizedPrice  float64             `json:"normalizedPrice"`
	AssignmentReason string              `json:"assignmentReason"`
	Confidence       float64             `json:"confidence"` // 0.1..1.0
	Alternatives     []AlternativeVendor `json:"alternatives"`
	RuleApplied      string              `json:"ruleApplied,omitempty"`
	AssignmentDate   time.Time           `json:"assignmentDate"`
}

// FailureType classifies why an assignment could not proceed normally.
type FailureType string

const (
	FailureNoVendorsAvailable    FailureType = "no_vendors_available"
	FailureBudgetExceeded        FailureType = "budget_exceeded"
	FailureBusinessRulesConflict FailureType = "business_rules_conflict"
	FailureVendorUnavailable     FailureType = "vendor_unavailable"
	FailureSystemError           FailureType = "system_error"
)

// AssignmentFailure describes a failed primary assignment attempt; it is the
// input to the fallback service.
type AssignmentFailure struct {
	Type      FailureType       `json:"type"`
	Reason    string            `json:"reason"`
	Context   AssignmentContext `json:"context"`
	Timestamp time.Time         `json:"timestamp"`
}

// FallbackStrategyType names one of the recovery strategies.
type FallbackStrategyType string

const (
	StrategyAlternativeVendor    FallbackStrategyType = "alternative_vendor"
	StrategyManualReview         FallbackStrategyType = "manual_review"
	StrategyPriceEscalation      FallbackStrategyType = "price_escalation"
	StrategyDelayedAssignment    FallbackStrategyType = "delayed_assignment"
	StrategyEmergencyProcurement FallbackStrategyType = "emergency_procurement"
	StrategySplitOrder           FallbackStrategyType = "split_order"
)

// FallbackStrategy configures how a scenario recovers.
type FallbackStrategy struct {
	Type       FallbackStrategyType   `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// TriggerConditions narrow which failures a fallback scenario handles.
// Zero values mean "no restriction".
type TriggerConditions struct {
	FailureTypes         []FailureType  `json:"failureTypes"`
	MinVendorsAvailable  int            `json:"minVendorsAvailable,omitempty"`
	UrgencyLevels        []UrgencyLevel `json:"urgencyLevels,omitempty"`
	CategoryRestrictions []string       `json:"categoryRestrictions,omitempty"`
	QuantityThreshold    int            `json:"quantityThreshold,omitempty"`
}

// FallbackScenario maps failure conditions to a recovery strategy.
type FallbackScenario struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Priority          int               `json:"priority"`
	TriggerConditions TriggerConditions `json:"triggerConditions"`
	Strategy          FallbackStrategy  `json:"strategy"`
	TimeoutHours      int               `json:"timeoutHours,omitempty"`
}

// OrderSplit is one vendor's share of a split order.
type OrderSplit struct {
	VendorID   string  `json:"vendorId"`
	VendorName string  `json:"vendorName"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
}

// FallbackResult is returned when assignment cannot complete normally.
type FallbackResult struct {
	Success                    bool                   `json:"success"`
	Strategy                   FallbackStrategyType   `json:"strategy"`
	Action                     string                 `json:"action"`
	Message                    string                 `json:"message"`
	AssignedVendor             *VendorOffer           `json:"assignedVendor,omitempty"`
	RequiresManualIntervention bool                   `json:"requiresManualIntervention"`
	NextSteps                  []string               `json:"nextSteps"`
	EstimatedResolutionTime    string                 `json:"estimatedResolutionTime"`
	FallbackScenario           string                 `json:"fallbackScenario"`
	RetryDate                  *time.Time             `json:"retryDate,omitempty"`
	OrderSplits                []OrderSplit           `json:"orderSplits,omitempty"`
	AdditionalInfo             map[string]interface{} `json:"additionalInfo,omitempty"`
}

// DefaultCriteria returns the weight vector used when a caller supplies none.
func DefaultCriteria() VendorSelectionCriteria {
	return VendorSelectionCriteria{
		PriceWeight:        0.35,
		QualityWeight:      0.25,
		ReliabilityWeight:  0.20,
		AvailabilityWeight: 0.15,
		PreferenceWeight:   0.05,
	}
}
