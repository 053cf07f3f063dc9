// Package audit is the append-only trail of assignment activity. Events are
// hash-chained: each event's hash covers its canonical payload plus the
// previous head, so the history of a purchase request can be verified after
// the fact.
package audit

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types written by the assignment engine.
const (
	EventAssignmentCompleted = "assignment.completed"
	EventAssignmentFallback  = "assignment.fallback"
	EventAssignmentFailed    = "assignment.failed"
	EventAssignmentOverride  = "assignment.override"
)

// Stream statuses for the DB-first streaming pipeline.
const (
	StreamPending  = "pending"
	StreamStreamed = "streamed"
	StreamFailed   = "failed"
)

// AssignmentEvent is the canonical audit record.
type AssignmentEvent struct {
	ID          string                 `json:"id,omitempty"`
	Type        string                 `json:"type"`
	PRItemID    string                 `json:"prItemId"`
	UserID      string                 `json:"userId,omitempty"`
	Action      string                 `json:"action"`
	Details     map[string]interface{} `json:"details,omitempty"`
	BeforeState map[string]interface{} `json:"beforeState,omitempty"`
	AfterState  map[string]interface{} `json:"afterState,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	PrevHash    string                 `json:"prevHash,omitempty"`
	Hash        string                 `json:"hash,omitempty"`
	Ts          time.Time              `json:"ts"`
}

// ErrNotFound is returned when a requested audit resource does not exist.
var ErrNotFound = errors.New("not found")

// NewID returns a fresh event identifier.
func NewID() string {
	return uuid.New().String()
}
