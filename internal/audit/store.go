package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/procureline/engine/internal/canonical"
)

// Store is the persistence abstraction for the audit trail. Appends must be
// safe under concurrent use; every event is persisted exactly once with a
// unique id.
type Store interface {
	// AppendEvent seals the event into its line item's hash chain and
	// persists it. Chains are per prItemId so an item's history verifies
	// independently.
	AppendEvent(ctx context.Context, ev *AssignmentEvent) error

	// GetEvent retrieves an event by id.
	GetEvent(ctx context.Context, id string) (*AssignmentEvent, error)

	// ListByItem returns all events for a purchase-request line item in
	// chronological order.
	ListByItem(ctx context.Context, prItemID string) ([]AssignmentEvent, error)

	// ListRange returns all events with Ts in [start, end) in chronological
	// order.
	ListRange(ctx context.Context, start, end time.Time) ([]AssignmentEvent, error)

	// Ping validates the store is reachable.
	Ping(ctx context.Context) error
}

// HashBytes computes the SHA-256 digest of b.
func HashBytes(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}

// chainInput is the portion of an event covered by its hash.
func chainInput(ev *AssignmentEvent) map[string]interface{} {
	return map[string]interface{}{
		"type":        ev.Type,
		"prItemId":    ev.PRItemID,
		"userId":      ev.UserID,
		"action":      ev.Action,
		"details":     ev.Details,
		"beforeState": ev.BeforeState,
		"afterState":  ev.AfterState,
	}
}

// seal assigns id/timestamp defaults and computes the event hash as
// sha256(canonical(chainInput) || prevHashBytes).
func seal(ev *AssignmentEvent, prevHash string) error {
	canon, err := canonical.Marshal(chainInput(ev))
	if err != nil {
		return fmt.Errorf("canonicalize event: %w", err)
	}

	concat := append([]byte(nil), canon...)
	if prevHash != "" {
		prevBytes, err := hex.DecodeString(prevHash)
		if err != nil {
			return fmt.Errorf("decode prev hash: %w", err)
		}
		concat = append(concat, prevBytes...)
	}

	if ev.ID == "" {
		ev.ID = NewID()
	}
	if ev.Ts.IsZero() {
		ev.Ts = time.Now().UTC()
	}
	ev.PrevHash = prevHash
	ev.Hash = hex.EncodeToString(HashBytes(concat))
	return nil
}

// VerifyChain recomputes the hash chain over events (in chronological order)
// and returns an error describing the first inconsistency, or nil when the
// chain is intact.
func VerifyChain(events []AssignmentEvent) error {
	prev := ""
	for i := range events {
		ev := events[i]
		if ev.PrevHash != prev {
			return fmt.Errorf("event %s: prevHash mismatch (stored=%q head=%q)", ev.ID, ev.PrevHash, prev)
		}
		canon, err := canonical.Marshal(chainInput(&ev))
		if err != nil {
			return fmt.Errorf("event %s: canonicalize: %w", ev.ID, err)
		}
		concat := append([]byte(nil), canon...)
		if prev != "" {
			prevBytes, err := hex.DecodeString(prev)
			if err != nil {
				return fmt.Errorf("event %s: decode prev hash: %w", ev.ID, err)
			}
			concat = append(concat, prevBytes...)
		}
		computed := hex.EncodeToString(HashBytes(concat))
		if computed != ev.Hash {
			return fmt.Errorf("event %s: hash mismatch (computed=%s stored=%s)", ev.ID, computed, ev.Hash)
		}
		prev = ev.Hash
	}
	return nil
}
