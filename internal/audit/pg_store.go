package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PGStore persists assignment audit events into Postgres.
//
// Expected schema (see devops/migrations):
//
//	assignment_audit_events(id, event_type, pr_item_id, user_id, action,
//	  details jsonb, before_state jsonb, after_state jsonb, metadata jsonb,
//	  prev_hash, hash, ts, stream_status, attempts)
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (p *PGStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// AppendEvent seals and inserts the event inside a transaction. The item's
// head row is locked while the new hash is computed so concurrent appends for
// the same item serialize instead of forking the chain.
func (p *PGStore) AppendEvent(ctx context.Context, ev *AssignmentEvent) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	var prev sql.NullString
	q := `SELECT hash FROM assignment_audit_events WHERE pr_item_id = $1 ORDER BY ts DESC LIMIT 1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, q, ev.PRItemID).Scan(&prev); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("fetch item head: %w", err)
	}

	if err := seal(ev, prev.String); err != nil {
		return err
	}

	details, _ := json.Marshal(ev.Details)
	before, _ := json.Marshal(ev.BeforeState)
	after, _ := json.Marshal(ev.AfterState)
	metadata, _ := json.Marshal(ev.Metadata)

	insert := `
		INSERT INTO assignment_audit_events
			(id, event_type, pr_item_id, user_id, action, details, before_state, after_state, metadata, prev_hash, hash, ts, stream_status, attempts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,0)
	`
	if _, err := tx.ExecContext(ctx, insert,
		ev.ID, ev.Type, ev.PRItemID, ev.UserID, ev.Action,
		details, before, after, metadata,
		nullEmpty(ev.PrevHash), ev.Hash, ev.Ts, StreamPending); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (p *PGStore) GetEvent(ctx context.Context, id string) (*AssignmentEvent, error) {
	q := selectColumns + ` WHERE id = $1`
	row := p.db.QueryRowContext(ctx, q, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ev, err
}

func (p *PGStore) ListByItem(ctx context.Context, prItemID string) ([]AssignmentEvent, error) {
	q := selectColumns + ` WHERE pr_item_id = $1 ORDER BY ts ASC`
	return p.queryEvents(ctx, q, prItemID)
}

func (p *PGStore) ListRange(ctx context.Context, start, end time.Time) ([]AssignmentEvent, error) {
	q := selectColumns + ` WHERE ts >= $1 AND ts < $2 ORDER BY ts ASC`
	return p.queryEvents(ctx, q, start, end)
}

// ClaimPendingEvents claims up to limit pending events for streaming using
// SKIP LOCKED so concurrent streamers never double-claim, and increments the
// attempt counter.
func (p *PGStore) ClaimPendingEvents(ctx context.Context, limit int) ([]AssignmentEvent, error) {
	q := `
		UPDATE assignment_audit_events
		SET attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM assignment_audit_events
			WHERE stream_status = $1
			ORDER BY ts ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, pr_item_id, user_id, action, details, before_state, after_state, metadata, prev_hash, hash, ts
	`
	rows, err := p.db.QueryContext(ctx, q, StreamPending, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// MarkStreamResult records the streaming outcome for one event.
func (p *PGStore) MarkStreamResult(ctx context.Context, id string, ok bool) error {
	status := StreamStreamed
	if !ok {
		status = StreamFailed
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE assignment_audit_events SET stream_status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("mark stream result: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, event_type, pr_item_id, user_id, action, details, before_state, after_state, metadata, prev_hash, hash, ts
	FROM assignment_audit_events`

func (p *PGStore) queryEvents(ctx context.Context, q string, args ...interface{}) ([]AssignmentEvent, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*AssignmentEvent, error) {
	var ev AssignmentEvent
	var details, before, after, metadata []byte
	var prev sql.NullString
	var userID sql.NullString
	if err := row.Scan(&ev.ID, &ev.Type, &ev.PRItemID, &userID, &ev.Action,
		&details, &before, &after, &metadata, &prev, &ev.Hash, &ev.Ts); err != nil {
		return nil, err
	}
	ev.UserID = userID.String
	ev.PrevHash = prev.String
	unmarshalInto(details, &ev.Details)
	unmarshalInto(before, &ev.BeforeState)
	unmarshalInto(after, &ev.AfterState)
	unmarshalInto(metadata, &ev.Metadata)
	return &ev, nil
}

func collectEvents(rows *sql.Rows) ([]AssignmentEvent, error) {
	var out []AssignmentEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func unmarshalInto(raw []byte, dst *map[string]interface{}) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func nullEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
