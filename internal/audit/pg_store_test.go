package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGAppendEventFirstInChain(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPGStore(db)
	ev := &AssignmentEvent{
		Type:     EventAssignmentCompleted,
		PRItemID: "pr-1",
		Action:   "assigned",
		Details:  map[string]interface{}{"vendorId": "v1"},
		Ts:       time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT hash FROM assignment_audit_events").
		WithArgs("pr-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO assignment_audit_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.AppendEvent(context.Background(), ev))
	assert.NotEmpty(t, ev.ID)
	assert.NotEmpty(t, ev.Hash)
	assert.Empty(t, ev.PrevHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAppendEventLinksToHead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPGStore(db)
	ev := &AssignmentEvent{
		Type:     EventAssignmentFallback,
		PRItemID: "pr-1",
		Action:   "fallback",
		Ts:       time.Now().UTC(),
	}

	head := "aa" // hex-decodable previous head
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT hash FROM assignment_audit_events").
		WithArgs("pr-1").
		WillReturnRows(sqlmock.NewRows([]string{"hash"}).AddRow(head))
	mock.ExpectExec("INSERT INTO assignment_audit_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.AppendEvent(context.Background(), ev))
	assert.Equal(t, head, ev.PrevHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGClaimPendingEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPGStore(db)
	ts := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "pr_item_id", "user_id", "action",
		"details", "before_state", "after_state", "metadata", "prev_hash", "hash", "ts",
	}).AddRow("evt-1", EventAssignmentCompleted, "pr-1", "system", "assigned",
		[]byte(`{"vendorId":"v1"}`), nil, nil, nil, nil, "beef", ts)

	mock.ExpectQuery("UPDATE assignment_audit_events").
		WithArgs(StreamPending, 10).
		WillReturnRows(rows)

	events, err := store.ClaimPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, "v1", events[0].Details["vendorId"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGMarkStreamResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPGStore(db)

	mock.ExpectExec("UPDATE assignment_audit_events SET stream_status").
		WithArgs(StreamStreamed, "evt-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, store.MarkStreamResult(context.Background(), "evt-1", true))

	mock.ExpectExec("UPDATE assignment_audit_events SET stream_status").
		WithArgs(StreamFailed, "evt-2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, store.MarkStreamResult(context.Background(), "evt-2", false))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGListByItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPGStore(db)
	ts := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "pr_item_id", "user_id", "action",
		"details", "before_state", "after_state", "metadata", "prev_hash", "hash", "ts",
	}).
		AddRow("evt-1", EventAssignmentCompleted, "pr-1", nil, "assigned", nil, nil, nil, nil, nil, "h1", ts).
		AddRow("evt-2", EventAssignmentOverride, "pr-1", "ops", "override", nil, nil, nil, nil, "h1", "h2", ts.Add(time.Minute))

	mock.ExpectQuery("SELECT (.+) FROM assignment_audit_events").
		WithArgs("pr-1").
		WillReturnRows(rows)

	events, err := store.ListByItem(context.Background(), "pr-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "h1", events[1].PrevHash)
	assert.Equal(t, "ops", events[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
