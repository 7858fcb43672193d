package sessions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/gyn-triage/internal/conversation"
	"github.com/wolfman30/gyn-triage/internal/triage"
)

func TestRecorderTextTurnUpdatesNames(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, nil)
	ctx := context.Background()

	require.NoError(t, rec.RecordTurn(ctx, &conversation.TurnResult{SessionID: "s1", Kind: conversation.TurnText, Content: "hi"}))
	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, sess.Status)
	assert.Nil(t, sess.ConditionName)

	require.NoError(t, rec.RecordTurn(ctx, &conversation.TurnResult{
		SessionID: "s1",
		Kind:      conversation.TurnText,
		Partial:   &triage.IntakeRecord{ConditionName: strPtr("IUD insertion")},
	}))
	sess, _ = store.Get(ctx, "s1")
	assert.Equal(t, "IUD insertion", *sess.ConditionName)
}

func TestRecorderBookingFinishesSession(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, nil)
	ctx := context.Background()

	intake := triage.IntakeRecord{PatientName: strPtr("Anna"), ConditionName: strPtr("Contraception counselling")}
	packet := triage.BookingPacket{Triage: intake, SelfPay: true}
	require.NoError(t, rec.RecordTurn(ctx, &conversation.TurnResult{
		SessionID: "s1", Kind: conversation.TurnBooking, Intake: &intake, Booking: &packet,
	}))

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, sess.Status)
	assert.Equal(t, "booking", *sess.ResultType)
	assert.Equal(t, "Anna", *sess.PatientName)

	raw, err := store.GetResult(ctx, "s1")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, true, got["self_pay"])
	assert.Contains(t, got, "valid_booking_window")
}

func TestRecorderHandoffEscalatesSession(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, nil)
	ctx := context.Background()

	intake := triage.IntakeRecord{Escalate: true}
	packet := triage.HandoffPacket{Triage: intake, Reason: "Patient requested staff", Urgency: triage.UrgencyNormal}
	require.NoError(t, rec.RecordTurn(ctx, &conversation.TurnResult{
		SessionID: "s2", Kind: conversation.TurnHandoff, Intake: &intake, Handoff: &packet,
	}))

	sess, _ := store.Get(ctx, "s2")
	assert.Equal(t, StatusEscalated, sess.Status)
	assert.Equal(t, "handoff", *sess.ResultType)
}

func TestMemoryStoreListAndDeleteInactive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	clock := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, id)
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, "a")
	require.Error(t, err)

	done := StatusCompleted
	require.NoError(t, store.Update(ctx, "b", Update{Status: &done}))

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].ID, list[1].ID, list[2].ID})

	n, err := store.DeleteInactive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "b")
	require.NoError(t, err)
}

func TestMemoryStoreDeleteInactiveBefore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base }
	_, err := store.Create(ctx, "old")
	require.NoError(t, err)
	_, err = store.Create(ctx, "old-done")
	require.NoError(t, err)
	done := StatusCompleted
	require.NoError(t, store.Update(ctx, "old-done", Update{Status: &done}))

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = store.Create(ctx, "fresh")
	require.NoError(t, err)

	n, err := store.DeleteInactiveBefore(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	for _, id := range []string{"old-done", "fresh"} {
		_, err = store.Get(ctx, id)
		assert.NoError(t, err, id)
	}
}
