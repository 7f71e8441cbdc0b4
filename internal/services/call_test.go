package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suvankar11223/chatzi-sub000/internal/models"
	apperrors "github.com/suvankar11223/chatzi-sub000/pkg/errors"
)

type fakeIssuer struct {
	err    error
	issued []string
}

func (f *fakeIssuer) Issue(identity, sessionID string, _ time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.issued = append(f.issued, identity)
	return "token-" + identity + "-" + sessionID, nil
}

func newCallEnv(t *testing.T) (*env, *CallService, *fakeIssuer, *clock) {
	t.Helper()
	e := newEnv(t, "alice", "bob", "carol")
	issuer := &fakeIssuer{}
	calls := NewCallService(e.db, e.participants, e.hub, e.hub, issuer, time.Hour)
	clk := newClock()
	calls.now = clk.now
	return e, calls, issuer, clk
}

func initiate(t *testing.T, calls *CallService) *InitiateResult {
	t.Helper()
	res, err := calls.Initiate(context.Background(), InitiateInput{
		CallerID:   "alice",
		ReceiverID: "bob",
		Kind:       models.CallVideo,
		SessionID:  "room-1",
	})
	require.NoError(t, err)
	return res
}

func loadCall(t *testing.T, e *env, id string) models.Call {
	t.Helper()
	var c models.Call
	require.NoError(t, e.db.First(&c, "id = ?", id).Error)
	return c
}

func TestInitiateRingsEveryReceiverDevice(t *testing.T) {
	e, calls, issuer, _ := newCallEnv(t)
	e.connect(t, "alice", "a1")
	b1 := e.connect(t, "bob", "b1")
	b2 := e.connect(t, "bob", "b2")

	res := initiate(t, calls)
	assert.Equal(t, PhaseRinging, res.Call.Phase)
	assert.Equal(t, "token-alice-room-1", res.Token)
	assert.ElementsMatch(t, []string{"alice", "bob"}, issuer.issued)

	for _, c := range []interface{ Events(string) []interface{} }{b1, b2} {
		got := c.Events(EventIncomingCall)
		require.Len(t, got, 1)
		in := got[0].(IncomingCall)
		assert.Equal(t, res.Call.ID, in.Call.ID)
		assert.Equal(t, "alice", in.Caller.ID)
		assert.Equal(t, "token-bob-room-1", in.Token)
		assert.Equal(t, "room-1", in.SessionID)
	}

	stored := loadCall(t, e, res.Call.ID)
	assert.Equal(t, models.CallMissed, stored.Status)
	assert.Nil(t, stored.EndedAt)
}

func TestAnswerThenEndComputesDuration(t *testing.T) {
	e, calls, _, clk := newCallEnv(t)
	a1 := e.connect(t, "alice", "a1")
	b1 := e.connect(t, "bob", "b1")
	b2 := e.connect(t, "bob", "b2")
	ctx := context.Background()

	res := initiate(t, calls)

	clk.advance(2 * time.Second)
	view, err := calls.Answer(ctx, "bob", res.Call.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseActive, view.Phase)
	assert.Equal(t, models.CallCompleted, view.Status)

	answered := a1.Events(EventCallAnswered)
	require.Len(t, answered, 1)
	assert.Equal(t, "room-1", answered[0].(CallSignal).SessionID)
	assert.Equal(t, 1, b1.Count(EventCallHandled))
	assert.Equal(t, 1, b2.Count(EventCallHandled))

	clk.advance(10 * time.Second)
	view, err = calls.End(ctx, "alice", res.Call.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseEnded, view.Phase)
	assert.Equal(t, 10, view.Duration)

	ended := b1.Events(EventCallEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, 10, ended[0].(CallSignal).Duration)
	assert.Zero(t, a1.Count(EventCallEnded))

	stored := loadCall(t, e, res.Call.ID)
	assert.Equal(t, models.CallCompleted, stored.Status)
	assert.Equal(t, 10, stored.Duration)
	require.NotNil(t, stored.EndedAt)

	_, err = calls.End(ctx, "bob", res.Call.ID)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestDecline(t *testing.T) {
	e, calls, _, _ := newCallEnv(t)
	a1 := e.connect(t, "alice", "a1")
	b1 := e.connect(t, "bob", "b1")
	ctx := context.Background()

	res := initiate(t, calls)

	_, err := calls.Decline(ctx, "alice", res.Call.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	view, err := calls.Decline(ctx, "bob", res.Call.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseEnded, view.Phase)
	assert.Equal(t, models.CallDeclined, loadCall(t, e, res.Call.ID).Status)
	assert.Equal(t, 1, a1.Count(EventCallDeclined))
	assert.Equal(t, 1, b1.Count(EventCallHandled))

	_, err = calls.Answer(ctx, "bob", res.Call.ID)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	_, err = calls.End(ctx, "alice", res.Call.ID)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestEndBeforeAnswerKeepsMissed(t *testing.T) {
	e, calls, _, clk := newCallEnv(t)
	e.connect(t, "alice", "a1")
	b1 := e.connect(t, "bob", "b1")

	res := initiate(t, calls)
	clk.advance(30 * time.Second)

	view, err := calls.End(context.Background(), "alice", res.Call.ID)
	require.NoError(t, err)
	assert.Zero(t, view.Duration)
	assert.Equal(t, models.CallMissed, view.Status)
	assert.Equal(t, 1, b1.Count(EventCallEnded))
}

func TestInitiateOfflineReceiver(t *testing.T) {
	e, calls, _, _ := newCallEnv(t)
	e.connect(t, "alice", "a1")

	res, err := calls.Initiate(context.Background(), InitiateInput{
		CallerID:   "alice",
		ReceiverID: "bob",
		Kind:       models.CallVoice,
		SessionID:  "room-2",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnavailable))
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Call.ID)
	assert.Empty(t, res.Token)

	stored := loadCall(t, e, res.Call.ID)
	assert.Equal(t, models.CallMissed, stored.Status)
	assert.NotNil(t, stored.EndedAt)
}

func TestInitiateUnconfiguredTransportPersistsNothing(t *testing.T) {
	e, calls, issuer, _ := newCallEnv(t)
	e.connect(t, "bob", "b1")
	issuer.err = ErrTransportUnconfigured

	_, err := calls.Initiate(context.Background(), InitiateInput{
		CallerID:   "alice",
		ReceiverID: "bob",
		Kind:       models.CallVoice,
		SessionID:  "room-3",
	})
	assert.True(t, errors.Is(err, apperrors.ErrUnavailable))

	var count int64
	require.NoError(t, e.db.Model(&models.Call{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInitiateValidation(t *testing.T) {
	e, calls, _, _ := newCallEnv(t)
	e.connect(t, "bob", "b1")
	ctx := context.Background()
	conv := e.direct(t, "alice", "carol")

	tests := []struct {
		name string
		in   InitiateInput
		want error
	}{
		{"bad kind", InitiateInput{CallerID: "alice", ReceiverID: "bob", Kind: "fax", SessionID: "s"}, apperrors.ErrInvalidRequest},
		{"no session", InitiateInput{CallerID: "alice", ReceiverID: "bob", Kind: models.CallVoice}, apperrors.ErrInvalidRequest},
		{"self", InitiateInput{CallerID: "alice", ReceiverID: "alice", Kind: models.CallVoice, SessionID: "s"}, apperrors.ErrInvalidRequest},
		{"unknown receiver", InitiateInput{CallerID: "alice", ReceiverID: "ghost", Kind: models.CallVoice, SessionID: "s"}, apperrors.ErrInvalidRequest},
		{"outside conversation", InitiateInput{CallerID: "alice", ReceiverID: "bob", Kind: models.CallVoice, SessionID: "s", ConversationID: conv.ID}, apperrors.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calls.Initiate(ctx, tt.in)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestCallActionsRequireParticipant(t *testing.T) {
	e, calls, _, _ := newCallEnv(t)
	e.connect(t, "bob", "b1")
	ctx := context.Background()
	res := initiate(t, calls)

	_, err := calls.Answer(ctx, "carol", res.Call.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = calls.End(ctx, "carol", res.Call.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = calls.Answer(ctx, "bob", "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestHistory(t *testing.T) {
	e, calls, _, clk := newCallEnv(t)
	e.connect(t, "bob", "b1")

	first := initiate(t, calls)
	clk.advance(time.Minute)
	second := initiate(t, calls)

	history, err := calls.History(context.Background(), "bob", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.Call.ID, history[0].ID)
	assert.Equal(t, first.Call.ID, history[1].ID)
	assert.Equal(t, "alice", history[0].Caller.Name)

	history, err = calls.History(context.Background(), "carol", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
