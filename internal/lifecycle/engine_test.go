package lifecycle

import (
	"testing"
	"time"

	"cafeplease/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func pending() model.Request {
	return model.Request{
		ID:          "r1",
		UserID:      "u1",
		UserName:    "Ana",
		CodeType:    model.CodeBreak,
		Duration:    10,
		Status:      model.StatusPending,
		RequestedAt: t0,
	}
}

func manager(now time.Time) Context {
	return Context{Now: now, ValidationTimeout: 30 * time.Second, By: ActorManager}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		event Event
		from  model.Status
		want  bool
	}{
		{EventApprove, model.StatusPending, true},
		{EventApprove, model.StatusApproved, false},
		{EventReject, model.StatusPending, true},
		{EventCancel, model.StatusPending, true},
		{EventCancel, model.StatusApproved, false},
		{EventAccept, model.StatusApproved, true},
		{EventAccept, model.StatusPending, false},
		{EventDecline, model.StatusApproved, true},
		{EventExpire, model.StatusApproved, true},
		{EventComplete, model.StatusActive, true},
		{EventEndEarly, model.StatusActive, true},
		{EventEndEarly, model.StatusApproved, false},
		{Event("teleport"), model.StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.event)+"_from_"+string(tt.from), func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTransition(tt.event, tt.from))
		})
	}
}

func TestSubmit(t *testing.T) {
	user := model.User{ID: "u1", Name: "Ana", Role: model.RoleAssistant, AssistantType: model.TeamInbound}

	req, err := Submit(nil, SubmitInput{User: user, CodeType: model.CodeBreak, Duration: 10}, t0)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, model.StatusPending, req.Status)
	assert.Equal(t, "Ana", req.UserName)
	assert.Equal(t, t0, req.RequestedAt)
	assert.Nil(t, req.HandledAt)

	_, err = Submit([]model.Request{req}, SubmitInput{User: user, CodeType: model.CodeLunch, Duration: 15}, t0)
	assert.True(t, errors.Is(err, ErrDuplicateLiveRequest))

	_, err = Submit(nil, SubmitInput{User: user, CodeType: "NAP", Duration: 10}, t0)
	assert.True(t, errors.Is(err, ErrInvalidCodeType))

	_, err = Submit(nil, SubmitInput{User: user, CodeType: model.CodeBreak, Duration: 45}, t0)
	assert.True(t, errors.Is(err, ErrInvalidDuration))
}

func TestSubmit_AfterTerminalRequest(t *testing.T) {
	user := model.User{ID: "u1", Name: "Ana"}
	done := pending()
	done.Status = model.StatusCompleted

	_, err := Submit([]model.Request{done}, SubmitInput{User: user, CodeType: model.CodeOther, Duration: 20}, t0)
	assert.NoError(t, err)
}

func TestTransition_ManagerApprove(t *testing.T) {
	now := t0.Add(time.Minute)
	in := pending()

	out, err := Transition(in, EventApprove, manager(now))
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, out.Status)
	require.NotNil(t, out.ValidationExpiresAt)
	assert.Equal(t, now.Add(30*time.Second), *out.ValidationExpiresAt)
	require.NotNil(t, out.HandledAt)
	assert.Equal(t, now, *out.HandledAt)

	// input untouched
	assert.Empty(t, cmp.Diff(pending(), in))
}

func TestTransition_BotApproveNeedsCapacity(t *testing.T) {
	c := Context{Now: t0, ValidationTimeout: 30 * time.Second, By: ActorBot}

	_, err := Transition(pending(), EventApprove, c)
	assert.True(t, errors.Is(err, ErrCapacityExceeded))

	c.HasCapacity = true
	out, err := Transition(pending(), EventApprove, c)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, out.Status)
}

func TestTransition_ManagerApproveIgnoresCapacity(t *testing.T) {
	c := manager(t0)
	c.HasCapacity = false
	out, err := Transition(pending(), EventApprove, c)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, out.Status)
}

func TestTransition_AcceptSetsWindow(t *testing.T) {
	approved, err := Transition(pending(), EventApprove, manager(t0))
	require.NoError(t, err)

	now := t0.Add(10 * time.Second)
	active, err := Transition(approved, EventAccept, manager(now))
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, active.Status)
	assert.Equal(t, now, *active.StartedAt)
	assert.Equal(t, now.Add(10*time.Minute), *active.EndsAt)
}

func TestTransition_AcceptAtDeadlineStillAllowed(t *testing.T) {
	approved, err := Transition(pending(), EventApprove, manager(t0))
	require.NoError(t, err)

	_, err = Transition(approved, EventAccept, manager(*approved.ValidationExpiresAt))
	assert.NoError(t, err)
}

func TestTransition_AcceptAfterDeadlineFails(t *testing.T) {
	approved, err := Transition(pending(), EventApprove, manager(t0))
	require.NoError(t, err)

	out, err := Transition(approved, EventAccept, manager(t0.Add(31*time.Second)))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, model.StatusApproved, out.Status)
}

func TestTransition_Expire(t *testing.T) {
	approved, err := Transition(pending(), EventApprove, manager(t0))
	require.NoError(t, err)

	_, err = Transition(approved, EventExpire, manager(t0.Add(30*time.Second)))
	assert.True(t, errors.Is(err, ErrNotDue))

	now := t0.Add(31 * time.Second)
	expired, err := Transition(approved, EventExpire, manager(now))
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, expired.Status)
	assert.Equal(t, now, *expired.HandledAt)
}

func TestTransition_Complete(t *testing.T) {
	approved, _ := Transition(pending(), EventApprove, manager(t0))
	active, _ := Transition(approved, EventAccept, manager(t0))

	_, err := Transition(active, EventComplete, manager(t0.Add(10*time.Minute)))
	assert.True(t, errors.Is(err, ErrNotDue))

	done, err := Transition(active, EventComplete, manager(t0.Add(10*time.Minute+time.Second)))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, active.HandledAt, done.HandledAt)
}

func TestTransition_EndEarly(t *testing.T) {
	approved, _ := Transition(pending(), EventApprove, manager(t0))
	active, _ := Transition(approved, EventAccept, manager(t0))

	now := t0.Add(2 * time.Minute)
	done, err := Transition(active, EventEndEarly, manager(now))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, now, *done.HandledAt)
}

func TestTransition_RejectDeclineCancel(t *testing.T) {
	rejected, err := Transition(pending(), EventReject, manager(t0))
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
	assert.NotNil(t, rejected.HandledAt)

	cancelled, err := Transition(pending(), EventCancel, manager(t0))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	approved, _ := Transition(pending(), EventApprove, manager(t0))
	declined, err := Transition(approved, EventDecline, manager(t0))
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, declined.Status)
}

func TestTransition_TerminalStatesAreFinal(t *testing.T) {
	events := []Event{EventApprove, EventReject, EventCancel, EventAccept, EventDecline, EventExpire, EventComplete, EventEndEarly}
	terminal := []model.Status{model.StatusRejected, model.StatusCompleted, model.StatusCancelled, model.StatusExpired}
	far := t0.Add(24 * time.Hour)

	for _, st := range terminal {
		for _, ev := range events {
			req := pending()
			req.Status = st
			req.ValidationExpiresAt = model.TimePtr(t0)
			req.EndsAt = model.TimePtr(t0)

			out, err := Transition(req, ev, Context{Now: far, By: ActorManager, HasCapacity: true})
			assert.True(t, errors.Is(err, ErrInvalidTransition), "%s from %s", ev, st)
			assert.Equal(t, st, out.Status)
		}
	}
}
