// Package lifecycle holds the request state machine. Every function here is
// pure: it returns a new model.Request and never touches its input.
package lifecycle

import (
	"time"

	"cafeplease/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
)

var (
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrDuplicateLiveRequest = errors.New("user already has a live request")
	ErrInvalidCodeType      = errors.New("invalid code type")
	ErrInvalidDuration      = errors.New("invalid duration")
	// ErrNotDue is returned by time-based events whose deadline has not passed yet.
	ErrNotDue = errors.New("transition not due")
)

// Actor identifies who triggers an approval.
type Actor string

const (
	ActorManager Actor = "manager"
	ActorBot     Actor = "bot"
)

// Context carries the inputs a transition needs besides the request itself.
type Context struct {
	Now               time.Time
	ValidationTimeout time.Duration
	By                Actor
	// HasCapacity is consulted only for bot approvals.
	HasCapacity bool
}

// SubmitInput describes a new request.
type SubmitInput struct {
	User     model.User
	CodeType model.CodeType
	Duration int
}

// Submit creates a PENDING request for in.User. existing is the full
// collection and is used only to enforce one live request per user.
func Submit(existing []model.Request, in SubmitInput, now time.Time) (model.Request, error) {
	if !in.CodeType.Valid() {
		return model.Request{}, errors.Wrapf(ErrInvalidCodeType, "%q", in.CodeType)
	}
	if !model.ValidDuration(in.Duration) {
		return model.Request{}, errors.Wrapf(ErrInvalidDuration, "%d minutes", in.Duration)
	}
	if live, ok := LiveRequest(existing, in.User.ID); ok {
		return model.Request{}, errors.Wrapf(ErrDuplicateLiveRequest, "request %s is %s", live.ID, live.Status)
	}

	return model.Request{
		ID:          ulid.Make().String(),
		UserID:      in.User.ID,
		UserName:    in.User.Name,
		CodeType:    in.CodeType,
		Duration:    in.Duration,
		Status:      model.StatusPending,
		RequestedAt: now,
	}, nil
}

// LiveRequest returns the user's PENDING, APPROVED or ACTIVE request if any.
func LiveRequest(requests []model.Request, userID string) (model.Request, bool) {
	for _, r := range requests {
		if r.UserID == userID && r.Status.IsLive() {
			return r, true
		}
	}
	return model.Request{}, false
}

// Transition applies event to req and returns the resulting record.
func Transition(req model.Request, event Event, c Context) (model.Request, error) {
	e, ok := transitionMap[event]
	if !ok {
		return req, errors.Wrapf(ErrInvalidTransition, "unknown event %q", event)
	}
	if req.Status != e.from {
		return req, errors.Wrapf(ErrInvalidTransition, "cannot %s request %s in status %s", event, req.ID, req.Status)
	}

	switch event {
	case EventApprove:
		if c.By == ActorBot && !c.HasCapacity {
			return req, errors.Wrapf(ErrCapacityExceeded, "request %s", req.ID)
		}
	case EventAccept:
		if req.ValidationExpiresAt != nil && c.Now.After(*req.ValidationExpiresAt) {
			return req, errors.Wrapf(ErrInvalidTransition, "validation window for request %s closed at %s",
				req.ID, req.ValidationExpiresAt.Format(time.RFC3339))
		}
	case EventExpire:
		if req.ValidationExpiresAt == nil || !c.Now.After(*req.ValidationExpiresAt) {
			return req, ErrNotDue
		}
	case EventComplete:
		if req.EndsAt == nil || !c.Now.After(*req.EndsAt) {
			return req, ErrNotDue
		}
	}

	out := req
	out.Status = e.to
	if stampsHandledAt[event] {
		out.HandledAt = model.TimePtr(c.Now)
	}

	switch event {
	case EventApprove:
		out.ValidationExpiresAt = model.TimePtr(c.Now.Add(c.ValidationTimeout))
	case EventAccept:
		out.StartedAt = model.TimePtr(c.Now)
		out.EndsAt = model.TimePtr(c.Now.Add(time.Duration(req.Duration) * time.Minute))
	}

	return out, nil
}
