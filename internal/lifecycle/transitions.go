package lifecycle

import "cafeplease/internal/model"

// Event is something that can happen to a request after submission.
type Event string

const (
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventCancel   Event = "cancel"
	EventAccept   Event = "accept"
	EventDecline  Event = "decline"
	EventExpire   Event = "expire"
	EventComplete Event = "complete"
	EventEndEarly Event = "end_early"
)

type edge struct {
	from model.Status
	to   model.Status
}

var transitionMap = map[Event]edge{
	EventApprove:  {model.StatusPending, model.StatusApproved},
	EventReject:   {model.StatusPending, model.StatusRejected},
	EventCancel:   {model.StatusPending, model.StatusCancelled},
	EventAccept:   {model.StatusApproved, model.StatusActive},
	EventDecline:  {model.StatusApproved, model.StatusRejected},
	EventExpire:   {model.StatusApproved, model.StatusExpired},
	EventComplete: {model.StatusActive, model.StatusCompleted},
	EventEndEarly: {model.StatusActive, model.StatusCompleted},
}

// ValidTransition reports whether event is legal from status, ignoring guards.
func ValidTransition(event Event, from model.Status) bool {
	e, ok := transitionMap[event]
	return ok && e.from == from
}

// stampsHandledAt lists the events that record when a person or the bot dealt with a request.
var stampsHandledAt = map[Event]bool{
	EventApprove:  true,
	EventReject:   true,
	EventCancel:   true,
	EventDecline:  true,
	EventExpire:   true,
	EventEndEarly: true,
}
