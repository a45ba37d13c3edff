// Package scheduler runs the auto-approval bot: a pure RunTick over the
// whole collection and a Runner that calls it on an interval.
package scheduler

import (
	"sort"
	"time"

	"cafeplease/internal/capacity"
	"cafeplease/internal/lifecycle"
	"cafeplease/internal/model"
)

// TickResult is the outcome of one tick. Requests is always a fresh slice.
type TickResult struct {
	Requests  []model.Request
	Changed   bool
	Expired   []string
	Approved  []string
	Completed []string
}

// RunTick expires stale approvals, grants at most one bot approval and
// completes finished codes, in that order. The input slice is not modified.
//
// Only one approval is granted per tick. Pending requests are scanned in
// global requestedAt order so the oldest eligible request always wins, and
// capacity is recomputed from scratch on the next tick.
func RunTick(requests []model.Request, users []model.User, settings model.Settings, now time.Time) TickResult {
	out := make([]model.Request, len(requests))
	copy(out, requests)

	res := TickResult{Requests: out}
	c := lifecycle.Context{
		Now:               now,
		ValidationTimeout: settings.Timeout(),
		By:                lifecycle.ActorBot,
	}

	for i := range out {
		if out[i].Status != model.StatusApproved {
			continue
		}
		next, err := lifecycle.Transition(out[i], lifecycle.EventExpire, c)
		if err != nil {
			continue
		}
		out[i] = next
		res.Expired = append(res.Expired, next.ID)
	}

	if i, ok := nextApproval(out, users, settings); ok {
		c.HasCapacity = true
		if next, err := lifecycle.Transition(out[i], lifecycle.EventApprove, c); err == nil {
			out[i] = next
			res.Approved = append(res.Approved, next.ID)
		}
	}

	for i := range out {
		if out[i].Status != model.StatusActive {
			continue
		}
		next, err := lifecycle.Transition(out[i], lifecycle.EventComplete, c)
		if err != nil {
			continue
		}
		out[i] = next
		res.Completed = append(res.Completed, next.ID)
	}

	res.Changed = len(res.Expired)+len(res.Approved)+len(res.Completed) > 0
	return res
}

// nextApproval returns the index of the oldest PENDING request whose team
// has the bot enabled and room in the request's bucket.
func nextApproval(requests []model.Request, users []model.User, settings model.Settings) (int, bool) {
	var order []int
	for i, r := range requests {
		if r.Status == model.StatusPending {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := requests[order[a]], requests[order[b]]
		if !ra.RequestedAt.Equal(rb.RequestedAt) {
			return ra.RequestedAt.Before(rb.RequestedAt)
		}
		return ra.ID < rb.ID
	})

	snap := capacity.Compute(requests, users)
	idx := model.UserIndex(users)
	for _, i := range order {
		u, ok := idx[requests[i].UserID]
		if !ok || u.Team() == "" {
			continue
		}
		team := u.Team()
		if !settings.AutoApprove[team] {
			continue
		}
		limits, ok := settings.LimitsFor(team)
		if !ok {
			continue
		}
		if snap.For(team).HasRoom(limits, requests[i].CodeType) {
			return i, true
		}
	}
	return 0, false
}
