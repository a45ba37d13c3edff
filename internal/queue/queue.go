// Package queue builds the read-only views shown to assistants and managers.
package queue

import (
	"sort"
	"time"

	"cafeplease/internal/capacity"
	"cafeplease/internal/model"
)

// HistoryLimit caps the number of finished requests on the manager board.
const HistoryLimit = 50

func teamOf(idx map[string]model.User, r model.Request) model.Team {
	return idx[r.UserID].Team()
}

func filter(requests []model.Request, users []model.User, team model.Team, keep func(model.Request) bool) []model.Request {
	idx := model.UserIndex(users)
	out := []model.Request{}
	for _, r := range requests {
		if teamOf(idx, r) == team && keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func orZero(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return *t
}

// PendingQueue returns the team's PENDING and APPROVED requests, APPROVED
// first, each group by requestedAt ascending.
func PendingQueue(requests []model.Request, users []model.User, team model.Team) []model.Request {
	out := filter(requests, users, team, func(r model.Request) bool {
		return r.Status == model.StatusPending || r.Status == model.StatusApproved
	})
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].Status == model.StatusApproved, out[j].Status == model.StatusApproved
		if ai != aj {
			return ai
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

// ActiveList returns the team's ACTIVE requests ordered by start time.
func ActiveList(requests []model.Request, users []model.User, team model.Team) []model.Request {
	out := filter(requests, users, team, func(r model.Request) bool {
		return r.Status == model.StatusActive
	})
	sort.SliceStable(out, func(i, j int) bool {
		return orZero(out[i].StartedAt, out[i].RequestedAt).Before(orZero(out[j].StartedAt, out[j].RequestedAt))
	})
	return out
}

// Position is the 1-based rank of requestID among its team's PENDING
// requests. It is 0 when the request is missing or not PENDING.
func Position(requests []model.Request, users []model.User, requestID string) int {
	idx := model.UserIndex(users)
	var target *model.Request
	for i := range requests {
		if requests[i].ID == requestID {
			target = &requests[i]
			break
		}
	}
	if target == nil || target.Status != model.StatusPending {
		return 0
	}

	team := teamOf(idx, *target)
	pos := 1
	for _, r := range requests {
		if r.ID == target.ID || r.Status != model.StatusPending || teamOf(idx, r) != team {
			continue
		}
		if r.RequestedAt.Before(target.RequestedAt) || (r.RequestedAt.Equal(target.RequestedAt) && r.ID < target.ID) {
			pos++
		}
	}
	return pos
}

// TeamBoard is the manager's view of one team.
type TeamBoard struct {
	Team     model.Team      `json:"team"`
	Pending  []model.Request `json:"pending"`
	Approved []model.Request `json:"approved"`
	Active   []model.Request `json:"active"`
	History  []model.Request `json:"history"`
}

// Board returns one TeamBoard per team in model.Teams order.
func Board(requests []model.Request, users []model.User) []TeamBoard {
	boards := make([]TeamBoard, 0, len(model.Teams))
	for _, team := range model.Teams {
		b := TeamBoard{Team: team}

		b.Pending = filter(requests, users, team, func(r model.Request) bool { return r.Status == model.StatusPending })
		sort.SliceStable(b.Pending, func(i, j int) bool {
			return b.Pending[i].RequestedAt.Before(b.Pending[j].RequestedAt)
		})

		b.Approved = filter(requests, users, team, func(r model.Request) bool { return r.Status == model.StatusApproved })
		sort.SliceStable(b.Approved, func(i, j int) bool {
			return orZero(b.Approved[i].HandledAt, b.Approved[i].RequestedAt).Before(orZero(b.Approved[j].HandledAt, b.Approved[j].RequestedAt))
		})

		b.Active = ActiveList(requests, users, team)

		b.History = filter(requests, users, team, func(r model.Request) bool { return r.Status.IsTerminal() })
		sort.SliceStable(b.History, func(i, j int) bool {
			return orZero(b.History[i].HandledAt, b.History[i].RequestedAt).After(orZero(b.History[j].HandledAt, b.History[j].RequestedAt))
		})
		if len(b.History) > HistoryLimit {
			b.History = b.History[:HistoryLimit]
		}

		boards = append(boards, b)
	}
	return boards
}

// TeamSummary is the dashboard headline for a team.
type TeamSummary struct {
	Team         model.Team   `json:"team"`
	Pending      int          `json:"pending"`
	ActiveBreaks int          `json:"activeBreaks"`
	ActiveOthers int          `json:"activeOthers"`
	Limits       model.Limits `json:"limits"`
	AutoApprove  bool         `json:"autoApprove"`
}

// Summary returns one TeamSummary per team.
func Summary(requests []model.Request, users []model.User, settings model.Settings) []TeamSummary {
	snap := capacity.Compute(requests, users)
	idx := model.UserIndex(users)
	pending := make(map[model.Team]int)
	for _, r := range requests {
		if r.Status == model.StatusPending {
			pending[teamOf(idx, r)]++
		}
	}

	out := make([]TeamSummary, 0, len(model.Teams))
	for _, team := range model.Teams {
		occ := snap.For(team)
		out = append(out, TeamSummary{
			Team:         team,
			Pending:      pending[team],
			ActiveBreaks: occ.OnBreak,
			ActiveOthers: occ.OnOther,
			Limits:       settings.Limits[team],
			AutoApprove:  settings.AutoApprove[team],
		})
	}
	return out
}
