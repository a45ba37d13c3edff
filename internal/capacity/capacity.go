// Package capacity counts how many assistants of each team are currently away.
package capacity

import "cafeplease/internal/model"

// Occupancy is the number of ACTIVE requests in a team, split by bucket.
type Occupancy struct {
	OnBreak int `json:"onBreak"`
	OnOther int `json:"onOther"`
}

// HasRoom reports whether one more request of codeType fits under limits.
func (o Occupancy) HasRoom(limits model.Limits, codeType model.CodeType) bool {
	if codeType.IsBreak() {
		return o.OnBreak < limits.MaxOnBreak
	}
	return o.OnOther < limits.MaxOnOther
}

// Add returns o with one more request of codeType counted.
func (o Occupancy) Add(codeType model.CodeType) Occupancy {
	if codeType.IsBreak() {
		o.OnBreak++
	} else {
		o.OnOther++
	}
	return o
}

// Snapshot is the per-team occupancy at one instant.
type Snapshot map[model.Team]Occupancy

// For returns the team's occupancy, zero when nobody is away.
func (s Snapshot) For(team model.Team) Occupancy {
	return s[team]
}

// Compute derives a fresh snapshot from the ACTIVE requests. Requests whose
// owner is unknown or has no team are not counted anywhere.
func Compute(requests []model.Request, users []model.User) Snapshot {
	idx := model.UserIndex(users)
	snap := make(Snapshot, len(model.Teams))
	for _, team := range model.Teams {
		snap[team] = Occupancy{}
	}

	for _, r := range requests {
		if r.Status != model.StatusActive {
			continue
		}
		u, ok := idx[r.UserID]
		if !ok || u.Team() == "" {
			continue
		}
		snap[u.Team()] = snap[u.Team()].Add(r.CodeType)
	}
	return snap
}

// ForTeam computes the occupancy of a single team.
func ForTeam(requests []model.Request, users []model.User, team model.Team) Occupancy {
	return Compute(requests, users).For(team)
}
