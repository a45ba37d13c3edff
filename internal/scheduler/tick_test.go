package scheduler

import (
	"fmt"
	"testing"
	"time"

	"cafeplease/internal/capacity"
	"cafeplease/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var roster = []model.User{
	{ID: "u1", Name: "Ana", Role: model.RoleAssistant, AssistantType: model.TeamInbound},
	{ID: "u2", Name: "Bia", Role: model.RoleAssistant, AssistantType: model.TeamInbound},
	{ID: "u3", Name: "Caio", Role: model.RoleAssistant, AssistantType: model.TeamInbound},
	{ID: "u4", Name: "Duda", Role: model.RoleAssistant, AssistantType: model.TeamOutbound},
	{ID: "u5", Name: "Edu", Role: model.RoleAssistant, AssistantType: model.TeamAmigo},
	{ID: "m1", Name: "Mara", Role: model.RoleManager},
}

func req(id, user string, code model.CodeType, status model.Status, at time.Time) model.Request {
	return model.Request{ID: id, UserID: user, CodeType: code, Duration: 10, Status: status, RequestedAt: at}
}

func find(t *testing.T, rs []model.Request, id string) model.Request {
	t.Helper()
	for _, r := range rs {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("request %s not found", id)
	return model.Request{}
}

func TestRunTick_ApprovesPendingWithRoom(t *testing.T) {
	settings := model.DefaultSettings()
	now := t0.Add(time.Second)
	in := []model.Request{req("r1", "u1", model.CodeBreak, model.StatusPending, t0)}

	res := RunTick(in, roster, settings, now)

	require.True(t, res.Changed)
	assert.Equal(t, []string{"r1"}, res.Approved)
	got := find(t, res.Requests, "r1")
	assert.Equal(t, model.StatusApproved, got.Status)
	require.NotNil(t, got.ValidationExpiresAt)
	assert.Equal(t, now.Add(30*time.Second), *got.ValidationExpiresAt)
	assert.Equal(t, model.StatusPending, in[0].Status)
}

func TestRunTick_FullTeamKeepsPending(t *testing.T) {
	settings := model.DefaultSettings()
	active := req("r0", "u2", model.CodeBreak, model.StatusActive, t0)
	active.StartedAt = model.TimePtr(t0)
	active.EndsAt = model.TimePtr(t0.Add(time.Hour))
	requests := []model.Request{active, req("r1", "u1", model.CodeBreak, model.StatusPending, t0.Add(time.Second))}

	for i := 0; i < 10; i++ {
		res := RunTick(requests, roster, settings, t0.Add(time.Duration(i)*5*time.Second))
		assert.False(t, res.Changed)
		requests = res.Requests
	}
	assert.Equal(t, model.StatusPending, find(t, requests, "r1").Status)
}

func TestRunTick_ExpiresStaleApproval(t *testing.T) {
	settings := model.DefaultSettings()
	stale := req("r1", "u1", model.CodeBreak, model.StatusApproved, t0)
	stale.ValidationExpiresAt = model.TimePtr(t0.Add(30 * time.Second))
	waiting := req("r2", "u2", model.CodeBreak, model.StatusPending, t0.Add(time.Second))
	now := t0.Add(time.Minute)

	res := RunTick([]model.Request{stale, waiting}, roster, settings, now)

	got := find(t, res.Requests, "r1")
	assert.Equal(t, model.StatusExpired, got.Status)
	require.NotNil(t, got.HandledAt)
	assert.Equal(t, now, *got.HandledAt)
	assert.Equal(t, []string{"r1"}, res.Expired)
	// the expired approval never occupied a slot, the next break is approved
	assert.Equal(t, []string{"r2"}, res.Approved)
}

func TestRunTick_CompletesFinishedCode(t *testing.T) {
	settings := model.DefaultSettings()
	active := req("r1", "u1", model.CodeLunch, model.StatusActive, t0)
	active.StartedAt = model.TimePtr(t0)
	active.EndsAt = model.TimePtr(t0.Add(10 * time.Minute))

	res := RunTick([]model.Request{active}, roster, settings, t0.Add(10*time.Minute+time.Second))

	assert.Equal(t, []string{"r1"}, res.Completed)
	assert.Equal(t, model.StatusCompleted, find(t, res.Requests, "r1").Status)
}

func TestRunTick_FIFOAcrossTeams(t *testing.T) {
	settings := model.DefaultSettings()
	requests := []model.Request{
		req("late", "u1", model.CodeBreak, model.StatusPending, t0.Add(2*time.Second)),
		req("early", "u2", model.CodeBreak, model.StatusPending, t0.Add(1*time.Second)),
		req("other-team", "u4", model.CodeBreak, model.StatusPending, t0.Add(3*time.Second)),
	}

	res := RunTick(requests, roster, settings, t0.Add(5*time.Second))
	assert.Equal(t, []string{"early"}, res.Approved)
	assert.Equal(t, model.StatusPending, find(t, res.Requests, "late").Status)
	assert.Equal(t, model.StatusPending, find(t, res.Requests, "other-team").Status)
}

func TestRunTick_SkipsTeamsWithoutAutoApprove(t *testing.T) {
	settings := model.DefaultSettings()
	settings.AutoApprove[model.TeamInbound] = false
	requests := []model.Request{
		req("inbound", "u1", model.CodeBreak, model.StatusPending, t0),
		req("outbound", "u4", model.CodeBreak, model.StatusPending, t0.Add(time.Second)),
		req("manager", "m1", model.CodeBreak, model.StatusPending, t0),
		req("ghost", "nobody", model.CodeBreak, model.StatusPending, t0),
	}

	res := RunTick(requests, roster, settings, t0.Add(5*time.Second))
	assert.Equal(t, []string{"outbound"}, res.Approved)
}

func TestRunTick_FullBucketDoesNotBlockOtherBucket(t *testing.T) {
	settings := model.DefaultSettings()
	active := req("busy", "u3", model.CodeBreak, model.StatusActive, t0)
	active.EndsAt = model.TimePtr(t0.Add(time.Hour))
	requests := []model.Request{
		active,
		req("break", "u1", model.CodeBreak, model.StatusPending, t0.Add(time.Second)),
		req("lunch", "u2", model.CodeLunch, model.StatusPending, t0.Add(2*time.Second)),
	}

	res := RunTick(requests, roster, settings, t0.Add(5*time.Second))
	assert.Equal(t, []string{"lunch"}, res.Approved)
}

func TestRunTick_IdempotentWhenNothingToDo(t *testing.T) {
	settings := model.DefaultSettings()
	active := req("busy", "u3", model.CodeBreak, model.StatusActive, t0)
	active.StartedAt = model.TimePtr(t0)
	active.EndsAt = model.TimePtr(t0.Add(time.Hour))
	approved := req("appr", "u4", model.CodeOther, model.StatusApproved, t0)
	approved.ValidationExpiresAt = model.TimePtr(t0.Add(time.Hour))
	requests := []model.Request{active, approved, req("wait", "u1", model.CodeBreak, model.StatusPending, t0)}
	now := t0.Add(time.Minute)

	first := RunTick(requests, roster, settings, now)
	second := RunTick(first.Requests, roster, settings, now)

	assert.False(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Empty(t, cmp.Diff(requests, first.Requests))
	assert.Empty(t, cmp.Diff(first.Requests, second.Requests))
}

// The bot never approves past the limit even when it is the only one
// moving requests forward.
func TestRunTick_CapacityNeverExceeded(t *testing.T) {
	settings := model.DefaultSettings()
	settings.ValidationTimeout = 3600
	var requests []model.Request
	users := append([]model.User(nil), roster...)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("a%02d", i)
		users = append(users, model.User{ID: id, Role: model.RoleAssistant, AssistantType: model.TeamAmigo})
		code := model.CodeBreak
		if i%2 == 1 {
			code = model.CodeCampaign
		}
		requests = append(requests, req("r"+id, id, code, model.StatusPending, t0.Add(time.Duration(i)*time.Second)))
	}

	now := t0.Add(time.Minute)
	for tick := 0; tick < 30; tick++ {
		res := RunTick(requests, users, settings, now)
		requests = res.Requests
		// every approval is accepted straight away so it counts as ACTIVE
		for i := range requests {
			if requests[i].Status == model.StatusApproved {
				requests[i].Status = model.StatusActive
				requests[i].StartedAt = model.TimePtr(now)
				requests[i].EndsAt = model.TimePtr(now.Add(time.Hour))
			}
		}
		occ := capacity.ForTeam(requests, users, model.TeamAmigo)
		limits := settings.Limits[model.TeamAmigo]
		assert.LessOrEqual(t, occ.OnBreak, limits.MaxOnBreak)
		assert.LessOrEqual(t, occ.OnOther, limits.MaxOnOther)
		now = now.Add(5 * time.Second)
	}

	occ := capacity.ForTeam(requests, users, model.TeamAmigo)
	assert.Equal(t, capacity.Occupancy{OnBreak: 2, OnOther: 2}, occ)
}

func TestRunTick_DoesNotMutateInput(t *testing.T) {
	requests := []model.Request{req("r1", "u1", model.CodeBreak, model.StatusPending, t0)}
	snapshot := append([]model.Request(nil), requests...)

	RunTick(requests, roster, model.DefaultSettings(), t0.Add(time.Second))
	assert.Empty(t, cmp.Diff(snapshot, requests))
}
