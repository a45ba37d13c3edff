package queue

import (
	"fmt"
	"testing"
	"time"

	"cafeplease/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func ids(rs []model.Request) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func fixture() ([]model.Request, []model.User) {
	users := []model.User{
		{ID: "a", AssistantType: model.TeamInbound},
		{ID: "b", AssistantType: model.TeamInbound},
		{ID: "c", AssistantType: model.TeamInbound},
		{ID: "d", AssistantType: model.TeamInbound},
		{ID: "e", AssistantType: model.TeamOutbound},
	}
	requests := []model.Request{
		{ID: "p-late", UserID: "a", Status: model.StatusPending, RequestedAt: t0.Add(3 * time.Minute)},
		{ID: "p-early", UserID: "b", Status: model.StatusPending, RequestedAt: t0.Add(1 * time.Minute)},
		{ID: "approved", UserID: "c", Status: model.StatusApproved, RequestedAt: t0.Add(2 * time.Minute), HandledAt: model.TimePtr(t0.Add(4 * time.Minute))},
		{ID: "active", UserID: "d", Status: model.StatusActive, CodeType: model.CodeBreak, RequestedAt: t0, StartedAt: model.TimePtr(t0.Add(5 * time.Minute))},
		{ID: "other-team", UserID: "e", Status: model.StatusPending, RequestedAt: t0},
	}
	return requests, users
}

func TestPendingQueue_ApprovedFirstThenFIFO(t *testing.T) {
	requests, users := fixture()
	got := PendingQueue(requests, users, model.TeamInbound)
	assert.Equal(t, []string{"approved", "p-early", "p-late"}, ids(got))
}

func TestActiveList(t *testing.T) {
	requests, users := fixture()
	requests = append(requests, model.Request{ID: "active-nostart", UserID: "a", Status: model.StatusActive, RequestedAt: t0.Add(time.Minute)})
	got := ActiveList(requests, users, model.TeamInbound)
	assert.Equal(t, []string{"active-nostart", "active"}, ids(got))
}

func TestPosition(t *testing.T) {
	requests, users := fixture()
	assert.Equal(t, 1, Position(requests, users, "p-early"))
	assert.Equal(t, 2, Position(requests, users, "p-late"))
	assert.Equal(t, 1, Position(requests, users, "other-team"))
	assert.Equal(t, 0, Position(requests, users, "approved"))
	assert.Equal(t, 0, Position(requests, users, "missing"))
}

func TestBoard(t *testing.T) {
	requests, users := fixture()
	for i := 0; i < HistoryLimit+5; i++ {
		requests = append(requests, model.Request{
			ID:          fmt.Sprintf("h%02d", i),
			UserID:      "a",
			Status:      model.StatusCompleted,
			RequestedAt: t0.Add(-time.Hour),
			HandledAt:   model.TimePtr(t0.Add(-time.Duration(i) * time.Minute)),
		})
	}

	boards := Board(requests, users)
	require.Len(t, boards, len(model.Teams))
	in := boards[0]
	assert.Equal(t, model.TeamInbound, in.Team)
	assert.Equal(t, []string{"p-early", "p-late"}, ids(in.Pending))
	assert.Equal(t, []string{"approved"}, ids(in.Approved))
	assert.Equal(t, []string{"active"}, ids(in.Active))
	require.Len(t, in.History, HistoryLimit)
	assert.Equal(t, "h00", in.History[0].ID)

	assert.Equal(t, []string{"other-team"}, ids(boards[1].Pending))
	assert.Empty(t, boards[2].Pending)
}

func TestSummary(t *testing.T) {
	requests, users := fixture()
	sum := Summary(requests, users, model.DefaultSettings())
	require.Len(t, sum, 3)
	assert.Equal(t, 2, sum[0].Pending)
	assert.Equal(t, 1, sum[0].ActiveBreaks)
	assert.Equal(t, 0, sum[0].ActiveOthers)
	assert.True(t, sum[0].AutoApprove)
	assert.Equal(t, 1, sum[1].Pending)
}
