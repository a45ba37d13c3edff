package api

import (
	"net/http"

	"cafeplease/internal/auth"
	"cafeplease/internal/leaderboard"
	"cafeplease/internal/model"

	"github.com/go-chi/chi/v5"
)

// teamParam reads {team} and checks an assistant only looks at their own team.
func (d Dependencies) teamParam(w http.ResponseWriter, r *http.Request) (model.Team, bool) {
	team := model.Team(chi.URLParam(r, "team"))
	if !team.Valid() {
		WriteError(w, http.StatusBadRequest, "invalid_input", "unknown team "+string(team), d.Log)
		return "", false
	}
	p, _ := auth.GetPrincipal(r.Context())
	if p.Role.CanManage() {
		return team, true
	}
	users, err := d.Desk.Users(r.Context())
	if err != nil {
		writeServiceError(w, err, d.Log)
		return "", false
	}
	if model.UserIndex(users)[p.UserID].Team() != team {
		WriteError(w, http.StatusForbidden, "forbidden", "not a member of "+string(team), d.Log)
		return "", false
	}
	return team, true
}

func (d Dependencies) teamQueue(w http.ResponseWriter, r *http.Request) {
	team, ok := d.teamParam(w, r)
	if !ok {
		return
	}
	items, err := d.Desk.PendingQueue(r.Context(), team)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"team": team, "items": items})
}

func (d Dependencies) teamActive(w http.ResponseWriter, r *http.Request) {
	team, ok := d.teamParam(w, r)
	if !ok {
		return
	}
	items, err := d.Desk.ActiveList(r.Context(), team)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"team": team, "items": items})
}

func (d Dependencies) board(w http.ResponseWriter, r *http.Request) {
	teams, err := d.Desk.Board(r.Context())
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

func (d Dependencies) summary(w http.ResponseWriter, r *http.Request) {
	teams, err := d.Desk.Summary(r.Context())
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

func (d Dependencies) period(w http.ResponseWriter, r *http.Request) (leaderboard.Period, bool) {
	p, err := leaderboard.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), d.Log)
		return "", false
	}
	return p, true
}

func (d Dependencies) leaderboardScores(w http.ResponseWriter, r *http.Request) {
	period, ok := d.period(w, r)
	if !ok {
		return
	}
	scores, err := d.Desk.Scores(r.Context(), period)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"period": period, "items": scores})
}

func (d Dependencies) leaderboardSales(w http.ResponseWriter, r *http.Request) {
	period, ok := d.period(w, r)
	if !ok {
		return
	}
	ranks, err := d.Desk.SalesRanking(r.Context(), period)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"period": period, "items": ranks})
}
