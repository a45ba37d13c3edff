// Package leaderboard ranks assistants by request outcomes and by sales.
package leaderboard

import (
	"sort"
	"time"

	"cafeplease/internal/model"

	"github.com/cockroachdb/errors"
)

var ErrUnknownPeriod = errors.New("unknown period")

// Period selects which requests or sales count towards a ranking.
type Period string

const (
	ThisMonth Period = "this-month"
	LastMonth Period = "last-month"
	AllTime   Period = "all-time"
)

// ParsePeriod accepts the three period names, defaulting to ThisMonth for "".
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return ThisMonth, nil
	case ThisMonth, LastMonth, AllTime:
		return Period(s), nil
	}
	return "", errors.Wrapf(ErrUnknownPeriod, "%q", s)
}

// Contains reports whether t falls inside p relative to now. Month
// boundaries are computed in now's location.
func (p Period) Contains(t, now time.Time) bool {
	if p == AllTime {
		return true
	}
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	switch p {
	case ThisMonth:
		return !t.Before(thisMonth)
	case LastMonth:
		return !t.Before(thisMonth.AddDate(0, -1, 0)) && t.Before(thisMonth)
	}
	return false
}

// Points awarded per terminal outcome.
var Points = map[model.Status]int{
	model.StatusCompleted: 10,
	model.StatusRejected:  -5,
	model.StatusCancelled: -5,
	model.StatusExpired:   -10,
}

type Stats struct {
	Completed int `json:"completed"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
	Expired   int `json:"expired"`
}

type Score struct {
	Rank          int        `json:"rank"`
	UserID        string     `json:"userId"`
	UserName      string     `json:"userName"`
	AssistantType model.Team `json:"assistantType,omitempty"`
	Score         int        `json:"score"`
	Stats         Stats      `json:"stats"`
}

// Scores ranks every assistant by outcome points for requests made in period.
// Requests from users who are not assistants are ignored.
func Scores(requests []model.Request, users []model.User, period Period, now time.Time) []Score {
	byUser := make(map[string]*Score)
	out := make([]*Score, 0)
	for _, u := range users {
		if u.Role != model.RoleAssistant {
			continue
		}
		s := &Score{UserID: u.ID, UserName: u.Name, AssistantType: u.AssistantType}
		byUser[u.ID] = s
		out = append(out, s)
	}

	for _, r := range requests {
		s, ok := byUser[r.UserID]
		if !ok || !period.Contains(r.RequestedAt, now) {
			continue
		}
		s.Score += Points[r.Status]
		switch r.Status {
		case model.StatusCompleted:
			s.Stats.Completed++
		case model.StatusRejected:
			s.Stats.Rejected++
		case model.StatusCancelled:
			s.Stats.Cancelled++
		case model.StatusExpired:
			s.Stats.Expired++
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	ranked := make([]Score, len(out))
	for i, s := range out {
		s.Rank = i + 1
		ranked[i] = *s
	}
	return ranked
}

type SalesRank struct {
	Rank          int        `json:"rank"`
	UserID        string     `json:"userId"`
	UserName      string     `json:"userName"`
	AssistantType model.Team `json:"assistantType,omitempty"`
	TotalSales    int        `json:"totalSales"`
}

// Sales ranks every assistant by the sales they reported in period.
func Sales(sales []model.Sale, users []model.User, period Period, now time.Time) []SalesRank {
	byUser := make(map[string]*SalesRank)
	out := make([]*SalesRank, 0)
	for _, u := range users {
		if u.Role != model.RoleAssistant {
			continue
		}
		s := &SalesRank{UserID: u.ID, UserName: u.Name, AssistantType: u.AssistantType}
		byUser[u.ID] = s
		out = append(out, s)
	}

	for _, sale := range sales {
		if s, ok := byUser[sale.UserID]; ok && period.Contains(sale.ReportedAt, now) {
			s.TotalSales += sale.SaleCount
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalSales > out[j].TotalSales })
	ranked := make([]SalesRank, len(out))
	for i, s := range out {
		s.Rank = i + 1
		ranked[i] = *s
	}
	return ranked
}
