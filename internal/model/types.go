package model

import "time"

// Status represents request status
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusActive    Status = "ACTIVE"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// IsLive reports whether a request in this status still occupies the user's single live slot.
func (s Status) IsLive() bool {
	return s == StatusPending || s == StatusApproved || s == StatusActive
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// CodeType is the kind of time away from the queue an assistant asks for
type CodeType string

const (
	CodeBreak    CodeType = "BREAK"
	CodeFollowUp CodeType = "FOLLOW_UP"
	CodeCampaign CodeType = "CAMPAIGN"
	CodeLunch    CodeType = "LUNCH"
	CodeOther    CodeType = "OTHER"
)

// CodeTypes lists every accepted code type.
var CodeTypes = []CodeType{CodeBreak, CodeFollowUp, CodeCampaign, CodeLunch, CodeOther}

// Valid reports whether c is a known code type.
func (c CodeType) Valid() bool {
	for _, ct := range CodeTypes {
		if c == ct {
			return true
		}
	}
	return false
}

// IsBreak splits codes into the two capacity buckets: BREAK counts against
// maxOnBreak, everything else against maxOnOther.
func (c CodeType) IsBreak() bool {
	return c == CodeBreak
}

// Durations are the allowed code lengths in minutes.
var Durations = []int{10, 15, 20}

// ValidDuration reports whether minutes is one of Durations.
func ValidDuration(minutes int) bool {
	for _, d := range Durations {
		if d == minutes {
			return true
		}
	}
	return false
}

// Role represents user role
type Role string

const (
	RoleAssistant Role = "ASSISTANT"
	RoleManager   Role = "MANAGER"
	RoleAdmin     Role = "ADMIN"
)

// CanManage reports whether the role may approve, reject and edit settings.
func (r Role) CanManage() bool {
	return r == RoleManager || r == RoleAdmin
}

// Team is an assistant's operational group; capacity limits apply per team.
type Team string

const (
	TeamInbound  Team = "INBOUND"
	TeamOutbound Team = "OUTBOUND"
	TeamAmigo    Team = "AMIGO"
)

// Teams is the fixed display order of teams.
var Teams = []Team{TeamInbound, TeamOutbound, TeamAmigo}

// Valid reports whether t is a known team.
func (t Team) Valid() bool {
	for _, team := range Teams {
		if t == team {
			return true
		}
	}
	return false
}

// User is an assistant, manager or admin
type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Role          Role   `json:"role"`
	AssistantType Team   `json:"assistantType,omitempty"`
}

// Team returns the user's team, or "" when the user has none.
func (u User) Team() Team {
	return u.AssistantType
}

// Request represents one assistant's request to leave the queue for a while
type Request struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"userId"`
	UserName            string     `json:"userName"`
	CodeType            CodeType   `json:"codeType"`
	Duration            int        `json:"duration"`
	Status              Status     `json:"status"`
	RequestedAt         time.Time  `json:"requestedAt"`
	HandledAt           *time.Time `json:"handledAt,omitempty"`
	StartedAt           *time.Time `json:"startedAt,omitempty"`
	EndsAt              *time.Time `json:"endsAt,omitempty"`
	ValidationExpiresAt *time.Time `json:"validationExpiresAt,omitempty"`
}

// Sale is a sales count reported by an assistant
type Sale struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	SaleCount  int       `json:"saleCount"`
	ReportedAt time.Time `json:"reportedAt"`
}

// UserIndex maps user IDs to users.
func UserIndex(users []User) map[string]User {
	idx := make(map[string]User, len(users))
	for _, u := range users {
		idx[u.ID] = u
	}
	return idx
}

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
