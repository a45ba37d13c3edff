package model

import (
	"time"

	"github.com/cockroachdb/errors"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Limits caps how many assistants of a team may be ACTIVE at once.
type Limits struct {
	MaxOnBreak int `json:"maxOnBreak"`
	MaxOnOther int `json:"maxOnOther"`
}

// Settings holds the manager-editable auto-approval configuration
type Settings struct {
	AutoApprove map[Team]bool   `json:"autoApprove"`
	Limits      map[Team]Limits `json:"limits"`
	// ValidationTimeout is in seconds.
	ValidationTimeout int `json:"validationTimeout"`
}

// DefaultSettings returns the settings used when none have been stored yet.
func DefaultSettings() Settings {
	return Settings{
		AutoApprove: map[Team]bool{
			TeamInbound:  true,
			TeamOutbound: true,
			TeamAmigo:    true,
		},
		Limits: map[Team]Limits{
			TeamInbound:  {MaxOnBreak: 1, MaxOnOther: 2},
			TeamOutbound: {MaxOnBreak: 1, MaxOnOther: 1},
			TeamAmigo:    {MaxOnBreak: 2, MaxOnOther: 2},
		},
		ValidationTimeout: 30,
	}
}

// Timeout returns the validation window as a duration.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.ValidationTimeout) * time.Second
}

// AnyAutoApprove reports whether at least one team has the bot enabled.
func (s Settings) AnyAutoApprove() bool {
	for _, on := range s.AutoApprove {
		if on {
			return true
		}
	}
	return false
}

// LimitsFor returns the team's limits and whether they are configured.
func (s Settings) LimitsFor(team Team) (Limits, bool) {
	l, ok := s.Limits[team]
	return l, ok
}

// Validate rejects unknown teams, negative limits and a non-positive timeout.
func (s Settings) Validate() error {
	if s.ValidationTimeout <= 0 {
		return errors.Wrapf(ErrInvalidSettings, "validationTimeout must be positive, got %d", s.ValidationTimeout)
	}
	for team := range s.AutoApprove {
		if !team.Valid() {
			return errors.Wrapf(ErrInvalidSettings, "unknown team %q in autoApprove", team)
		}
	}
	for team, l := range s.Limits {
		if !team.Valid() {
			return errors.Wrapf(ErrInvalidSettings, "unknown team %q in limits", team)
		}
		if l.MaxOnBreak < 0 || l.MaxOnOther < 0 {
			return errors.Wrapf(ErrInvalidSettings, "limits for %s must not be negative", team)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can edit maps without aliasing.
func (s Settings) Clone() Settings {
	out := Settings{
		AutoApprove:       make(map[Team]bool, len(s.AutoApprove)),
		Limits:            make(map[Team]Limits, len(s.Limits)),
		ValidationTimeout: s.ValidationTimeout,
	}
	for k, v := range s.AutoApprove {
		out.AutoApprove[k] = v
	}
	for k, v := range s.Limits {
		out.Limits[k] = v
	}
	return out
}
