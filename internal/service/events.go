package service

import "cafeplease/internal/model"

// EventBus fans desk changes out to passive subscribers.
type EventBus interface {
	PublishTeam(team model.Team, event map[string]interface{}) error
	PublishUser(userID string, event map[string]interface{}) error
	PublishManagers(event map[string]interface{}) error
}
