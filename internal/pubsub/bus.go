package pubsub

import (
	"context"
	"encoding/json"

	"cafeplease/internal/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const ManagersChannel = "managers"

func TeamChannel(team model.Team) string { return "team:" + string(team) }

func UserChannel(userID string) string { return "user:" + userID }

type Bus struct {
	rdb     *redis.Client
	log     *zap.Logger
	ctx     context.Context
	wsHub   WSHub
	streams *Streams
}

type WSHub interface {
	Publish(channel string, message map[string]interface{})
}

// New creates a bus. With a nil client events only reach the local hub.
func New(rdb *redis.Client, log *zap.Logger) *Bus {
	b := &Bus{
		rdb: rdb,
		log: log,
		ctx: context.Background(),
	}
	if rdb != nil {
		b.streams = NewStreams(rdb, log)
	}
	return b
}

// SetWSHub sets the WebSocket hub for event broadcasting
func (b *Bus) SetWSHub(hub WSHub) {
	b.wsHub = hub
}

// GetStreams returns the streams provider, nil without redis
func (b *Bus) GetStreams() *Streams {
	return b.streams
}

// PublishTeam publishes to everyone watching a team's queue
func (b *Bus) PublishTeam(team model.Team, event map[string]interface{}) error {
	return b.Publish(TeamChannel(team), event)
}

// PublishUser publishes to a single user's channel
func (b *Bus) PublishUser(userID string, event map[string]interface{}) error {
	return b.Publish(UserChannel(userID), event)
}

// PublishManagers publishes to the manager board channel
func (b *Bus) PublishManagers(event map[string]interface{}) error {
	return b.Publish(ManagersChannel, event)
}

// Publish publishes an event to a channel
func (b *Bus) Publish(channel string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var seq int64
	if b.rdb != nil {
		if err := b.rdb.Publish(b.ctx, channel, data).Err(); err != nil {
			b.log.Error("Failed to publish event", zap.String("channel", channel), zap.Error(err))
			return err
		}

		seq, err = b.streams.PublishEvent(b.ctx, channel, data)
		if err != nil {
			// replay is best effort, live delivery already happened
			b.log.Warn("Failed to publish to stream", zap.String("channel", channel), zap.Error(err))
		}
	}

	if b.wsHub != nil {
		out := make(map[string]interface{}, len(event)+2)
		for k, v := range event {
			out[k] = v
		}
		out["channel"] = channel
		out["seq"] = seq
		b.wsHub.Publish(channel, out)
	}

	b.log.Debug("Published event", zap.String("channel", channel), zap.Int64("seq", seq))
	return nil
}
