package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// streamMaxLen bounds each channel's replay history.
const streamMaxLen = 1000

// StreamEvent represents an event stored in Redis Streams
type StreamEvent struct {
	Channel   string
	Sequence  int64
	Event     map[string]interface{}
	Timestamp time.Time
}

// Streams manages Redis Streams for event replay
type Streams struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewStreams creates a new Streams manager
func NewStreams(rdb *redis.Client, log *zap.Logger) *Streams {
	return &Streams{rdb: rdb, log: log}
}

func streamKey(channel string) string { return "stream:" + channel }

// PublishEvent appends data to the channel's stream under the next sequence number.
func (s *Streams) PublishEvent(ctx context.Context, channel string, data []byte) (int64, error) {
	seq, err := s.rdb.Incr(ctx, "seq:"+channel).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(channel),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"seq":  seq,
			"ts":   time.Now().UTC().Format(time.RFC3339Nano),
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("failed to add to stream: %w", err)
	}
	return seq, nil
}

// AcknowledgeSequence records an acknowledgment for a sequence number
func (s *Streams) AcknowledgeSequence(channel, connectionID string, sequence int64) error {
	key := fmt.Sprintf("ack:%s:%s", channel, connectionID)
	if err := s.rdb.Set(context.Background(), key, sequence, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge sequence: %w", err)
	}
	return nil
}

// ReplayEvents returns up to limit events with a sequence above sinceSeq, oldest first.
func (s *Streams) ReplayEvents(channel string, sinceSeq int64, limit int64) ([]StreamEvent, error) {
	msgs, err := s.rdb.XRevRangeN(context.Background(), streamKey(channel), "+", "-", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	events := make([]StreamEvent, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		ev, ok := s.decode(channel, msgs[i])
		if !ok || ev.Sequence <= sinceSeq {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *Streams) decode(channel string, msg redis.XMessage) (StreamEvent, bool) {
	seqStr, _ := msg.Values["seq"].(string)
	data, _ := msg.Values["data"].(string)
	tsStr, _ := msg.Values["ts"].(string)

	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		s.log.Warn("Stream entry without sequence", zap.String("id", msg.ID))
		return StreamEvent{}, false
	}
	var event map[string]interface{}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		s.log.Warn("Failed to unmarshal event", zap.String("id", msg.ID), zap.Error(err))
		return StreamEvent{}, false
	}
	ts, _ := time.Parse(time.RFC3339Nano, tsStr)

	return StreamEvent{Channel: channel, Sequence: seq, Event: event, Timestamp: ts}, true
}
