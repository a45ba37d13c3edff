package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"cafeplease/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	replayMax  = 100
)

// StreamEvent represents an event from streams
type StreamEvent struct {
	Channel   string
	Sequence  int64
	Event     map[string]interface{}
	Timestamp time.Time
}

// StreamsProvider interface for event replay
type StreamsProvider interface {
	AcknowledgeSequence(channel, connectionID string, sequence int64) error
	ReplayEvents(channel string, sinceSeq int64, limit int64) ([]StreamEvent, error)
}

// Hub manages WebSocket connections and channel subscriptions
type Hub struct {
	mu         sync.RWMutex
	conns      map[*Conn]bool
	subs       map[string]map[*Conn]bool // channel -> connections
	publish    chan Event
	log        *zap.Logger
	cmdHandler *CommandHandler
	streams    StreamsProvider
}

// Identity is who is on the other end of a connection.
type Identity struct {
	UserID string
	Role   model.Role
	Team   model.Team
}

// Conn represents a WebSocket connection. send is never closed; done is
// closed once when the hub drops the connection.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	hub  *Hub
	who  Identity
	subs map[string]bool
	ctx  context.Context
}

// Event represents a message to be published
type Event struct {
	Channel string
	Message map[string]interface{}
}

// NewHub creates a new WebSocket hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		conns:   make(map[*Conn]bool),
		subs:    make(map[string]map[*Conn]bool),
		publish: make(chan Event, 256),
		log:     log,
	}
}

// SetCommandHandler sets the command handler for processing WebSocket commands
func (h *Hub) SetCommandHandler(handler *CommandHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmdHandler = handler
}

// SetStreamsProvider sets the streams provider for event replay
func (h *Hub) SetStreamsProvider(provider StreamsProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streams = provider
}

// Run delivers published events until Close is called.
func (h *Hub) Run() {
	for event := range h.publish {
		msg, err := json.Marshal(map[string]interface{}{
			"type":    "event",
			"channel": event.Channel,
			"seq":     event.Message["seq"],
			"data":    event.Message,
		})
		if err != nil {
			h.log.Warn("Failed to encode event", zap.String("channel", event.Channel), zap.Error(err))
			continue
		}

		h.mu.RLock()
		var slow []*Conn
		for conn := range h.subs[event.Channel] {
			if !conn.trySend(msg) {
				slow = append(slow, conn)
			}
		}
		h.mu.RUnlock()

		for _, conn := range slow {
			h.log.Warn("Dropping slow connection", zap.String("conn", conn.id))
			h.unregister(conn)
		}
	}
}

// Close stops Run.
func (h *Hub) Close() {
	close(h.publish)
}

// Register adds a new connection to the hub
func (h *Hub) Register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; !ok {
		return
	}
	delete(h.conns, conn)
	conn.shutdown()
	for channel := range conn.subs {
		if subs := h.subs[channel]; subs != nil {
			delete(subs, conn)
			if len(subs) == 0 {
				delete(h.subs, channel)
			}
		}
	}
}

// CanSubscribe reports whether who may listen on channel. Managers see
// everything; assistants only their own user channel and their team.
func CanSubscribe(who Identity, channel string) bool {
	if who.Role.CanManage() {
		return true
	}
	switch {
	case channel == "user:"+who.UserID:
		return who.UserID != ""
	case strings.HasPrefix(channel, "team:"):
		return who.Team != "" && channel == "team:"+string(who.Team)
	}
	return false
}

// Subscribe adds a connection to a channel
func (h *Hub) Subscribe(conn *Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.conns[conn] {
		return
	}
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Conn]bool)
	}
	h.subs[channel][conn] = true
	conn.subs[channel] = true
}

// Unsubscribe removes a connection from a channel
func (h *Hub) Unsubscribe(conn *Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subs[channel]; subs != nil {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.subs, channel)
		}
	}
	delete(conn.subs, channel)
}

// Subscribers returns how many connections listen on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Publish sends an event to all subscribers of a channel
func (h *Hub) Publish(channel string, message map[string]interface{}) {
	select {
	case h.publish <- Event{Channel: channel, Message: message}:
	default:
		h.log.Warn("Hub publish channel full, dropping event", zap.String("channel", channel))
	}
}

// NewConn creates a new connection
func NewConn(ws *websocket.Conn, hub *Hub, who Identity) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
		hub:  hub,
		who:  who,
		subs: make(map[string]bool),
		ctx:  context.Background(),
	}
}

// ID returns the connection identifier used for acknowledgements.
func (c *Conn) ID() string { return c.id }

func (c *Conn) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// trySend queues msg without blocking. It fails once the connection is
// dropped or its buffer is full.
func (c *Conn) trySend(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// ReadPump handles reading from the WebSocket connection
func (c *Conn) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("WebSocket error", zap.String("conn", c.id), zap.Error(err))
			}
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.Warn("Failed to parse message", zap.Error(err))
			continue
		}

		c.handleMessage(msg)
	}
}

// WritePump handles writing to the WebSocket connection
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) handleMessage(msg map[string]interface{}) {
	msgType, _ := msg["type"].(string)
	channel, _ := msg["channel"].(string)

	switch msgType {
	case "subscribe":
		if channel == "" {
			return
		}
		if !CanSubscribe(c.who, channel) {
			c.sendJSON(map[string]interface{}{"type": "error", "code": "forbidden", "message": "cannot subscribe to " + channel})
			return
		}
		c.hub.Subscribe(c, channel)
		c.sendAck("subscribed", channel)
	case "unsubscribe":
		if channel != "" {
			c.hub.Unsubscribe(c, channel)
			c.sendAck("unsubscribed", channel)
		}
	case "ack":
		seq, _ := msg["seq"].(float64)
		if channel != "" && seq > 0 {
			c.hub.Acknowledge(c, channel, int64(seq))
		}
	case "resume":
		since, _ := msg["since"].(float64)
		if channel != "" && since >= 0 && c.subs[channel] {
			c.hub.Resume(c, channel, int64(since))
		}
	case "cmd":
		if c.hub.cmdHandler != nil {
			c.hub.cmdHandler.HandleCommand(c.ctx, c, msg)
		} else {
			c.hub.log.Warn("Command handler not set")
		}
	case "ping":
		c.sendAck("pong", "")
	default:
		c.hub.log.Warn("Unknown message type", zap.String("type", msgType))
	}
}

func (c *Conn) sendAck(ack, channel string) {
	msg := map[string]interface{}{"type": "ack", "ack": ack}
	if channel != "" {
		msg["channel"] = channel
	}
	c.sendJSON(msg)
}

func (c *Conn) sendJSON(v map[string]interface{}) bool {
	msg, _ := json.Marshal(v)
	return c.trySend(msg)
}

// Acknowledge records an acknowledgment for a sequence number
func (h *Hub) Acknowledge(conn *Conn, channel string, sequence int64) {
	if h.streams == nil {
		return
	}
	if err := h.streams.AcknowledgeSequence(channel, conn.id, sequence); err != nil {
		h.log.Warn("Failed to acknowledge sequence",
			zap.String("channel", channel),
			zap.Int64("sequence", sequence),
			zap.Error(err),
		)
	}
}

// Resume replays events after sinceSeq to conn
func (h *Hub) Resume(conn *Conn, channel string, sinceSeq int64) {
	if h.streams == nil {
		h.log.Warn("Streams provider not set, cannot resume")
		return
	}

	events, err := h.streams.ReplayEvents(channel, sinceSeq, replayMax)
	if err != nil {
		h.log.Error("Failed to replay events",
			zap.String("channel", channel),
			zap.Int64("since", sinceSeq),
			zap.Error(err),
		)
		return
	}

	for _, event := range events {
		ok := conn.sendJSON(map[string]interface{}{
			"type":    "event",
			"channel": event.Channel,
			"seq":     event.Sequence,
			"data":    event.Event,
		})
		if !ok {
			h.log.Warn("Failed to send replayed event, connection buffer full")
			return
		}
	}

	h.log.Info("Resumed events",
		zap.String("channel", channel),
		zap.String("conn", conn.id),
		zap.Int64("since", sinceSeq),
		zap.Int("count", len(events)),
	)
}
