package service

import (
	"context"
	"sync"

	"cafeplease/internal/capacity"
	"cafeplease/internal/lifecycle"
	"cafeplease/internal/model"
	"cafeplease/internal/pkg/clock"
	"cafeplease/internal/scheduler"
	"cafeplease/internal/store"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var (
	ErrRequestNotFound = errors.New("request not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrSelfDelete      = errors.New("cannot delete own account")
	ErrInvalidUser     = errors.New("invalid user")
)

// Desk owns every write to the request collection. Each operation loads the
// collections, computes the new state and saves it while holding mu, so a
// scheduler tick and a user action never work from the same stale snapshot.
type Desk struct {
	mu        sync.Mutex
	store     store.Store
	bus       EventBus
	jobClient JobClient
	clock     clock.Clock
	log       *zap.Logger

	observers []func(model.Settings)
}

func NewDesk(st store.Store, bus EventBus, clk clock.Clock, log *zap.Logger) *Desk {
	return &Desk{
		store: st,
		bus:   bus,
		clock: clk,
		log:   log,
	}
}

// SetJobClient sets the job client used to schedule expiry and completion nudges
func (d *Desk) SetJobClient(client JobClient) {
	d.jobClient = client
}

// OnSettingsChanged registers fn to run after every successful settings update.
// fn runs without the desk lock held.
func (d *Desk) OnSettingsChanged(fn func(model.Settings)) {
	d.observers = append(d.observers, fn)
}

func findRequest(requests []model.Request, id string) (int, error) {
	for i := range requests {
		if requests[i].ID == id {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrRequestNotFound, "id %s", id)
}

func findUser(users []model.User, id string) (int, error) {
	for i := range users {
		if users[i].ID == id {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrUserNotFound, "id %s", id)
}

// SubmitRequest creates a PENDING request for userID.
func (d *Desk) SubmitRequest(ctx context.Context, userID string, codeType model.CodeType, duration int) (model.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return model.Request{}, errors.Wrap(err, "load users")
	}
	ui, err := findUser(users, userID)
	if err != nil {
		return model.Request{}, err
	}
	if u := users[ui]; u.Role != model.RoleAssistant || !u.AssistantType.Valid() {
		return model.Request{}, errors.Wrapf(ErrInvalidUser, "only assistants with a team can submit, %s is %s", u.ID, u.Role)
	}
	requests, err := d.store.LoadRequests(ctx)
	if err != nil {
		return model.Request{}, errors.Wrap(err, "load requests")
	}

	req, err := lifecycle.Submit(requests, lifecycle.SubmitInput{
		User:     users[ui],
		CodeType: codeType,
		Duration: duration,
	}, d.clock.Now())
	if err != nil {
		return model.Request{}, err
	}

	if err := d.store.SaveRequests(ctx, append(requests, req)); err != nil {
		return model.Request{}, errors.Wrap(err, "save requests")
	}

	d.log.Info("Request submitted",
		zap.String("request_id", req.ID),
		zap.String("user_id", userID),
		zap.String("code_type", string(codeType)),
		zap.Int("duration", duration),
	)
	d.publish(users, "request.created", req)
	return req, nil
}

// ApproveRequest approves a PENDING request. Managers always succeed; the
// bot only when the owner's team has room for the code type.
func (d *Desk) ApproveRequest(ctx context.Context, id string, by lifecycle.Actor) (model.Request, error) {
	return d.apply(ctx, id, lifecycle.EventApprove, by)
}

func (d *Desk) RejectRequest(ctx context.Context, id string) (model.Request, error) {
	return d.apply(ctx, id, lifecycle.EventReject, lifecycle.ActorManager)
}

// AcceptApproval starts the code. It fails with lifecycle.ErrInvalidTransition
// when the request is not APPROVED or its validation window has passed.
func (d *Desk) AcceptApproval(ctx context.Context, id string) (model.Request, error) {
	return d.apply(ctx, id, lifecycle.EventAccept, "")
}

func (d *Desk) DeclineApproval(ctx context.Context, id string) (model.Request, error) {
	return d.apply(ctx, id, lifecycle.EventDecline, "")
}

func (d *Desk) CancelRequest(ctx context.Context, id string) (model.Request, error) {
	return d.apply(ctx, id, lifecycle.EventCancel, "")
}

func (d *Desk) EndActiveEarly(ctx context.Context, id string) (model.Request, error) {
	return d.apply(ctx, id, lifecycle.EventEndEarly, "")
}

var eventNames = map[lifecycle.Event]string{
	lifecycle.EventApprove:  "request.approved",
	lifecycle.EventReject:   "request.rejected",
	lifecycle.EventCancel:   "request.cancelled",
	lifecycle.EventAccept:   "request.started",
	lifecycle.EventDecline:  "request.declined",
	lifecycle.EventExpire:   "request.expired",
	lifecycle.EventComplete: "request.completed",
	lifecycle.EventEndEarly: "request.ended",
}

func (d *Desk) apply(ctx context.Context, id string, event lifecycle.Event, by lifecycle.Actor) (model.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	requests, err := d.store.LoadRequests(ctx)
	if err != nil {
		return model.Request{}, errors.Wrap(err, "load requests")
	}
	i, err := findRequest(requests, id)
	if err != nil {
		return model.Request{}, err
	}
	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return model.Request{}, errors.Wrap(err, "load users")
	}
	settings, err := d.store.LoadSettings(ctx)
	if err != nil {
		return model.Request{}, errors.Wrap(err, "load settings")
	}

	c := lifecycle.Context{
		Now:               d.clock.Now(),
		ValidationTimeout: settings.Timeout(),
		By:                by,
	}
	if event == lifecycle.EventApprove && by == lifecycle.ActorBot {
		c.HasCapacity = botHasRoom(requests, users, settings, requests[i])
	}

	next, err := lifecycle.Transition(requests[i], event, c)
	if err != nil {
		return requests[i], err
	}

	updated := make([]model.Request, len(requests))
	copy(updated, requests)
	updated[i] = next
	if err := d.store.SaveRequests(ctx, updated); err != nil {
		return model.Request{}, errors.Wrap(err, "save requests")
	}

	d.log.Info("Request transitioned",
		zap.String("request_id", id),
		zap.String("event", string(event)),
		zap.String("status", string(next.Status)),
	)
	d.scheduleTimers(next)
	d.publish(users, eventNames[event], next)
	return next, nil
}

func botHasRoom(requests []model.Request, users []model.User, settings model.Settings, req model.Request) bool {
	idx := model.UserIndex(users)
	team := idx[req.UserID].Team()
	if team == "" {
		return false
	}
	limits, ok := settings.LimitsFor(team)
	if !ok {
		return false
	}
	return capacity.ForTeam(requests, users, team).HasRoom(limits, req.CodeType)
}

// Tick runs one scheduler pass over the stored collection and saves the
// result once if anything changed.
func (d *Desk) Tick(ctx context.Context) (scheduler.TickResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	requests, err := d.store.LoadRequests(ctx)
	if err != nil {
		return scheduler.TickResult{}, errors.Wrap(err, "load requests")
	}
	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return scheduler.TickResult{}, errors.Wrap(err, "load users")
	}
	settings, err := d.store.LoadSettings(ctx)
	if err != nil {
		return scheduler.TickResult{}, errors.Wrap(err, "load settings")
	}

	res := scheduler.RunTick(requests, users, settings, d.clock.Now())
	if !res.Changed {
		return res, nil
	}
	if err := d.store.SaveRequests(ctx, res.Requests); err != nil {
		return scheduler.TickResult{}, errors.Wrap(err, "save requests")
	}

	byID := make(map[string]model.Request, len(res.Requests))
	for _, r := range res.Requests {
		byID[r.ID] = r
	}
	for _, id := range res.Expired {
		d.publish(users, "request.expired", byID[id])
	}
	for _, id := range res.Approved {
		d.scheduleTimers(byID[id])
		d.publish(users, "request.approved", byID[id])
	}
	for _, id := range res.Completed {
		d.publish(users, "request.completed", byID[id])
	}
	return res, nil
}

// ReconcileTimers applies the time-based transition of a single request if
// it is due. A request that moved on or is not due yet is left alone.
func (d *Desk) ReconcileTimers(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	requests, err := d.store.LoadRequests(ctx)
	if err != nil {
		return false, errors.Wrap(err, "load requests")
	}
	i, err := findRequest(requests, id)
	if err != nil {
		return false, err
	}

	var event lifecycle.Event
	switch requests[i].Status {
	case model.StatusApproved:
		event = lifecycle.EventExpire
	case model.StatusActive:
		event = lifecycle.EventComplete
	default:
		return false, nil
	}

	next, err := lifecycle.Transition(requests[i], event, lifecycle.Context{Now: d.clock.Now()})
	if errors.Is(err, lifecycle.ErrNotDue) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return false, errors.Wrap(err, "load users")
	}
	updated := make([]model.Request, len(requests))
	copy(updated, requests)
	updated[i] = next
	if err := d.store.SaveRequests(ctx, updated); err != nil {
		return false, errors.Wrap(err, "save requests")
	}

	d.log.Info("Request timer fired", zap.String("request_id", id), zap.String("status", string(next.Status)))
	d.publish(users, eventNames[event], next)
	return true, nil
}

func (d *Desk) scheduleTimers(req model.Request) {
	if d.jobClient == nil {
		return
	}
	var err error
	switch {
	case req.Status == model.StatusApproved && req.ValidationExpiresAt != nil:
		err = d.jobClient.ScheduleValidationExpiry(req.ID, *req.ValidationExpiresAt)
	case req.Status == model.StatusActive && req.EndsAt != nil:
		err = d.jobClient.ScheduleCodeCompletion(req.ID, *req.EndsAt)
	}
	if err != nil {
		d.log.Warn("Failed to schedule timer", zap.String("request_id", req.ID), zap.Error(err))
	}
}

// GetRequest returns a single request.
func (d *Desk) GetRequest(ctx context.Context, id string) (model.Request, error) {
	requests, err := d.store.LoadRequests(ctx)
	if err != nil {
		return model.Request{}, errors.Wrap(err, "load requests")
	}
	i, err := findRequest(requests, id)
	if err != nil {
		return model.Request{}, err
	}
	return requests[i], nil
}

// Settings returns the stored settings or the defaults.
func (d *Desk) Settings(ctx context.Context) (model.Settings, error) {
	s, err := d.store.LoadSettings(ctx)
	if err != nil {
		return model.Settings{}, errors.Wrap(err, "load settings")
	}
	return s, nil
}

// UpdateSettings validates and stores s, then notifies observers.
func (d *Desk) UpdateSettings(ctx context.Context, s model.Settings) (model.Settings, error) {
	if err := s.Validate(); err != nil {
		return model.Settings{}, err
	}

	d.mu.Lock()
	err := d.store.SaveSettings(ctx, s)
	d.mu.Unlock()
	if err != nil {
		return model.Settings{}, errors.Wrap(err, "save settings")
	}

	d.log.Info("Settings updated", zap.Bool("auto_approve", s.AnyAutoApprove()), zap.Int("validation_timeout", s.ValidationTimeout))
	for _, fn := range d.observers {
		fn(s.Clone())
	}
	if d.bus != nil {
		_ = d.bus.PublishManagers(map[string]interface{}{
			"type":     "settings.updated",
			"settings": s,
		})
	}
	return s, nil
}

func (d *Desk) publish(users []model.User, eventType string, req model.Request) {
	if d.bus == nil {
		return
	}
	event := map[string]interface{}{
		"type":      eventType,
		"requestId": req.ID,
		"status":    req.Status,
		"request":   req,
	}
	if team := model.UserIndex(users)[req.UserID].Team(); team != "" {
		_ = d.bus.PublishTeam(team, event)
	}
	_ = d.bus.PublishUser(req.UserID, event)
	_ = d.bus.PublishManagers(event)
}
