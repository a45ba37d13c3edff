package service

import (
	"context"
	"strings"

	"cafeplease/internal/leaderboard"
	"cafeplease/internal/model"
	"cafeplease/internal/queue"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var ErrInvalidSale = errors.New("invalid sale")

func (d *Desk) Users(ctx context.Context) ([]model.User, error) {
	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load users")
	}
	return users, nil
}

func validateUser(u model.User) error {
	if strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.Name) == "" {
		return errors.Wrap(ErrInvalidUser, "id and name are required")
	}
	switch u.Role {
	case model.RoleAssistant:
		if !u.AssistantType.Valid() {
			return errors.Wrapf(ErrInvalidUser, "assistant %s needs a team, got %q", u.ID, u.AssistantType)
		}
	case model.RoleManager, model.RoleAdmin:
		if u.AssistantType != "" {
			return errors.Wrapf(ErrInvalidUser, "%s %s cannot belong to a team", u.Role, u.ID)
		}
	default:
		return errors.Wrapf(ErrInvalidUser, "unknown role %q", u.Role)
	}
	return nil
}

// SaveUser inserts u or replaces the user with the same ID.
func (d *Desk) SaveUser(ctx context.Context, u model.User) (model.User, error) {
	if err := validateUser(u); err != nil {
		return model.User{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return model.User{}, errors.Wrap(err, "load users")
	}
	if i, err := findUser(users, u.ID); err == nil {
		users[i] = u
	} else {
		users = append(users, u)
	}
	if err := d.store.SaveUsers(ctx, users); err != nil {
		return model.User{}, errors.Wrap(err, "save users")
	}
	d.log.Info("User saved", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// DeleteUser removes userID. actorID is the caller; nobody can delete themselves.
func (d *Desk) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return ErrSelfDelete
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return errors.Wrap(err, "load users")
	}
	i, err := findUser(users, userID)
	if err != nil {
		return err
	}
	users = append(users[:i:i], users[i+1:]...)
	if err := d.store.SaveUsers(ctx, users); err != nil {
		return errors.Wrap(err, "save users")
	}
	d.log.Info("User deleted", zap.String("user_id", userID), zap.String("by", actorID))
	return nil
}

// EnsureAdmin stores admin as the only user when the roster is empty, so a
// fresh deployment has someone who can manage it. It reports whether it did.
func (d *Desk) EnsureAdmin(ctx context.Context, admin model.User) (bool, error) {
	if err := validateUser(admin); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return false, errors.Wrap(err, "load users")
	}
	if len(users) > 0 {
		return false, nil
	}
	if err := d.store.SaveUsers(ctx, []model.User{admin}); err != nil {
		return false, errors.Wrap(err, "save users")
	}
	d.log.Info("Seeded admin user", zap.String("user_id", admin.ID))
	return true, nil
}

// ReportSale records count sales for userID.
func (d *Desk) ReportSale(ctx context.Context, userID string, count int) (model.Sale, error) {
	if count <= 0 {
		return model.Sale{}, errors.Wrapf(ErrInvalidSale, "count must be positive, got %d", count)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return model.Sale{}, errors.Wrap(err, "load users")
	}
	if _, err := findUser(users, userID); err != nil {
		return model.Sale{}, err
	}
	sales, err := d.store.LoadSales(ctx)
	if err != nil {
		return model.Sale{}, errors.Wrap(err, "load sales")
	}

	sale := model.Sale{
		ID:         ulid.Make().String(),
		UserID:     userID,
		SaleCount:  count,
		ReportedAt: d.clock.Now(),
	}
	if err := d.store.SaveSales(ctx, append(sales, sale)); err != nil {
		return model.Sale{}, errors.Wrap(err, "save sales")
	}
	if d.bus != nil {
		_ = d.bus.PublishManagers(map[string]interface{}{
			"type":   "sale.reported",
			"saleId": sale.ID,
			"userId": userID,
			"count":  count,
		})
	}
	return sale, nil
}

type snapshot struct {
	requests []model.Request
	users    []model.User
}

func (d *Desk) snapshot(ctx context.Context) (snapshot, error) {
	requests, err := d.store.LoadRequests(ctx)
	if err != nil {
		return snapshot{}, errors.Wrap(err, "load requests")
	}
	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return snapshot{}, errors.Wrap(err, "load users")
	}
	return snapshot{requests: requests, users: users}, nil
}

// PendingQueue is the team's waiting line as an assistant sees it.
func (d *Desk) PendingQueue(ctx context.Context, team model.Team) ([]model.Request, error) {
	s, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return queue.PendingQueue(s.requests, s.users, team), nil
}

func (d *Desk) ActiveList(ctx context.Context, team model.Team) ([]model.Request, error) {
	s, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return queue.ActiveList(s.requests, s.users, team), nil
}

// Position returns the request's place in its team's PENDING line, 0 if it is not pending.
func (d *Desk) Position(ctx context.Context, id string) (int, error) {
	s, err := d.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := findRequest(s.requests, id); err != nil {
		return 0, err
	}
	return queue.Position(s.requests, s.users, id), nil
}

func (d *Desk) Board(ctx context.Context) ([]queue.TeamBoard, error) {
	s, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return queue.Board(s.requests, s.users), nil
}

func (d *Desk) Summary(ctx context.Context) ([]queue.TeamSummary, error) {
	s, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := d.store.LoadSettings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}
	return queue.Summary(s.requests, s.users, settings), nil
}

func (d *Desk) Scores(ctx context.Context, period leaderboard.Period) ([]leaderboard.Score, error) {
	s, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return leaderboard.Scores(s.requests, s.users, period, d.clock.Now()), nil
}

func (d *Desk) SalesRanking(ctx context.Context, period leaderboard.Period) ([]leaderboard.SalesRank, error) {
	users, err := d.store.LoadUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load users")
	}
	sales, err := d.store.LoadSales(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load sales")
	}
	return leaderboard.Sales(sales, users, period, d.clock.Now()), nil
}
