// Package store persists the four collections as whole JSON documents.
package store

import (
	"context"
	"encoding/json"

	"cafeplease/internal/model"

	"github.com/cockroachdb/errors"
)

// Collection names. Each collection is read and replaced as one document.
const (
	CollectionRequests = "requests"
	CollectionUsers    = "users"
	CollectionSettings = "settings"
	CollectionSales    = "sales"
)

// Store is the persistence collaborator used by the desk service.
type Store interface {
	LoadRequests(ctx context.Context) ([]model.Request, error)
	SaveRequests(ctx context.Context, requests []model.Request) error
	LoadUsers(ctx context.Context) ([]model.User, error)
	SaveUsers(ctx context.Context, users []model.User) error
	// LoadSettings returns model.DefaultSettings when nothing is stored.
	LoadSettings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, settings model.Settings) error
	LoadSales(ctx context.Context) ([]model.Sale, error)
	SaveSales(ctx context.Context, sales []model.Sale) error
}

// Blobs is a key/value backend holding raw JSON documents.
type Blobs interface {
	// Get returns found=false, err=nil for a missing key.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	Put(ctx context.Context, key string, data []byte) error
}

// Collections implements Store on top of any Blobs backend.
type Collections struct {
	blobs Blobs
}

func NewCollections(blobs Blobs) *Collections {
	return &Collections{blobs: blobs}
}

func load(ctx context.Context, b Blobs, name string, dst any) (bool, error) {
	data, found, err := b.Get(ctx, name)
	if err != nil {
		return false, errors.Wrapf(err, "load %s", name)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, errors.Wrapf(err, "decode %s", name)
	}
	return true, nil
}

func save(ctx context.Context, b Blobs, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}
	if err := b.Put(ctx, name, data); err != nil {
		return errors.Wrapf(err, "save %s", name)
	}
	return nil
}

func (c *Collections) LoadRequests(ctx context.Context) ([]model.Request, error) {
	out := []model.Request{}
	_, err := load(ctx, c.blobs, CollectionRequests, &out)
	return out, err
}

func (c *Collections) SaveRequests(ctx context.Context, requests []model.Request) error {
	if requests == nil {
		requests = []model.Request{}
	}
	return save(ctx, c.blobs, CollectionRequests, requests)
}

func (c *Collections) LoadUsers(ctx context.Context) ([]model.User, error) {
	out := []model.User{}
	_, err := load(ctx, c.blobs, CollectionUsers, &out)
	return out, err
}

func (c *Collections) SaveUsers(ctx context.Context, users []model.User) error {
	if users == nil {
		users = []model.User{}
	}
	return save(ctx, c.blobs, CollectionUsers, users)
}

func (c *Collections) LoadSettings(ctx context.Context) (model.Settings, error) {
	var s model.Settings
	found, err := load(ctx, c.blobs, CollectionSettings, &s)
	if err != nil {
		return model.Settings{}, err
	}
	if !found {
		return model.DefaultSettings(), nil
	}
	return s, nil
}

func (c *Collections) SaveSettings(ctx context.Context, settings model.Settings) error {
	return save(ctx, c.blobs, CollectionSettings, settings)
}

func (c *Collections) LoadSales(ctx context.Context) ([]model.Sale, error) {
	out := []model.Sale{}
	_, err := load(ctx, c.blobs, CollectionSales, &out)
	return out, err
}

func (c *Collections) SaveSales(ctx context.Context, sales []model.Sale) error {
	if sales == nil {
		sales = []model.Sale{}
	}
	return save(ctx, c.blobs, CollectionSales, sales)
}
