// Package memory is an in-process storage.Repository for development and
// tests. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/storage"
	"github.com/Togather-Foundation/geowidget/internal/widget"
)

type valueKey struct {
	entityID string
	field    string
}

type data struct {
	settings map[string]widget.Settings
	entities map[string]storage.Entity
	values   map[valueKey]storage.Value
}

func (d *data) clone() *data {
	return &data{
		settings: maps.Clone(d.settings),
		entities: maps.Clone(d.entities),
		values:   maps.Clone(d.values),
	}
}

// Repository keeps everything in maps guarded by one mutex.
type Repository struct {
	mu   *sync.RWMutex
	data *data
	now  func() time.Time
	inTx bool
}

var _ storage.Repository = (*Repository)(nil)

// New creates an empty repository.
func New() *Repository {
	return &Repository{
		mu: &sync.RWMutex{},
		data: &data{
			settings: make(map[string]widget.Settings),
			entities: make(map[string]storage.Entity),
			values:   make(map[valueKey]storage.Value),
		},
		now: time.Now,
	}
}

func (r *Repository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *Repository) rlock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

func (r *Repository) GetSettings(_ context.Context, key string) (widget.Settings, error) {
	defer r.rlock()()
	s, ok := r.data.settings[key]
	if !ok {
		return widget.Settings{}, storage.ErrNotFound
	}
	return s, nil
}

func (r *Repository) SaveSettings(_ context.Context, key string, settings widget.Settings) error {
	defer r.lock()()
	r.data.settings[key] = settings
	return nil
}

func (r *Repository) GetEntity(_ context.Context, id string) (storage.Entity, error) {
	defer r.rlock()()
	e, ok := r.data.entities[id]
	if !ok {
		return storage.Entity{}, storage.ErrNotFound
	}
	if e.Address != nil {
		a := e.Address.Clone()
		e.Address = &a
	}
	return e, nil
}

func (r *Repository) SaveEntity(_ context.Context, entity storage.Entity) error {
	defer r.lock()()
	if entity.Address != nil {
		a := entity.Address.Clone()
		entity.Address = &a
	}
	entity.UpdatedAt = r.now()
	r.data.entities[entity.ID] = entity
	return nil
}

func (r *Repository) GetValue(_ context.Context, entityID, field string) (storage.Value, error) {
	defer r.rlock()()
	v, ok := r.data.values[valueKey{entityID, field}]
	if !ok {
		return storage.Value{}, storage.ErrNotFound
	}
	return v, nil
}

func (r *Repository) SaveValue(_ context.Context, value storage.Value) error {
	defer r.lock()()
	if _, ok := r.data.entities[value.EntityID]; !ok {
		return fmt.Errorf("save value for entity %q: %w", value.EntityID, storage.ErrNotFound)
	}
	value.UpdatedAt = r.now()
	r.data.values[valueKey{value.EntityID, value.Field}] = value
	return nil
}

// WithTx runs fn against a copy of the data and keeps the copy only when fn
// succeeds. Transactions are serialized.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &Repository{mu: r.mu, data: r.data.clone(), now: r.now, inTx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.data = tx.data
	return nil
}

func (r *Repository) Ping(context.Context) error { return nil }
