// Package postgres implements storage.Repository on PostgreSQL with pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/Togather-Foundation/geowidget/internal/metrics"
	"github.com/Togather-Foundation/geowidget/internal/storage"
	"github.com/Togather-Foundation/geowidget/internal/widget"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements storage.Repository with PostgreSQL backend
type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new PostgreSQL-backed repository
func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	return &Repository{pool: pool}, nil
}

// Open connects a pool to databaseURL and verifies it answers.
func Open(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (r *Repository) q() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *Repository) GetSettings(ctx context.Context, key string) (s widget.Settings, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_settings", start, ignoreNotFound(err)) }()

	var raw []byte
	err = r.q().QueryRow(ctx, `SELECT settings FROM widget_settings WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return widget.Settings{}, storage.ErrNotFound
	}
	if err != nil {
		return widget.Settings{}, fmt.Errorf("get settings %q: %w", key, err)
	}

	s = widget.DefaultSettings()
	if err = json.Unmarshal(raw, &s); err != nil {
		return widget.Settings{}, fmt.Errorf("decode settings %q: %w", key, err)
	}
	return s, nil
}

func (r *Repository) SaveSettings(ctx context.Context, key string, settings widget.Settings) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("save_settings", start, err) }()

	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	_, err = r.q().Exec(ctx, `
INSERT INTO widget_settings (key, settings, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE
   SET settings = EXCLUDED.settings,
       updated_at = now()`, key, raw)
	if err != nil {
		return fmt.Errorf("save settings %q: %w", key, err)
	}
	return nil
}

func (r *Repository) GetEntity(ctx context.Context, id string) (e storage.Entity, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_entity", start, ignoreNotFound(err)) }()

	var raw []byte
	err = r.q().QueryRow(ctx, `SELECT id, title, address, updated_at FROM entities WHERE id = $1`, id).
		Scan(&e.ID, &e.Title, &raw, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Entity{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Entity{}, fmt.Errorf("get entity %q: %w", id, err)
	}

	if len(raw) > 0 {
		var sub form.AddressForm
		if err = json.Unmarshal(raw, &sub); err != nil {
			return storage.Entity{}, fmt.Errorf("decode address of %q: %w", id, err)
		}
		e.Address = &sub
	}
	return e, nil
}

func (r *Repository) SaveEntity(ctx context.Context, entity storage.Entity) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("save_entity", start, err) }()

	var raw []byte
	if entity.Address != nil {
		if raw, err = json.Marshal(entity.Address); err != nil {
			return fmt.Errorf("encode address: %w", err)
		}
	}

	_, err = r.q().Exec(ctx, `
INSERT INTO entities (id, title, address, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE
   SET title = EXCLUDED.title,
       address = EXCLUDED.address,
       updated_at = now()`, entity.ID, entity.Title, raw)
	if err != nil {
		return fmt.Errorf("save entity %q: %w", entity.ID, err)
	}
	return nil
}

func (r *Repository) GetValue(ctx context.Context, entityID, field string) (v storage.Value, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_value", start, ignoreNotFound(err)) }()

	err = r.q().QueryRow(ctx, `
SELECT entity_id, field, lat, lng, zoom, updated_at
  FROM coordinate_values
 WHERE entity_id = $1 AND field = $2`, entityID, field).
		Scan(&v.EntityID, &v.Field, &v.Lat, &v.Lng, &v.Zoom, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Value{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Value{}, fmt.Errorf("get value %s/%s: %w", entityID, field, err)
	}
	return v, nil
}

func (r *Repository) SaveValue(ctx context.Context, value storage.Value) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("save_value", start, err) }()

	_, err = r.q().Exec(ctx, `
INSERT INTO coordinate_values (entity_id, field, lat, lng, zoom, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (entity_id, field) DO UPDATE
   SET lat = EXCLUDED.lat,
       lng = EXCLUDED.lng,
       zoom = EXCLUDED.zoom,
       updated_at = now()`, value.EntityID, value.Field, value.Lat, value.Lng, value.Zoom)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("save value for entity %q: %w", value.EntityID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("save value %s/%s: %w", value.EntityID, value.Field, err)
	}
	return nil
}

// WithTx executes a function within a database transaction
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, &Repository{pool: r.pool, tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback after error %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
