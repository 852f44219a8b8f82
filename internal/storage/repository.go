// Package storage defines persistence for widget settings, entities and the
// coordinate values their forms submit.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/Togather-Foundation/geowidget/internal/widget"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Entity is a record whose form carries coordinate pickers.
type Entity struct {
	ID    string
	Title string
	// Address is the submitted address sub-form, nil when never saved.
	Address   *form.AddressForm
	UpdatedAt time.Time
}

// Value is the submitted content of one coordinate field: the three hidden
// inputs, stored as the text the form posted.
type Value struct {
	EntityID  string
	Field     string
	Lat       string
	Lng       string
	Zoom      string
	UpdatedAt time.Time
}

// Stored returns the value in the shape the widget resolver reads.
func (v Value) Stored() widget.StoredValue {
	return widget.StoredValue{Lat: v.Lat, Lng: v.Lng}
}

// Repository groups data access.
type Repository interface {
	// GetSettings returns the saved settings of a widget field, ErrNotFound
	// when none were saved.
	GetSettings(ctx context.Context, key string) (widget.Settings, error)
	SaveSettings(ctx context.Context, key string, settings widget.Settings) error

	GetEntity(ctx context.Context, id string) (Entity, error)
	SaveEntity(ctx context.Context, entity Entity) error

	// GetValue returns ErrNotFound when the field was never submitted.
	GetValue(ctx context.Context, entityID, field string) (Value, error)
	// SaveValue requires the entity to exist.
	SaveValue(ctx context.Context, value Value) error

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Ping(ctx context.Context) error
}

// SettingsOrDefault returns the saved settings for key, or fallback when none
// were saved.
func SettingsOrDefault(ctx context.Context, repo Repository, key string, fallback widget.Settings) (widget.Settings, error) {
	s, err := repo.GetSettings(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	return s, err
}
