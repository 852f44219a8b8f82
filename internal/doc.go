// Package internal documents the geowidget server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - session: websocket sessions driving the map widgets of one rendered form
// - widget: the coordinate picker controller, settings, and instance config
// - geocoding: Nominatim client, dispatch, and result normalization
// - address, form: the address sub-form and its back-fill from geocoding results
// - storage: entity, field value, and settings repositories (memory, Postgres)
// - audit, config, metrics, telemetry, sanitize, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
