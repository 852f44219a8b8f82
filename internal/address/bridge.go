// Package address fills a form's address sub-form from a reverse-geocoded
// address.
package address

import (
	"strings"
	"sync"

	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/Togather-Foundation/geowidget/internal/metrics"
	"github.com/rs/zerolog"
)

// Outcome reports what Apply did.
type Outcome string

const (
	// Applied means details were written immediately.
	Applied Outcome = "applied"
	// Deferred means the country was changed and details wait for the re-render.
	Deferred Outcome = "deferred"
	// Absent means the form has no address sub-form.
	Absent Outcome = "absent"
	// NoAddress means the result carried no address parts.
	NoAddress Outcome = "no_address"
)

// Source keys per target, in priority order. The first non-empty one wins.
var (
	localityKeys = []string{"city", "town", "village", "hamlet", "county", "neighbourhood"}
	streetKeys   = []string{"road", "footway", "pedestrian"}
)

// Bridge maps address parts onto address sub-forms. One Bridge may serve
// many regions; each region has at most one pending deferred population.
type Bridge struct {
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[form.Region]func()
}

// NewBridge creates a bridge.
func NewBridge(logger zerolog.Logger) *Bridge {
	return &Bridge{
		logger:  logger.With().Str("component", "address_bridge").Logger(),
		pending: make(map[form.Region]func()),
	}
}

// Apply populates region's address sub-form from address. It never fails:
// a missing sub-form or missing inputs are skipped.
//
// When the sub-form's country differs from address["country_code"] and the
// selector offers that country, the selector is changed and the remaining
// fields are written only after the sub-form reports it has been rebuilt. A newer Apply on the same region
// replaces a population still waiting.
func (b *Bridge) Apply(region form.Region, address map[string]string) Outcome {
	outcome := b.apply(region, address)
	metrics.AddressBridgeTotal.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (b *Bridge) apply(region form.Region, address map[string]string) Outcome {
	sub, ok := region.Address()
	if !ok {
		return Absent
	}
	if len(address) == 0 {
		return NoAddress
	}

	b.cancelPending(region)

	code := strings.TrimSpace(address["country_code"])
	if code == "" || sub.SameCountry(code) {
		ApplyDetails(region, address)
		return Applied
	}
	if !sub.OffersCountry(code) {
		// The selector cannot switch, so no re-render would ever follow.
		b.logger.Debug().Str("country", code).Msg("country not offered, keeping current sub-form")
		ApplyDetails(region, address)
		return Applied
	}

	details := make(map[string]string, len(address))
	for k, v := range address {
		details[k] = v
	}

	b.mu.Lock()
	b.pending[region] = region.OnRerendered(func() {
		b.mu.Lock()
		delete(b.pending, region)
		b.mu.Unlock()
		ApplyDetails(region, details)
	})
	b.mu.Unlock()

	upper := strings.ToUpper(code)
	b.logger.Debug().Str("from", sub.Country).Str("to", upper).Msg("country changed, deferring address details")
	region.SelectCountry(upper)
	return Deferred
}

// Pending reports whether region has a deferred population waiting.
func (b *Bridge) Pending(region form.Region) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[region]
	return ok
}

// Forget drops any deferred population for region, e.g. when its form closes.
func (b *Bridge) Forget(region form.Region) {
	b.cancelPending(region)
}

func (b *Bridge) cancelPending(region form.Region) {
	b.mu.Lock()
	cancel, ok := b.pending[region]
	delete(b.pending, region)
	b.mu.Unlock()
	if ok {
		cancel()
	}
}

// ApplyDetails writes postal code, administrative area, locality and street
// lines. Country is left alone.
func ApplyDetails(region form.Region, details map[string]string) {
	if v, ok := details["postcode"]; ok {
		region.SetAddressInput(form.RolePostalCode, v)
	}

	if state, ok := details["state"]; ok {
		region.SelectAdministrativeArea(state)
	}

	if locality, ok := firstOf(details, localityKeys...); ok {
		region.SetAddressInput(form.RoleLocality, locality)
	}

	if hasAny(details, "road", "building", "footway", "pedestrian") {
		street, _ := firstOf(details, streetKeys...)
		region.SetAddressInput(form.RoleAddressLine1, street)
		region.SetAddressInput(form.RoleAddressLine2, details["building"])
	}

	if number, ok := details["house_number"]; ok {
		if sub, ok := region.Address(); ok {
			if line1, ok := sub.Inputs[form.RoleAddressLine1]; ok {
				region.SetAddressInput(form.RoleAddressLine1, line1+" "+number)
			}
		}
	}
}

func firstOf(details map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v := details[k]; v != "" {
			return v, true
		}
	}
	return "", false
}

func hasAny(details map[string]string, keys ...string) bool {
	for _, k := range keys {
		if _, ok := details[k]; ok {
			return true
		}
	}
	return false
}
