package geocoding

import (
	"strings"
	"sync"

	"github.com/Togather-Foundation/geowidget/internal/config"
	"github.com/Togather-Foundation/geowidget/internal/geocoding/nominatim"
)

// Providers hands out one Nominatim client per service URL, so widgets that
// share a service also share its rate limiter.
type Providers struct {
	cfg  config.GeocodingConfig
	opts []nominatim.Option

	mu      sync.Mutex
	clients map[string]*nominatim.Client
}

// NewProviders creates a pool configured from cfg. Extra options are applied
// to every client after the configured ones.
func NewProviders(cfg config.GeocodingConfig, opts ...nominatim.Option) *Providers {
	return &Providers{
		cfg:     cfg,
		opts:    opts,
		clients: make(map[string]*nominatim.Client),
	}
}

// For returns the client for serviceURL, falling back to the configured
// default service when serviceURL is empty.
func (p *Providers) For(serviceURL string) Provider {
	key := strings.TrimRight(strings.TrimSpace(serviceURL), "/")
	if key == "" {
		key = strings.TrimRight(p.cfg.ServiceURL, "/")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c
	}

	opts := []nominatim.Option{nominatim.WithTimeout(p.cfg.Timeout)}
	if p.cfg.RateLimit > 0 {
		opts = append(opts, nominatim.WithRateLimit(p.cfg.RateLimit))
	}
	opts = append(opts, p.opts...)

	c := nominatim.NewClient(key, p.cfg.Email, opts...)
	p.clients[key] = c
	return c
}
