package session

import (
	"context"
	"sync"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/Togather-Foundation/geowidget/internal/widget"
	"github.com/oklog/ulid/v2"
)

// DefaultIdleTimeout is how long a rendered form stays reachable without a
// connected session.
const DefaultIdleTimeout = 30 * time.Minute

// Form is one rendered form: its widget instances and the server copy of
// its fields.
type Form struct {
	Token    string
	EntityID string
	Widgets  []widget.WidgetConfig
	Document *form.Document
}

// Widget returns the instance configuration for id.
func (f *Form) Widget(id string) (widget.WidgetConfig, bool) {
	for _, w := range f.Widgets {
		if w.InstanceID == id {
			return w, true
		}
	}
	return widget.WidgetConfig{}, false
}

type registered struct {
	form     *Form
	lastUsed time.Time
	attached int
}

// Registry keeps rendered forms by token until they go idle.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	forms map[string]*registered
}

// NewRegistry creates a registry. A non-positive ttl uses DefaultIdleTimeout.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultIdleTimeout
	}
	return &Registry{
		ttl:   ttl,
		now:   time.Now,
		forms: make(map[string]*registered),
	}
}

// Register stores a rendered form and returns its token.
func (r *Registry) Register(entityID string, widgets []widget.WidgetConfig, doc *form.Document) *Form {
	f := &Form{
		Token:    ulid.Make().String(),
		EntityID: entityID,
		Widgets:  widgets,
		Document: doc,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[f.Token] = &registered{form: f, lastUsed: r.now()}
	return f
}

// Attach returns the form for token and marks it in use until the returned
// release is called.
func (r *Registry) Attach(token string) (*Form, func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.forms[token]
	if !ok {
		return nil, nil, false
	}
	reg.attached++
	reg.lastUsed = r.now()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			reg.attached--
			reg.lastUsed = r.now()
		})
	}
	return reg.form, release, true
}

// Len returns the number of registered forms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

// Sweep drops forms idle for longer than the ttl. Forms with a live session
// are kept.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for token, reg := range r.forms {
		if reg.attached == 0 && reg.lastUsed.Before(cutoff) {
			delete(r.forms, token)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
