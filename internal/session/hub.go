package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Togather-Foundation/geowidget/internal/address"
	"github.com/Togather-Foundation/geowidget/internal/metrics"
	"github.com/Togather-Foundation/geowidget/internal/widget"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownForm is returned for a token that was never issued or has expired.
	ErrUnknownForm = errors.New("unknown or expired form")
	// ErrHubClosed is returned once the hub is shutting down.
	ErrHubClosed = errors.New("session hub closed")
)

// Hub upgrades connections to sessions and tracks the live ones.
type Hub struct {
	registry  *Registry
	geocoders GeocoderFactory
	bridge    *address.Bridge
	upgrader  websocket.Upgrader
	ctrlOpts  []widget.Option
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[*Session]struct{}
	owners   map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithControllerOptions are passed to every widget controller.
func WithControllerOptions(opts ...widget.Option) HubOption {
	return func(h *Hub) { h.ctrlOpts = append(h.ctrlOpts, opts...) }
}

// WithCheckOrigin replaces the same-origin check of the upgrader.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// NewHub creates a hub serving forms from registry.
func NewHub(registry *Registry, geocoders GeocoderFactory, bridge *address.Bridge, logger zerolog.Logger, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		registry:  registry,
		geocoders: geocoders,
		bridge:    bridge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:   logger.With().Str("component", "session_hub").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[*Session]struct{}),
		owners:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve upgrades the request and runs a session for the form with token
// until it ends. On ErrUnknownForm and ErrHubClosed nothing has been written
// to w; any other error means the upgrade already answered the request.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, token string) error {
	f, release, ok := h.registry.Attach(token)
	if !ok {
		return ErrUnknownForm
	}
	defer release()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}

	logger := h.logger
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		logger = l.With().Str("component", "session").Logger()
	}

	s := newSession(h.ctx, f, conn, h.bridge, h.geocoders, logger, h.ctrlOpts)
	prev := h.add(f.Token, s)
	defer h.remove(f.Token, s)

	// A form is driven by one session at a time. The previous one must have
	// released the document before this one takes it.
	if prev != nil {
		s.logger.Debug().Str("previous", prev.ID()).Msg("taking over form from previous session")
		prev.supersede()
		select {
		case <-prev.Finished():
		case <-h.ctx.Done():
		}
	}

	s.Run(h.ctx)
	return nil
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// CloseAll ends every session and waits for them to finish. The hub accepts
// no new sessions afterwards.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}

// add records s as the owner of the form with token and returns the session
// it replaces, if any.
func (h *Hub) add(token string, s *Session) *Session {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	prev := h.owners[token]
	h.owners[token] = s
	h.mu.Unlock()
	metrics.WidgetSessionsActive.Inc()
	return prev
}

func (h *Hub) remove(token string, s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	if h.owners[token] == s {
		delete(h.owners, token)
	}
	h.mu.Unlock()
	metrics.WidgetSessionsActive.Dec()
}
