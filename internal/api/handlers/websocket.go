package handlers

import (
	"errors"
	"net/http"

	"github.com/Togather-Foundation/geowidget/internal/api/problem"
	"github.com/Togather-Foundation/geowidget/internal/session"
	"github.com/rs/zerolog"
)

// SessionHandler upgrades GET /ws/forms/{form} to a widget session.
type SessionHandler struct {
	Hub *session.Hub
	Env string
}

func NewSessionHandler(hub *session.Hub, env string) *SessionHandler {
	return &SessionHandler{Hub: hub, Env: env}
}

func (h *SessionHandler) Serve(w http.ResponseWriter, r *http.Request) {
	err := h.Hub.Serve(w, r, r.PathValue("form"))
	switch {
	case err == nil:
	case errors.Is(err, session.ErrUnknownForm):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Unknown or expired form", nil, h.Env,
			problem.WithDetail("Reload the page to start a new session"))
	case errors.Is(err, session.ErrHubClosed):
		w.Header().Set("Retry-After", "5")
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeServerError, "Server is shutting down", nil, h.Env)
	default:
		// The upgrader has already answered the request.
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
	}
}
