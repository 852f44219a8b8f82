// Package audit records administrative changes as structured log entries.
package audit

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Change is the before and after value of one field.
type Change struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	Actor        string            `json:"actor,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	RequestID    string            `json:"request_id,omitempty"`
	Status       string            `json:"status"`
	Changes      map[string]Change `json:"changes,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
}

// Logger writes audit entries under the "audit" key of a zerolog event.
type Logger struct {
	logger zerolog.Logger
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger.With().Str("component", "audit").Logger()}
}

// Log writes entry. A zero timestamp is set to now.
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	event := l.logger.Info()
	if entry.Status == StatusFailure {
		event = l.logger.Warn()
	}
	event.Interface("audit", entry).Msg(entry.Action)
}

// LogFromRequest logs entry with the client address of r.
func (l *Logger) LogFromRequest(r *http.Request, entry Entry) {
	entry.IPAddress = clientIP(r)
	l.Log(entry)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Diff compares the JSON fields of before and after, which must encode to
// JSON objects, and returns the fields whose values differ.
func Diff(before, after any) (map[string]Change, error) {
	from, err := fields(before)
	if err != nil {
		return nil, err
	}
	to, err := fields(after)
	if err != nil {
		return nil, err
	}

	changes := map[string]Change{}
	for key, v := range to {
		if old, ok := from[key]; !ok || old != v {
			changes[key] = Change{From: from[key], To: v}
		}
	}
	for key, old := range from {
		if _, ok := to[key]; !ok {
			changes[key] = Change{From: old}
		}
	}
	return changes, nil
}

func fields(v any) (map[string]string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode audit value: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("audit value is not an object: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}
