package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/address"
	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/Togather-Foundation/geowidget/internal/metrics"
	"github.com/Togather-Foundation/geowidget/internal/widget"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64

	// closeSuperseded tells a browser its form was taken over by a newer
	// connection, so it must not reconnect.
	closeSuperseded = 4000
)

// GeocoderFactory returns the geocoder a widget instance looks up with.
type GeocoderFactory func(cfg widget.WidgetConfig) widget.Geocoder

// Session connects one browser tab to the controllers of one rendered form.
// All events and lookup completions are handled on the goroutine running
// Run, so controllers and the form document see a single writer.
type Session struct {
	id     string
	form   *Form
	conn   *websocket.Conn
	bridge *address.Bridge
	logger zerolog.Logger

	send        chan Command
	events      chan Event
	completions chan func()
	done        chan struct{}
	finished    chan struct{}
	closeOnce   sync.Once
	closeCode   int

	surfaces    map[string]*remoteSurface
	controllers map[string]*widget.Controller
}

func newSession(ctx context.Context, f *Form, conn *websocket.Conn, bridge *address.Bridge, geocoders GeocoderFactory, logger zerolog.Logger, opts []widget.Option) *Session {
	id := ulid.Make().String()
	s := &Session{
		id:          id,
		form:        f,
		conn:        conn,
		bridge:      bridge,
		logger:      logger.With().Str("session", id).Str("form", f.Token).Logger(),
		send:        make(chan Command, sendBuffer),
		events:      make(chan Event),
		completions: make(chan func()),
		done:        make(chan struct{}),
		finished:    make(chan struct{}),
		closeCode:   websocket.CloseNormalClosure,
		surfaces:    make(map[string]*remoteSurface, len(f.Widgets)),
		controllers: make(map[string]*widget.Controller, len(f.Widgets)),
	}

	sched := loopScheduler{completions: s.completions, done: s.done}
	for _, cfg := range f.Widgets {
		surface := newRemoteSurface(cfg.InstanceID, s.enqueue)
		update := widget.HostCallback(f.Document, cfg, bridge)

		ctrlOpts := make([]widget.Option, 0, len(opts)+2)
		ctrlOpts = append(ctrlOpts, opts...)
		ctrlOpts = append(ctrlOpts, widget.WithScheduler(sched), widget.WithLogger(s.logger))

		s.surfaces[cfg.InstanceID] = surface
		s.controllers[cfg.InstanceID] = widget.NewController(ctx, cfg, surface, geocoders(cfg), f.Document, update, ctrlOpts...)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Run serves the session until the connection drops, ctx is done or Close
// is called. Finished is closed once Run has released the form.
func (s *Session) Run(ctx context.Context) {
	defer close(s.finished)
	removeListener := s.form.Document.SetListener(func(c form.Change) { s.enqueue(changeCommand(c)) })

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readPump()
	}()
	go func() {
		defer wg.Done()
		s.writePump()
	}()

	s.logger.Debug().Int("widgets", len(s.controllers)).Msg("session started")

loop:
	for {
		select {
		case <-ctx.Done():
			s.Close()
			break loop
		case <-s.done:
			break loop
		case ev := <-s.events:
			s.handle(ev)
		case complete := <-s.completions:
			complete()
		}
	}

	for _, c := range s.controllers {
		c.Close()
	}
	removeListener()
	s.bridge.Forget(s.form.Document)

	wg.Wait()
	s.logger.Debug().Msg("session ended")
}

// Finished is closed when Run has returned.
func (s *Session) Finished() <-chan struct{} { return s.finished }

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// supersede ends the session because another connection took over its form.
func (s *Session) supersede() {
	s.closeOnce.Do(func() {
		s.closeCode = closeSuperseded
		close(s.done)
	})
}

func (s *Session) handle(ev Event) {
	if ev.Type == EventAddressRerendered {
		metrics.WidgetEventsTotal.WithLabelValues(string(EventAddressRerendered)).Inc()
		// An empty country is the generic layout.
		s.form.Document.ReplaceAddress(address.SubForm(ev.Country))
		return
	}

	ctrl, ok := s.controllers[ev.Instance]
	if !ok {
		s.logger.Debug().Str("instance", ev.Instance).Str("event", string(ev.Type)).Msg("event for unknown widget instance")
		return
	}
	surface := s.surfaces[ev.Instance]

	switch ev.Type {
	case EventInit:
		if ev.Mounted {
			surface.mounted(widget.View{Center: ev.Coordinate(), Zoom: ev.Zoom})
		}
		ctrl.Initialize()
		if ev.Mounted && ev.Marker != nil {
			ctrl.Restore(*ev.Marker)
		}
	case EventClick:
		ctrl.Click(ev.Coordinate())
	case EventDragEnd:
		ctrl.DragEnd(ev.Coordinate())
	case EventSearch:
		ctrl.Search(ev.Query)
	case EventSearchClosed:
		ctrl.CancelSearch()
	case EventSelect:
		ctrl.SelectSuggestion(ev.Index)
	case EventLocationFound:
		ctrl.LocationFound(ev.Coordinate(), ev.Accuracy)
	case EventView:
		surface.viewChanged(widget.View{Center: ev.Coordinate(), Zoom: ev.Zoom})
	default:
		s.logger.Debug().Str("event", string(ev.Type)).Msg("unknown event type")
	}
}

// enqueue queues c for the browser. A client that cannot keep up is
// disconnected; it resynchronizes on reconnect.
func (s *Session) enqueue(c Command) {
	select {
	case s.send <- c:
	case <-s.done:
	default:
		s.logger.Warn().Str("command", string(c.Type)).Msg("send buffer full, closing session")
		s.Close()
	}
}

func (s *Session) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn().Err(err).Msg("discarding malformed event")
			continue
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case c := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(c); err != nil {
				s.logger.Debug().Err(err).Msg("websocket write failed")
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(s.closeCode, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func changeCommand(c form.Change) Command {
	t := CommandSetValue
	if c.Kind == form.ChangeSelectOption {
		t = CommandSelectOption
	}
	return Command{Type: t, Selector: c.Selector, Value: c.Value, Trigger: c.Trigger}
}

// loopScheduler runs lookups on their own goroutine and hands completions
// back to the session loop.
type loopScheduler struct {
	completions chan<- func()
	done        <-chan struct{}
}

func (l loopScheduler) Schedule(work func() func()) {
	go func() {
		complete := work()
		if complete == nil {
			return
		}
		select {
		case l.completions <- complete:
		case <-l.done:
		}
	}()
}
