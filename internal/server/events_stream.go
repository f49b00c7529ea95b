package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/cornerstone/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	streamBufferSize   = 100
	streamWriteTimeout = 5 * time.Second
)

// StreamMessage is one frame pushed to a stream client
type StreamMessage struct {
	Type      events.EventType       `json:"type"`
	Module    string                 `json:"module,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventsStreamHandler pushes bus events to websocket clients.
type EventsStreamHandler struct {
	eventBus       *events.Bus
	originPatterns []string
	heartbeat      time.Duration
	log            zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler. allowedOrigins
// uses the CORS form (scheme://host, one * wildcard); the request's own host
// is always accepted.
func NewEventsStreamHandler(eventBus *events.Bus, allowedOrigins []string, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus:       eventBus,
		originPatterns: originPatterns(allowedOrigins),
		heartbeat:      30 * time.Second,
		log:            log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/market/stream. The optional types query
// parameter is a comma-separated list of event types to receive.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	allowedTypes, ok := parseTypes(r.URL.Query().Get("types"))
	if !ok {
		http.Error(w, "Unknown event type", http.StatusBadRequest)
		return
	}

	// A stream outlives the server's per-request timeouts
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead cancels ctx when the peer goes away.
	ctx := conn.CloseRead(context.WithoutCancel(r.Context()))

	eventChan := make(chan *events.Event, streamBufferSize)
	eventHandler := func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	var ids []uint64
	for _, t := range allowedTypes {
		ids = append(ids, h.eventBus.Subscribe(t, eventHandler))
	}
	defer h.eventBus.Unsubscribe(ids...)

	h.log.Info().Int("types", len(allowedTypes)).Msg("Client connected to event stream")

	if err := h.send(ctx, conn, StreamMessage{
		Type:      events.StreamConnected,
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      map[string]interface{}{"message": "Connected to market event stream"},
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			if err := h.send(ctx, conn, StreamMessage{
				Type:      event.Type,
				Module:    event.Module,
				Timestamp: event.Timestamp.Format(time.RFC3339),
				Data:      event.Data,
			}); err != nil {
				return
			}

		case t := <-heartbeat.C:
			if err := h.send(ctx, conn, StreamMessage{
				Type:      events.StreamHeartbeat,
				Timestamp: t.Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}

func (h *EventsStreamHandler) send(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.log.Debug().Err(err).Str("event_type", string(msg.Type)).Msg("Failed to write to stream client")
		return err
	}
	return nil
}

// originPatterns turns CORS origins into the host patterns the websocket
// origin check matches against
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if i := strings.Index(origin, "://"); i >= 0 {
			origin = origin[i+3:]
		}
		if origin = strings.TrimSuffix(origin, "/"); origin != "" {
			patterns = append(patterns, origin)
		}
	}
	return patterns
}

// parseTypes resolves the types filter. Empty means every bus event type.
func parseTypes(filter string) ([]events.EventType, bool) {
	if strings.TrimSpace(filter) == "" {
		return events.AllEventTypes, true
	}

	known := make(map[events.EventType]bool, len(events.AllEventTypes))
	for _, t := range events.AllEventTypes {
		known[t] = true
	}

	var out []events.EventType
	for _, part := range strings.Split(filter, ",") {
		t := events.EventType(strings.ToUpper(strings.TrimSpace(part)))
		if t == "" {
			continue
		}
		if !known[t] {
			return nil, false
		}
		out = append(out, t)
	}
	return out, len(out) > 0
}
