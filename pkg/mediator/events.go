package mediator

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"coralrelay/pkg/bus"
)

const (
	eventStreamBuffer = 64
	eventWriteTimeout = 10 * time.Second
)

// ObserveEvents logs every relay event until ctx ends or the bus closes.
func ObserveEvents(ctx context.Context, messageBus *bus.MessageBus, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "bus.events")

	events, unsubscribe := messageBus.SubscribeEvents(ctx, eventStreamBuffer)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			logEvent(log, event)
		}
	}
}

func logEvent(log *slog.Logger, event bus.Event) {
	attrs := []any{
		"event_type", event.Type,
		"timestamp", event.At.UTC().Format(time.RFC3339Nano),
	}
	for _, field := range []struct {
		key   string
		value string
	}{
		{"operation", event.Operation},
		{"agent", event.Agent},
		{"recipient", event.Recipient},
		{"thread_id", event.ThreadID},
		{"code", event.Code},
	} {
		if field.value != "" {
			attrs = append(attrs, field.key, field.value)
		}
	}
	if len(event.Participants) > 0 {
		attrs = append(attrs, "participants", event.Participants)
	}

	switch event.Type {
	case bus.EventUpstreamFailed:
		log.Error("Relay event", append(attrs, "error", event.Error)...)
	case bus.EventFanOutFailed:
		log.Warn("Relay event", append(attrs, "error", event.Error)...)
	case bus.EventAgentRegistered, bus.EventMessageSent, bus.EventThreadCreated:
		log.Info("Relay event", attrs...)
	default:
		log.Debug("Relay event", attrs...)
	}
}

// EventsHandler streams relay events to a WebSocket client as JSON frames.
type EventsHandler struct {
	Bus *bus.MessageBus
	Log *slog.Logger
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Bus == nil {
		http.Error(w, "relay events unavailable", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := h.Bus.SubscribeEvents(ctx, eventStreamBuffer)
	defer unsubscribe()

	// Reads only detect the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"), time.Now().Add(time.Second))
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				if h.Log != nil {
					h.Log.Debug("Event stream closed", "error", err)
				}
				return
			}
		}
	}
}
