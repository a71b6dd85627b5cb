package mediator

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"coralrelay/pkg/bus"
	"coralrelay/pkg/gateway"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
)

const (
	PathHealth        = "/"
	PathRegisterAgent = "/agents/register"
	PathSendMessage   = "/messages/send"
	PathListAgents    = "/agents/list"
	PathCreateThread  = "/threads/create"
	PathEvents        = "/events"
)

// Server exposes a Service over HTTP.
type Server struct {
	svc     *Service
	monitor *gateway.Monitor
	events  *bus.MessageBus
	timeout time.Duration
	log     *slog.Logger
}

// NewServer wires svc to its routes. monitor and events are optional.
func NewServer(svc *Service, monitor *gateway.Monitor, events *bus.MessageBus, timeout time.Duration, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		svc:     svc,
		monitor: monitor,
		events:  events,
		timeout: timeout,
		log:     log.With("component", "mediator.server"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST "+PathRegisterAgent, s.handleRegister)
	mux.HandleFunc("POST "+PathSendMessage, s.handleSendMessage)
	mux.HandleFunc("GET "+PathListAgents, s.handleListAgents)
	mux.HandleFunc("POST "+PathCreateThread, s.handleCreateThread)
	mux.Handle("GET "+PathEvents, &EventsHandler{Bus: s.events, Log: s.log})
	if s.monitor != nil {
		s.monitor.Register(mux)
	}
	mux.Handle("/", relay.NotFound(s.log))

	return allowAnyOrigin(relay.Recover(s.log, relay.AccessLog(s.log, mux)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	response, err := s.svc.Health(ctx)
	if s.monitor != nil {
		s.monitor.Record(err)
	}
	s.respond(w, "health", response, err)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterAgentRequest
	if err := relay.DecodeJSON(r, &req); err != nil {
		s.respond(w, "register_agent", nil, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	response, err := s.svc.RegisterAgent(ctx, req)
	s.respond(w, "register_agent", response, err)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req types.SendMessageRequest
	if err := relay.DecodeJSON(r, &req); err != nil {
		s.respond(w, "send_message", nil, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	response, err := s.svc.SendMessage(ctx, req)
	s.respond(w, "send_message", response, err)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	raw, present := r.URL.Query()["include_details"]
	value := ""
	if present && len(raw) > 0 {
		value = raw[0]
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	response, err := s.svc.ListAgents(ctx, relay.ParseIncludeDetails(value, present))
	s.respond(w, "list_agents", response, err)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req types.CreateThreadRequest
	if err := relay.DecodeJSON(r, &req); err != nil {
		s.respond(w, "create_thread", nil, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	response, err := s.svc.CreateThread(ctx, req)
	s.respond(w, "create_thread", response, err)
}

func (s *Server) respond(w http.ResponseWriter, operation string, payload any, err error) {
	if err != nil {
		if !relay.IsCallerError(err) {
			s.log.Error("Request failed", "operation", operation, "code", relay.CategoryFromError(err), "error", relay.MessageFromError(err))
		}
		relay.WriteError(w, s.log, err)
		return
	}

	relay.WriteJSON(w, s.log, http.StatusOK, payload)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return r.Context(), func() {}
	}

	return context.WithTimeout(r.Context(), s.timeout)
}

// allowAnyOrigin answers CORS preflights and tags every response as
// readable from any origin.
func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
