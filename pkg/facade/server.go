package facade

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"coralrelay/pkg/gateway"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
)

const (
	PathRoot         = "/"
	PathCoralHealth  = "/coral/health"
	PathRegister     = "/coral/register"
	PathSendMessage  = "/coral/send_message"
	PathListAgents   = "/coral/list_agents"
	PathCreateThread = "/coral/create_thread"

	serviceMessage = "Coral relay facade is running"
)

// Result wraps a successful mediator answer.
type Result[T any] struct {
	Status string `json:"status"`
	Result T      `json:"result"`
}

// RootResponse answers GET /.
type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CoralHealthResponse answers GET /coral/health.
type CoralHealthResponse struct {
	Status       string               `json:"status"`
	CoralService types.HealthResponse `json:"coral_service"`
}

type Server struct {
	svc     *Service
	monitor *gateway.Monitor
	timeout time.Duration
	log     *slog.Logger
}

// NewServer wires svc to the facade routes. monitor is optional.
func NewServer(svc *Service, monitor *gateway.Monitor, timeout time.Duration, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		svc:     svc,
		monitor: monitor,
		timeout: timeout,
		log:     log.With("component", "facade.server"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET "+PathCoralHealth, s.handleCoralHealth)
	mux.HandleFunc("POST "+PathRegister, s.handleRegister)
	mux.HandleFunc("POST "+PathSendMessage, s.handleSendMessage)
	mux.HandleFunc("GET "+PathListAgents, s.handleListAgents)
	mux.HandleFunc("POST "+PathCreateThread, s.handleCreateThread)
	if s.monitor != nil {
		s.monitor.Register(mux)
	}
	mux.Handle("/", relay.NotFound(s.log))

	return relay.Recover(s.log, relay.AccessLog(s.log, mux))
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	relay.WriteJSON(w, s.log, http.StatusOK, RootResponse{Status: relay.StatusOK, Message: serviceMessage})
}

func (s *Server) handleCoralHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	response, err := s.svc.Health(ctx)
	if s.monitor != nil {
		s.monitor.Record(err)
	}
	if err != nil {
		relay.WriteError(w, s.log, err)
		return
	}

	relay.WriteJSON(w, s.log, http.StatusOK, CoralHealthResponse{Status: relay.StatusOK, CoralService: response})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterAgentRequest
	if err := relay.DecodeJSON(r, &req); err != nil {
		relay.WriteError(w, s.log, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	response, err := s.svc.RegisterAgent(ctx, req)
	respond(w, s.log, response, err)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req types.SendMessageRequest
	if err := relay.DecodeJSON(r, &req); err != nil {
		relay.WriteError(w, s.log, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	response, err := s.svc.SendMessage(ctx, req)
	respond(w, s.log, response, err)
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
	respond(w, s.log, response, err)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req types.CreateThreadRequest
	if err := relay.DecodeJSON(r, &req); err != nil {
		relay.WriteError(w, s.log, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	response, err := s.svc.CreateThread(ctx, req)
	respond(w, s.log, response, err)
}

func respond[T any](w http.ResponseWriter, log *slog.Logger, response T, err error) {
	if err != nil {
		relay.WriteError(w, log, err)
		return
	}

	relay.WriteJSON(w, log, http.StatusOK, Result[T]{Status: relay.StatusSuccess, Result: response})
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return r.Context(), func() {}
	}

	return context.WithTimeout(r.Context(), s.timeout)
}
