package facade

import (
	"context"
	"errors"
	"log/slog"

	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
)

// Backend runs the relay operations. *Service, *Client, *mediator.Client and
// *mediator.Service all satisfy it.
type Backend interface {
	Health(ctx context.Context) (types.HealthResponse, error)
	RegisterAgent(ctx context.Context, req types.RegisterAgentRequest) (types.RegisterAgentResponse, error)
	SendMessage(ctx context.Context, req types.SendMessageRequest) (types.SendMessageResponse, error)
	ListAgents(ctx context.Context, includeDetails bool) (types.ListAgentsResponse, error)
	CreateThread(ctx context.Context, req types.CreateThreadRequest) (types.CreateThreadResponse, error)
}

// Service checks that required fields are present and hands every request
// to the mediator. It holds no state beyond the mediator handle.
type Service struct {
	mediator Backend
	presence *relay.Validator
	log      *slog.Logger
}

func NewService(mediator Backend, log *slog.Logger) (*Service, error) {
	if mediator == nil {
		return nil, errors.New("mediator client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		mediator: mediator,
		presence: relay.NewValidator("binding", relay.CategoryMissingParameter),
		log:      log.With("component", "facade.service"),
	}, nil
}

func (s *Service) Health(ctx context.Context) (types.HealthResponse, error) {
	response, err := s.mediator.Health(ctx)
	if err != nil {
		return types.HealthResponse{}, s.failure("connect to coral service", err)
	}

	return response, nil
}

func (s *Service) RegisterAgent(ctx context.Context, req types.RegisterAgentRequest) (types.RegisterAgentResponse, error) {
	if err := s.presence.Struct(req); err != nil {
		return types.RegisterAgentResponse{}, err
	}

	response, err := s.mediator.RegisterAgent(ctx, req)
	if err != nil {
		return types.RegisterAgentResponse{}, s.failure("register agent", err)
	}

	return response, nil
}

func (s *Service) SendMessage(ctx context.Context, req types.SendMessageRequest) (types.SendMessageResponse, error) {
	if err := s.presence.Struct(req); err != nil {
		return types.SendMessageResponse{}, err
	}

	response, err := s.mediator.SendMessage(ctx, req)
	if err != nil {
		return types.SendMessageResponse{}, s.failure("send message", err)
	}

	return response, nil
}

func (s *Service) ListAgents(ctx context.Context, includeDetails bool) (types.ListAgentsResponse, error) {
	response, err := s.mediator.ListAgents(ctx, includeDetails)
	if err != nil {
		return types.ListAgentsResponse{}, s.failure("list agents", err)
	}

	return response, nil
}

func (s *Service) CreateThread(ctx context.Context, req types.CreateThreadRequest) (types.CreateThreadResponse, error) {
	if err := s.presence.Struct(req); err != nil {
		return types.CreateThreadResponse{}, err
	}

	response, err := s.mediator.CreateThread(ctx, req)
	if err != nil {
		return types.CreateThreadResponse{}, s.failure("create thread", err)
	}

	return response, nil
}

// failure keeps the mediator's category. Caller errors pass through
// untouched; anything else gains a "Failed to <action>: " prefix.
func (s *Service) failure(action string, err error) error {
	category := relay.CategoryFromError(err)
	message := relay.MessageFromError(err)

	if relay.IsCallerError(err) {
		s.log.Warn("Mediator rejected request", "action", action, "code", category, "error", message)
		return err
	}

	s.log.Error("Failed to "+action, "code", category, "error", message)
	return &relay.Error{
		Category: category,
		Detail:   "Failed to " + action + ": " + message,
		Err:      err,
	}
}
