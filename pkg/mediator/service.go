package mediator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"coralrelay/pkg/bus"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
	"coralrelay/pkg/upstream"
)

// Service validates relay requests, forwards them to the coral network and
// normalizes the outcome.
type Service struct {
	upstream  upstream.Client
	view      *View
	validator *relay.Validator
	events    *bus.MessageBus
	newID     func() string
	log       *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithEvents publishes relay outcomes on mb.
func WithEvents(mb *bus.MessageBus) Option {
	return func(s *Service) {
		s.events = mb
	}
}

// WithIDGenerator replaces the UUIDv4 thread id source.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func NewService(client upstream.Client, log *slog.Logger, opts ...Option) (*Service, error) {
	if client == nil {
		return nil, errors.New("upstream client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		upstream:  client,
		view:      NewView(),
		validator: relay.NewValidator("validate", relay.CategoryInvalidInput),
		newID:     uuid.NewString,
		log:       log.With("component", "mediator.service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// View exposes the transient state mirrored from the upstream.
func (s *Service) View() *View {
	return s.view
}

func (s *Service) Health(ctx context.Context) (types.HealthResponse, error) {
	status, err := s.upstream.Health(ctx)
	if err != nil {
		return types.HealthResponse{}, s.upstreamFailure(ctx, "health", relay.CategoryUnreachable, err)
	}

	return types.HealthResponse{
		Status:   relay.StatusOK,
		Message:  "Coral service is running",
		Upstream: &status,
	}, nil
}

func (s *Service) RegisterAgent(ctx context.Context, req types.RegisterAgentRequest) (types.RegisterAgentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return types.RegisterAgentResponse{}, err
	}

	agent := types.Agent{
		Name:         req.AgentName,
		Capabilities: types.NormalizeCapabilities(req.Capabilities),
	}

	if err := s.upstream.RegisterAgent(ctx, agent); err != nil {
		return types.RegisterAgentResponse{}, s.upstreamFailure(ctx, "register_agent", relay.CategoryRegistrationFailed, err)
	}

	s.view.RecordAgent(agent)
	s.publish(ctx, bus.Event{Type: bus.EventAgentRegistered, Agent: agent.Name, Capabilities: agent.Capabilities})
	s.log.Info("Agent registered", "agent", agent.Name, "capabilities", len(agent.Capabilities))

	return types.RegisterAgentResponse{
		Status:  relay.StatusSuccess,
		Message: fmt.Sprintf("Successfully registered agent '%s' with capabilities: %s", agent.Name, formatList(agent.Capabilities)),
		Agent:   agent,
	}, nil
}

func (s *Service) SendMessage(ctx context.Context, req types.SendMessageRequest) (types.SendMessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return types.SendMessageResponse{}, err
	}

	msg := types.Message{
		Recipient: req.Recipient,
		Content:   req.Content,
		ThreadID:  strings.TrimSpace(req.ThreadID),
	}

	if err := s.upstream.SendMessage(ctx, msg); err != nil {
		return types.SendMessageResponse{}, s.upstreamFailure(ctx, "send_message", relay.CategoryDeliveryFailed, err)
	}

	s.publish(ctx, bus.Event{Type: bus.EventMessageSent, Recipient: msg.Recipient, ThreadID: msg.ThreadID})
	s.log.Info("Message sent", "recipient", msg.Recipient, "thread_id", msg.ThreadID)

	return types.SendMessageResponse{
		Status:    relay.StatusSuccess,
		Message:   fmt.Sprintf("Successfully sent message to '%s'", msg.Recipient),
		Recipient: msg.Recipient,
		ThreadID:  msg.ThreadID,
	}, nil
}

// ListAgents returns records when includeDetails is set and bare names otherwise.
func (s *Service) ListAgents(ctx context.Context, includeDetails bool) (types.ListAgentsResponse, error) {
	agents, err := s.upstream.ListAgents(ctx)
	if err != nil {
		return types.ListAgentsResponse{}, s.upstreamFailure(ctx, "list_agents", relay.CategoryUnreachable, err)
	}

	normalized := make([]types.Agent, 0, len(agents))
	for _, agent := range agents {
		normalized = append(normalized, types.Agent{
			Name:         agent.Name,
			Capabilities: types.NormalizeCapabilities(agent.Capabilities),
		})
	}
	s.view.ReplaceAgents(normalized)

	return types.ListAgentsResponse{
		Status: relay.StatusSuccess,
		Agents: types.AgentList{Agents: normalized, NamesOnly: !includeDetails},
	}, nil
}

// CreateThread opens a thread and, when an initial message is given, sends
// it to every participant except the initiator. Failed sends are reported
// in the result; the thread is never rolled back.
func (s *Service) CreateThread(ctx context.Context, req types.CreateThreadRequest) (types.CreateThreadResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return types.CreateThreadResponse{}, err
	}

	thread := types.Thread{ID: s.newID(), Participants: slices.Clone(req.Participants)}

	createdID, err := s.upstream.CreateThread(ctx, thread)
	if err != nil {
		return types.CreateThreadResponse{}, s.upstreamFailure(ctx, "create_thread", relay.CategoryThreadCreationFailed, err)
	}
	if createdID = strings.TrimSpace(createdID); createdID != "" {
		thread.ID = createdID
	}

	s.view.RecordThread(thread)
	s.publish(ctx, bus.Event{Type: bus.EventThreadCreated, ThreadID: thread.ID, Participants: thread.Participants})
	s.log.Info("Thread created", "thread_id", thread.ID, "participants", len(thread.Participants))

	response := types.CreateThreadResponse{
		Status:       relay.StatusSuccess,
		ThreadID:     thread.ID,
		Participants: thread.Participants,
		Message:      fmt.Sprintf("Successfully created thread with participants: %s", formatList(thread.Participants)),
	}

	if strings.TrimSpace(req.InitialMessage) == "" {
		return response, nil
	}

	recipients := types.FanOutRecipients(thread.Participants)
	for _, recipient := range recipients {
		msg := types.Message{Recipient: recipient, Content: req.InitialMessage, ThreadID: thread.ID}
		if err := s.upstream.SendMessage(ctx, msg); err != nil {
			reason := relay.MessageFromError(err)
			response.Failed = append(response.Failed, types.FanOutFailure{Recipient: recipient, Error: reason})
			s.publish(ctx, bus.Event{
				Type:      bus.EventFanOutFailed,
				ThreadID:  thread.ID,
				Recipient: recipient,
				Code:      string(relay.CategoryDeliveryFailed),
				Error:     reason,
			})
			s.log.Warn("Initial message not delivered", "thread_id", thread.ID, "recipient", recipient, "error", reason)
			continue
		}
		response.Delivered = append(response.Delivered, recipient)
	}

	if len(response.Failed) > 0 {
		response.Message += fmt.Sprintf(" (initial message failed for %d of %d recipients)", len(response.Failed), len(recipients))
	}

	return response, nil
}

// upstreamFailure keeps an upstream-assigned category and tags anything
// uncategorized with fallback.
func (s *Service) upstreamFailure(ctx context.Context, operation string, fallback relay.Category, err error) error {
	var categorized *relay.Error
	if !errors.As(err, &categorized) {
		err = relay.Wrap(fallback, err, "")
	}

	s.log.Error("Upstream call failed", "operation", operation, "code", relay.CategoryFromError(err), "error", relay.MessageFromError(err))
	s.publish(ctx, bus.Event{
		Type:      bus.EventUpstreamFailed,
		Operation: operation,
		Code:      string(relay.CategoryFromError(err)),
		Error:     relay.MessageFromError(err),
	})

	return err
}

func (s *Service) publish(ctx context.Context, event bus.Event) {
	if s.events == nil {
		return
	}

	// A cancelled request must not suppress the record of what already happened.
	s.events.PublishEvent(context.WithoutCancel(ctx), event)
}

func formatList(values []string) string {
	return "[" + strings.Join(values, ", ") + "]"
}
