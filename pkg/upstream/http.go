package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdk "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"

	"coralrelay/pkg/config"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
)

// Paths are relative so a base URL carrying a path prefix is kept.
const (
	pathHealth   = "health"
	pathAgents   = "agents"
	pathThreads  = "threads"
	pathMessages = "messages"
)

// HTTPClient speaks the coral network's HTTP/JSON binding.
type HTTPClient struct {
	client         *sdk.Client
	requestTimeout time.Duration
}

type agentsResponse struct {
	Agents []types.Agent `json:"agents"`
}

type threadResponse struct {
	ID string `json:"id"`
}

func NewHTTPClient(cfg config.UpstreamConfig) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if baseURL == "" {
		return nil, errors.New("upstream.server_url is required")
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL + "/"),
		option.WithMaxRetries(0),
		option.WithHeader("Accept", "application/json"),
	}
	if key := cfg.APIKey(); key != "" {
		opts = append(opts, option.WithHeader("Authorization", "Bearer "+key))
	}

	return &HTTPClient{
		client:         sdk.NewClient(opts...),
		requestTimeout: cfg.Timeout(),
	}, nil
}

func (c *HTTPClient) Health(ctx context.Context) (types.HealthStatus, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	call := startCall("health")

	var status types.HealthStatus
	if err := c.client.Get(ctx, pathHealth, nil, &status); err != nil {
		call.failed(err)
		return types.HealthStatus{}, relay.Unreachable(err, "coral network health check failed: "+reason(err))
	}
	if !status.Healthy {
		call.failed(errors.New("network unhealthy"))
		return status, relay.NewError(relay.CategoryUnreachable, "coral network reported unhealthy status")
	}

	call.completed("version", status.Version, "agents", status.Agents)
	return status, nil
}

func (c *HTTPClient) RegisterAgent(ctx context.Context, agent types.Agent) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	call := startCall("register_agent", "agent", agent.Name)

	if err := c.post(ctx, pathAgents, agent, nil); err != nil {
		call.failed(err)
		return relay.Wrap(relay.CategoryRegistrationFailed, err, fmt.Sprintf("failed to register agent '%s': %s", agent.Name, reason(err)))
	}

	call.completed()
	return nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, msg types.Message) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	call := startCall("send_message", "recipient", msg.Recipient, "thread_id", msg.ThreadID)

	if err := c.post(ctx, pathMessages, msg, nil); err != nil {
		call.failed(err)
		return relay.Wrap(relay.CategoryDeliveryFailed, err, fmt.Sprintf("failed to deliver message to '%s': %s", msg.Recipient, reason(err)))
	}

	call.completed()
	return nil
}

func (c *HTTPClient) ListAgents(ctx context.Context) ([]types.Agent, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	call := startCall("list_agents")

	var response agentsResponse
	if err := c.client.Get(ctx, pathAgents, nil, &response); err != nil {
		call.failed(err)
		return nil, relay.Unreachable(err, "failed to list agents: "+reason(err))
	}

	call.completed("agents", len(response.Agents))
	return response.Agents, nil
}

func (c *HTTPClient) CreateThread(ctx context.Context, thread types.Thread) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	call := startCall("create_thread", "thread_id", thread.ID, "participants", len(thread.Participants))

	var response threadResponse
	if err := c.post(ctx, pathThreads, thread, &response); err != nil {
		call.failed(err)
		return "", relay.Wrap(relay.CategoryThreadCreationFailed, err, "failed to create thread: "+reason(err))
	}

	id := strings.TrimSpace(response.ID)
	if id == "" {
		id = thread.ID
	}

	call.completed("thread_id", id)
	return id, nil
}

// post encodes body up front so the sdk sends it verbatim.
func (c *HTTPClient) post(ctx context.Context, path string, body any, res any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	return c.client.Post(ctx, path, json.RawMessage(payload), res)
}

func (c *HTTPClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

// reason shortens sdk failures to the status line callers care about.
func reason(err error) string {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("coral network returned status %d", apiErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}

	return err.Error()
}

type callLog struct {
	log       *slog.Logger
	startedAt time.Time
}

func startCall(operation string, args ...any) callLog {
	log := upstreamLogger().With("operation", operation)
	log.Debug("upstream request started", args...)
	return callLog{log: log, startedAt: time.Now()}
}

func (c callLog) completed(args ...any) {
	c.log.Debug("upstream request completed", append([]any{"duration_ms", time.Since(c.startedAt).Milliseconds()}, args...)...)
}

func (c callLog) failed(err error) {
	c.log.Debug("upstream request failed", "duration_ms", time.Since(c.startedAt).Milliseconds(), "error", err)
}
