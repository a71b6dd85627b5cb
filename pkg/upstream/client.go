//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=../mocks/mock_upstream.go -package=mocks
package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"coralrelay/pkg/config"
	"coralrelay/pkg/types"
)

// Client is the capability set the mediator needs from the coral network.
// Calls are not idempotent and are attempted at most once.
type Client interface {
	Health(ctx context.Context) (types.HealthStatus, error)
	RegisterAgent(ctx context.Context, agent types.Agent) error
	SendMessage(ctx context.Context, msg types.Message) error
	ListAgents(ctx context.Context) ([]types.Agent, error)
	CreateThread(ctx context.Context, thread types.Thread) (string, error)
}

// New resolves the configured binding.
func New(cfg config.UpstreamConfig) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = config.UpstreamModeMemory
	}

	upstreamLogger().Debug("Resolving upstream client", "mode", mode)

	switch mode {
	case config.UpstreamModeHTTP:
		return NewHTTPClient(cfg)
	case config.UpstreamModeMemory:
		return NewNetwork(), nil
	default:
		return nil, fmt.Errorf("unsupported upstream mode: %s", mode)
	}
}

func upstreamLogger() *slog.Logger {
	return slog.Default().With("component", "upstream.client")
}
