package facade

import (
	"context"
	"fmt"
	"strings"

	"coralrelay/pkg/bus"
	"coralrelay/pkg/channel"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
)

// CommandHandler runs chat commands against backend. Parse and relay failures
// become the reply's Error text so the channel keeps running.
func CommandHandler(backend Backend) channel.Handler {
	return func(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
		outbound := bus.OutboundMessage{Channel: inbound.Channel, ChatID: inbound.ChatID}

		cmd, err := channel.ParseCommand(inbound.Content)
		if err != nil {
			outbound.Error = err.Error()
			return outbound, nil
		}

		content, err := Execute(ctx, backend, cmd)
		if err != nil {
			outbound.Error = relay.MessageFromError(err)
			outbound.Metadata = map[string]string{"code": string(relay.CategoryFromError(err))}
			return outbound, nil
		}

		outbound.Content = content
		return outbound, nil
	}
}

// Execute runs one parsed command and renders the reply text.
func Execute(ctx context.Context, backend Backend, cmd channel.Command) (string, error) {
	switch cmd.Kind {
	case channel.CommandHelp:
		return channel.HelpText, nil

	case channel.CommandHealth:
		response, err := backend.Health(ctx)
		if err != nil {
			return "", err
		}
		if response.Upstream == nil {
			return response.Message, nil
		}
		return fmt.Sprintf("%s (agents: %d, threads: %d)", response.Message, response.Upstream.Agents, response.Upstream.Threads), nil

	case channel.CommandAgents:
		response, err := backend.ListAgents(ctx, true)
		if err != nil {
			return "", err
		}
		return FormatAgents(response.Agents.Agents), nil

	case channel.CommandRegister:
		response, err := backend.RegisterAgent(ctx, types.RegisterAgentRequest{AgentName: cmd.Agent, Capabilities: cmd.Capabilities})
		if err != nil {
			return "", err
		}
		return response.Message, nil

	case channel.CommandSend:
		response, err := backend.SendMessage(ctx, types.SendMessageRequest{Recipient: cmd.Agent, Content: cmd.Content})
		if err != nil {
			return "", err
		}
		return response.Message, nil

	case channel.CommandThread:
		response, err := backend.CreateThread(ctx, types.CreateThreadRequest{Participants: cmd.Participants, InitialMessage: cmd.Content})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s\nthread_id: %s", response.Message, response.ThreadID), nil

	default:
		return "", relay.InvalidInput("unsupported command %q", cmd.Kind)
	}
}

// FormatAgents renders one agent per line with its capabilities.
func FormatAgents(agents []types.Agent) string {
	if len(agents) == 0 {
		return "No agents registered."
	}

	lines := make([]string, 0, len(agents))
	for _, agent := range agents {
		if len(agent.Capabilities) == 0 {
			lines = append(lines, "- "+agent.Name)
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s [%s]", agent.Name, strings.Join(agent.Capabilities, ", ")))
	}

	return strings.Join(lines, "\n")
}
