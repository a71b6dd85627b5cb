package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	channelpkg "coralrelay/pkg/channel"
	"coralrelay/pkg/config"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/roster"
	"coralrelay/pkg/types"
)

type testAdapter struct{ name string }

func (a testAdapter) Name() string { return a.name }

func (a testAdapter) Run(_ context.Context, _ channelpkg.Handler) error { return nil }

func TestEnabledAdaptersAllowsNone(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	adapters, err := enabledAdapters(cfg, nil)
	if err != nil {
		t.Fatalf("enabledAdapters error = %v", err)
	}
	if len(adapters) != 0 {
		t.Fatalf("adapters = %d, want 0", len(adapters))
	}
}

func TestEnabledAdaptersRejectsTelegramWithoutToken(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Channels: config.ChannelsConfig{Telegram: config.TelegramConfig{Enabled: true}}}
	if _, err := enabledAdapters(cfg, nil); err == nil {
		t.Fatal("expected error when telegram is enabled without a token")
	}
}

func TestEnabledChannelNames(t *testing.T) {
	t.Parallel()

	adapters := []channelpkg.Adapter{testAdapter{name: "telegram"}, testAdapter{name: "slack"}}
	if got := enabledChannelNames(adapters); got != "telegram,slack" {
		t.Fatalf("enabledChannelNames = %q, want %q", got, "telegram,slack")
	}
	if got := enabledChannelNames(nil); got != "none" {
		t.Fatalf("enabledChannelNames(nil) = %q, want none", got)
	}
}

func TestResolveFacadeURL(t *testing.T) {
	original := facadeURL
	t.Cleanup(func() {
		facadeURL = original
	})

	cfg := config.DefaultConfig()

	facadeURL = ""
	if got := resolveFacadeURL(&cfg); got != "http://localhost:8000" {
		t.Fatalf("resolveFacadeURL default = %q", got)
	}

	facadeURL = " http://relay.internal:9000 "
	if got := resolveFacadeURL(&cfg); got != "http://relay.internal:9000" {
		t.Fatalf("resolveFacadeURL with flag = %q", got)
	}
}

func TestResolveConsoleCommand(t *testing.T) {
	original := consoleCommand
	t.Cleanup(func() {
		consoleCommand = original
	})

	consoleCommand = " /agents "
	if got := resolveConsoleCommand([]string{"/health"}); got != "/agents" {
		t.Fatalf("resolveConsoleCommand with flag = %q", got)
	}

	consoleCommand = ""
	if got := resolveConsoleCommand([]string{"/send", "agent_x", "hi"}); got != "/send agent_x hi" {
		t.Fatalf("resolveConsoleCommand with args = %q", got)
	}

	if got := resolveConsoleCommand(nil); got != "" {
		t.Fatalf("resolveConsoleCommand without input = %q, want empty", got)
	}
}

func TestRenderAgents(t *testing.T) {
	t.Parallel()

	agents := []types.Agent{
		{Name: "agent_x", Capabilities: []string{"search", "plan"}},
		{Name: "agent_y", Capabilities: []string{}},
	}

	var detailed bytes.Buffer
	renderAgents(&detailed, agents, false)
	out := detailed.String()
	for _, want := range []string{"NAME", "CAPABILITIES", "agent_x", "search, plan", "agent_y"} {
		if !strings.Contains(out, want) {
			t.Fatalf("renderAgents output missing %q:\n%s", want, out)
		}
	}

	var names bytes.Buffer
	renderAgents(&names, agents, true)
	if strings.Contains(names.String(), "CAPABILITIES") {
		t.Fatalf("names-only output has capabilities column:\n%s", names.String())
	}
}

func TestCommandsRegistered(t *testing.T) {
	t.Parallel()

	want := map[string]bool{"mediator": false, "facade": false, "agents": false, "console": false, "register": false}
	for _, command := range rootCmd.Commands() {
		if _, ok := want[command.Name()]; ok {
			want[command.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %q not registered", name)
		}
	}
}

func TestPrintOutcomes(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printOutcomes(&out, []roster.Outcome{
		{Agent: "agent_x", Message: "Agent agent_x registered successfully"},
		{Agent: "agent_y", Err: relay.NewError(relay.CategoryRegistrationFailed, "Failed to register agent: duplicate")},
		{Agent: "agent_z", Err: errors.New("dial tcp: connection refused")},
	})

	want := "OK   Agent agent_x registered successfully\n" +
		"FAIL agent_y: Failed to register agent: duplicate\n" +
		"FAIL agent_z: dial tcp: connection refused\n"
	if out.String() != want {
		t.Fatalf("printOutcomes =\n%s\nwant\n%s", out.String(), want)
	}
}
