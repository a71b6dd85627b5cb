package roster

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"coralrelay/pkg/facade"
	"coralrelay/pkg/mediator"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/upstream"
)

func TestLoadYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "agents.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("agents:\n  - name: agent_x\n    capabilities: [search]\n  - name: agent_y\n"), 0o600))

	file, err := Load(yamlPath)
	require.NoError(t, err)
	require.Len(t, file.Agents, 2)
	require.Equal(t, "agent_x", file.Agents[0].Name)
	require.Equal(t, []string{"search"}, file.Agents[0].Capabilities)

	jsonPath := filepath.Join(dir, "agents.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"agents":[{"name":"agent_z","capabilities":["plan"]}]}`), 0o600))

	file, err = Load(jsonPath)
	require.NoError(t, err)
	require.Equal(t, "agent_z", file.Agents[0].Name)
}

func TestParseRejectsEmptyRoster(t *testing.T) {
	_, err := Parse([]byte("agents: []\n"), ".yml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "agents must contain at least 1 entries")

	_, err = Parse([]byte("{"), ".json")
	require.Error(t, err)
}

func TestApplyContinuesPastFailures(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	network := upstream.NewNetwork()

	mediatorSvc, err := mediator.NewService(network, log)
	require.NoError(t, err)
	svc, err := facade.NewService(mediatorSvc, log)
	require.NoError(t, err)

	file, err := Parse([]byte(`{"agents":[{"name":"agent_x","capabilities":["search"]},{"name":"  "},{"name":"agent_y"}]}`), ".json")
	require.NoError(t, err)

	outcomes := Apply(context.Background(), svc, file)
	require.Len(t, outcomes, 3)
	require.NoError(t, outcomes[0].Err)
	require.Equal(t, relay.CategoryInvalidInput, relay.CategoryFromError(outcomes[1].Err))
	require.NoError(t, outcomes[2].Err)
	require.Equal(t, 1, Failed(outcomes))

	agents, err := network.ListAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
}
