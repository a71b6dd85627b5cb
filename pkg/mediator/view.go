package mediator

import (
	"slices"
	"sync"

	"coralrelay/pkg/types"
)

// ViewStats summarizes the transient view for /status.
type ViewStats struct {
	Agents  int `json:"agents"`
	Threads int `json:"threads"`
}

// View mirrors what the upstream has reported. It is advisory only: no
// operation consults it to decide whether to call the upstream.
type View struct {
	mu      sync.RWMutex
	agents  map[string]types.Agent
	threads map[string]types.Thread
}

func NewView() *View {
	return &View{
		agents:  make(map[string]types.Agent),
		threads: make(map[string]types.Thread),
	}
}

func (v *View) RecordAgent(agent types.Agent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	agent.Capabilities = slices.Clone(agent.Capabilities)
	v.agents[agent.Name] = agent
}

// ReplaceAgents swaps the agent set for a fresh upstream listing.
func (v *View) ReplaceAgents(agents []types.Agent) {
	next := make(map[string]types.Agent, len(agents))
	for _, agent := range agents {
		agent.Capabilities = slices.Clone(agent.Capabilities)
		next[agent.Name] = agent
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.agents = next
}

func (v *View) RecordThread(thread types.Thread) {
	v.mu.Lock()
	defer v.mu.Unlock()

	thread.Participants = slices.Clone(thread.Participants)
	v.threads[thread.ID] = thread
}

func (v *View) Agent(name string) (types.Agent, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	agent, ok := v.agents[name]
	return agent, ok
}

func (v *View) Thread(id string) (types.Thread, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	thread, ok := v.threads[id]
	return thread, ok
}

func (v *View) Stats() ViewStats {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return ViewStats{Agents: len(v.agents), Threads: len(v.threads)}
}
