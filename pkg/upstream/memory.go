package upstream

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
)

const networkVersion = "memory"

// Operation names one Client method for fault injection.
type Operation string

const (
	OpHealth        Operation = "health"
	OpRegisterAgent Operation = "register_agent"
	OpSendMessage   Operation = "send_message"
	OpListAgents    Operation = "list_agents"
	OpCreateThread  Operation = "create_thread"
)

// Delivery is one message accepted by the network.
type Delivery struct {
	Message     types.Message
	DeliveredAt time.Time
}

// Network is an in-process coral network. Agents and threads live only as
// long as the value does.
type Network struct {
	mu         sync.RWMutex
	agents     map[string]types.Agent
	order      []string
	threads    map[string]types.Thread
	deliveries []Delivery
	faults     map[Operation]error
}

func NewNetwork() *Network {
	return &Network{
		agents:  make(map[string]types.Agent),
		threads: make(map[string]types.Thread),
		faults:  make(map[Operation]error),
	}
}

// InjectFault makes every later call to op fail with err. A nil err clears it.
func (n *Network) InjectFault(op Operation, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err == nil {
		delete(n.faults, op)
		return
	}
	n.faults[op] = err
}

// Deliveries returns a copy of every accepted message in arrival order.
func (n *Network) Deliveries() []Delivery {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return slices.Clone(n.deliveries)
}

// Thread looks up a created thread.
func (n *Network) Thread(id string) (types.Thread, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	thread, ok := n.threads[id]
	return thread, ok
}

func (n *Network) Health(ctx context.Context) (types.HealthStatus, error) {
	if err := n.check(ctx, OpHealth, relay.CategoryUnreachable); err != nil {
		return types.HealthStatus{}, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	return types.HealthStatus{
		Healthy: true,
		Version: networkVersion,
		Agents:  len(n.agents),
		Threads: len(n.threads),
	}, nil
}

func (n *Network) RegisterAgent(ctx context.Context, agent types.Agent) error {
	if err := n.check(ctx, OpRegisterAgent, relay.CategoryRegistrationFailed); err != nil {
		return err
	}
	if agent.Name == "" {
		return relay.NewError(relay.CategoryRegistrationFailed, "agent name is required")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.agents[agent.Name]; !exists {
		n.order = append(n.order, agent.Name)
	}
	n.agents[agent.Name] = types.Agent{
		Name:         agent.Name,
		Capabilities: types.NormalizeCapabilities(agent.Capabilities),
	}

	return nil
}

func (n *Network) SendMessage(ctx context.Context, msg types.Message) error {
	if err := n.check(ctx, OpSendMessage, relay.CategoryDeliveryFailed); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.agents[msg.Recipient]; !ok {
		return relay.NewError(relay.CategoryDeliveryFailed, fmt.Sprintf("recipient '%s' is not registered", msg.Recipient))
	}
	if msg.ThreadID != "" {
		if _, ok := n.threads[msg.ThreadID]; !ok {
			return relay.NewError(relay.CategoryDeliveryFailed, fmt.Sprintf("thread '%s' does not exist", msg.ThreadID))
		}
	}

	n.deliveries = append(n.deliveries, Delivery{Message: msg, DeliveredAt: time.Now()})
	return nil
}

func (n *Network) ListAgents(ctx context.Context) ([]types.Agent, error) {
	if err := n.check(ctx, OpListAgents, relay.CategoryUnreachable); err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	agents := make([]types.Agent, 0, len(n.order))
	for _, name := range n.order {
		agent := n.agents[name]
		agent.Capabilities = slices.Clone(agent.Capabilities)
		agents = append(agents, agent)
	}

	return agents, nil
}

func (n *Network) CreateThread(ctx context.Context, thread types.Thread) (string, error) {
	if err := n.check(ctx, OpCreateThread, relay.CategoryThreadCreationFailed); err != nil {
		return "", err
	}
	if len(thread.Participants) == 0 {
		return "", relay.NewError(relay.CategoryThreadCreationFailed, "thread requires at least one participant")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, participant := range thread.Participants {
		if _, ok := n.agents[participant]; !ok {
			return "", relay.NewError(relay.CategoryThreadCreationFailed, fmt.Sprintf("participant '%s' is not registered", participant))
		}
	}

	id := thread.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := n.threads[id]; exists {
		return "", relay.NewError(relay.CategoryThreadCreationFailed, fmt.Sprintf("thread '%s' already exists", id))
	}

	n.threads[id] = types.Thread{ID: id, Participants: slices.Clone(thread.Participants)}
	return id, nil
}

// check reports a cancelled context or an injected fault under category.
func (n *Network) check(ctx context.Context, op Operation, category relay.Category) error {
	if err := ctx.Err(); err != nil {
		return relay.Wrap(category, err, fmt.Sprintf("%s: %v", op, err))
	}

	n.mu.RLock()
	fault := n.faults[op]
	n.mu.RUnlock()

	if fault != nil {
		return relay.Wrap(category, fault, "")
	}

	return nil
}
