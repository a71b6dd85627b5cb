package types

import (
	"encoding/json"
	"fmt"
)

// Request structs carry two rule sets: `binding` is the presence check the
// facade runs, `validate` is the full rule set the mediator enforces.

type RegisterAgentRequest struct {
	AgentName    string   `json:"agent_name" binding:"required" validate:"notblank"`
	Capabilities []string `json:"capabilities,omitempty"`
}

type SendMessageRequest struct {
	Recipient string `json:"recipient" binding:"required" validate:"notblank"`
	Content   string `json:"content" binding:"required" validate:"notblank"`
	ThreadID  string `json:"thread_id,omitempty"`
}

type CreateThreadRequest struct {
	Participants   []string `json:"participants" binding:"required,min=1" validate:"required,min=1,dive,notblank"`
	InitialMessage string   `json:"initial_message,omitempty"`
}

type HealthResponse struct {
	Status   string        `json:"status"`
	Message  string        `json:"message"`
	Upstream *HealthStatus `json:"coral_network,omitempty"`
}

type RegisterAgentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Agent   Agent  `json:"agent"`
}

type SendMessageResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
	ThreadID  string `json:"thread_id,omitempty"`
}

type ListAgentsResponse struct {
	Status string    `json:"status"`
	Agents AgentList `json:"agents"`
}

// FanOutFailure records one initial-message send that failed after the thread was created.
type FanOutFailure struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

type CreateThreadResponse struct {
	Status       string          `json:"status"`
	ThreadID     string          `json:"thread_id"`
	Message      string          `json:"message"`
	Participants []string        `json:"participants"`
	Delivered    []string        `json:"delivered,omitempty"`
	Failed       []FanOutFailure `json:"failed,omitempty"`
}

// AgentList encodes as an array of names when NamesOnly is set and as an
// array of agent records otherwise.
type AgentList struct {
	Agents    []Agent
	NamesOnly bool
}

// Names returns the name projection of the list.
func (l AgentList) Names() []string {
	return AgentNames(l.Agents)
}

func (l AgentList) MarshalJSON() ([]byte, error) {
	if l.NamesOnly {
		return json.Marshal(l.Names())
	}
	if l.Agents == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(l.Agents)
}

func (l *AgentList) UnmarshalJSON(data []byte) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode agent list: %w", err)
	}

	agents := make([]Agent, 0, len(entries))
	namesOnly := false
	for _, entry := range entries {
		var name string
		if err := json.Unmarshal(entry, &name); err == nil {
			agents = append(agents, Agent{Name: name})
			namesOnly = true
			continue
		}

		var agent Agent
		if err := json.Unmarshal(entry, &agent); err != nil {
			return fmt.Errorf("decode agent entry: %w", err)
		}
		agents = append(agents, agent)
	}

	l.Agents = agents
	l.NamesOnly = namesOnly
	return nil
}
