package types

import (
	"strings"

	"github.com/samber/lo"
)

// Agent is a named participant on the coral network.
type Agent struct {
	Name         string   `json:"name" yaml:"name"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
}

// Thread groups agents for a multi-party exchange. Participants[0] is the initiator.
type Thread struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
}

// Initiator returns the participant treated as the sender of the opening message.
func (t Thread) Initiator() string {
	if len(t.Participants) == 0 {
		return ""
	}

	return t.Participants[0]
}

// Message is forwarded to exactly one recipient and never stored by the relay.
type Message struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	ThreadID  string `json:"thread_id,omitempty"`
}

// HealthStatus is the probe result reported by the coral network.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version,omitempty"`
	Agents  int    `json:"agents"`
	Threads int    `json:"threads"`
}

// NormalizeCapabilities turns a capability list into an ordered set.
func NormalizeCapabilities(capabilities []string) []string {
	trimmed := lo.Map(capabilities, func(c string, _ int) string {
		return strings.TrimSpace(c)
	})

	return lo.Uniq(lo.Compact(trimmed))
}

// AgentNames projects agents onto their names, keeping order.
func AgentNames(agents []Agent) []string {
	return lo.Map(agents, func(a Agent, _ int) string {
		return a.Name
	})
}

// FanOutRecipients returns who receives a thread's initial message: every
// distinct participant except the initiator at position 0.
func FanOutRecipients(participants []string) []string {
	if len(participants) < 2 {
		return nil
	}

	initiator := participants[0]
	return lo.Uniq(lo.Filter(participants[1:], func(p string, _ int) bool {
		return p != initiator
	}))
}
