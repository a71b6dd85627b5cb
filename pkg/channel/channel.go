package channel

import (
	"context"

	"coralrelay/pkg/bus"
)

// Handler executes one inbound channel command and returns the reply.
type Handler func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error)

// Adapter bridges one chat transport (for example Telegram) into the facade.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
