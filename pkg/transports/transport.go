package transports

import (
	"context"
	"time"
)

// InboundMessage is one user turn arriving over a channel.
type InboundMessage struct {
	SessionID  string
	AgentID    string
	From       string
	Text       string
	ImageRef   string
	Channel    string
	ReceivedAt time.Time
}

// OutboundMessage is one assistant reply to deliver.
type OutboundMessage struct {
	SessionID string
	To        string
	Text      string
	Channel   string
}

// Transport defines a vendor-agnostic I/O boundary for chat messages.
// Implementations are responsible for their own network lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Recv() <-chan InboundMessage
	Send(OutboundMessage) error
}

// ReadyReporter allows transports to expose readiness metadata (e.g.,
// webhook URLs). Implementations are optional and used for informational
// logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
