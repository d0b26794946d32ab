// Package mock provides an in-memory transport for tests and local
// wiring. Inbound traffic is injected by the test; outbound traffic is
// captured on a channel for assertions.
package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/niaga/pkg/transports"
)

type Transport struct {
	mu     sync.Mutex
	closed bool
	in     chan transports.InboundMessage
	out    chan transports.OutboundMessage
}

func New() *Transport {
	return &Transport{
		in:  make(chan transports.InboundMessage, 256),
		out: make(chan transports.OutboundMessage, 256),
	}
}

func (t *Transport) Name() string { return "mock" }

// Start only watches the context so a cancelled engine shuts the
// channels down; there is no network side.
func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.in)
	close(t.out)
	return nil
}

func (t *Transport) Recv() <-chan transports.InboundMessage { return t.in }

func (t *Transport) Send(out transports.OutboundMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	select {
	case t.out <- out:
	default:
	}
	return nil
}

// Inject delivers an inbound message as if it arrived over the wire.
func (t *Transport) Inject(msg transports.InboundMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.in <- msg:
	default:
	}
}

// Sent exposes the outbound side for assertions.
func (t *Transport) Sent() <-chan transports.OutboundMessage { return t.out }
