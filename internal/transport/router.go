package transport

import (
	"context"
	"sync/atomic"

	"github.com/ParesquiMCSA/AutoWpp/internal/assert"
	"github.com/ParesquiMCSA/AutoWpp/internal/logging"
	"github.com/ParesquiMCSA/AutoWpp/internal/ring"
)

const maxDrainEvents = 1 << 20

// Handler consumes one inbound message to completion.
type Handler func(ctx context.Context, msg Message)

// Router queues inbound messages and feeds them to a single handler
// goroutine. One goroutine is the serialization guarantee: two messages for
// the same sender are never handled concurrently, and arrival order is
// preserved end to end.
type Router struct {
	buffer     *ring.Buffer[Message]
	signalChan chan struct{}
	handler    Handler
	dropped    atomic.Uint64
}

// NewRouter creates a router with the given queue capacity.
func NewRouter(capacity int, handler Handler) (*Router, error) {
	if err := assert.Check(handler != nil, "handler must not be nil"); err != nil {
		return nil, err
	}
	buf, err := ring.New[Message](capacity)
	if err != nil {
		return nil, err
	}
	return &Router{
		buffer:     buf,
		signalChan: make(chan struct{}, 1),
		handler:    handler,
	}, nil
}

// OnInbound accepts one transport event. Self-sent and empty-body messages
// are filtered here; everything else is queued for the handler. When the
// queue is full the message is dropped and logged; the sender will repeat
// themselves, and blocking the transport callback is worse.
func (r *Router) OnInbound(msg Message) {
	if msg.SelfSent || msg.Body == "" {
		return
	}
	if err := r.buffer.Push(msg); err != nil {
		r.dropped.Add(1)
		logging.Warn("inbound_dropped_backpressure", logging.Fields{
			Component: "router",
			Chat:      msg.From,
		})
		return
	}
	select {
	case r.signalChan <- struct{}{}:
	default:
		// Already signaled.
	}
}

// Run drains the queue into the handler until ctx is cancelled. It must be
// the only goroutine consuming the buffer.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.signalChan:
		}
		for j := 0; j < maxDrainEvents; j++ {
			if ctx.Err() != nil {
				return
			}
			msg, err := r.buffer.Pop()
			if err != nil {
				break
			}
			r.handler(ctx, msg)
		}
	}
}

// Dropped returns how many inbound messages were discarded under
// backpressure.
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}
