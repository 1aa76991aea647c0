package transport

import (
	"context"
	"sync"
)

// memoryBufferSize bounds each in-process address queue. Sends to a full
// queue block until the listener drains it, mirroring broker backpressure.
const memoryBufferSize = 64

// Compile-time interface verification.
var _ Sender = (*MemoryBus)(nil)

// MemoryBus is an in-process transport. It routes envelopes between
// goroutines through buffered channels keyed by address, with the same
// Sender and Listener contracts as the Kafka transport. Intended for
// tests and single-process development runs.
type MemoryBus struct {
	mu     sync.Mutex
	queues map[string]chan Envelope
	closed bool
}

// NewMemoryBus creates an empty in-process transport.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		queues: make(map[string]chan Envelope),
	}
}

// queue returns the channel for an address, creating it on first use.
func (b *MemoryBus) queue(address string) chan Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[address]
	if !ok {
		q = make(chan Envelope, memoryBufferSize)
		b.queues[address] = q
	}
	return q
}

// Send delivers the envelope to the address queue. Blocks when the queue
// is full until the listener drains it or ctx is cancelled.
func (b *MemoryBus) Send(ctx context.Context, address string, env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	select {
	case b.queue(address) <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is a no-op; queues are owned by the process.
func (b *MemoryBus) Close() error {
	return nil
}

// Listener returns a Listener bound to the given address.
func (b *MemoryBus) Listener(address string) *MemoryListener {
	return &MemoryListener{queue: b.queue(address)}
}

// Receive pops the next envelope for an address. Test helper for
// asserting on outbound traffic without running a listener goroutine.
func (b *MemoryBus) Receive(ctx context.Context, address string) (Envelope, error) {
	select {
	case env := <-b.queue(address):
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// Compile-time interface verification.
var _ Listener = (*MemoryListener)(nil)

// MemoryListener consumes envelopes from one MemoryBus address.
type MemoryListener struct {
	queue chan Envelope
}

// Run delivers envelopes to the handler until ctx is cancelled.
func (l *MemoryListener) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case env := <-l.queue:
			handler(ctx, env)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close is a no-op.
func (l *MemoryListener) Close() error {
	return nil
}
