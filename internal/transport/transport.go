package transport

import "context"

// Handler processes one inbound envelope. Implementations must tolerate
// redelivery: the transports make an at-least-once guarantee, never
// exactly-once.
type Handler func(ctx context.Context, env Envelope)

// Sender delivers envelopes to addresses. Implementations are safe for
// concurrent use.
type Sender interface {
	// Send delivers the envelope to the given address. A non-nil error
	// affects only this envelope.
	Send(ctx context.Context, address string, env Envelope) error

	// Close releases the sender's resources.
	Close() error
}

// Listener consumes envelopes from a single address and hands them to a
// Handler until the context is cancelled.
type Listener interface {
	// Run blocks, delivering envelopes to the handler, until ctx is
	// cancelled. Returns ctx.Err() on cancellation.
	Run(ctx context.Context, handler Handler) error

	// Close releases the listener's resources.
	Close() error
}
