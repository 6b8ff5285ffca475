// Package transport defines the best-effort datagram transport the
// clustering node runs over. Delivery is unreliable and unordered; the
// protocol tolerates loss by periodic repair, never by retries.
package transport

// Handler is invoked once per arriving frame with the sender's
// transport-level address. Implementations call it from a single
// goroutine per transport.
type Handler func(frame []byte, from string)

// Transport sends and receives opaque frames.
type Transport interface {
	// Start begins delivering inbound frames to h.
	Start(h Handler) error
	// Send transmits one frame to a specific peer address.
	Send(frame []byte, to string) error
	// Broadcast transmits one frame to the well-known group.
	Broadcast(frame []byte) error
	// LocalAddr returns the address peers will observe frames from.
	LocalAddr() string
	Close() error
}
