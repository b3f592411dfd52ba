// Package transport abstracts the byte-oriented link between the host tool
// and the engine: peek/consume of inbound packets, and send/send_ready for
// outbound frames.
package transport

// Transport is the narrow collaborator interface the engine's event loop
// and handlers use. Peek exposes the next fully-received inbound packet
// without consuming it; Consume advances past it. Send transmits a
// complete frame; SendReady reports whether a Send will not block.
type Transport interface {
	// Peek returns the next inbound packet's payload and true, or
	// (nil, false) if no complete packet is currently available.
	Peek() ([]byte, bool)

	// Consume advances past the packet last returned by Peek.
	Consume()

	// Send transmits a complete frame. A non-nil error means the
	// transport itself is broken.
	Send(frame []byte) error

	// SendReady reports whether a Send call will not block.
	SendReady() bool
}
