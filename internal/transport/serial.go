package transport

import (
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/hamid1920/nand-programmer/internal/slip"
)

// SerialTransport drives the engine over a real serial port. The
// protocol's own frames carry no length-independent delimiter and a raw
// serial link, unlike USB CDC, has no inherent packet boundaries, so
// packets are SLIP-framed on the wire.
type SerialTransport struct {
	port serial.Port

	mu      sync.Mutex
	buf     []byte
	pending [][]byte

	readErr error
}

// OpenSerial opens portName at baudRate and starts framing inbound bytes
// into packets in the background.
func OpenSerial(portName string, baudRate int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, &transportError{op: "open " + portName, err: err}
	}
	st := &SerialTransport{port: port}
	go st.readLoop()
	return st, nil
}

func (t *SerialTransport) readLoop() {
	chunk := make([]byte, 256)
	for {
		n, err := t.port.Read(chunk)
		if n > 0 {
			t.feed(chunk[:n])
		}
		if err != nil {
			t.mu.Lock()
			t.readErr = err
			t.mu.Unlock()
			return
		}
	}
}

func (t *SerialTransport) feed(b []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	for {
		frame, remaining := slip.ReadFrame(t.buf)
		if frame == nil {
			break
		}
		t.buf = remaining
		if payload := slip.Decode(frame); payload != nil {
			t.pending = append(t.pending, payload)
		}
	}
}

func (t *SerialTransport) Peek() ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		return nil, false
	}
	return t.pending[0], true
}

func (t *SerialTransport) Consume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		return
	}
	t.pending = t.pending[1:]
}

func (t *SerialTransport) SendReady() bool {
	return true
}

func (t *SerialTransport) Send(frame []byte) error {
	_, err := t.port.Write(slip.Encode(frame))
	return err
}

// Close releases the underlying serial port.
func (t *SerialTransport) Close() error {
	return t.port.Close()
}

// SetReadTimeout adjusts the underlying port's read timeout; mainly useful
// in tests that want a bounded readLoop teardown.
func (t *SerialTransport) SetReadTimeout(d time.Duration) error {
	return t.port.SetReadTimeout(d)
}

type transportError struct {
	op  string
	err error
}

func (e *transportError) Error() string { return "transport: " + e.op + ": " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }
