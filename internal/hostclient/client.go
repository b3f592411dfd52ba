// Package hostclient is the host-side counterpart to the engine: it
// speaks the same wire protocol from the PC end, over a SLIP-framed
// serial link, so a CLI tool can select a chip, scan it, and stream
// reads and writes against it.
package hostclient

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/hamid1920/nand-programmer/internal/nerr"
	"github.com/hamid1920/nand-programmer/internal/slip"
	"github.com/hamid1920/nand-programmer/internal/wire"
)

// ProgressCallback reports progress of a long-running transfer.
type ProgressCallback func(current, total int)

// Client drives one serial link to a running engine.
type Client struct {
	port     serial.Port
	progress ProgressCallback
	timeout  time.Duration
}

// Open opens portName and returns a Client bound to it.
func Open(portName string, baudRate int) (*Client, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("hostclient: open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("hostclient: set read timeout: %w", err)
	}
	return &Client{port: port, timeout: 5 * time.Second}, nil
}

// Close releases the underlying port.
func (c *Client) Close() error {
	return c.port.Close()
}

// SetProgressCallback installs a callback invoked during Read/Write/Scan.
func (c *Client) SetProgressCallback(cb ProgressCallback) {
	c.progress = cb
}

func (c *Client) reportProgress(current, total int) {
	if c.progress != nil {
		c.progress(current, total)
	}
}

// Select issues SELECT for chipNum and waits for the trailing OK.
func (c *Client) Select(chipNum uint32) error {
	return c.sendAndAwaitOK(wire.RequestSelect(chipNum))
}

// ReadID issues READ_ID and returns the raw manufacturer/device ID bytes.
// READ_ID carries no trailing OK, so the single DATA frame is the whole
// response.
func (c *Client) ReadID() ([]byte, error) {
	if _, err := c.port.Write(slip.Encode(wire.RequestReadID())); err != nil {
		return nil, err
	}
	resp, err := c.readResponse(c.timeout)
	if err != nil {
		return nil, err
	}
	if resp.Kind != wire.KindData {
		return nil, unexpectedStatus(resp)
	}
	return resp.Data, nil
}

// Erase issues ERASE over [addr, addr+length) and reports bad blocks it
// is told about along the way.
func (c *Client) Erase(addr, length uint32) (badBlocks []uint32, err error) {
	if _, err := c.port.Write(slip.Encode(wire.RequestErase(addr, length))); err != nil {
		return nil, err
	}
	for {
		resp, err := c.readResponse(c.timeout)
		if err != nil {
			return badBlocks, err
		}
		switch {
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusOK:
			return badBlocks, nil
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusBadBlock:
			badBlocks = append(badBlocks, resp.BadBlock)
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusError:
			return badBlocks, errFromResponse(resp)
		default:
			return badBlocks, unexpectedStatus(resp)
		}
	}
}

// ScanBadBlocks issues READ_BAD_BLOCKS and collects every reported bad
// block address.
func (c *Client) ScanBadBlocks() ([]uint32, error) {
	if _, err := c.port.Write(slip.Encode(wire.RequestReadBadBlocks())); err != nil {
		return nil, err
	}
	var blocks []uint32
	for {
		resp, err := c.readResponse(c.timeout)
		if err != nil {
			return blocks, err
		}
		switch {
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusOK:
			return blocks, nil
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusBadBlock:
			blocks = append(blocks, resp.BadBlock)
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusError:
			return blocks, errFromResponse(resp)
		default:
			return blocks, unexpectedStatus(resp)
		}
	}
}

// Read issues READ for [addr, addr+length) and returns the bytes
// streamed back, substituting zero-filled pages wherever the engine
// reports a bad block mid-stream.
func (c *Client) Read(addr, length uint32) ([]byte, error) {
	if _, err := c.port.Write(slip.Encode(wire.RequestRead(addr, length))); err != nil {
		return nil, err
	}
	out := make([]byte, 0, length)
	for uint32(len(out)) < length {
		resp, err := c.readResponse(c.timeout)
		if err != nil {
			return out, err
		}
		switch {
		case resp.Kind == wire.KindData:
			out = append(out, resp.Data...)
			c.reportProgress(len(out), int(length))
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusBadBlock:
			// READ has no ack framing of its own; the engine keeps
			// streaming data for the block regardless, so this is
			// purely informational to the caller.
			continue
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusError:
			return out, errFromResponse(resp)
		default:
			return out, unexpectedStatus(resp)
		}
	}
	return out, nil
}

// writeDrainTimeout bounds how long Write waits, after each WRITE_D chunk,
// for frames the engine may or may not have sent: most chunks cross
// neither a page nor the stream boundary and get no reply at all, so this
// has to be short enough not to stall the common case, not long enough to
// reliably witness a reply that isn't coming.
const writeDrainTimeout = 50 * time.Millisecond

// Write streams data to addr via WRITE_S/WRITE_D*/WRITE_E, reporting bad
// blocks encountered along the way. Progress is reported in bytes sent,
// not bytes acknowledged, since most chunks never produce a WRITE_ACK.
func (c *Client) Write(addr uint32, data []byte) (badBlocks []uint32, err error) {
	if err := c.sendAndAwaitOK(wire.RequestWriteStart(addr, uint32(len(data)))); err != nil {
		return nil, fmt.Errorf("hostclient: write start: %w", err)
	}

	total := len(data)
	for len(data) > 0 {
		n := len(data)
		if n > wire.MaxChunk {
			n = wire.MaxChunk
		}
		frame, err := wire.RequestWriteData(data[:n])
		if err != nil {
			return badBlocks, err
		}
		if _, err := c.port.Write(slip.Encode(frame)); err != nil {
			return badBlocks, err
		}
		data = data[n:]

		bb, err := c.drainAvailable(writeDrainTimeout)
		badBlocks = append(badBlocks, bb...)
		if err != nil {
			return badBlocks, err
		}
		c.reportProgress(total-len(data), total)
	}

	bb, err := c.writeEnd()
	badBlocks = append(badBlocks, bb...)
	if err != nil {
		return badBlocks, fmt.Errorf("hostclient: write end: %w", err)
	}
	return badBlocks, nil
}

// drainAvailable collects every WRITE_ACK/BAD_BLOCK status frame that has
// already arrived, using a short per-read timeout as the "nothing left
// right now" signal rather than an error. An ERROR frame still propagates;
// a plain timeout with nothing collected does not.
func (c *Client) drainAvailable(timeout time.Duration) (badBlocks []uint32, err error) {
	for {
		resp, readErr := c.readResponse(timeout)
		if readErr != nil {
			return badBlocks, nil
		}
		switch {
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusWriteAck:
			continue
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusBadBlock:
			badBlocks = append(badBlocks, resp.BadBlock)
			continue
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusError:
			return badBlocks, errFromResponse(resp)
		default:
			return badBlocks, unexpectedStatus(resp)
		}
	}
}

// writeEnd sends WRITE_E and waits for its terminal OK, tolerating any
// trailing BAD_BLOCK frames from the final page's async program that
// arrive ahead of it.
func (c *Client) writeEnd() (badBlocks []uint32, err error) {
	if _, err := c.port.Write(slip.Encode(wire.RequestWriteEnd())); err != nil {
		return nil, err
	}
	for {
		resp, err := c.readResponse(c.timeout)
		if err != nil {
			return badBlocks, err
		}
		switch {
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusOK:
			return badBlocks, nil
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusBadBlock:
			badBlocks = append(badBlocks, resp.BadBlock)
		case resp.Kind == wire.KindStatus && resp.Status == wire.StatusError:
			return badBlocks, errFromResponse(resp)
		default:
			return badBlocks, unexpectedStatus(resp)
		}
	}
}

func (c *Client) sendAndAwaitOK(frame []byte) error {
	if _, err := c.port.Write(slip.Encode(frame)); err != nil {
		return err
	}
	resp, err := c.readResponse(c.timeout)
	if err != nil {
		return err
	}
	if resp.Kind == wire.KindStatus && resp.Status == wire.StatusOK {
		return nil
	}
	if resp.Kind == wire.KindStatus && resp.Status == wire.StatusError {
		return errFromResponse(resp)
	}
	return unexpectedStatus(resp)
}

// readResponse reads and decodes a single response frame, retrying reads
// until a full SLIP frame is available or timeout elapses.
func (c *Client) readResponse(timeout time.Duration) (wire.Response, error) {
	deadline := time.Now().Add(timeout)
	var buffer []byte

	for time.Now().Before(deadline) {
		chunk := make([]byte, 256)
		n, err := c.port.Read(chunk)
		if n > 0 {
			buffer = append(buffer, chunk[:n]...)
		}
		if err != nil && n == 0 {
			continue
		}

		frame, remaining := slip.ReadFrame(buffer)
		if frame == nil {
			continue
		}
		buffer = remaining
		payload := slip.Decode(frame)
		if payload == nil {
			continue
		}
		return wire.DecodeResponse(payload)
	}

	return wire.Response{}, fmt.Errorf("hostclient: timeout waiting for response")
}

func errFromResponse(resp wire.Response) error {
	return nerr.New(nerr.Code(resp.ErrorCode))
}

func unexpectedStatus(resp wire.Response) error {
	return fmt.Errorf("hostclient: unexpected response kind=0x%02x status=0x%02x", resp.Kind, resp.Status)
}
