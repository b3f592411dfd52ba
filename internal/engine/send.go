package engine

import (
	"fmt"

	"github.com/hamid1920/nand-programmer/internal/nerr"
	"github.com/hamid1920/nand-programmer/internal/wire"
)

// sendOK and sendError are best-effort: a broken transport during an OK or
// ERROR reply is not itself escalated into a second error frame, since
// there is nothing useful left to report it to. sendBadBlock and
// sendWriteAck, by contrast, propagate a send failure as
// nerr.ErrTransportFailed so their caller can abandon the operation
// instead of continuing to talk to a dead link.
func (e *Engine) sendOK() {
	_ = e.transport.Send(wire.EncodeOK())
}

func (e *Engine) sendError(code nerr.Code) {
	_ = e.transport.Send(wire.EncodeError(code.Byte()))
}

func (e *Engine) sendBadBlock(addr uint32) error {
	if err := e.transport.Send(wire.EncodeBadBlock(addr)); err != nil {
		return fmt.Errorf("%w: bad block notify: %v", nerr.ErrTransportFailed, err)
	}
	return nil
}

func (e *Engine) sendWriteAck(bytesAck uint32) error {
	if err := e.transport.Send(wire.EncodeWriteAck(bytesAck)); err != nil {
		return fmt.Errorf("%w: write ack: %v", nerr.ErrTransportFailed, err)
	}
	return nil
}

func (e *Engine) sendData(payload []byte) error {
	frame, err := wire.EncodeData(payload)
	if err != nil {
		return nerr.Wrap(nerr.Internal, err)
	}
	if err := e.transport.Send(frame); err != nil {
		return fmt.Errorf("%w: data: %v", nerr.ErrTransportFailed, err)
	}
	return nil
}
