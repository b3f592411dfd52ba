package engine

import (
	"errors"

	"github.com/hamid1920/nand-programmer/internal/nerr"
	"github.com/hamid1920/nand-programmer/internal/wire"
)

// Tick drains every currently available inbound packet, dispatching and
// replying to each in turn, then polls one in-flight NAND program if one
// exists. It never blocks. The caller (the daemon's main loop, or a test)
// is expected to call Tick repeatedly.
func (e *Engine) Tick() {
	for {
		payload, ok := e.transport.Peek()
		if !ok {
			break
		}
		e.handleFrame(payload)
		e.transport.Consume()
	}
	if e.write.inProgress {
		e.pollWrite()
	}
}

// noTerminalStatus marks commands that never send a terminating OK on
// success: READ_ID and READ reply entirely in DATA frames, with
// completion implicit once the host has received the announced length,
// and WRITE_D replies only with an occasional WRITE_ACK (or nothing at
// all, for a chunk that doesn't cross a page or stream boundary) rather
// than an OK per chunk.
var noTerminalStatus = map[byte]bool{
	wire.CmdReadID:    true,
	wire.CmdRead:      true,
	wire.CmdWriteData: true,
}

func (e *Engine) handleFrame(frame []byte) {
	if len(frame) < 1 {
		e.sendError(nerr.CmdInvalid)
		return
	}
	code := frame[0]
	payload := frame[1:]

	if code != wire.CmdSelect && !e.Selected() {
		e.log.Error("chip is not selected")
		e.sendError(nerr.ChipNotSel)
		return
	}
	if code >= wire.CmdLast {
		e.log.Error("invalid cmd code", "code", code)
		e.sendError(nerr.CmdInvalid)
		return
	}

	err := e.dispatch(code, payload)
	if err == nil {
		if !noTerminalStatus[code] {
			e.sendOK()
		}
		return
	}
	if errors.Is(err, nerr.ErrTransportFailed) {
		return
	}
	e.sendError(nerr.AsEngineError(err).Code)
}

func (e *Engine) dispatch(code byte, payload []byte) error {
	switch code {
	case wire.CmdReadID:
		return e.handleReadID()
	case wire.CmdErase:
		return e.handleErase(payload)
	case wire.CmdRead:
		return e.handleRead(payload)
	case wire.CmdWriteStart:
		return e.handleWriteStart(payload)
	case wire.CmdWriteData:
		return e.handleWriteData(payload)
	case wire.CmdWriteEnd:
		return e.handleWriteEnd(payload)
	case wire.CmdSelect:
		return e.handleSelect(payload)
	case wire.CmdReadBadBlocks:
		return e.handleReadBadBlocks()
	default:
		return nerr.New(nerr.CmdInvalid)
	}
}
