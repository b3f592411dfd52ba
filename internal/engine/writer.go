package engine

import (
	"github.com/hamid1920/nand-programmer/internal/chip"
	"github.com/hamid1920/nand-programmer/internal/nand"
	"github.com/hamid1920/nand-programmer/internal/nerr"
	"github.com/hamid1920/nand-programmer/internal/wire"
)

// handleWriteStart validates the request, then (re)inits the write
// session. A START issued mid-stream tears down whatever came before it;
// there is no explicit cancel command, so any in-flight async program from
// the old session is drained first rather than abandoned against the
// controller's one-in-flight invariant.
func (e *Engine) handleWriteStart(payload []byte) error {
	req, err := wire.DecodeWriteStart(payload)
	if err != nil {
		return nerr.Wrap(nerr.Internal, err)
	}
	e.log.Debug("write start", "addr", req.Addr, "len", req.Len)
	info := *e.chipInfo
	if err := info.ValidateWriteStart(req.Addr, req.Len); err != nil {
		return err
	}

	if e.write.inProgress {
		_ = e.drainPendingWrite()
	}

	buf := e.write.pageBuf
	if buf == nil {
		buf = make([]byte, wire.MaxPageSize)
	}
	e.write = writeSession{
		active:  true,
		addr:    req.Addr,
		length:  req.Len,
		pageBuf: buf,
		page:    req.Addr / info.PageSize,
	}
	return nil
}

// handleWriteData implements WRITE_D: buffer host bytes into the current
// page, splitting across a page boundary and kicking off an async program
// whenever the buffer fills, then acknowledges consumed bytes at
// page-granularity (or at end of stream).
func (e *Engine) handleWriteData(payload []byte) error {
	req, err := wire.DecodeWriteData(payload)
	if err != nil {
		return nerr.Wrap(nerr.Internal, err)
	}
	if 2+len(req.Data) > wire.PacketBufSize {
		return nerr.New(nerr.CmdDataSize)
	}
	if !e.write.active {
		return nerr.New(nerr.AddrInvalid)
	}

	info := *e.chipInfo
	if uint64(e.write.addr) >= info.Size {
		return nerr.New(nerr.AddrExceeded)
	}

	data := req.Data
	for len(data) > 0 {
		space := info.PageSize - e.write.offset
		n := uint32(len(data))
		if n > space {
			n = space
		}
		copy(e.write.pageBuf[e.write.offset:e.write.offset+n], data[:n])
		e.write.offset += n
		data = data[n:]

		if e.write.offset == info.PageSize {
			if err := e.drainPendingWrite(); err != nil {
				return err
			}
			if err := e.kickOffProgram(info); err != nil {
				return err
			}
		}
	}

	e.write.bytesWritten += uint32(len(req.Data))
	if e.write.bytesWritten > e.write.length {
		return nerr.New(nerr.LenExceeded)
	}
	if e.write.bytesWritten-e.write.bytesAck >= info.PageSize || e.write.bytesWritten == e.write.length {
		if err := e.sendWriteAck(e.write.bytesWritten); err != nil {
			return err
		}
		e.write.bytesAck = e.write.bytesWritten
	}
	return nil
}

// handleWriteEnd implements WRITE_E: the stream is over. A non-empty page
// buffer means the host announced more bytes than it actually sent.
func (e *Engine) handleWriteEnd(_ []byte) error {
	e.write.active = false
	if e.write.offset != 0 {
		return nerr.New(nerr.NandWr)
	}
	return nil
}

func (e *Engine) kickOffProgram(info chip.Info) error {
	page := e.write.page
	buf := make([]byte, info.PageSize)
	copy(buf, e.write.pageBuf[:info.PageSize])
	if err := e.controller.ProgramPageAsync(page, buf); err != nil {
		return nerr.Wrap(nerr.NandWr, err)
	}
	e.write.programmingPage = page
	e.write.inProgress = true
	e.write.timeoutCount = 0
	e.write.addr += info.PageSize
	e.write.page++
	e.write.offset = 0
	return nil
}

// drainPendingWrite busy-polls until the in-flight program completes or a
// fatal status is observed — the second of the two busy-wait points this
// engine allows, alongside the read streamer's wait for send-ready.
func (e *Engine) drainPendingWrite() error {
	for e.write.inProgress {
		outcome, err := e.pollOnce()
		if err != nil {
			return err
		}
		if outcome.Kind == nand.Fatal {
			e.log.Error("nand write failed", "page", e.write.programmingPage, "err", outcome.Err)
			return nerr.Wrap(nerr.NandWr, outcome.Err)
		}
	}
	return nil
}

// pollWrite is the single post-drain poll the event loop runs between
// packets so a program completes even while the host is idle.
func (e *Engine) pollWrite() {
	outcome, err := e.pollOnce()
	if err != nil {
		return
	}
	if outcome.Kind == nand.Fatal {
		e.log.Error("nand write failed", "page", e.write.programmingPage, "err", outcome.Err)
		e.write.inProgress = false
		e.sendError(nerr.NandWr)
	}
}

// pollOnce polls the controller once for the in-flight program's status
// and folds the result into the write session. It clears inProgress on
// both READY and ERROR.
func (e *Engine) pollOnce() (nand.Outcome, error) {
	status := e.controller.PollStatus()
	outcome, next := nand.AdaptWritePoll(status, e.write.timeoutCount, wire.NandTimeout)
	e.write.timeoutCount = next
	if outcome.Kind != nand.Pending {
		e.write.inProgress = false
	}
	if outcome.Kind == nand.BadBlock {
		info := *e.chipInfo
		blockAddr := blockAddrOf(e.write.programmingPage, info)
		e.badTable.Add(blockAddr)
		e.log.Debug("write discovered bad block", "addr", blockAddr, "page", e.write.programmingPage)
		if err := e.sendBadBlock(blockAddr); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

func blockAddrOf(page uint32, info chip.Info) uint32 {
	pageAddr := page * info.PageSize
	return pageAddr - (pageAddr % info.BlockSize)
}
