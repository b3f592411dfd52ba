package engine

import (
	"github.com/hamid1920/nand-programmer/internal/nand"
	"github.com/hamid1920/nand-programmer/internal/nerr"
	"github.com/hamid1920/nand-programmer/internal/wire"
)

// handleRead validates the request, then streams page-aligned pages out as
// MTU-sized DATA chunks. There is no terminal STATUS frame on success.
func (e *Engine) handleRead(payload []byte) error {
	req, err := wire.DecodeRead(payload)
	if err != nil {
		return nerr.Wrap(nerr.Internal, err)
	}
	e.log.Debug("read", "addr", req.Addr, "len", req.Len)
	info := *e.chipInfo
	if err := info.ValidateRead(req.Addr, req.Len); err != nil {
		return err
	}

	page := req.Addr / info.PageSize
	remaining := req.Len

	for remaining > 0 {
		data, status := e.controller.ReadPage(page)
		outcome := nand.AdaptReadOrErase(status)
		switch outcome.Kind {
		case nand.Fatal:
			e.log.Error("nand read failed", "page", page, "err", outcome.Err)
			return nerr.Wrap(nerr.NandRd, outcome.Err)
		case nand.BadBlock:
			e.log.Debug("read discovered bad block", "addr", page*info.PageSize)
			if err := e.sendBadBlock(page * info.PageSize); err != nil {
				return err
			}
		}
		if data == nil {
			data = make([]byte, info.PageSize)
		}

		toSend := remaining
		if toSend > uint32(len(data)) {
			toSend = uint32(len(data))
		}
		if err := e.streamChunks(data[:toSend]); err != nil {
			return err
		}
		remaining -= toSend
		page++

		if remaining > 0 {
			nextAddr := uint64(page) * uint64(info.PageSize)
			if nextAddr >= info.Size {
				return nerr.New(nerr.AddrExceeded)
			}
		}
	}
	return nil
}

// streamChunks slices data into MTU-sized DATA frames, waiting for
// send-ready before each one.
func (e *Engine) streamChunks(data []byte) error {
	for off := 0; off < len(data); {
		n := len(data) - off
		if n > wire.MaxChunk {
			n = wire.MaxChunk
		}
		for !e.transport.SendReady() {
		}
		if err := e.sendData(data[off : off+n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}
