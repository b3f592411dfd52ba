package engine

import (
	"github.com/hamid1920/nand-programmer/internal/nand"
	"github.com/hamid1920/nand-programmer/internal/nerr"
	"github.com/hamid1920/nand-programmer/internal/wire"
)

// handleErase consults the bad-block table before touching each block, and
// applies the source's asymmetric length bookkeeping: a block only counts
// against the requested length if it was good, unless the request covers
// the entire chip, in which case every block counts regardless of
// bad-block hits.
func (e *Engine) handleErase(payload []byte) error {
	req, err := wire.DecodeErase(payload)
	if err != nil {
		return nerr.Wrap(nerr.Internal, err)
	}
	e.log.Debug("erase", "addr", req.Addr, "len", req.Len)
	info := *e.chipInfo
	if err := info.ValidateEraseStrict(req.Addr, req.Len); err != nil {
		return err
	}

	fullChip := uint64(req.Len) == info.Size
	addr := req.Addr
	remaining := req.Len

	e.progress.Init(int(req.Len / info.BlockSize))
	defer e.progress.Finish()

	for remaining > 0 {
		if uint64(addr) >= info.Size {
			e.log.Error("erase address exceeds chip size", "addr", addr)
			return nerr.New(nerr.AddrExceeded)
		}

		bad := e.badTable.Lookup(addr)
		if bad {
			e.log.Debug("skipped bad block", "addr", addr)
			if err := e.sendBadBlock(addr); err != nil {
				return err
			}
		} else {
			outcome := nand.AdaptReadOrErase(e.controller.EraseBlock(addr))
			switch outcome.Kind {
			case nand.Fatal:
				e.log.Error("nand erase failed", "addr", addr, "err", outcome.Err)
				return nerr.Wrap(nerr.NandErase, outcome.Err)
			case nand.BadBlock:
				bad = true
				e.badTable.Add(addr)
				e.log.Debug("erase discovered bad block", "addr", addr)
				if err := e.sendBadBlock(addr); err != nil {
					return err
				}
			}
		}

		addr += info.BlockSize
		if !bad || fullChip {
			remaining -= info.BlockSize
		}
		e.progress.Add(1)
	}
	return nil
}
