package engine

import (
	"github.com/hamid1920/nand-programmer/internal/nand"
	"github.com/hamid1920/nand-programmer/internal/nerr"
	"github.com/hamid1920/nand-programmer/internal/wire"
)

// handleReadBadBlocks scans the whole chip: for every block, inspect the
// spare-area marker byte of page 0, then page 1 if page 0 looked good. Any
// block whose marker isn't 0xFF is reported and registered; a fatal
// controller status aborts the scan.
func (e *Engine) handleReadBadBlocks() error {
	info := *e.chipInfo
	blocks := info.Blocks()
	pagesPerBlock := info.PagesPerBlock()

	e.log.Debug("read bad blocks", "blocks", blocks)
	e.progress.Init(int(blocks))
	defer e.progress.Finish()

	for block := uint32(0); block < blocks; block++ {
		addr := block * info.BlockSize
		firstPage := block * pagesPerBlock

		bad, err := e.markerLooksBad(firstPage, info.PageSize)
		if err != nil {
			e.log.Error("bad-block scan aborted", "addr", addr, "err", err)
			return err
		}
		if !bad {
			bad, err = e.markerLooksBad(firstPage+1, info.PageSize)
			if err != nil {
				e.log.Error("bad-block scan aborted", "addr", addr, "err", err)
				return err
			}
		}
		if bad {
			e.badTable.Add(addr)
			e.log.Debug("scan found bad block", "addr", addr)
			if err := e.sendBadBlock(addr); err != nil {
				return err
			}
		}
		e.progress.Add(1)
	}
	return nil
}

// markerLooksBad reads the spare-area marker byte of page, at offset
// markerOffset (the start of the spare area), and reports whether it
// signals a bad block. A controller status the adapter calls fatal aborts
// the scan; a status the adapter calls "bad block" (a hardware error
// reading the marker itself) is conservatively treated as a bad marker,
// since the scanner cannot otherwise tell good from unreadable.
func (e *Engine) markerLooksBad(page uint32, markerOffset uint32) (bool, error) {
	b, status := e.controller.ReadByte(page, markerOffset)
	outcome := nand.AdaptReadOrErase(status)
	switch outcome.Kind {
	case nand.Fatal:
		return false, nerr.Wrap(nerr.NandRd, outcome.Err)
	case nand.BadBlock:
		return true, nil
	default:
		return b != wire.GoodBlockMark, nil
	}
}
