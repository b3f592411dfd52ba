package engine

import (
	"github.com/hamid1920/nand-programmer/internal/badblock"
	"github.com/hamid1920/nand-programmer/internal/nerr"
	"github.com/hamid1920/nand-programmer/internal/wire"
)

// handleSelect looks up the chip, brings up its controller, resets the
// bad-block table, and publishes chipInfo. Failure clears chipInfo so the
// engine falls back to requiring a fresh SELECT.
func (e *Engine) handleSelect(payload []byte) error {
	req, err := wire.DecodeSelect(payload)
	if err != nil {
		return nerr.Wrap(nerr.Internal, err)
	}

	e.log.Debug("select", "chip_num", req.ChipNum)

	info, ok := e.chips.Select(req.ChipNum)
	if !ok {
		e.chipInfo = nil
		e.controller = nil
		e.log.Error("chip not found", "chip_num", req.ChipNum)
		return nerr.New(nerr.ChipNotFound)
	}

	ctrl, err := e.newController(info)
	if err != nil {
		e.chipInfo = nil
		e.controller = nil
		e.log.Error("controller bring-up failed", "chip_num", req.ChipNum, "err", err)
		return nerr.Wrap(nerr.ChipNotFound, err)
	}

	e.chipInfo = &info
	e.controller = ctrl
	e.badTable = badblock.New()
	e.write = writeSession{pageBuf: make([]byte, wire.MaxPageSize)}
	return nil
}
