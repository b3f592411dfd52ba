package engine

import "github.com/hamid1920/nand-programmer/internal/nerr"

// handleReadID replies with a single DATA frame carrying the controller's
// raw ID bytes. There is no terminal STATUS frame.
func (e *Engine) handleReadID() error {
	e.log.Debug("read id")
	id, err := e.controller.ReadID()
	if err != nil {
		e.log.Error("nand read id failed", "err", err)
		return nerr.Wrap(nerr.NandRd, err)
	}
	return e.sendData(id)
}
