// Package engine implements the protocol/state engine: command dispatch,
// the event loop, the streaming write pipeline, the paged read streamer,
// and the full-chip bad-block scan.
package engine

import (
	"github.com/hamid1920/nand-programmer/internal/badblock"
	"github.com/hamid1920/nand-programmer/internal/chip"
	"github.com/hamid1920/nand-programmer/internal/elog"
	"github.com/hamid1920/nand-programmer/internal/nand"
	"github.com/hamid1920/nand-programmer/internal/transport"
	"github.com/hamid1920/nand-programmer/internal/wire"
)

// ControllerFactory builds the low-level NAND controller for a selected
// chip. It stands in for the firmware's board-specific bring-up of the
// parallel bus once a chip's geometry is known.
type ControllerFactory func(chip.Info) (nand.Controller, error)

// ScanProgress receives progress updates from long-running block-at-a-time
// operations: the full-chip bad-block scan and erase.
type ScanProgress interface {
	Init(total int)
	Add(n int)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Init(int) {}
func (nopProgress) Add(int)  {}
func (nopProgress) Finish()  {}

// Engine is the singleton protocol state machine. One Engine serves one
// transport for its lifetime; it is not safe for concurrent use from more
// than the single event-loop goroutine that drives it.
type Engine struct {
	transport     transport.Transport
	chips         *chip.DB
	newController ControllerFactory
	log           elog.Logger
	progress      ScanProgress

	chipInfo   *chip.Info
	controller nand.Controller
	badTable   *badblock.Table

	write writeSession
}

// writeSession holds the mutable state of an in-progress WRITE_S/D/E
// conversation. It is valid between a successful WRITE_S and the next
// WRITE_E (or the next WRITE_S, which implicitly resets it).
type writeSession struct {
	active          bool // addr_is_set
	addr            uint32
	length          uint32
	pageBuf         []byte
	page            uint32
	offset          uint32
	bytesWritten    uint32
	bytesAck        uint32
	inProgress      bool
	timeoutCount    uint32
	programmingPage uint32
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithLogger injects a Logger; the default discards everything.
func WithLogger(l elog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithScanProgress injects a progress reporter for bad-block scans and
// erases; the default is a no-op.
func WithScanProgress(p ScanProgress) Option {
	return func(e *Engine) { e.progress = p }
}

// New creates an Engine bound to t, with chips as its chip database and
// newController as the collaborator that brings up a controller once a
// chip is selected.
func New(t transport.Transport, chips *chip.DB, newController ControllerFactory, opts ...Option) *Engine {
	e := &Engine{
		transport:     t,
		chips:         chips,
		newController: newController,
		log:           elog.Nop{},
		progress:      nopProgress{},
		write:         writeSession{pageBuf: make([]byte, wire.MaxPageSize)},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Selected reports whether a chip has been selected, mirroring the
// engine-state invariant that every command but SELECT requires one.
func (e *Engine) Selected() bool {
	return e.chipInfo != nil
}
