// Package nandsim provides an in-memory nand.Controller used by tests and
// by the daemon when no real hardware backend is built in.
package nandsim

import (
	"fmt"

	"github.com/hamid1920/nand-programmer/internal/chip"
	"github.com/hamid1920/nand-programmer/internal/nand"
)

// Sim is an in-memory NAND controller. Storage is held as one flat byte
// slice of erased (0xFF) cells; bad blocks are pre-seeded by address.
type Sim struct {
	info    chip.Info
	id      []byte
	storage []byte

	badBlocks  map[uint32]bool
	erroredOps map[uint32]bool // addresses that should return StatusError once

	pending      *pendingProgram
	pollsToReady int // number of Busy polls to return before Ready/Error
	pollsSoFar   int
}

type pendingProgram struct {
	page uint32
	data []byte
}

// New creates a simulator for the given geometry. id is returned verbatim
// by ReadID.
func New(info chip.Info, id []byte) *Sim {
	return &Sim{
		info:       info,
		id:         id,
		storage:    makeErased(int(info.Size)),
		badBlocks:  make(map[uint32]bool),
		erroredOps: make(map[uint32]bool),
	}
}

func makeErased(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}

// MarkBlockBad seeds a block as factory-bad: its spare-area marker byte on
// page 0 reads non-0xFF.
func (s *Sim) MarkBlockBad(blockAddr uint32) {
	s.badBlocks[blockAddr] = true
	page := blockAddr / s.info.PageSize
	markerOffset := int(page)*int(s.info.PageSize) + int(s.info.PageSize)
	if markerOffset < len(s.storage) {
		s.storage[markerOffset] = 0x00
	}
}

// FailOnce arranges for the next operation addressed at addr to report
// StatusError instead of succeeding, once.
func (s *Sim) FailOnce(addr uint32) {
	s.erroredOps[addr] = true
}

// SetProgramLatency controls how many PollStatus calls return StatusBusy
// before an in-flight program resolves.
func (s *Sim) SetProgramLatency(polls int) {
	s.pollsToReady = polls
}

func (s *Sim) ReadID() ([]byte, error) {
	return s.id, nil
}

func (s *Sim) EraseBlock(addr uint32) nand.Status {
	if s.erroredOps[addr] {
		delete(s.erroredOps, addr)
		return nand.StatusError
	}
	start := int(addr)
	end := start + int(s.info.BlockSize)
	if end > len(s.storage) {
		return nand.StatusError
	}
	for i := start; i < end; i++ {
		s.storage[i] = 0xFF
	}
	return nand.StatusReady
}

func (s *Sim) ReadPage(page uint32) ([]byte, nand.Status) {
	off := int(page) * int(s.info.PageSize)
	if s.erroredOps[off2addr(page, s.info.PageSize)] {
		delete(s.erroredOps, off2addr(page, s.info.PageSize))
		return nil, nand.StatusError
	}
	if off+int(s.info.PageSize) > len(s.storage) {
		return nil, nand.StatusError
	}
	buf := make([]byte, s.info.PageSize)
	copy(buf, s.storage[off:off+int(s.info.PageSize)])
	return buf, nand.StatusReady
}

func (s *Sim) ReadByte(page uint32, offset uint32) (byte, nand.Status) {
	idx := int(page)*int(s.info.PageSize) + int(offset)
	if idx < 0 || idx >= len(s.storage) {
		return 0, nand.StatusError
	}
	return s.storage[idx], nand.StatusReady
}

func (s *Sim) ProgramPageAsync(page uint32, data []byte) error {
	if s.pending != nil {
		return fmt.Errorf("nandsim: program already in flight for page %d", s.pending.page)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.pending = &pendingProgram{page: page, data: cp}
	s.pollsSoFar = 0
	return nil
}

func (s *Sim) PollStatus() nand.Status {
	if s.pending == nil {
		return nand.StatusReady
	}
	if s.pollsSoFar < s.pollsToReady {
		s.pollsSoFar++
		return nand.StatusBusy
	}
	page, data := s.pending.page, s.pending.data
	s.pending = nil

	addr := off2addr(page, s.info.PageSize)
	if s.erroredOps[addr] {
		delete(s.erroredOps, addr)
		return nand.StatusError
	}
	off := int(page) * int(s.info.PageSize)
	if off+len(data) > len(s.storage) {
		return nand.StatusError
	}
	copy(s.storage[off:], data)
	return nand.StatusReady
}

func off2addr(page uint32, pageSize uint32) uint32 {
	return page * pageSize
}
