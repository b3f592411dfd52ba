//go:build nandhw

// Package nandhw implements nand.Controller over a real SPI-NAND chip
// using periph.io's generic SPI and GPIO interfaces, in the command/status
// shape of a commercial SPI-NAND part (GET/SET FEATURE status polling,
// page-cache read/program, block erase).
package nandhw

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/hamid1920/nand-programmer/internal/nand"
)

// SPI-NAND command set (generic; matches the instruction set shared by
// most JEDEC-ish SPI-NAND parts).
const (
	cmdReadID       = 0x9F
	cmdWriteEnable  = 0x06
	cmdPageRead     = 0x13 // page -> cache
	cmdReadCache    = 0x03 // cache -> host
	cmdProgramLoad  = 0x02 // host -> cache
	cmdProgramExec  = 0x10 // cache -> page
	cmdBlockErase   = 0xD8
	cmdGetFeature   = 0x0F
	featureAddrStat = 0xC0
	statusOIP       = 1 << 0 // operation in progress
	statusProgFail  = 1 << 3
	statusEraseFail = 1 << 2
)

// Controller drives a SPI-NAND chip wired over conn and selected by cs.
type Controller struct {
	conn     spi.Conn
	cs       gpio.PinIO
	pageSize uint32

	programming bool
}

// New wires a Controller to an already-configured SPI connection and
// chip-select pin.
func New(conn spi.Conn, cs gpio.PinIO, pageSize uint32) *Controller {
	return &Controller{conn: conn, cs: cs, pageSize: pageSize}
}

func (c *Controller) tx(buf []byte) error {
	if err := c.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer c.cs.Out(gpio.High)
	return c.conn.Tx(buf, buf)
}

func (c *Controller) writeEnable() error {
	return c.tx([]byte{cmdWriteEnable})
}

func (c *Controller) readStatus() (byte, error) {
	buf := []byte{cmdGetFeature, featureAddrStat, 0}
	if err := c.tx(buf); err != nil {
		return 0, err
	}
	return buf[2], nil
}

func (c *Controller) ReadID() ([]byte, error) {
	buf := make([]byte, 4)
	buf[0] = cmdReadID
	if err := c.tx(buf); err != nil {
		return nil, err
	}
	return buf[2:4], nil
}

func (c *Controller) EraseBlock(addr uint32) nand.Status {
	if err := c.writeEnable(); err != nil {
		return nand.StatusError
	}
	page := addr / c.pageSize
	buf := []byte{cmdBlockErase, 0, byte(page >> 8), byte(page)}
	if err := c.tx(buf); err != nil {
		return nand.StatusError
	}
	return c.waitReady(200 * time.Millisecond)
}

func (c *Controller) ReadPage(page uint32) ([]byte, nand.Status) {
	if err := c.tx([]byte{cmdPageRead, 0, byte(page >> 8), byte(page)}); err != nil {
		return nil, nand.StatusError
	}
	if st := c.waitReady(10 * time.Millisecond); st != nand.StatusReady {
		return nil, st
	}
	buf := make([]byte, int(c.pageSize)+4)
	buf[0] = cmdReadCache
	if err := c.tx(buf); err != nil {
		return nil, nand.StatusError
	}
	return buf[4:], nand.StatusReady
}

func (c *Controller) ReadByte(page uint32, offset uint32) (byte, nand.Status) {
	data, st := c.ReadPage(page)
	if st != nand.StatusReady {
		return 0, st
	}
	if int(offset) >= len(data) {
		return 0, nand.StatusError
	}
	return data[offset], nand.StatusReady
}

func (c *Controller) ProgramPageAsync(page uint32, data []byte) error {
	if c.programming {
		return fmt.Errorf("nandhw: program already in flight")
	}
	if err := c.writeEnable(); err != nil {
		return err
	}
	buf := make([]byte, 4+len(data))
	buf[0] = cmdProgramLoad
	copy(buf[4:], data)
	if err := c.tx(buf); err != nil {
		return err
	}
	exec := []byte{cmdProgramExec, 0, byte(page >> 8), byte(page)}
	if err := c.tx(exec); err != nil {
		return err
	}
	c.programming = true
	return nil
}

func (c *Controller) PollStatus() nand.Status {
	if !c.programming {
		return nand.StatusReady
	}
	status, err := c.readStatus()
	if err != nil {
		c.programming = false
		return nand.StatusError
	}
	if status&statusOIP != 0 {
		return nand.StatusBusy
	}
	c.programming = false
	if status&statusProgFail != 0 || status&statusEraseFail != 0 {
		return nand.StatusError
	}
	return nand.StatusReady
}

func (c *Controller) waitReady(timeout time.Duration) nand.Status {
	deadline := time.Now().Add(timeout)
	for {
		status, err := c.readStatus()
		if err != nil {
			return nand.StatusError
		}
		if status&statusOIP == 0 {
			if status&statusProgFail != 0 || status&statusEraseFail != 0 {
				return nand.StatusError
			}
			return nand.StatusReady
		}
		if time.Now().After(deadline) {
			return nand.StatusTimeout
		}
		time.Sleep(time.Millisecond)
	}
}
