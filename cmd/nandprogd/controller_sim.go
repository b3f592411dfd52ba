//go:build !nandhw

package main

import (
	"github.com/spf13/cobra"

	"github.com/hamid1920/nand-programmer/internal/chip"
	"github.com/hamid1920/nand-programmer/internal/nand"
	"github.com/hamid1920/nand-programmer/internal/nandsim"
)

func addHardwareFlags(cmd *cobra.Command) {}

// newController is the default ControllerFactory: an in-memory simulator,
// used whenever the binary isn't built with the nandhw hardware backend.
func newController(info chip.Info) (nand.Controller, error) {
	return nandsim.New(info, []byte{0xEC, 0xD3, 0x51, 0x95}), nil
}
