//go:build nandhw

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/hamid1920/nand-programmer/internal/chip"
	"github.com/hamid1920/nand-programmer/internal/nand"
	"github.com/hamid1920/nand-programmer/internal/nandhw"
)

var (
	spiPortFlag string
	csPinFlag   string
)

func addHardwareFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&spiPortFlag, "spi", "", "SPI port name (e.g. /dev/spidev0.0)")
	cmd.Flags().StringVar(&csPinFlag, "cs", "", "GPIO chip-select pin name")
	cmd.MarkFlagRequired("spi")
	cmd.MarkFlagRequired("cs")
}

// newController is the nandhw-backed ControllerFactory: it brings up the
// host's SPI bus and a GPIO chip-select pin and drives a real SPI-NAND
// chip through them.
func newController(info chip.Info) (nand.Controller, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	port, err := spireg.Open(spiPortFlag)
	if err != nil {
		return nil, fmt.Errorf("open spi port %s: %w", spiPortFlag, err)
	}
	conn, err := port.Connect(25_000_000, 0, 8)
	if err != nil {
		return nil, fmt.Errorf("configure spi connection: %w", err)
	}
	cs := gpioreg.ByName(csPinFlag)
	if cs == nil {
		return nil, fmt.Errorf("unknown gpio pin %q", csPinFlag)
	}
	return nandhw.New(conn, cs, info.PageSize), nil
}
