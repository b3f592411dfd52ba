package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hamid1920/nand-programmer/internal/chip"
	"github.com/hamid1920/nand-programmer/internal/elog"
	"github.com/hamid1920/nand-programmer/internal/engine"
	"github.com/hamid1920/nand-programmer/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	portFlag     string
	baudFlag     int
	progressFlag bool
	verboseFlag  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nandprogd",
		Short: "Host bridge for the NAND programmer command engine",
		Long: `nandprogd hosts the NAND programmer's protocol engine on a PC,
speaking the same command set the firmware does over a serial link, backed
by an in-memory NAND simulator unless built with the nandhw hardware
backend.`,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine against a serial transport",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port to bind")
	serveCmd.Flags().IntVarP(&baudFlag, "baud", "b", 115200, "Baud rate")
	serveCmd.Flags().BoolVar(&progressFlag, "progress", false, "Show progress during scans and erases")
	serveCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log engine diagnostics")
	serveCmd.MarkFlagRequired("port")
	addHardwareFlags(serveCmd)

	chipsCmd := &cobra.Command{
		Use:   "chips",
		Short: "List the built-in chip database",
		RunE:  runChips,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nandprogd %s (%s)\n", version, commit)
		},
	}

	rootCmd.AddCommand(serveCmd, chipsCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := chip.Default()
	if err != nil {
		return fmt.Errorf("load chip database: %w", err)
	}

	st, err := transport.OpenSerial(portFlag, baudFlag)
	if err != nil {
		return fmt.Errorf("open serial transport: %w", err)
	}
	defer st.Close()

	var opts []engine.Option
	if verboseFlag {
		opts = append(opts, engine.WithLogger(elog.NewStd(log.New(os.Stderr, "", log.LstdFlags))))
	}
	if progressFlag {
		opts = append(opts, engine.WithScanProgress(&barProgress{}))
	}

	e := engine.New(st, db, newController, opts...)

	fmt.Printf("nandprogd listening on %s @ %d baud\n", portFlag, baudFlag)
	for {
		e.Tick()
		time.Sleep(time.Millisecond)
	}
}

func runChips(cmd *cobra.Command, args []string) error {
	db, err := chip.Default()
	if err != nil {
		return err
	}
	fmt.Println("Built-in chip database:")
	for id := uint32(0); id < 256; id++ {
		info, ok := db.Select(id)
		if !ok {
			continue
		}
		fmt.Printf("  %3d  %-16s page=%-6d block=%-8d size=%d\n",
			info.ID, info.Name, info.PageSize, info.BlockSize, info.Size)
	}
	return nil
}

// barProgress adapts engine.ScanProgress to a schollz/progressbar display.
type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Init(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *barProgress) Add(n int) {
	if p.bar != nil {
		p.bar.Add(n)
	}
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
