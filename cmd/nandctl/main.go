package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hamid1920/nand-programmer/internal/chip"
	"github.com/hamid1920/nand-programmer/internal/detect"
	"github.com/hamid1920/nand-programmer/internal/hostclient"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	portFlag   string
	baudFlag   int
	chipFlag   uint32
	addrFlag   string
	lengthFlag string
	verifyFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nandctl",
		Short: "Host client for the NAND programmer command engine",
		Long: `nandctl is the PC-side tool that talks to a running programmer
engine over a serial link: selecting a chip, reading or writing its
pages, erasing blocks, and scanning for bad blocks.`,
	}

	programCmd := &cobra.Command{
		Use:   "program <image.bin>",
		Short: "Write an image to the device starting at --addr",
		Args:  cobra.ExactArgs(1),
		RunE:  runProgram,
	}
	addPortFlags(programCmd)
	programCmd.Flags().StringVar(&addrFlag, "addr", "0x0", "Start address")
	programCmd.Flags().BoolVar(&verifyFlag, "verify", false, "Read back and compare after writing")

	readCmd := &cobra.Command{
		Use:   "read <output.bin>",
		Short: "Read a region from the device into a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRead,
	}
	addPortFlags(readCmd)
	readCmd.Flags().StringVar(&addrFlag, "addr", "0x0", "Start address")
	readCmd.Flags().StringVar(&lengthFlag, "len", "", "Length to read (required)")
	readCmd.MarkFlagRequired("len")

	eraseCmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase a region of the device",
		RunE:  runErase,
	}
	addPortFlags(eraseCmd)
	eraseCmd.Flags().StringVar(&addrFlag, "addr", "0x0", "Start address")
	eraseCmd.Flags().StringVar(&lengthFlag, "len", "", "Length to erase (required)")
	eraseCmd.MarkFlagRequired("len")

	scanCmd := &cobra.Command{
		Use:   "scan-bad-blocks",
		Short: "List bad blocks across the whole chip",
		RunE:  runScanBadBlocks,
	}
	addPortFlags(scanCmd)

	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Find a programmer engine on the host's serial ports",
		RunE:  runDetect,
	}
	detectCmd.Flags().IntVarP(&baudFlag, "baud", "b", 115200, "Baud rate")

	chipsCmd := &cobra.Command{
		Use:   "chips",
		Short: "List the built-in chip database",
		RunE:  runChips,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nandctl %s (%s)\n", version, commit)
		},
	}

	rootCmd.AddCommand(programCmd, readCmd, eraseCmd, scanCmd, detectCmd, chipsCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPortFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port")
	cmd.Flags().IntVarP(&baudFlag, "baud", "b", 115200, "Baud rate")
	cmd.Flags().Uint32Var(&chipFlag, "chip", 0, "Chip number in the database")
	cmd.MarkFlagRequired("port")
}

func connect() (*hostclient.Client, error) {
	c, err := hostclient.Open(portFlag, baudFlag)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portFlag, err)
	}
	if err := c.Select(chipFlag); err != nil {
		c.Close()
		return nil, fmt.Errorf("select chip %d: %w", chipFlag, err)
	}
	return c, nil
}

func runProgram(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	addr, err := parseUint32(addrFlag)
	if err != nil {
		return err
	}

	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	bar := progressbar.NewOptions(len(data),
		progressbar.OptionSetDescription("Writing"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)
	c.SetProgressCallback(func(current, total int) { bar.Set(current) })

	badBlocks, err := c.Write(addr, data)
	bar.Finish()
	for _, b := range badBlocks {
		fmt.Printf("bad block at 0x%x\n", b)
	}
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if verifyFlag {
		fmt.Println("Verifying...")
		readBack, err := c.Read(addr, uint32(len(data)))
		if err != nil {
			return fmt.Errorf("verify read: %w", err)
		}
		if string(readBack) != string(data) {
			return fmt.Errorf("verification failed: content mismatch")
		}
		fmt.Println("Verified OK")
	}
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32(addrFlag)
	if err != nil {
		return err
	}
	length, err := parseUint32(lengthFlag)
	if err != nil {
		return err
	}

	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	bar := progressbar.NewOptions(int(length),
		progressbar.OptionSetDescription("Reading"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)
	c.SetProgressCallback(func(current, total int) { bar.Set(current) })

	data, err := c.Read(addr, length)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return os.WriteFile(args[0], data, 0o644)
}

func runErase(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32(addrFlag)
	if err != nil {
		return err
	}
	length, err := parseUint32(lengthFlag)
	if err != nil {
		return err
	}

	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	badBlocks, err := c.Erase(addr, length)
	for _, b := range badBlocks {
		fmt.Printf("bad block at 0x%x\n", b)
	}
	if err != nil {
		return fmt.Errorf("erase: %w", err)
	}
	fmt.Println("Erase complete")
	return nil
}

func runScanBadBlocks(cmd *cobra.Command, args []string) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	blocks, err := c.ScanBadBlocks()
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if len(blocks) == 0 {
		fmt.Println("No bad blocks found")
		return nil
	}
	for _, b := range blocks {
		fmt.Printf("0x%x\n", b)
	}
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	db, err := chip.Default()
	if err != nil {
		return err
	}
	results, err := detect.ScanAll(baudFlag, db)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No programmer found")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s: chip %d (%s)\n", r.Port, r.ChipNum, r.ChipInfo.Name)
	}
	return nil
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

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return uint32(v), nil
}
