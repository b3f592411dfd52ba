// Package detect finds a running programmer engine among the host's
// serial ports by probing each with a SELECT/READ_ID round trip.
package detect

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/hamid1920/nand-programmer/internal/chip"
	"github.com/hamid1920/nand-programmer/internal/hostclient"
)

// Result describes a programmer found on a port, already bound to the
// chip that answered the probe.
type Result struct {
	Port     string
	ChipNum  uint32
	ChipInfo chip.Info
}

// Probe tries portName at baudRate against every chip in db, in ID
// order, and reports the first one that SELECTs and answers READ_ID.
func Probe(portName string, baudRate int, db *chip.DB) (*Result, error) {
	c, err := hostclient.Open(portName, baudRate)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	for chipNum := uint32(0); chipNum < 256; chipNum++ {
		info, ok := db.Select(chipNum)
		if !ok {
			continue
		}
		if err := c.Select(chipNum); err != nil {
			continue
		}
		if _, err := c.ReadID(); err != nil {
			continue
		}
		return &Result{Port: portName, ChipNum: chipNum, ChipInfo: info}, nil
	}

	return nil, fmt.Errorf("no responsive programmer on %s", portName)
}

// Scan tries Probe against every serial port the host can see and
// returns the first match.
func Scan(baudRate int, db *chip.DB) (*Result, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no serial ports found")
	}

	var lastErr error
	for _, portName := range ports {
		result, err := Probe(portName, baudRate, db)
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("no programmer found (last error: %w)", lastErr)
	}
	return nil, fmt.Errorf("no programmer found")
}

// ScanAll is like Scan but returns every port that answered, rather than
// stopping at the first.
func ScanAll(baudRate int, db *chip.DB) ([]Result, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	var results []Result
	for _, portName := range ports {
		result, err := Probe(portName, baudRate, db)
		if err == nil {
			results = append(results, *result)
		}
	}
	return results, nil
}
