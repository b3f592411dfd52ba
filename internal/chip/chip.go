// Package chip holds the built-in NAND chip database and the geometry
// checks every addressed command validates against.
package chip

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/hamid1920/nand-programmer/embedded"
)

// Info describes the geometry of a selected NAND chip.
type Info struct {
	ID        uint32
	Name      string
	PageSize  uint32
	BlockSize uint32
	Size      uint64
}

// PagesPerBlock returns how many pages make up one erase block.
func (i Info) PagesPerBlock() uint32 {
	return i.BlockSize / i.PageSize
}

// Blocks returns the total number of erase blocks on the chip.
func (i Info) Blocks() uint32 {
	return uint32(i.Size / uint64(i.BlockSize))
}

// DB is a lookup table of known chips, keyed by chip number.
type DB struct {
	chips map[uint32]Info
}

// Default parses the built-in embedded chip table.
func Default() (*DB, error) {
	return parseTable(embedded.ChipTable())
}

func parseTable(raw []byte) (*DB, error) {
	db := &DB{chips: make(map[uint32]Info)}
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 5 {
			return nil, fmt.Errorf("chip table: malformed line %q", line)
		}
		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("chip table: bad id in %q: %w", line, err)
		}
		pageSize, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("chip table: bad page size in %q: %w", line, err)
		}
		blockSize, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("chip table: bad block size in %q: %w", line, err)
		}
		size, err := strconv.ParseUint(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chip table: bad size in %q: %w", line, err)
		}
		db.chips[uint32(id)] = Info{
			ID:        uint32(id),
			Name:      fields[1],
			PageSize:  uint32(pageSize),
			BlockSize: uint32(blockSize),
			Size:      size,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return db, nil
}

// Select looks a chip number up. ok is false when the number is unknown.
func (db *DB) Select(chipNum uint32) (Info, bool) {
	info, ok := db.chips[chipNum]
	return info, ok
}
