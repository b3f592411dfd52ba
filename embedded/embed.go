// Package embedded carries the built-in NAND chip table, compiled into the
// binary so chip selection works without an external database file.
package embedded

import (
	_ "embed"
)

//go:embed chips.csv
var chipTable []byte

// ChipTable returns the raw built-in chip geometry table: one
// "id,name,page_size,block_size,size_bytes" record per line.
func ChipTable() []byte {
	return chipTable
}
