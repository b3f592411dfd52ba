// Package badblock holds the bad-block table: reset to empty at chip
// select, filled by the bad-block scan, erase and write, and consulted by
// erase.
package badblock

import "sort"

// Table is a set of bad block addresses. Addrs returns them sorted, for
// deterministic iteration in tests and diagnostics.
type Table struct {
	addrs map[uint32]bool
}

// New returns an empty table, as produced by a fresh SELECT.
func New() *Table {
	return &Table{addrs: make(map[uint32]bool)}
}

// Add registers addr as bad. Re-adding an already-bad address is a no-op.
func (t *Table) Add(addr uint32) {
	t.addrs[addr] = true
}

// Lookup reports whether addr is a known bad block.
func (t *Table) Lookup(addr uint32) bool {
	return t.addrs[addr]
}

// Len returns the number of registered bad blocks.
func (t *Table) Len() int {
	return len(t.addrs)
}

// Addrs returns the registered bad block addresses in ascending order.
func (t *Table) Addrs() []uint32 {
	out := make([]uint32, 0, len(t.addrs))
	for a := range t.addrs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
