package badblock

import (
	"reflect"
	"testing"
)

func TestTable_AddAndLookup(t *testing.T) {
	tb := New()
	if tb.Lookup(0x1000) {
		t.Error("Lookup on empty table: want false")
	}

	tb.Add(0x1000)
	if !tb.Lookup(0x1000) {
		t.Error("Lookup after Add: want true")
	}
	if tb.Lookup(0x2000) {
		t.Error("Lookup of unregistered address: want false")
	}
}

func TestTable_AddIsIdempotent(t *testing.T) {
	tb := New()
	tb.Add(0x1000)
	tb.Add(0x1000)
	if tb.Len() != 1 {
		t.Errorf("Len() after duplicate Add = %d, want 1", tb.Len())
	}
}

func TestTable_AddrsSorted(t *testing.T) {
	tb := New()
	tb.Add(0x3000)
	tb.Add(0x1000)
	tb.Add(0x2000)

	want := []uint32{0x1000, 0x2000, 0x3000}
	if got := tb.Addrs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Addrs() = %v, want %v", got, want)
	}
}
