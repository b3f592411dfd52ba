package chip

import "github.com/hamid1920/nand-programmer/internal/nerr"

// validate runs the four checks in the order the source applies them:
// address alignment, non-zero length, length alignment, range.
//
// misalignedLenCode lets a caller reproduce the source's quirk of
// reporting ADDR_NOT_ALIGN (not LEN_NOT_ALIGN) for a misaligned write
// length; erase and read pass nerr.LenNotAlign instead.
func (i Info) validate(addr, length, align uint32, misalignedLenCode nerr.Code) error {
	if addr%align != 0 {
		return nerr.New(nerr.AddrNotAlign)
	}
	if length == 0 {
		return nerr.New(nerr.LenInvalid)
	}
	if length%align != 0 {
		return nerr.New(misalignedLenCode)
	}
	if uint64(addr)+uint64(length) > i.Size {
		return nerr.New(nerr.AddrExceeded)
	}
	return nil
}

// ValidateEraseStrict is the erase-path validator: it reports LEN_NOT_ALIGN
// for a misaligned length, per the erase command's own wire behavior.
func (i Info) ValidateEraseStrict(addr, length uint32) error {
	return i.validate(addr, length, i.BlockSize, nerr.LenNotAlign)
}

// ValidateWriteStart is the WRITE_S validator. It intentionally reports
// ADDR_NOT_ALIGN for a misaligned length as well as a misaligned address —
// preserved from the source firmware rather than "fixed" to LEN_NOT_ALIGN.
func (i Info) ValidateWriteStart(addr, length uint32) error {
	return i.validate(addr, length, i.PageSize, nerr.AddrNotAlign)
}

// ValidateRead is the READ validator: ordinary LEN_NOT_ALIGN semantics.
func (i Info) ValidateRead(addr, length uint32) error {
	return i.validate(addr, length, i.PageSize, nerr.LenNotAlign)
}
