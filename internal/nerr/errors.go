// Package nerr defines the engine's typed error taxonomy and how it maps
// onto the wire ERROR status frame.
package nerr

import (
	"errors"
	"fmt"
)

// Code is one of the wire-visible error codes from the protocol's error
// table. It travels as a positive byte on the wire and is carried with the
// same positive value inside the engine, wrapped in an EngineError.
type Code int

const (
	Internal       Code = 1
	AddrExceeded   Code = 100
	AddrInvalid    Code = 101
	AddrNotAlign   Code = 102
	NandWr         Code = 103
	NandRd         Code = 104
	NandErase      Code = 105
	ChipNotSel     Code = 106
	ChipNotFound   Code = 107
	CmdDataSize    Code = 108
	CmdInvalid     Code = 109
	BufOverflow    Code = 110
	LenNotAlign    Code = 111
	LenExceeded    Code = 112
	LenInvalid     Code = 113
)

var names = map[Code]string{
	Internal:     "INTERNAL",
	AddrExceeded: "ADDR_EXCEEDED",
	AddrInvalid:  "ADDR_INVALID",
	AddrNotAlign: "ADDR_NOT_ALIGN",
	NandWr:       "NAND_WR",
	NandRd:       "NAND_RD",
	NandErase:    "NAND_ERASE",
	ChipNotSel:   "CHIP_NOT_SEL",
	ChipNotFound: "CHIP_NOT_FOUND",
	CmdDataSize:  "CMD_DATA_SIZE",
	CmdInvalid:   "CMD_INVALID",
	BufOverflow:  "BUF_OVERFLOW",
	LenNotAlign:  "LEN_NOT_ALIGN",
	LenExceeded:  "LEN_EXCEEDED",
	LenInvalid:   "LEN_INVALID",
}

// String returns the code's symbolic name, or a numeric fallback.
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// Byte returns the code as it appears in a wire ERROR frame.
func (c Code) Byte() byte {
	return byte(c)
}

// EngineError is the engine's internal error type. Handlers return one of
// these (or nil); the dispatcher turns it into a single ERROR frame.
type EngineError struct {
	Code Code
	Err  error
}

// New creates an EngineError with no wrapped cause.
func New(code Code) *EngineError {
	return &EngineError{Code: code}
}

// Wrap creates an EngineError carrying a lower-level cause.
func Wrap(code Code, err error) *EngineError {
	return &EngineError{Code: code, Err: err}
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// ErrTransportFailed is the sentinel for "the transport send itself failed";
// the dispatcher must not attempt to report this back over the same
// transport.
var ErrTransportFailed = errors.New("transport send failed")

// AsEngineError extracts an *EngineError from err, falling back to Internal
// for anything the engine didn't classify itself.
func AsEngineError(err error) *EngineError {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}
	return Wrap(Internal, err)
}
