// Package nand defines the engine's narrow interface onto the low-level
// NAND controller, and the adapter that turns controller status codes into
// the three outcomes the protocol engine reasons about: done, bad block,
// or fatal.
package nand

import "fmt"

// Status is a controller-reported operation status. Values beyond the
// four named here represent whatever else a real controller driver can
// surface; the adapter treats them all as fatal.
type Status int

const (
	StatusReady Status = iota
	StatusError
	StatusTimeout
	StatusBusy
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "READY"
	case StatusError:
		return "ERROR"
	case StatusTimeout:
		return "TIMEOUT_ERROR"
	case StatusBusy:
		return "BUSY"
	default:
		return fmt.Sprintf("STATUS_%d", int(s))
	}
}

// Controller is the out-of-scope low-level NAND driver collaborator: it
// knows how to talk to the parallel bus but nothing about the wire
// protocol or bad-block bookkeeping.
type Controller interface {
	// ReadID returns the raw NAND ID structure reported by the chip.
	ReadID() ([]byte, error)

	// EraseBlock erases the block at addr and reports the outcome
	// synchronously.
	EraseBlock(addr uint32) Status

	// ReadPage reads a full page into a freshly allocated buffer.
	ReadPage(page uint32) ([]byte, Status)

	// ReadByte reads a single byte at the given page and byte offset,
	// used by the bad-block scanner to inspect spare-area markers
	// without reading a whole page.
	ReadByte(page uint32, offset uint32) (byte, Status)

	// ProgramPageAsync kicks off an asynchronous page program. Completion
	// is observed later via PollStatus.
	ProgramPageAsync(page uint32, data []byte) error

	// PollStatus reports the status of the most recently kicked-off
	// asynchronous program. It returns StatusBusy while still running.
	PollStatus() Status
}

// OutcomeKind classifies what the engine should do after an operation.
type OutcomeKind int

const (
	// Done means the operation completed; proceed.
	Done OutcomeKind = iota
	// BadBlock means the block should be reported and registered bad;
	// the caller continues (read/erase) or additionally clears its
	// in-progress flag (write).
	BadBlock
	// Pending means an async write is still running; poll again later.
	Pending
	// Fatal means the operation cannot continue.
	Fatal
)

// Outcome is the adapter's verdict for one status observation.
type Outcome struct {
	Kind         OutcomeKind
	BadBlockAddr uint32
	Err          error
}

// AdaptReadOrErase turns a synchronous read/erase status into an outcome.
// TIMEOUT_ERROR is deliberately folded into Done: the original firmware
// logs it and abandons the operation without reporting a bad block, so
// the caller continues as if nothing happened.
func AdaptReadOrErase(status Status) Outcome {
	switch status {
	case StatusReady:
		return Outcome{Kind: Done}
	case StatusError:
		return Outcome{Kind: BadBlock}
	case StatusTimeout:
		return Outcome{Kind: Done}
	default:
		return Outcome{Kind: Fatal, Err: fmt.Errorf("nand: unexpected status %s", status)}
	}
}

// AdaptWritePoll turns a status observed while polling an in-flight async
// program into an outcome. timeoutCount is the number of consecutive
// TIMEOUT_ERROR/BUSY observations seen so far for this program; the
// returned nextTimeoutCount should replace it for the next poll.
//
// Both the READY and ERROR cases clear "write in progress" on the engine
// side, reproducing the original firmware's fallthrough from its ERROR
// case into its READY case rather than leaving ERROR's effect on the
// in-progress flag ambiguous.
func AdaptWritePoll(status Status, timeoutCount uint32, timeoutLimit uint32) (outcome Outcome, nextTimeoutCount uint32) {
	switch status {
	case StatusReady:
		return Outcome{Kind: Done}, 0
	case StatusError:
		return Outcome{Kind: BadBlock}, 0
	case StatusTimeout, StatusBusy:
		next := timeoutCount + 1
		if next >= timeoutLimit {
			return Outcome{Kind: Fatal, Err: fmt.Errorf("nand: write poll exceeded %d iterations", timeoutLimit)}, next
		}
		return Outcome{Kind: Pending}, next
	default:
		return Outcome{Kind: Fatal, Err: fmt.Errorf("nand: unexpected status %s", status)}, timeoutCount
	}
}
