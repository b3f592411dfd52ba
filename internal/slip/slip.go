// Package slip implements SLIP byte-stream framing for the serial link
// between the host client and the engine. Both ends share this package:
// the engine decodes inbound frames in internal/transport, and the host
// client encodes outbound ones in internal/hostclient.
package slip

// Delimiter and escape bytes, per RFC 1055.
const (
	End = 0xC0
	Esc = 0xDB

	EscEnd = 0xDC
	EscEsc = 0xDD
)

// Encode wraps payload in a SLIP frame: a leading and trailing End byte,
// with any End or Esc byte inside payload escaped.
func Encode(payload []byte) []byte {
	framed := make([]byte, 0, len(payload)+2)
	framed = append(framed, End)
	for _, b := range payload {
		switch b {
		case End:
			framed = append(framed, Esc, EscEnd)
		case Esc:
			framed = append(framed, Esc, EscEsc)
		default:
			framed = append(framed, b)
		}
	}
	framed = append(framed, End)
	return framed
}

// Decode strips a frame's leading/trailing End bytes and unescapes its
// body. It returns nil if frame is too short to contain a payload, or if
// stripping leaves nothing behind.
func Decode(frame []byte) []byte {
	if len(frame) < 2 {
		return nil
	}

	lo, hi := 0, len(frame)
	for lo < hi && frame[lo] == End {
		lo++
	}
	for hi > lo && frame[hi-1] == End {
		hi--
	}
	if lo >= hi {
		return nil
	}
	body := frame[lo:hi]

	payload := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		if body[i] == Esc && i+1 < len(body) {
			switch body[i+1] {
			case EscEnd:
				payload = append(payload, End)
			case EscEsc:
				payload = append(payload, Esc)
			default:
				payload = append(payload, body[i+1])
			}
			i++
			continue
		}
		payload = append(payload, body[i])
	}
	return payload
}

// ReadFrame scans data for one complete SLIP frame: leading garbage and
// any run of empty End-delimited frames are skipped, and the frame found
// (including its delimiters) is returned along with whatever followed
// it. If data holds no complete frame, ReadFrame returns a nil frame and
// data unchanged, so the caller can append more bytes and retry.
func ReadFrame(data []byte) (frame []byte, remaining []byte) {
	start := -1
	for i, b := range data {
		if b == End {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, data
	}

	sawBody := false
	for i := start; i < len(data); i++ {
		if data[i] != End {
			sawBody = true
			continue
		}
		if sawBody {
			return data[start : i+1], data[i+1:]
		}
	}
	return nil, data
}
