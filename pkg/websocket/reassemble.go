package websocket

import "unicode/utf8"

// reassembler accumulates the payloads of a fragmented data message
// (opcode text or binary) until a frame with Fin=true arrives. It holds
// incremental state across calls to Feed, since frames arrive one at a
// time off a non-blocking receive buffer rather than all at once.
//
// Based on:
//   - Fragmentation: https://datatracker.ietf.org/doc/html/rfc6455#section-5.4
//   - Data frames: https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
type reassembler struct {
	active  bool
	opcode  Opcode
	payload []byte
}

// Feed folds a data-or-continuation frame into the in-progress message. It
// returns (message, opcode, true, nil) once fin completes the message, with
// the opcode of the message's first frame, or (nil, 0, false, nil) while
// more fragments are still expected. A continuation frame with no
// prior starter, or a new starter frame while one is already in progress,
// is a protocol error.
func (r *reassembler) Feed(f Frame) ([]byte, Opcode, bool, error) {
	switch {
	case f.Opcode == opcodeContinuation:
		if !r.active {
			return nil, 0, false, newError(ErrProtocol, "continuation frame with no prior starter frame", nil)
		}
	default: // OpcodeText or OpcodeBinary
		if r.active {
			return nil, 0, false, newError(ErrProtocol, "new data frame while a fragmented message is in progress", nil)
		}
		r.active = true
		r.opcode = f.Opcode
		r.payload = nil
	}

	if len(f.Payload) > 0 {
		r.payload = append(r.payload, f.Payload...)
	}

	if !f.Fin {
		return nil, 0, false, nil
	}

	op, payload := r.opcode, r.payload
	r.active = false
	r.opcode = 0
	r.payload = nil

	if op == OpcodeText && len(payload) > 0 && !utf8.Valid(payload) {
		return nil, 0, false, newError(ErrProtocol, "invalid UTF-8 in text message", nil)
	}

	if payload == nil {
		payload = []byte{}
	}
	return payload, op, true, nil
}
