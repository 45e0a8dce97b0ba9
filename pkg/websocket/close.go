package websocket

import "strconv"

// CloseStatus indicates a reason for the closure of an established
// WebSocket connection, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-7.4.
type CloseStatus uint16

const (
	// The purpose for which the connection was established has been fulfilled.
	StatusNormalClosure CloseStatus = iota + 1000
	// An endpoint is "going away", such as the host process exiting.
	StatusGoingAway
	// An endpoint is terminating the connection due to a protocol error.
	StatusProtocolError
	// An endpoint received a type of data it cannot accept.
	StatusUnsupportedData
	_ // Reserved.
	// Reserved: MUST NOT be set as a status code in a Close frame by an
	// endpoint; used internally to mean "no status code was present".
	StatusNotReceived
	// Reserved: MUST NOT be set as a status code in a Close frame by an
	// endpoint; used internally to mean "closed without a Close frame".
	StatusClosedAbnormally
	// The connection is closing because received data was inconsistent
	// with the type of message (e.g. non-UTF-8 text).
	StatusInvalidData
	// The connection is closing because a message violated policy.
	StatusPolicyViolation
	// The connection is closing because a message was too big to process.
	StatusMessageTooBig
	// Reserved for client use: an expected extension wasn't negotiated.
	StatusMandatoryExtension
	// The remote endpoint encountered an unexpected condition.
	StatusInternalError
)

// String returns the status's name, or its number if it's unrecognized.
func (s CloseStatus) String() string {
	switch s {
	case StatusNormalClosure:
		return "normal closure"
	case StatusGoingAway:
		return "going away"
	case StatusProtocolError:
		return "protocol error"
	case StatusUnsupportedData:
		return "unsupported data"
	case StatusNotReceived:
		return "status not received"
	case StatusClosedAbnormally:
		return "closed abnormally"
	case StatusInvalidData:
		return "invalid data"
	case StatusPolicyViolation:
		return "policy violation"
	case StatusMessageTooBig:
		return "message too big"
	case StatusMandatoryExtension:
		return "expected extension negotiation"
	case StatusInternalError:
		return "internal error"
	default:
		return strconv.Itoa(int(s))
	}
}

// maxCloseReason is the maximum length of a close frame's UTF-8 reason
// text; the difference from maxControlPayload is the 2-byte status code.
const maxCloseReason = maxControlPayload - 2

// buildClosePayload packs a status code and optional reason into a close
// frame payload, truncating an over-long reason to fit.
func buildClosePayload(status CloseStatus, reason string) []byte {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	payload := make([]byte, 2+len(reason))
	payload[0] = byte(status >> 8)
	payload[1] = byte(status)
	copy(payload[2:], reason)
	return payload
}

// parseClosePayload extracts the status and reason from an incoming close
// frame's payload, which [DecodeFrame] has already validated isn't length 1.
func parseClosePayload(f Frame) (status CloseStatus, reason string) {
	switch len(f.Payload) {
	case 0:
		return StatusNotReceived, ""
	default:
		status = CloseStatus(f.CloseCode)
		if len(f.Payload) > 2 {
			reason = string(f.Payload[2:])
		}
		return status, reason
	}
}
