package websocket

import "testing"

func TestBuildParseClosePayloadRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		status CloseStatus
		reason string
	}{
		{name: "no_reason", status: StatusNormalClosure, reason: ""},
		{name: "short_reason", status: StatusGoingAway, reason: "bye"},
		{name: "max_length_reason", status: StatusProtocolError, reason: string(make([]byte, maxCloseReason))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := buildClosePayload(tt.status, tt.reason)
			if len(payload) > maxControlPayload {
				t.Fatalf("buildClosePayload() length = %d, exceeds maxControlPayload", len(payload))
			}

			f := Frame{Opcode: opcodeClose, Payload: payload}
			if len(payload) >= 2 {
				f.CloseCode = uint16(payload[0])<<8 | uint16(payload[1])
			}

			gotStatus, gotReason := parseClosePayload(f)
			if gotStatus != tt.status {
				t.Errorf("parseClosePayload() status = %v, want %v", gotStatus, tt.status)
			}
			if gotReason != tt.reason {
				t.Errorf("parseClosePayload() reason = %q, want %q", gotReason, tt.reason)
			}
		})
	}
}

func TestBuildClosePayloadTruncatesOverlongReason(t *testing.T) {
	reason := string(make([]byte, maxCloseReason+50))
	payload := buildClosePayload(StatusNormalClosure, reason)
	if len(payload) != maxControlPayload {
		t.Errorf("buildClosePayload() length = %d, want %d", len(payload), maxControlPayload)
	}
}

func TestParseClosePayloadEmpty(t *testing.T) {
	status, reason := parseClosePayload(Frame{Opcode: opcodeClose, Payload: nil})
	if status != StatusNotReceived {
		t.Errorf("parseClosePayload() status = %v, want StatusNotReceived", status)
	}
	if reason != "" {
		t.Errorf("parseClosePayload() reason = %q, want empty", reason)
	}
}

func TestCloseStatusString(t *testing.T) {
	if got := StatusNormalClosure.String(); got != "normal closure" {
		t.Errorf("StatusNormalClosure.String() = %q, want %q", got, "normal closure")
	}
	if got := CloseStatus(4000).String(); got != "4000" {
		t.Errorf("CloseStatus(4000).String() = %q, want %q", got, "4000")
	}
}
