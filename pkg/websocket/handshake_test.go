package websocket

import (
	"errors"
	"strings"
	"testing"
)

func TestExpectedAcceptValue(t *testing.T) {
	// The canonical example from https://datatracker.ietf.org/doc/html/rfc6455#section-1.3.
	got := expectedAcceptValue("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Errorf("expectedAcceptValue() = %q, want %q", got, want)
	}
}

func TestGenerateNonce(t *testing.T) {
	a, err := generateNonce(strings.NewReader("0123456789abcdef"))
	if err != nil {
		t.Fatalf("generateNonce() error = %v", err)
	}
	b, err := generateNonce(strings.NewReader("0123456789abcdef"))
	if err != nil {
		t.Fatalf("generateNonce() error = %v", err)
	}
	if a != b {
		t.Errorf("generateNonce() with identical sources = %q, %q, want equal", a, b)
	}
	if len(a) == 0 {
		t.Error("generateNonce() returned empty string")
	}
}

func TestBuildHandshakeRequest(t *testing.T) {
	req := buildHandshakeRequest("ws", "example.com", 80, "/chat", "dGhlIHNhbXBsZSBub25jZQ==")
	s := string(req)

	for _, want := range []string{
		"GET /chat HTTP/1.1\r\n",
		"Host: example.com\r\n",
		"Upgrade: websocket\r\n",
		"Connection: Upgrade\r\n",
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n",
		"Sec-WebSocket-Version: 13\r\n",
		"\r\n\r\n",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("buildHandshakeRequest() missing %q in:\n%s", want, s)
		}
	}
}

func TestBuildHandshakeRequestNonDefaultPort(t *testing.T) {
	req := buildHandshakeRequest("ws", "example.com", 8080, "/chat", "nonce")
	if !strings.Contains(string(req), "Host: example.com:8080\r\n") {
		t.Errorf("buildHandshakeRequest() with non-default port missing explicit port in Host header:\n%s", req)
	}
}

func TestParseHandshakeResponseNeedsMoreData(t *testing.T) {
	partial := []byte("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\n")
	if _, _, err := parseHandshakeResponse(partial); !errors.Is(err, ErrNeedMoreData) {
		t.Errorf("parseHandshakeResponse() error = %v, want ErrNeedMoreData", err)
	}
}

func TestParseHandshakeResponseComplete(t *testing.T) {
	raw := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n" +
		"\r\n" +
		"trailing frame bytes"

	resp, consumed, err := parseHandshakeResponse([]byte(raw))
	if err != nil {
		t.Fatalf("parseHandshakeResponse() error = %v", err)
	}
	if resp.statusCode != 101 {
		t.Errorf("statusCode = %d, want 101", resp.statusCode)
	}
	if got := resp.headers.Get("Sec-WebSocket-Accept"); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("Sec-WebSocket-Accept header = %q, want %q", got, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")
	}
	if remainder := raw[consumed:]; remainder != "trailing frame bytes" {
		t.Errorf("remainder after consumed = %q, want %q", remainder, "trailing frame bytes")
	}
}

func TestCheckHandshakeResponse(t *testing.T) {
	const expected = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="

	tests := []struct {
		name    string
		resp    handshakeResponse
		wantErr bool
	}{
		{
			name: "valid",
			resp: handshakeResponse{
				statusCode: 101,
				headers: map[string][]string{
					"Upgrade":              {"websocket"},
					"Connection":           {"Upgrade"},
					"Sec-Websocket-Accept": {expected},
				},
			},
		},
		{
			name: "wrong_status",
			resp: handshakeResponse{statusCode: 404},
			wantErr: true,
		},
		{
			name: "missing_upgrade_header",
			resp: handshakeResponse{
				statusCode: 101,
				headers: map[string][]string{
					"Connection":           {"Upgrade"},
					"Sec-Websocket-Accept": {expected},
				},
			},
			wantErr: true,
		},
		{
			name: "wrong_accept",
			resp: handshakeResponse{
				statusCode: 101,
				headers: map[string][]string{
					"Upgrade":              {"websocket"},
					"Connection":           {"Upgrade"},
					"Sec-Websocket-Accept": {"bogus"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkHandshakeResponse(tt.resp, expected)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkHandshakeResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
