package websocket

import "testing"

func TestSendQueuePushPopFront(t *testing.T) {
	var q sendQueue

	q.Push([]byte("a"), false)
	q.Push([]byte("b"), true)

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}

	first, ok := q.PopFront()
	if !ok || string(first.data) != "a" || first.isClose {
		t.Errorf("PopFront() = %+v, %v, want {a false}, true", first, ok)
	}

	second, ok := q.PopFront()
	if !ok || string(second.data) != "b" || !second.isClose {
		t.Errorf("PopFront() = %+v, %v, want {b true}, true", second, ok)
	}

	if _, ok := q.PopFront(); ok {
		t.Error("PopFront() on an empty queue returned ok = true")
	}
}

func TestSendQueueClear(t *testing.T) {
	var q sendQueue
	q.Push([]byte("a"), false)
	q.Push([]byte("b"), false)
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", q.Len())
	}
}

func TestSplitPayload(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		wantChunks int
	}{
		{name: "empty", n: 0, wantChunks: 1},
		{name: "small", n: 10, wantChunks: 1},
		{name: "exactly_at_limit", n: maxUnfragmentedPayload, wantChunks: 1},
		{name: "one_over_limit", n: maxUnfragmentedPayload + 1, wantChunks: 2},
		{name: "three_chunks", n: maxUnfragmentedPayload*2 + 1, wantChunks: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.n)
			chunks := splitPayload(payload)
			if len(chunks) != tt.wantChunks {
				t.Errorf("splitPayload() chunk count = %d, want %d", len(chunks), tt.wantChunks)
			}

			var total int
			for _, c := range chunks {
				if len(c) > maxUnfragmentedPayload {
					t.Errorf("splitPayload() chunk length = %d, exceeds max %d", len(c), maxUnfragmentedPayload)
				}
				total += len(c)
			}
			if total != tt.n {
				t.Errorf("splitPayload() total length = %d, want %d", total, tt.n)
			}
		})
	}
}
