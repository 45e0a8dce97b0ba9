package websocket

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// runWorker is the single background goroutine spawned by [Handle.Connect].
// It owns the socket and the receive buffer exclusively, ticks on a
// cooperative interval, and is the only place Handle's callbacks are ever
// invoked from.
func (h *Handle) runWorker() {
	defer close(h.workerDone)

	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()

	for range ticker.C {
		if h.tick() {
			return
		}
	}
}

// tick performs one step of the worker loop and reports whether the
// worker should now exit (state closed and command end).
func (h *Handle) tick() bool {
	h.workMu.Lock()
	state := h.state
	command := h.command
	h.workMu.Unlock()

	switch state {
	case StateConnecting:
		h.stepConnecting()
	case StateHandshaking:
		h.stepHandshaking(command)
	case StateOpen:
		h.stepOpen(command)
	case StateClosing:
		h.stepClosing()
	case StateClosed:
		if command == CommandEnd {
			h.release()
			return true
		}
	}
	return false
}

func (h *Handle) setState(s State) {
	h.workMu.Lock()
	h.state = s
	h.workMu.Unlock()
}

func (h *Handle) setIsConnected(v bool) {
	h.sendMu.Lock()
	h.isConnected = v
	h.sendMu.Unlock()
}

// stepConnecting performs the blocking TCP connect, then sends the
// handshake request.
func (h *Handle) stepConnecting() {
	h.workMu.Lock()
	scheme, host, port, path := h.scheme, h.host, h.port, h.path
	h.workMu.Unlock()

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := h.dialFunc("tcp", addr, h.dialTimeout)
	if err != nil {
		h.failAndClose(newError(ErrConnect, "failed to connect", err))
		return
	}
	h.conn = conn

	nonce, err := generateNonce(h.rnd)
	if err != nil {
		h.failAndClose(newError(ErrConnect, "failed to generate handshake nonce", err))
		return
	}
	h.secWSAccept = expectedAcceptValue(nonce)

	req := buildHandshakeRequest(scheme, host, port, path, nonce)
	if _, err := h.conn.Write(req); err != nil {
		h.failAndClose(newError(ErrReadWriteSocket, "failed to send handshake request", err))
		return
	}

	h.zlog.Debug().Str("host", host).Int("port", port).Str("path", path).
		Msg("sent WebSocket handshake request")
	h.setState(StateHandshaking)
}

// stepHandshaking reads available bytes and tries to parse a complete
// HTTP/1.1 Upgrade response out of them.
func (h *Handle) stepHandshaking(command Command) {
	if command != CommandNone {
		h.finish(nil)
		return
	}

	if err := h.readSocketIntoBuffer(); err != nil {
		h.failAndClose(newError(ErrReadWriteSocket, "failed to read handshake response", err))
		return
	}

	resp, consumed, err := parseHandshakeResponse(h.recv.Bytes())
	if errors.Is(err, ErrNeedMoreData) {
		return
	}
	if err != nil {
		var wsErr *Error
		if errors.As(err, &wsErr) {
			h.failAndClose(wsErr)
		} else {
			h.failAndClose(newHandshakeError(err.Error(), 0, err))
		}
		return
	}

	if err := checkHandshakeResponse(resp, h.secWSAccept); err != nil {
		var wsErr *Error
		if errors.As(err, &wsErr) {
			h.failAndClose(wsErr)
		} else {
			h.failAndClose(newHandshakeError(err.Error(), resp.statusCode, err))
		}
		return
	}

	h.recv.Consume(consumed)
	h.zlog.Debug().Msg("WebSocket handshake accepted")

	h.setIsConnected(true)
	h.setState(StateOpen)
	if h.onConnected != nil {
		h.onConnected(h)
	}
}

// stepOpen drains the send queue, pumps socket reads, and decodes/dispatches
// whatever complete frames have arrived.
func (h *Handle) stepOpen(command Command) {
	if command != CommandNone {
		h.enqueueCloseFrame(StatusNormalClosure, "")
		h.closeSince = time.Time{}
		h.setState(StateClosing)
		return
	}

	if err := h.drainWrites(); err != nil {
		h.failAndClose(newError(ErrReadWriteSocket, "failed to write frame", err))
		return
	}

	if err := h.readSocketIntoBuffer(); err != nil {
		h.failAndClose(newError(ErrReadWriteSocket, "failed to read from socket", err))
		return
	}

	for {
		f, consumed, err := DecodeFrame(h.recv.Bytes())
		if errors.Is(err, ErrNeedMoreData) {
			return
		}
		if err != nil {
			var wsErr *Error
			if !errors.As(err, &wsErr) {
				wsErr = newError(ErrProtocol, err.Error(), err)
			}
			h.failAndClose(wsErr)
			return
		}
		h.recv.Consume(consumed)

		if h.dispatchFrame(f) {
			return // Transitioned to closing or closed; stop processing this tick.
		}
	}
}

// dispatchFrame handles one decoded frame in the open state. It returns
// true if the state machine left StateOpen as a result.
func (h *Handle) dispatchFrame(f Frame) bool {
	h.zlog.Trace().Str("opcode", f.Opcode.String()).Bool("fin", f.Fin).
		Int("len", len(f.Payload)).Msg("received WebSocket frame")

	switch f.Opcode {
	case opcodePing:
		frame, err := EncodeFrame(opcodePong, true, f.Payload, true, h.rnd)
		if err == nil {
			h.sendMu.Lock()
			h.queue.Push(frame, false)
			h.sendMu.Unlock()
		}
		return false

	case opcodePong:
		return false

	case opcodeClose:
		status, reason := parseClosePayload(f)
		if status == StatusNotReceived {
			// 1005 must not appear in a close frame; reply with a normal closure.
			status = StatusNormalClosure
		}
		h.closeReceived = true
		h.enqueueCloseFrame(status, reason)
		h.closeSince = time.Time{}
		h.setState(StateClosing)
		return true

	default: // continuation, text, binary
		data, op, complete, err := h.reasm.Feed(f)
		if err != nil {
			var wsErr *Error
			if !errors.As(err, &wsErr) {
				wsErr = newError(ErrProtocol, err.Error(), err)
			}
			h.failAndClose(wsErr)
			return true
		}
		if !complete {
			return false
		}
		switch op {
		case OpcodeText:
			if h.onText != nil {
				h.onText(h, data)
			}
		case OpcodeBinary:
			if h.onBinary != nil {
				h.onBinary(h, data, true)
			}
		}
		return false
	}
}

// stepClosing flushes the outbound close frame (and anything queued ahead
// of it) and waits for either the peer's close frame or a grace-period
// timeout before finalizing.
func (h *Handle) stepClosing() {
	if err := h.drainWrites(); err != nil {
		h.finish(newError(ErrReadWriteSocket, "failed to flush close frame", err))
		return
	}

	if h.closeSince.IsZero() && h.closeSent {
		h.closeSince = time.Now()
	}

	if !h.closeReceived {
		if err := h.readSocketIntoBuffer(); err == nil {
			for {
				f, consumed, err := DecodeFrame(h.recv.Bytes())
				if err != nil {
					break
				}
				h.recv.Consume(consumed)
				if f.Opcode == opcodeClose {
					h.closeReceived = true
					break
				}
			}
		}
	}

	timedOut := !h.closeSince.IsZero() && time.Since(h.closeSince) >= h.closeTimeout
	if h.closeSent && (h.closeReceived || timedOut) {
		h.finish(nil)
	}
}

// enqueueCloseFrame pushes the connection-close frame onto the send queue,
// tagged so drainWrites can tell us once it has actually been written.
func (h *Handle) enqueueCloseFrame(status CloseStatus, reason string) {
	payload := buildClosePayload(status, reason)
	frame, err := EncodeFrame(opcodeClose, true, payload, true, h.rnd)
	if err != nil {
		return
	}
	h.sendMu.Lock()
	h.queue.Push(frame, true)
	h.sendMu.Unlock()
}

// drainWrites pops and writes queued frames, up to a bounded count per
// tick, resuming a short write from pendingWrite if one is outstanding.
func (h *Handle) drainWrites() error {
	const maxPerTick = 64

	if len(h.pendingWrite) > 0 {
		pending := h.pendingWrite
		h.pendingWrite = nil
		if err := h.writeAll(pending); err != nil {
			return err
		}
		if len(h.pendingWrite) > 0 {
			return nil // Still short; resume on the next tick.
		}
	}

	for i := 0; i < maxPerTick; i++ {
		h.sendMu.Lock()
		qf, ok := h.queue.PopFront()
		h.sendMu.Unlock()
		if !ok {
			return nil
		}

		if err := h.writeAll(qf.data); err != nil {
			return err
		}
		if qf.isClose {
			h.closeSent = true
		}
		if len(h.pendingWrite) > 0 {
			return nil // Short write; resume on the next tick.
		}
	}
	return nil
}

// writeAll writes data to the socket, stashing any unwritten remainder in
// pendingWrite on a short write so the next tick resumes it.
func (h *Handle) writeAll(data []byte) error {
	n, err := h.conn.Write(data)
	if err != nil {
		return err
	}
	if n < len(data) {
		h.pendingWrite = append([]byte(nil), data[n:]...)
	}
	return nil
}

// readSocketIntoBuffer performs one non-blocking-ish read: it sets a short
// deadline so the worker never blocks past its tick interval, and treats a
// timeout as "nothing available right now" rather than an error.
func (h *Handle) readSocketIntoBuffer() error {
	_ = h.conn.SetReadDeadline(time.Now().Add(h.tickInterval))

	buf := make([]byte, 64*1024)
	n, err := h.conn.Read(buf)
	if n > 0 {
		h.recv.Append(buf[:n])
	}
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		return err
	}
	return nil
}

// failAndClose records err, tears down the socket immediately (no close
// handshake: this is an error exit from connecting/handshaking/open, not a
// graceful shutdown), and finalizes.
func (h *Handle) failAndClose(err *Error) {
	h.finish(err)
}

// finish performs the terminal transition to StateClosed, records err (if
// any), invokes OnDisconnected exactly once, and releases the socket.
func (h *Handle) finish(err *Error) {
	if err != nil {
		h.setLastError(err)
		h.zlog.Err(err).Msg("WebSocket connection failed")
	}

	if h.conn != nil {
		_ = h.conn.Close()
		h.conn = nil
	}
	h.setIsConnected(false)

	h.sendMu.Lock()
	h.queue.Clear()
	h.sendMu.Unlock()

	h.setState(StateClosed)

	if !h.disconnFired {
		h.disconnFired = true
		if h.onDisconn != nil {
			h.onDisconn(h)
		}
	}
}

// release is the final step once the worker has observed [CommandEnd]
// while already in [StateClosed]: all worker-private resources are dropped.
func (h *Handle) release() {
	h.recv = recvBuffer{}
	h.reasm = reassembler{}
	h.zlog = zerolog.Nop()
}
