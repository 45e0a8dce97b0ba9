package websocket

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CycloneRing/librws/internal/logger"
)

// OnConnected is invoked exactly once, on the worker goroutine, after a
// successful handshake.
type OnConnected func(h *Handle)

// OnDisconnected is invoked exactly once per successful [Handle.Connect]
// call, on the worker goroutine, after any terminal transition to
// [StateClosed]. [Handle.LastError] is queryable from inside this callback.
type OnDisconnected func(h *Handle)

// OnTextMessage is invoked on the worker goroutine after a text message has
// been fully reassembled from one or more fragments. data is valid UTF-8
// bytes; the library validates this, but interpretation is the host's
// responsibility.
type OnTextMessage func(h *Handle, data []byte)

// OnBinaryMessage is invoked on the worker goroutine after a binary message
// has been fully reassembled. isFinal is always true: this implementation
// only ever delivers fully-reassembled messages, never individual
// fragments.
type OnBinaryMessage func(h *Handle, data []byte, isFinal bool)

const (
	defaultDialTimeout = 5 * time.Second
	defaultTickInterval = 5 * time.Millisecond
	defaultCloseTimeout = 2 * time.Second
)

// Handle is the top-level entity hosts interact with: configure it, call
// Connect, send messages, and eventually DisconnectAndRelease it. All
// exported methods are safe to call concurrently from any goroutine.
type Handle struct {
	// Guarded by workMu: configuration, lifecycle state, and the
	// single-slot host-to-worker command.
	workMu      sync.Mutex
	scheme      string
	host        string
	port        int
	path        string
	onConnected OnConnected
	onDisconn   OnDisconnected
	onText      OnTextMessage
	onBinary    OnBinaryMessage
	userData    any
	state       State
	command     Command
	configured  bool // true once Connect() has started a worker.
	workerDone  chan struct{}

	// Guarded by sendMu: the outbound queue and the is-connected snapshot
	// hosts observe. The worker releases sendMu before performing the
	// actual socket write on a popped frame.
	sendMu      sync.Mutex
	queue       sendQueue
	isConnected bool

	// lastErrMu guards the most recently observed error, which callbacks
	// and hosts may read at any time.
	lastErrMu sync.Mutex
	lastErr   *Error

	// Worker-private fields: touched only by the worker goroutine once
	// it's running. No other goroutine may read or write these.
	conn          net.Conn
	recv          recvBuffer
	reasm         reassembler
	secWSAccept   string
	pendingWrite  []byte
	closeSince    time.Time
	closeSent     bool
	closeReceived bool
	disconnFired  bool

	// Loggers: zlog is the high-frequency, low-allocation logger the
	// worker writes its per-frame tracing and its handshake and failure
	// events to; slog is the logger picked up from NewHandle's context,
	// which this package stores but does not write to.
	zlog zerolog.Logger
	slog *slog.Logger

	// Test seams for deterministic dialing and masking in tests.
	rnd          io.Reader
	dialTimeout  time.Duration
	tickInterval time.Duration
	closeTimeout time.Duration
	dialFunc     func(network, address string, timeout time.Duration) (net.Conn, error)
}

// Option configures a [Handle] at construction time, following the
// standard functional-options idiom.
type Option func(*Handle)

// WithZerologLogger sets the per-frame tracing logger. Defaults to a no-op
// logger.
func WithZerologLogger(l zerolog.Logger) Option {
	return func(h *Handle) { h.zlog = l }
}

// WithRandSource overrides the masking-key randomness source. Tests use
// this for deterministic frames; production code should never set it.
func WithRandSource(r io.Reader) Option {
	return func(h *Handle) { h.rnd = r }
}

// WithDialTimeout overrides the default TCP connect timeout (5s).
func WithDialTimeout(d time.Duration) Option {
	return func(h *Handle) { h.dialTimeout = d }
}

// WithTickInterval overrides the worker's cooperative loop interval
// (default 5ms).
func WithTickInterval(d time.Duration) Option {
	return func(h *Handle) { h.tickInterval = d }
}

// NewHandle creates a new [Handle] in [StateIdle]. ctx is used only to pick
// up a *slog.Logger via [logger.FromContext], which is stored on the Handle
// but not written to; ctx itself is not retained beyond construction.
func NewHandle(ctx context.Context, opts ...Option) *Handle {
	h := &Handle{
		scheme:       "ws",
		port:         80,
		state:        StateIdle,
		command:      CommandNone,
		slog:         logger.FromContext(ctx),
		zlog:         zerolog.Nop(),
		rnd:          rand.Reader,
		dialTimeout:  defaultDialTimeout,
		tickInterval: defaultTickInterval,
		closeTimeout: defaultCloseTimeout,
		dialFunc: func(network, address string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout(network, address, timeout)
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetScheme sets the URL scheme ("ws"). Rejected silently after Connect.
func (h *Handle) SetScheme(scheme string) {
	h.workMu.Lock()
	defer h.workMu.Unlock()
	if h.configured {
		return
	}
	h.scheme = scheme
}

// SetHost sets the target host. Rejected silently after Connect.
func (h *Handle) SetHost(host string) {
	h.workMu.Lock()
	defer h.workMu.Unlock()
	if h.configured {
		return
	}
	h.host = host
}

// SetPort sets the target port. Rejected silently after Connect.
func (h *Handle) SetPort(port int) {
	h.workMu.Lock()
	defer h.workMu.Unlock()
	if h.configured {
		return
	}
	h.port = port
}

// SetPath sets the request path, which must begin with "/". Rejected
// silently after Connect.
func (h *Handle) SetPath(path string) {
	h.workMu.Lock()
	defer h.workMu.Unlock()
	if h.configured {
		return
	}
	h.path = path
}

// SetCallbacks registers the host's callback set. Rejected silently after
// Connect. Any of the four may be nil, but [Handle.Connect] requires
// onConnected and onDisconnected to be set, or it fails with
// ErrMissedParameter.
func (h *Handle) SetCallbacks(onConnected OnConnected, onDisconnected OnDisconnected, onText OnTextMessage, onBinary OnBinaryMessage) {
	h.workMu.Lock()
	defer h.workMu.Unlock()
	if h.configured {
		return
	}
	h.onConnected = onConnected
	h.onDisconn = onDisconnected
	h.onText = onText
	h.onBinary = onBinary
}

// SetUserData stores an opaque value the host can retrieve with UserData.
// Rejected silently after Connect.
func (h *Handle) SetUserData(v any) {
	h.workMu.Lock()
	defer h.workMu.Unlock()
	if h.configured {
		return
	}
	h.userData = v
}

// UserData returns the value set by SetUserData.
func (h *Handle) UserData() any {
	h.workMu.Lock()
	defer h.workMu.Unlock()
	return h.userData
}

// Connect validates the current configuration and, if valid, spawns the
// background worker goroutine and transitions to [StateConnecting]. It
// returns a non-nil error (also stored, retrievable via LastError) if a
// required parameter is missing; it does not block waiting for the
// connection to complete, so use OnConnected/OnDisconnected for that.
func (h *Handle) Connect() error {
	h.workMu.Lock()

	if h.configured {
		h.workMu.Unlock()
		return newError(ErrMissedParameter, "already connected or connecting", nil)
	}

	if err := h.validateConfigLocked(); err != nil {
		h.setLastError(err)
		h.workMu.Unlock()
		return err
	}

	h.configured = true
	h.state = StateConnecting
	h.workerDone = make(chan struct{})
	h.workMu.Unlock()

	go h.runWorker()
	return nil
}

func (h *Handle) validateConfigLocked() error {
	switch {
	case h.host == "":
		return newError(ErrMissedParameter, "host is required", nil)
	case h.path == "" || h.path[0] != '/':
		return newError(ErrMissedParameter, "path is required and must begin with \"/\"", nil)
	case h.port < 1 || h.port > 65535:
		return newError(ErrMissedParameter, "port must be between 1 and 65535", nil)
	case h.scheme != "ws":
		return newError(ErrMissedParameter, fmt.Sprintf("unsupported scheme %q", h.scheme), nil)
	case h.onConnected == nil || h.onDisconn == nil:
		return newError(ErrMissedParameter, "onConnected and onDisconnected callbacks are required", nil)
	}
	return nil
}

// SendText enqueues a UTF-8 text message for sending. It returns true only
// if the message was enqueued. Before Connect has started the worker it
// returns false; after that it succeeds even before the connection is
// open, since frames simply wait in the queue until the worker reaches
// [StateOpen].
func (h *Handle) SendText(data []byte) bool {
	return h.enqueueMessage(OpcodeText, data)
}

// SendBinary enqueues a binary message for sending. See [Handle.SendText].
func (h *Handle) SendBinary(data []byte) bool {
	return h.enqueueMessage(OpcodeBinary, data)
}

func (h *Handle) enqueueMessage(op Opcode, data []byte) bool {
	h.workMu.Lock()
	configured := h.configured
	h.workMu.Unlock()
	if !configured {
		return false
	}

	chunks := splitPayload(data)
	for i, chunk := range chunks {
		fin := i == len(chunks)-1
		frameOp := op
		if i > 0 {
			frameOp = opcodeContinuation
		}
		frame, err := EncodeFrame(frameOp, fin, chunk, true, h.rnd)
		if err != nil {
			return false
		}
		h.sendMu.Lock()
		h.queue.Push(frame, false)
		h.sendMu.Unlock()
	}
	return true
}

// IsConnected reports whether the worker currently believes the connection
// is open.
func (h *Handle) IsConnected() bool {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	return h.isConnected
}

// LastError returns the most recently recorded error, or nil if none.
func (h *Handle) LastError() *Error {
	h.lastErrMu.Lock()
	defer h.lastErrMu.Unlock()
	return h.lastErr
}

func (h *Handle) setLastError(err *Error) {
	h.lastErrMu.Lock()
	h.lastErr = err
	h.lastErrMu.Unlock()
}

// DisconnectAndRelease posts a command asking the worker to close the
// connection gracefully (if one is open) and then release all resources.
// It is non-blocking: it posts the command and returns immediately. If no
// worker was ever started (Connect was never called, or failed
// validation), it is a no-op.
//
// It only takes workMu briefly, and the worker never holds workMu while
// invoking a callback, so it may also be called from within one of this
// Handle's own callbacks; the worker observes the command on its next tick.
func (h *Handle) DisconnectAndRelease() {
	h.workMu.Lock()
	if !h.configured {
		h.workMu.Unlock()
		return
	}
	h.command = CommandEnd
	h.workMu.Unlock()
}

// State returns the Handle's current lifecycle state. Mainly useful for
// tests and diagnostics; hosts should generally rely on callbacks instead.
func (h *Handle) State() State {
	h.workMu.Lock()
	defer h.workMu.Unlock()
	return h.state
}
