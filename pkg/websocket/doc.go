// Package websocket is a lightweight, embeddable client implementation of
// the WebSocket protocol (RFC 6455).
//
// A [Handle] is the library's public surface: the host application
// configures it, calls Connect, and receives data through callbacks. A
// single background worker goroutine per Handle owns the socket, drives
// the connection state machine, and is the only place where callbacks are
// ever invoked; the host may call Handle's methods concurrently from any
// number of its own goroutines.
//
// This package intentionally does not support server-side WebSocket
// behavior, protocol extensions, per-message compression, or automatic
// reconnection: a disconnection is terminal for a given Handle.
package websocket
