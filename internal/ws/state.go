package ws

import "sync/atomic"

// ConnState represents the lifecycle state of a streaming connection.
type ConnState int32

// Connection states. Closed and Failed are terminal for a given connection.
const (
	// StateDisconnected indicates no connection has been attempted yet.
	StateDisconnected ConnState = iota
	// StateConnecting indicates the transport is being established.
	StateConnecting
	// StateConnected indicates both pumps are running.
	StateConnected
	// StateClosing indicates a close frame has been queued and no further commands are accepted.
	StateClosing
	// StateClosed indicates the connection ended with a close handshake.
	StateClosed
	// StateFailed indicates the connection ended on a transport error.
	StateFailed
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further traffic can flow in this state.
func (s ConnState) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}

// State provides thread-safe atomic access to a ConnState value.
type State struct {
	state atomic.Int32
}

// Load returns the current connection state.
func (s *State) Load() ConnState {
	return ConnState(s.state.Load())
}

// Store sets the connection state to the given value.
func (s *State) Store(state ConnState) {
	s.state.Store(int32(state))
}

// CompareAndSwap atomically compares the current state with old and swaps to new if equal.
// It returns true if the swap was performed.
func (s *State) CompareAndSwap(old, new ConnState) bool {
	return s.state.CompareAndSwap(int32(old), int32(new))
}
