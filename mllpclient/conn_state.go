package mllpclient

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-hl7/internal/pool"
	"github.com/arloliu/go-hl7/logger"
)

// ConnState represents the stage of a channel connection.
type ConnState uint32

// Connection states. A channel starts in ConnectingState.
const (
	// ConnectingState indicates that the first connection attempt is in progress.
	ConnectingState ConnState = iota
	// OpenState indicates that a connection attempt timed out and a retry is scheduled or running.
	OpenState
	// ConnectedState indicates that the socket is ready for writing.
	ConnectedState
	// ClosingState indicates that the channel is releasing its sockets.
	ClosingState
	// ClosedState is terminal.
	ClosedState
)

// String returns string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case ConnectingState:
		return "connecting"
	case OpenState:
		return "open"
	case ConnectedState:
		return "connected"
	case ClosingState:
		return "closing"
	case ClosedState:
		return "closed"
	default:
		return "unknown"
	}
}

// IsConnected returns if the state is connected.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// IsTerminal returns if the state is closing or closed.
func (cs ConnState) IsTerminal() bool { return cs == ClosingState || cs == ClosedState }

// canTransition reports whether the state machine allows moving from cs to next.
func (cs ConnState) canTransition(next ConnState) bool {
	switch cs {
	case ConnectingState:
		return next == OpenState || next == ConnectedState || next == ClosingState
	case OpenState:
		return next == OpenState || next == ConnectedState || next == ClosingState
	case ConnectedState:
		return next == ClosingState
	case ClosingState:
		return next == ClosedState
	default:
		return false
	}
}

// ConnStateChangeHandler is invoked after the state of a channel changes.
//
// Note: the handler is invoked in a blocking mode, outside of internal locks.
type ConnStateChangeHandler func(ch *Channel, prevState ConnState, newState ConnState)

// connStateMgr guards the state of one channel and wakes up waiters on every change.
type connStateMgr struct {
	mu       sync.Mutex
	state    atomic.Uint32
	changed  chan struct{}
	owner    *Channel
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

func newConnStateMgr(owner *Channel, l logger.Logger) *connStateMgr {
	mgr := &connStateMgr{
		changed: make(chan struct{}),
		owner:   owner,
		logger:  l,
	}
	mgr.state.Store(uint32(ConnectingState))

	return mgr
}

// State returns the current state.
func (m *connStateMgr) State() ConnState {
	return ConnState(m.state.Load())
}

// AddHandler adds handlers invoked on state changes.
func (m *connStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handlers...)
}

// Changed returns a channel that is closed on the next state change or notify call.
//
// Callers must take it before checking the condition they wait for, so no wake-up is lost.
func (m *connStateMgr) Changed() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.changed
}

// notify wakes up waiters without changing the state.
func (m *connStateMgr) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastLocked()
}

func (m *connStateMgr) broadcastLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

// transition moves to next. Moving to the current state is a no-op.
//
// Returns the previous state, and ErrInvalidTransition if next is not reachable.
func (m *connStateMgr) transition(next ConnState) (ConnState, error) {
	m.mu.Lock()

	cur := m.State()
	if cur == next {
		m.mu.Unlock()
		return cur, nil
	}

	if !cur.canTransition(next) {
		m.mu.Unlock()
		return cur, ErrInvalidTransition
	}

	m.state.Store(uint32(next))
	m.broadcastLocked()
	handlers := make([]ConnStateChangeHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	if m.logger.Level() == logger.DebugLevel {
		m.logger.Debug("channel state changed", "prevState", cur, "curState", next)
	}

	for _, handler := range handlers {
		if handler != nil {
			handler(m.owner, cur, next)
		}
	}

	return cur, nil
}

// WaitState waits until the state equals state or ctx is done.
//
// It returns ErrChannelClosed when the channel becomes terminal and state can no longer be
// reached. Waiting for ClosingState returns nil once the channel is closed.
func (m *connStateMgr) WaitState(ctx context.Context, state ConnState) error {
	for {
		changed := m.Changed()
		cur := m.State()
		if cur == state {
			return nil
		}

		if cur.IsTerminal() {
			if !state.IsTerminal() {
				return ErrChannelClosed
			}
			if cur > state {
				return nil
			}
		}

		if err := pool.WaitSignal(ctx, changed, 0); err != nil {
			return err
		}
	}
}
