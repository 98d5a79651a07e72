package copier

import (
	"context"
	"sync/atomic"
	"time"
)

// State of a copy session.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session mirrors one lead into one copier account. Everything except the
// state is fixed at start.
type Session struct {
	ID          string
	LeadID      string
	Credentials Credentials
	Capital     float64
	Scaling     float64
	Reverse     bool
	StartedAt   time.Time

	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// markRunning moves Initializing to Running; a stopped session stays stopped.
func (s *Session) markRunning() bool {
	return s.state.CompareAndSwap(int32(StateInitializing), int32(StateRunning))
}

func (s *Session) stop() {
	s.state.Store(int32(StateStopped))
	s.cancel()
}

// Done is closed once the session loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
