package sessions

import (
	"fmt"

	"github.com/timzifer/microdash/render"
)

// State tracks the lifecycle of a connected client.
type State int

const (
	// StateConnecting means the client is attached but has not received the
	// full document yet. Patches are withheld until the bootstrap is out.
	StateConnecting State = iota
	// StateBootstrapped means the full document was delivered this flush.
	StateBootstrapped
	// StateStreaming means the client receives incremental patches.
	StateStreaming
	// StateClosed means the transport failed or the client left. The session
	// is inert and waits for removal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateBootstrapped:
		return "bootstrapped"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport delivers rendered markup to one client. Implementations must be
// safe to call from the tick goroutine; they typically hand frames to a
// per-connection writer.
type Transport interface {
	SendBootstrap(doc string) error
	SendPatch(p render.Patch) error
	Close() error
}

// Session is one connected client. It is owned by the tick goroutine and is
// never touched concurrently; transports provide the thread boundary.
type Session struct {
	id        int
	state     State
	transport Transport
	queue     *Queue
}

// New creates a session in the connecting state.
func New(id int, transport Transport, queueCapacity int) *Session {
	return &Session{
		id:        id,
		state:     StateConnecting,
		transport: transport,
		queue:     NewQueue(queueCapacity),
	}
}

// ID returns the session identifier.
func (s *Session) ID() int { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Streaming reports whether the session receives incremental patches.
func (s *Session) Streaming() bool { return s.state == StateStreaming }

// Coalesced reports how many queued patches were replaced by newer ones.
func (s *Session) Coalesced() uint64 { return s.queue.Coalesced() }

// Pending reports the number of queued patches.
func (s *Session) Pending() int { return s.queue.Len() }

// Enqueue buffers a patch for the next flush. Connecting sessions reject
// patches; they receive the current state inside their full document instead.
// It reports whether an older patch for the same widget was coalesced away.
func (s *Session) Enqueue(p render.Patch) bool {
	if s.state != StateBootstrapped && s.state != StateStreaming {
		return false
	}
	return s.queue.Push(p)
}

// Flush delivers pending output. A connecting session receives the full
// document from bootstrap and is promoted to streaming; a streaming session
// drains its patch queue. Any transport error closes the session.
func (s *Session) Flush(bootstrap func() string) error {
	switch s.state {
	case StateConnecting:
		// The document reflects the latest store state; patches for this
		// tick were already withheld, so nothing can arrive twice.
		if err := s.transport.SendBootstrap(bootstrap()); err != nil {
			s.fail()
			return fmt.Errorf("session %d: bootstrap: %w", s.id, err)
		}
		s.state = StateBootstrapped
		return nil
	case StateBootstrapped, StateStreaming:
		if err := s.queue.Drain(s.transport.SendPatch); err != nil {
			s.fail()
			return fmt.Errorf("session %d: patch: %w", s.id, err)
		}
		s.state = StateStreaming
		return nil
	default:
		return nil
	}
}

// Close shuts the transport down and marks the session closed. Pending
// patches are discarded.
func (s *Session) Close() {
	if s.state == StateClosed {
		return
	}
	s.fail()
}

func (s *Session) fail() {
	s.state = StateClosed
	s.queue.Discard()
	_ = s.transport.Close()
}
