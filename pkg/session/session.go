package session

import (
	"sync"
	"time"

	"github.com/entrhq/aide/pkg/assistant/approval"
	"github.com/entrhq/aide/pkg/assistant/tools"
	"github.com/entrhq/aide/pkg/types"
)

// Snapshot captures the conversation at the moment a turn paused for
// approval, so the paused state survives a client disconnect.
type Snapshot struct {
	History []*types.Message
	TakenAt time.Time
}

// Session is one conversation: its history, workspace, approval state,
// and activity clock. All methods are safe for concurrent use.
type Session struct {
	// ID is the session's UUID.
	ID string

	// Approvals tracks tool calls paused in this session.
	Approvals *approval.Manager

	// Deps is the per-session context handed to tool executions.
	Deps *tools.Deps

	// Workspace is the session's working area.
	Workspace *Workspace

	mu         sync.Mutex
	history    []*types.Message
	snapshot   *Snapshot
	lastActive time.Time
	busy       bool
}

// Touch refreshes the session's activity clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// BeginTurn claims the session for one turn. It reports false when a turn
// is already in flight; a session runs at most one turn at a time.
func (s *Session) BeginTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	s.lastActive = time.Now()
	return true
}

// EndTurn releases the claim taken by BeginTurn.
func (s *Session) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.lastActive = time.Now()
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// IdleSince reports whether the session has been unused for at least the
// given duration.
func (s *Session) IdleSince(timeout time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive) >= timeout
}

// History returns a copy of the conversation.
func (s *Session) History() []*types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.CloneHistory(s.history)
}

// SetHistory replaces the conversation wholesale with the history a
// completed turn produced.
func (s *Session) SetHistory(history []*types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = types.CloneHistory(history)
	s.lastActive = time.Now()
}

// TakeSnapshot stores the paused conversation state.
func (s *Session) TakeSnapshot(history []*types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &Snapshot{
		History: types.CloneHistory(history),
		TakenAt: time.Now(),
	}
	s.lastActive = time.Now()
}

// RestoreSnapshot returns the paused conversation state and clears it.
func (s *Session) RestoreSnapshot() ([]*types.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil, false
	}
	history := s.snapshot.History
	s.snapshot = nil
	return history, true
}

// HasSnapshot reports whether the session is paused awaiting approval.
func (s *Session) HasSnapshot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot != nil
}

// ClearConversation drops the history, snapshot, and any pending
// approvals, keeping the session and its workspace alive.
func (s *Session) ClearConversation() {
	s.mu.Lock()
	s.history = nil
	s.snapshot = nil
	s.lastActive = time.Now()
	s.mu.Unlock()
	s.Approvals.Clear()
}
