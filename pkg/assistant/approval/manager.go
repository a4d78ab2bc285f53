// Package approval manages tool execution approvals.
//
// When the agent wants to run a tool that is not auto-approved, the turn
// pauses: the pending requests are registered here, surfaced to the client,
// and the turn resumes once a decision frame arrives. Decisions are
// all-or-nothing per request, and any request absent from a decision frame
// counts as denied.
package approval

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

// Pending is a tool execution waiting for a user decision.
type Pending struct {
	// ApprovalID uniquely identifies this request.
	ApprovalID string `json:"approval_id"`

	// ToolCallID is the model's tool call this request belongs to, so a
	// denial can still be answered to the model under the right call ID.
	ToolCallID string `json:"tool_call_id"`

	// ToolName is the tool awaiting approval.
	ToolName string `json:"tool_name"`

	// Arguments is the raw argument payload the tool would run with.
	Arguments json.RawMessage `json:"arguments"`

	// RequestedAt is when the request was registered.
	RequestedAt time.Time `json:"requested_at"`
}

// Manager tracks pending approval requests for one session and decides
// which tools bypass approval entirely.
type Manager struct {
	mu          sync.Mutex
	pending     map[string]*Pending
	order       []string
	autoApprove []glob.Glob
}

// NewManager creates a manager whose auto-approve patterns are compiled
// from the given globs. Patterns that fail to compile are skipped.
func NewManager(autoApprovePatterns []string) *Manager {
	m := &Manager{
		pending: make(map[string]*Pending),
	}
	for _, pattern := range autoApprovePatterns {
		if g, err := glob.Compile(pattern); err == nil {
			m.autoApprove = append(m.autoApprove, g)
		}
	}
	return m
}

// IsAutoApproved reports whether the tool may run without asking.
func (m *Manager) IsAutoApproved(toolName string) bool {
	for _, g := range m.autoApprove {
		if g.Match(toolName) {
			return true
		}
	}
	return false
}

// Request registers a tool execution as awaiting approval and returns the
// pending record with its generated approval ID.
func (m *Manager) Request(toolCallID, toolName string, arguments json.RawMessage) *Pending {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &Pending{
		ApprovalID:  uuid.New().String(),
		ToolCallID:  toolCallID,
		ToolName:    toolName,
		Arguments:   arguments,
		RequestedAt: time.Now(),
	}
	m.pending[p.ApprovalID] = p
	m.order = append(m.order, p.ApprovalID)
	return p
}

// Pending returns the outstanding requests in registration order.
func (m *Manager) Pending() []*Pending {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Pending, 0, len(m.order))
	for _, id := range m.order {
		if p, ok := m.pending[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// HasPending reports whether any request awaits a decision.
func (m *Manager) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) > 0
}

// Resolve applies a decision frame to every outstanding request and clears
// them. Decisions may be keyed by approval ID or by tool call ID; a request
// whose key maps to true is approved, and one mapped to false or missing
// from the frame entirely is denied.
func (m *Manager) Resolve(decisions map[string]bool) (approved, denied []*Pending) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		p, ok := m.pending[id]
		if !ok {
			continue
		}
		if decisions[p.ApprovalID] || decisions[p.ToolCallID] {
			approved = append(approved, p)
		} else {
			denied = append(denied, p)
		}
	}
	m.pending = make(map[string]*Pending)
	m.order = nil
	return approved, denied
}

// Clear drops every outstanding request without deciding it. Used when a
// session is reset while paused.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = make(map[string]*Pending)
	m.order = nil
}
