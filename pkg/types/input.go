package types

import "encoding/json"

// ClientMessage is the envelope clients send over the WebSocket connection.
// Exactly one of Message or Approval is expected per frame; SessionID is
// optional and a missing or unknown ID causes a new session to be created.
type ClientMessage struct {
	SessionID string            `json:"session_id,omitempty"`
	Message   string            `json:"message,omitempty"`
	Approval  *ApprovalDecision `json:"approval,omitempty"`
}

// ApprovalDecision answers an approval_required event. On the wire it is
// a flat mapping of tool call ID (or approval ID) to the user's decision.
// Any pending approval whose IDs are absent from the map is treated as
// denied.
type ApprovalDecision struct {
	Approvals map[string]bool
}

// UnmarshalJSON decodes the flat ID-to-boolean map. The older shape that
// nested the map under an "approvals" key is still accepted.
func (d *ApprovalDecision) UnmarshalJSON(data []byte) error {
	var flat map[string]bool
	if err := json.Unmarshal(data, &flat); err == nil {
		d.Approvals = flat
		return nil
	}
	var wrapped struct {
		Approvals map[string]bool `json:"approvals"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	d.Approvals = wrapped.Approvals
	return nil
}

// MarshalJSON emits the flat map shape.
func (d ApprovalDecision) MarshalJSON() ([]byte, error) {
	if d.Approvals == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.Approvals)
}

// IsApproved reports the decision for the given ID. Absent IDs are denials.
func (d *ApprovalDecision) IsApproved(id string) bool {
	if d == nil || d.Approvals == nil {
		return false
	}
	return d.Approvals[id]
}

// IsChat returns true if this frame carries a user chat message.
func (c *ClientMessage) IsChat() bool {
	return c.Message != ""
}

// IsApproval returns true if this frame answers an approval request.
func (c *ClientMessage) IsApproval() bool {
	return c.Approval != nil
}
