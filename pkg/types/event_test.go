package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		name     string
		event    *AgentEvent
		wantType AgentEventType
	}{
		{"start", NewStartEvent(), EventTypeStart},
		{"status", NewStatusEvent("thinking"), EventTypeStatus},
		{"text delta", NewTextDeltaEvent("hi"), EventTypeTextDelta},
		{"thinking delta", NewThinkingDeltaEvent("hmm"), EventTypeThinkingDelta},
		{"tool call start", NewToolCallStartEvent("call_1", "add_todo"), EventTypeToolCallStart},
		{"tool args delta", NewToolArgsDeltaEvent("call_1", "add_todo", `{"con`), EventTypeToolArgsDelta},
		{"tool start", NewToolStartEvent("call_1", "add_todo", json.RawMessage(`{}`)), EventTypeToolStart},
		{"tool output", NewToolOutputEvent("call_1", "add_todo", "done"), EventTypeToolOutput},
		{"response", NewResponseEvent("hello"), EventTypeResponse},
		{"done", NewDoneEvent(), EventTypeDone},
		{"session created", NewSessionCreatedEvent("abc"), EventTypeSessionCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.event.Type)
		})
	}
}

func TestEventWireNames(t *testing.T) {
	ev := NewTextDeltaEvent("abc")
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text_delta","content":"abc"}`, string(b))

	ev = NewSessionCreatedEvent("s-1")
	b, err = json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"session_created","session_id":"s-1"}`, string(b))

	ev = NewToolArgsDeltaEvent("call_1", "add_todo", `{"con`)
	b, err = json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"tool_args_delta","tool_call_id":"call_1","tool_name":"add_todo","args_delta":"{\"con"}`, string(b))

	ev = NewToolStartEvent("call_1", "add_todo", json.RawMessage(`{"content":"x"}`))
	b, err = json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"tool_start","tool_call_id":"call_1","tool_name":"add_todo","args":{"content":"x"}}`, string(b))
}

func TestErrorEvent(t *testing.T) {
	ev := NewErrorEvent(errors.New("boom"))
	assert.True(t, ev.IsErrorEvent())
	assert.Equal(t, "boom", ev.Content)

	ev = NewErrorEvent(nil)
	assert.Empty(t, ev.Content)
}

func TestApprovalRequiredEvent(t *testing.T) {
	reqs := []ApprovalRequest{
		{ApprovalID: "a1", ToolName: "remove_todo", Arguments: json.RawMessage(`{"todo_id":"todo_x"}`)},
	}
	ev := NewApprovalRequiredEvent(reqs)
	assert.Equal(t, EventTypeApprovalRequired, ev.Type)
	require.Len(t, ev.Requests, 1)
	assert.Equal(t, "remove_todo", ev.Requests[0].ToolName)

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"requests":[`)
}

func TestEventPredicates(t *testing.T) {
	assert.True(t, NewTextDeltaEvent("x").IsDeltaEvent())
	assert.True(t, NewThinkingDeltaEvent("x").IsDeltaEvent())
	assert.True(t, NewToolArgsDeltaEvent("c", "t", "x").IsDeltaEvent())
	assert.False(t, NewResponseEvent("x").IsDeltaEvent())

	assert.True(t, NewToolStartEvent("c", "t", nil).IsToolEvent())
	assert.False(t, NewStatusEvent("x").IsToolEvent())

	assert.True(t, NewDoneEvent().IsTerminal())
	assert.False(t, NewResponseEvent("x").IsTerminal())
}

func TestApprovalDecisionAbsenceIsDenial(t *testing.T) {
	d := &ApprovalDecision{Approvals: map[string]bool{"a1": true, "a2": false}}
	assert.True(t, d.IsApproved("a1"))
	assert.False(t, d.IsApproved("a2"))
	assert.False(t, d.IsApproved("a3"))

	var nilDecision *ApprovalDecision
	assert.False(t, nilDecision.IsApproved("a1"))
}

func TestApprovalFrameIsFlatMap(t *testing.T) {
	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(`{"session_id":"s1","approval":{"tc_1":true,"tc_2":false}}`), &msg))
	require.True(t, msg.IsApproval())
	assert.True(t, msg.Approval.IsApproved("tc_1"))
	assert.False(t, msg.Approval.IsApproved("tc_2"))

	// The wrapped shape older clients send still decodes
	require.NoError(t, json.Unmarshal([]byte(`{"approval":{"approvals":{"tc_3":true}}}`), &msg))
	assert.True(t, msg.Approval.IsApproved("tc_3"))

	b, err := json.Marshal(&ApprovalDecision{Approvals: map[string]bool{"tc_1": true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tc_1":true}`, string(b))
}
