package types

import "encoding/json"

// AgentEventType defines the type of event emitted while processing a turn.
// The values are the wire names sent to WebSocket clients verbatim.
type AgentEventType string

const (
	EventTypeStart            AgentEventType = "start"             // EventTypeStart indicates a turn has started.
	EventTypeStatus           AgentEventType = "status"            // EventTypeStatus carries a short human-readable progress note.
	EventTypeTextDelta        AgentEventType = "text_delta"        // EventTypeTextDelta carries a fragment of the assistant's reply text.
	EventTypeThinkingDelta    AgentEventType = "thinking_delta"    // EventTypeThinkingDelta carries a fragment of the model's reasoning.
	EventTypeToolCallStart    AgentEventType = "tool_call_start"   // EventTypeToolCallStart indicates the model began emitting a tool call.
	EventTypeToolArgsDelta    AgentEventType = "tool_args_delta"   // EventTypeToolArgsDelta carries a fragment of tool call arguments.
	EventTypeToolStart        AgentEventType = "tool_start"        // EventTypeToolStart indicates a tool began executing.
	EventTypeToolOutput       AgentEventType = "tool_output"       // EventTypeToolOutput carries the result of a tool execution.
	EventTypeTodosUpdate      AgentEventType = "todos_update"      // EventTypeTodosUpdate carries a fresh snapshot of the user's todo lists.
	EventTypeApprovalRequired AgentEventType = "approval_required" // EventTypeApprovalRequired indicates the turn is paused awaiting approval.
	EventTypeResponse         AgentEventType = "response"          // EventTypeResponse carries the assistant's complete reply text.
	EventTypeDone             AgentEventType = "done"              // EventTypeDone indicates the turn has finished.
	EventTypeError            AgentEventType = "error"             // EventTypeError indicates an error occurred during processing.
	EventTypeSessionCreated   AgentEventType = "session_created"   // EventTypeSessionCreated announces a newly created session.
)

// AgentEvent is a single event in the streaming protocol. Exactly one Type is
// set per event; the other fields are populated according to the type.
type AgentEvent struct {
	// Type indicates the kind of event.
	Type AgentEventType `json:"type"`

	// Content holds text for delta, status, response, and error events.
	Content string `json:"content,omitempty"`

	// ToolName is the name of the tool involved (for tool events).
	ToolName string `json:"tool_name,omitempty"`

	// ToolCallID identifies the model's tool call (for tool events).
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ArgsDelta carries a fragment of tool call arguments (for tool_args_delta).
	ArgsDelta string `json:"args_delta,omitempty"`

	// Args holds the complete tool call arguments (for tool_start).
	Args json.RawMessage `json:"args,omitempty"`

	// ToolOutput is the result from the tool (for tool output events).
	ToolOutput string `json:"tool_output,omitempty"`

	// Todos holds a snapshot of the user's todo lists (for todos_update).
	Todos json.RawMessage `json:"todos,omitempty"`

	// Requests lists the tool calls awaiting a decision (for approval_required).
	Requests []ApprovalRequest `json:"requests,omitempty"`

	// SessionID identifies the session (for session_created).
	SessionID string `json:"session_id,omitempty"`

	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ApprovalRequest describes one tool call that needs user approval before it
// may execute. The client answers by approval ID or tool call ID; an ID
// omitted from the answer counts as a denial.
type ApprovalRequest struct {
	ApprovalID string          `json:"approval_id"`
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Arguments  json.RawMessage `json:"args,omitempty"`
}

// NewStartEvent creates a turn start event.
func NewStartEvent() *AgentEvent {
	return &AgentEvent{Type: EventTypeStart}
}

// NewStatusEvent creates a status event with a short progress note.
func NewStatusEvent(status string) *AgentEvent {
	return &AgentEvent{Type: EventTypeStatus, Content: status}
}

// NewTextDeltaEvent creates a reply text fragment event.
func NewTextDeltaEvent(delta string) *AgentEvent {
	return &AgentEvent{Type: EventTypeTextDelta, Content: delta}
}

// NewThinkingDeltaEvent creates a reasoning fragment event.
func NewThinkingDeltaEvent(delta string) *AgentEvent {
	return &AgentEvent{Type: EventTypeThinkingDelta, Content: delta}
}

// NewToolCallStartEvent creates an event marking the start of a model tool call.
func NewToolCallStartEvent(toolCallID, toolName string) *AgentEvent {
	return &AgentEvent{Type: EventTypeToolCallStart, ToolCallID: toolCallID, ToolName: toolName}
}

// NewToolArgsDeltaEvent creates a tool argument fragment event.
func NewToolArgsDeltaEvent(toolCallID, toolName, delta string) *AgentEvent {
	return &AgentEvent{Type: EventTypeToolArgsDelta, ToolCallID: toolCallID, ToolName: toolName, ArgsDelta: delta}
}

// NewToolStartEvent creates an event marking the start of a tool execution.
func NewToolStartEvent(toolCallID, toolName string, args json.RawMessage) *AgentEvent {
	return &AgentEvent{Type: EventTypeToolStart, ToolCallID: toolCallID, ToolName: toolName, Args: args}
}

// NewToolOutputEvent creates a tool result event.
func NewToolOutputEvent(toolCallID, toolName, output string) *AgentEvent {
	return &AgentEvent{Type: EventTypeToolOutput, ToolCallID: toolCallID, ToolName: toolName, ToolOutput: output}
}

// NewTodosUpdateEvent creates an event carrying a todo list snapshot.
// The snapshot must already be JSON-encoded.
func NewTodosUpdateEvent(todos json.RawMessage) *AgentEvent {
	return &AgentEvent{Type: EventTypeTodosUpdate, Todos: todos}
}

// NewApprovalRequiredEvent creates an event announcing paused tool calls.
func NewApprovalRequiredEvent(requests []ApprovalRequest) *AgentEvent {
	return &AgentEvent{Type: EventTypeApprovalRequired, Requests: requests}
}

// NewResponseEvent creates an event carrying the complete reply text.
func NewResponseEvent(content string) *AgentEvent {
	return &AgentEvent{Type: EventTypeResponse, Content: content}
}

// NewDoneEvent creates a turn end event.
func NewDoneEvent() *AgentEvent {
	return &AgentEvent{Type: EventTypeDone}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err error) *AgentEvent {
	ev := &AgentEvent{Type: EventTypeError}
	if err != nil {
		ev.Content = err.Error()
	}
	return ev
}

// NewSessionCreatedEvent creates an event announcing a new session.
func NewSessionCreatedEvent(sessionID string) *AgentEvent {
	return &AgentEvent{Type: EventTypeSessionCreated, SessionID: sessionID}
}

// WithMetadata adds metadata to the event and returns the event for chaining.
func (e *AgentEvent) WithMetadata(key string, value interface{}) *AgentEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// IsDeltaEvent returns true if this event carries streamed content fragments.
func (e *AgentEvent) IsDeltaEvent() bool {
	return e.Type == EventTypeTextDelta ||
		e.Type == EventTypeThinkingDelta ||
		e.Type == EventTypeToolArgsDelta
}

// IsToolEvent returns true if this is any tool-related event.
func (e *AgentEvent) IsToolEvent() bool {
	return e.Type == EventTypeToolCallStart ||
		e.Type == EventTypeToolArgsDelta ||
		e.Type == EventTypeToolStart ||
		e.Type == EventTypeToolOutput
}

// IsErrorEvent returns true if this is an error event.
func (e *AgentEvent) IsErrorEvent() bool {
	return e.Type == EventTypeError
}

// IsTerminal returns true if this event ends the current turn from the
// client's perspective.
func (e *AgentEvent) IsTerminal() bool {
	return e.Type == EventTypeDone
}
