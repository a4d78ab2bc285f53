package types

import "encoding/json"

// MessageRole identifies who produced a conversation message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolCall is a tool invocation requested by the model as part of an
// assistant message. Arguments hold the raw JSON object the model produced.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is a single entry in a session's conversation history.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`

	// ToolCalls is populated on assistant messages that request tool use.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool result message back to the call it answers.
	// Only populated when Role is RoleTool.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// NewMessage creates a message with the given role and content.
func NewMessage(role MessageRole, content string) *Message {
	return &Message{Role: role, Content: content}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) *Message {
	return NewMessage(RoleAssistant, content)
}

// NewToolMessage creates a tool result message answering the given call.
func NewToolMessage(toolCallID, content string) *Message {
	return &Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// HasToolCalls returns true if this message requests tool use.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// CloneHistory returns a shallow copy of a message slice. Messages themselves
// are treated as immutable once appended to a history.
func CloneHistory(history []*Message) []*Message {
	out := make([]*Message, len(history))
	copy(out, history)
	return out
}

// ModelInfo describes the LLM model behind a provider.
type ModelInfo struct {
	Name              string
	Provider          string
	SupportsStreaming bool
	MaxTokens         int
	Metadata          map[string]interface{}
}
