// Package llm provides abstractions for LLM provider integration.
//
// Providers handle API communication with LLM services and return simple
// StreamChunk instances. This design keeps providers focused on LLM
// concerns without coupling them to agent-level events or orchestration.
//
// The agent layer is responsible for:
// - Converting StreamChunks to AgentEvents
// - Emitting thinking, tool, and status events
// - Managing conversation state and history
package llm

import (
	"context"

	"github.com/entrhq/aide/pkg/types"
)

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCallDelta is a streamed fragment of a tool call the model is
// composing. The first fragment for an index carries the call ID and
// name; later fragments append to the arguments.
type ToolCallDelta struct {
	Index          int
	ID             string
	Name           string
	ArgumentsDelta string
}

// StreamChunk is one fragment of a streaming completion.
type StreamChunk struct {
	// Role is set on the first chunk of a response (e.g., "assistant").
	Role string

	// Content is a fragment of the reply text.
	Content string

	// Thinking is a fragment of the model's reasoning, for providers
	// that surface it separately.
	Thinking string

	// ToolCalls holds tool call fragments carried by this chunk.
	ToolCalls []ToolCallDelta

	// Finished marks the final chunk of the response.
	Finished bool

	// Error is set on stream-time failures.
	Error error
}

// IsError returns true if this chunk carries a stream error.
func (c *StreamChunk) IsError() bool {
	return c.Error != nil
}

// Provider defines the interface for LLM integrations.
type Provider interface {
	// StreamCompletion sends messages to the LLM and streams back
	// response chunks. The given tools are offered to the model for
	// function calling; pass nil for a plain completion.
	//
	// The returned channel is closed when streaming completes or an
	// error occurs; callers should read until it is closed. Stream-time
	// errors are delivered as chunks with Error set. An error return
	// means streaming could not be initiated at all.
	StreamCompletion(ctx context.Context, messages []*types.Message, tools []ToolDefinition) (<-chan *StreamChunk, error)

	// Complete sends messages to the LLM and returns the full response.
	// This is a convenience wrapper around StreamCompletion for
	// non-streaming use cases without tools.
	Complete(ctx context.Context, messages []*types.Message) (*types.Message, error)

	// GetModelInfo returns information about the LLM model being used.
	GetModelInfo() *types.ModelInfo

	// GetModel returns the model name being used.
	GetModel() string

	// GetBaseURL returns the base URL being used for API requests.
	GetBaseURL() string
}
