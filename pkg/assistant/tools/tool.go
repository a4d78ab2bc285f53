// Package tools defines the assistant's tool surface: the Tool interface,
// the registry the agent draws from, and the identity resolution that maps
// a tool invocation onto a memory user.
package tools

import (
	"context"
	"encoding/json"
)

// Tool represents a capability the agent can use during a turn. Tools are
// invoked by the LLM through JSON-formatted tool calls.
type Tool interface {
	// Name returns the unique identifier for this tool (e.g., "add_todo")
	Name() string

	// Description returns a human-readable description of what this tool does
	Description() string

	// Schema returns the JSON schema for this tool's input parameters
	Schema() map[string]interface{}

	// Execute runs the tool with the given JSON arguments and returns a
	// reply string for the model. Domain-level failures (unknown IDs,
	// schedule conflicts, unparsable times) come back as reply text, not
	// errors; an error return means the tool itself broke.
	Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error)

	// IsLoopBreaking indicates whether this tool should terminate the
	// agent loop after executing.
	IsLoopBreaking() bool
}

// Deps carries per-session context into tool executions.
type Deps struct {
	// UserID is the session's resolved user, when known.
	UserID string

	// SessionID identifies the session the invocation came from.
	SessionID string

	// Metadata holds free-form request metadata consulted during
	// identity resolution.
	Metadata map[string]string

	// Workspace is the session's working directory, when provisioned.
	Workspace string
}

// BaseToolSchema creates a common JSON schema structure for a tool
// with the given properties and required fields
func BaseToolSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
