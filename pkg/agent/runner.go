// Package agent orchestrates conversation turns: it streams model output,
// dispatches tool calls against the registry, pauses for approvals, and
// emits the events the streaming protocol forwards to clients.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/aide/pkg/assistant/approval"
	"github.com/entrhq/aide/pkg/assistant/tools"
	"github.com/entrhq/aide/pkg/llm"
	"github.com/entrhq/aide/pkg/logging"
	"github.com/entrhq/aide/pkg/memory"
	"github.com/entrhq/aide/pkg/types"
)

// DefaultMaxIterations bounds how many model round trips one turn may take.
const DefaultMaxIterations = 8

// mutatingTools are the tools whose execution changes the todo lists, so a
// fresh snapshot is pushed to the client after they run.
var mutatingTools = map[string]bool{
	"add_todo":              true,
	"complete_todo":         true,
	"remove_todo":           true,
	"schedule_todo":         true,
	"auto_schedule_todo":    true,
	"migrate_overdue_todos": true,
}

// EmitFunc receives events as a turn progresses.
type EmitFunc func(*types.AgentEvent)

// TurnResult is the outcome of running or resuming a turn.
type TurnResult struct {
	// History is the full conversation after the turn, including the
	// system prompt, tool calls, and tool results.
	History []*types.Message

	// FinalText is the assistant's reply text. Empty when paused.
	FinalText string

	// Paused reports that the turn stopped awaiting tool approvals.
	Paused bool
}

// Runner drives the agent loop for one turn at a time. A single runner is
// shared across sessions; all per-session state arrives via arguments.
type Runner struct {
	provider      llm.Provider
	registry      *tools.Registry
	facade        *memory.Facade
	chain         []tools.UserResolver
	log           *logging.Logger
	maxIterations int
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxIterations overrides the model round trip bound.
func WithMaxIterations(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// WithResolverChain sets the identity chain used for todo snapshots. It
// should match the chain the toolset resolves with.
func WithResolverChain(chain []tools.UserResolver) Option {
	return func(r *Runner) {
		r.chain = chain
	}
}

// NewRunner creates a runner over the given provider, tool registry, and
// memory facade.
func NewRunner(provider llm.Provider, registry *tools.Registry, facade *memory.Facade, opts ...Option) *Runner {
	log, _ := logging.NewLogger("agent")
	r := &Runner{
		provider:      provider,
		registry:      registry,
		facade:        facade,
		chain:         tools.NewResolverChain(""),
		log:           log,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunTurn processes one user message. The given history is not modified;
// the result carries the extended history to persist. When the result is
// paused, the pending requests are registered on the approval manager and
// the turn must be finished with ResumeTurn.
func (r *Runner) RunTurn(ctx context.Context, deps *tools.Deps, approvals *approval.Manager, history []*types.Message, userMessage string, emit EmitFunc) (*TurnResult, error) {
	if emit == nil {
		emit = func(*types.AgentEvent) {}
	}
	history = types.CloneHistory(history)
	if len(history) == 0 {
		history = append(history, types.NewSystemMessage(SystemPrompt(time.Now())))
	}
	history = append(history, types.NewUserMessage(userMessage))
	return r.loop(ctx, deps, approvals, history, emit)
}

// ResumeTurn finishes a paused turn with the user's approval decisions.
// Denied calls are answered to the model as refused tool results; approved
// calls execute normally, then the loop continues.
func (r *Runner) ResumeTurn(ctx context.Context, deps *tools.Deps, approvals *approval.Manager, history []*types.Message, decisions map[string]bool, emit EmitFunc) (*TurnResult, error) {
	if emit == nil {
		emit = func(*types.AgentEvent) {}
	}
	history = types.CloneHistory(history)

	approved, denied := approvals.Resolve(decisions)
	if len(approved) == 0 && len(denied) == 0 {
		return nil, fmt.Errorf("agent: no pending approvals to resume")
	}
	approvedByCall := make(map[string]*approval.Pending, len(approved))
	for _, p := range approved {
		approvedByCall[p.ToolCallID] = p
	}
	deniedByCall := make(map[string]*approval.Pending, len(denied))
	for _, p := range denied {
		deniedByCall[p.ToolCallID] = p
	}

	assistant := lastAssistantWithToolCalls(history)
	if assistant == nil {
		return nil, fmt.Errorf("agent: resume without a pending tool call in history")
	}

	mutated := false
	for _, tc := range assistant.ToolCalls {
		if p, ok := approvedByCall[tc.ID]; ok {
			history = r.execCall(ctx, deps, p.ToolCallID, p.ToolName, p.Arguments, history, emit, &mutated)
			continue
		}
		if _, ok := deniedByCall[tc.ID]; ok {
			emit(types.NewToolOutputEvent(tc.ID, tc.Name, "Denied by user."))
			history = append(history, types.NewToolMessage(tc.ID, "The user denied this tool execution. Do not retry it; acknowledge and move on."))
		}
	}
	if mutated {
		r.emitTodos(ctx, deps, emit)
	}

	return r.loop(ctx, deps, approvals, history, emit)
}

// streamedCall accumulates one tool call across stream fragments.
type streamedCall struct {
	id        string
	name      string
	args      strings.Builder
	announced bool
}

// loop runs model round trips until the model answers without tool calls,
// a pause is needed, or the iteration bound is hit.
func (r *Runner) loop(ctx context.Context, deps *tools.Deps, approvals *approval.Manager, history []*types.Message, emit EmitFunc) (*TurnResult, error) {
	for iteration := 0; iteration < r.maxIterations; iteration++ {
		emit(types.NewStatusEvent("thinking"))

		stream, err := r.provider.StreamCompletion(ctx, history, r.registry.Definitions())
		if err != nil {
			return nil, fmt.Errorf("agent: start completion: %w", err)
		}

		var text strings.Builder
		calls := make(map[int]*streamedCall)
		var order []int

		for chunk := range stream {
			if chunk.IsError() {
				return nil, fmt.Errorf("agent: stream: %w", chunk.Error)
			}
			if chunk.Thinking != "" {
				emit(types.NewThinkingDeltaEvent(chunk.Thinking))
			}
			if chunk.Content != "" {
				text.WriteString(chunk.Content)
				emit(types.NewTextDeltaEvent(chunk.Content))
			}
			for _, delta := range chunk.ToolCalls {
				call, ok := calls[delta.Index]
				if !ok {
					call = &streamedCall{}
					calls[delta.Index] = call
					order = append(order, delta.Index)
				}
				if delta.ID != "" {
					call.id = delta.ID
				}
				if delta.Name != "" {
					call.name += delta.Name
				}
				if !call.announced && call.name != "" {
					emit(types.NewToolCallStartEvent(call.id, call.name))
					call.announced = true
				}
				if delta.ArgumentsDelta != "" {
					call.args.WriteString(delta.ArgumentsDelta)
					emit(types.NewToolArgsDeltaEvent(call.id, call.name, delta.ArgumentsDelta))
				}
			}
		}

		assistant := types.NewAssistantMessage(text.String())
		for _, idx := range order {
			call := calls[idx]
			assistant.ToolCalls = append(assistant.ToolCalls, types.ToolCall{
				ID:        call.id,
				Name:      call.name,
				Arguments: json.RawMessage(call.args.String()),
			})
		}
		history = append(history, assistant)

		if len(assistant.ToolCalls) == 0 {
			emit(types.NewResponseEvent(assistant.Content))
			return &TurnResult{History: history, FinalText: assistant.Content}, nil
		}

		mutated := false
		paused := false
		for _, tc := range assistant.ToolCalls {
			if approvals != nil && !approvals.IsAutoApproved(tc.Name) {
				approvals.Request(tc.ID, tc.Name, tc.Arguments)
				paused = true
				continue
			}
			history = r.execCall(ctx, deps, tc.ID, tc.Name, tc.Arguments, history, emit, &mutated)
		}
		if mutated {
			r.emitTodos(ctx, deps, emit)
		}
		if paused {
			return &TurnResult{History: history, Paused: true}, nil
		}
	}

	return nil, fmt.Errorf("agent: turn exceeded %d iterations without completing", r.maxIterations)
}

// execCall runs one tool call and appends its result to the history. Tool
// failures are fed back to the model as tool output rather than aborting
// the turn.
func (r *Runner) execCall(ctx context.Context, deps *tools.Deps, callID, name string, args json.RawMessage, history []*types.Message, emit EmitFunc, mutated *bool) []*types.Message {
	emit(types.NewToolStartEvent(callID, name, args))

	tool, ok := r.registry.Get(name)
	if !ok {
		output := fmt.Sprintf("Unknown tool %q.", name)
		emit(types.NewToolOutputEvent(callID, name, output))
		return append(history, types.NewToolMessage(callID, output))
	}

	output, err := tool.Execute(ctx, deps, args)
	if err != nil {
		r.log.Errorf("tool %s failed: %v", name, err)
		output = fmt.Sprintf("Tool %s failed: %v", name, err)
	} else if mutatingTools[name] {
		*mutated = true
	}

	emit(types.NewToolOutputEvent(callID, name, output))
	return append(history, types.NewToolMessage(callID, output))
}

// emitTodos pushes a fresh todo snapshot after a mutating tool ran.
func (r *Runner) emitTodos(ctx context.Context, deps *tools.Deps, emit EmitFunc) {
	userID := tools.ResolveUserID(ctx, deps, r.chain)
	doc, err := r.facade.Read(userID)
	if err != nil {
		r.log.Warnf("todo snapshot for %s failed: %v", userID, err)
		return
	}
	snapshot, err := json.Marshal(doc.Todos)
	if err != nil {
		return
	}
	emit(types.NewTodosUpdateEvent(snapshot))
}

// lastAssistantWithToolCalls finds the most recent assistant message that
// issued tool calls.
func lastAssistantWithToolCalls(history []*types.Message) *types.Message {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleAssistant && history[i].HasToolCalls() {
			return history[i]
		}
	}
	return nil
}
