package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/aide/pkg/assistant/approval"
	"github.com/entrhq/aide/pkg/assistant/tools"
	"github.com/entrhq/aide/pkg/llm"
	"github.com/entrhq/aide/pkg/memory"
	"github.com/entrhq/aide/pkg/types"
)

// scriptedProvider replays canned chunk sequences, one per completion call.
type scriptedProvider struct {
	responses [][]*llm.StreamChunk
	call      int
}

func (p *scriptedProvider) StreamCompletion(ctx context.Context, messages []*types.Message, toolDefs []llm.ToolDefinition) (<-chan *llm.StreamChunk, error) {
	var chunks []*llm.StreamChunk
	if p.call < len(p.responses) {
		chunks = p.responses[p.call]
	}
	p.call++

	ch := make(chan *llm.StreamChunk, len(chunks)+1)
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	return types.NewAssistantMessage("ok"), nil
}

func (p *scriptedProvider) GetModelInfo() *types.ModelInfo { return &types.ModelInfo{Name: "scripted"} }
func (p *scriptedProvider) GetModel() string               { return "scripted" }
func (p *scriptedProvider) GetBaseURL() string             { return "" }

func textResponse(text string) []*llm.StreamChunk {
	return []*llm.StreamChunk{
		{Role: "assistant", Content: text},
		{Finished: true},
	}
}

func toolCallResponse(callID, name, args string) []*llm.StreamChunk {
	return []*llm.StreamChunk{
		{Role: "assistant"},
		{ToolCalls: []llm.ToolCallDelta{{Index: 0, ID: callID, Name: name}}},
		{ToolCalls: []llm.ToolCallDelta{{Index: 0, ArgumentsDelta: args}}},
		{Finished: true},
	}
}

type runnerFixture struct {
	runner *Runner
	facade *memory.Facade
	deps   *tools.Deps
	events []*types.AgentEvent
	emit   EmitFunc
}

func newRunnerFixture(t *testing.T, provider llm.Provider) *runnerFixture {
	t.Helper()
	store, err := memory.NewFileStore(t.TempDir())
	require.NoError(t, err)
	facade := memory.NewFacade(store)

	chain := tools.NewResolverChain("tester")
	toolset := tools.NewMemoryToolset(facade, tools.WithFixedUserID("tester"))
	registry := tools.NewRegistry()
	registry.RegisterAll(toolset.Tools())
	registry.RegisterAll(toolset.PlannerTools())

	f := &runnerFixture{
		runner: NewRunner(provider, registry, facade, WithResolverChain(chain)),
		facade: facade,
		deps:   &tools.Deps{SessionID: "sess-1"},
	}
	f.emit = func(ev *types.AgentEvent) { f.events = append(f.events, ev) }
	return f
}

func (f *runnerFixture) eventTypes() []types.AgentEventType {
	out := make([]types.AgentEventType, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestRunTurnPlainText(t *testing.T) {
	provider := &scriptedProvider{responses: [][]*llm.StreamChunk{
		textResponse("hello there"),
	}}
	f := newRunnerFixture(t, provider)

	result, err := f.runner.RunTurn(context.Background(), f.deps, nil, nil, "hi", f.emit)
	require.NoError(t, err)
	assert.False(t, result.Paused)
	assert.Equal(t, "hello there", result.FinalText)

	require.Len(t, result.History, 3)
	assert.Equal(t, types.RoleSystem, result.History[0].Role)
	assert.Equal(t, types.RoleUser, result.History[1].Role)
	assert.Equal(t, types.RoleAssistant, result.History[2].Role)

	assert.Contains(t, f.eventTypes(), types.EventTypeTextDelta)
	assert.Contains(t, f.eventTypes(), types.EventTypeResponse)
}

func TestRunTurnDoesNotMutateInputHistory(t *testing.T) {
	provider := &scriptedProvider{responses: [][]*llm.StreamChunk{
		textResponse("second reply"),
	}}
	f := newRunnerFixture(t, provider)

	history := []*types.Message{
		types.NewSystemMessage("system"),
		types.NewUserMessage("first"),
		types.NewAssistantMessage("first reply"),
	}
	result, err := f.runner.RunTurn(context.Background(), f.deps, nil, history, "second", f.emit)
	require.NoError(t, err)
	assert.Len(t, history, 3, "caller's slice stays untouched")
	assert.Len(t, result.History, 5)
}

func TestRunTurnExecutesAutoApprovedTool(t *testing.T) {
	provider := &scriptedProvider{responses: [][]*llm.StreamChunk{
		toolCallResponse("call_1", "read_memory", "{}"),
		textResponse("you have no todos"),
	}}
	f := newRunnerFixture(t, provider)
	approvals := approval.NewManager([]string{"read_memory"})

	result, err := f.runner.RunTurn(context.Background(), f.deps, approvals, nil, "what's on my plate?", f.emit)
	require.NoError(t, err)
	assert.False(t, result.Paused)
	assert.Equal(t, "you have no todos", result.FinalText)
	assert.False(t, approvals.HasPending())

	// system, user, assistant w/ call, tool result, assistant reply
	require.Len(t, result.History, 5)
	assert.Equal(t, types.RoleTool, result.History[3].Role)
	assert.Equal(t, "call_1", result.History[3].ToolCallID)

	eventTypes := f.eventTypes()
	assert.Contains(t, eventTypes, types.EventTypeToolCallStart)
	assert.Contains(t, eventTypes, types.EventTypeToolStart)
	assert.Contains(t, eventTypes, types.EventTypeToolOutput)
}

func TestRunTurnEmitsTodosUpdateAfterMutation(t *testing.T) {
	provider := &scriptedProvider{responses: [][]*llm.StreamChunk{
		toolCallResponse("call_1", "add_todo", `{"content":"buy milk"}`),
		textResponse("added"),
	}}
	f := newRunnerFixture(t, provider)

	result, err := f.runner.RunTurn(context.Background(), f.deps, nil, nil, "remind me to buy milk", f.emit)
	require.NoError(t, err)
	assert.Equal(t, "added", result.FinalText)

	var snapshot *types.AgentEvent
	for _, ev := range f.events {
		if ev.Type == types.EventTypeTodosUpdate {
			snapshot = ev
		}
	}
	require.NotNil(t, snapshot, "mutating tools push a todo snapshot")

	var todos memory.TodoLists
	require.NoError(t, json.Unmarshal(snapshot.Todos, &todos))
	require.Len(t, todos.Pending, 1)
	assert.Equal(t, "buy milk", todos.Pending[0].Content)
}

func TestRunTurnPausesForApproval(t *testing.T) {
	provider := &scriptedProvider{responses: [][]*llm.StreamChunk{
		toolCallResponse("call_1", "remove_todo", `{"todo_id":"todo_1"}`),
	}}
	f := newRunnerFixture(t, provider)
	approvals := approval.NewManager([]string{"read_memory"})

	result, err := f.runner.RunTurn(context.Background(), f.deps, approvals, nil, "drop that todo", f.emit)
	require.NoError(t, err)
	assert.True(t, result.Paused)
	assert.Empty(t, result.FinalText)
	require.True(t, approvals.HasPending())

	pending := approvals.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "remove_todo", pending[0].ToolName)
	assert.Equal(t, "call_1", pending[0].ToolCallID)

	// The paused history ends with the assistant's tool call, unexecuted.
	last := result.History[len(result.History)-1]
	assert.Equal(t, types.RoleAssistant, last.Role)
	require.Len(t, last.ToolCalls, 1)
}

func TestResumeTurnApproved(t *testing.T) {
	provider := &scriptedProvider{responses: [][]*llm.StreamChunk{
		toolCallResponse("call_1", "add_todo", `{"content":"call mom"}`),
		textResponse("done, it's on the list"),
	}}
	f := newRunnerFixture(t, provider)
	approvals := approval.NewManager(nil)

	paused, err := f.runner.RunTurn(context.Background(), f.deps, approvals, nil, "add a todo", f.emit)
	require.NoError(t, err)
	require.True(t, paused.Paused)
	pending := approvals.Pending()
	require.Len(t, pending, 1)

	result, err := f.runner.ResumeTurn(context.Background(), f.deps, approvals, paused.History,
		map[string]bool{pending[0].ApprovalID: true}, f.emit)
	require.NoError(t, err)
	assert.False(t, result.Paused)
	assert.Equal(t, "done, it's on the list", result.FinalText)

	doc, err := f.facade.Read("tester")
	require.NoError(t, err)
	require.Len(t, doc.Todos.Pending, 1)
	assert.Equal(t, "call mom", doc.Todos.Pending[0].Content)
}

func TestResumeTurnDenied(t *testing.T) {
	provider := &scriptedProvider{responses: [][]*llm.StreamChunk{
		toolCallResponse("call_1", "remove_todo", `{"todo_id":"todo_1"}`),
		textResponse("okay, leaving it alone"),
	}}
	f := newRunnerFixture(t, provider)
	approvals := approval.NewManager(nil)

	paused, err := f.runner.RunTurn(context.Background(), f.deps, approvals, nil, "remove it", f.emit)
	require.NoError(t, err)
	require.True(t, paused.Paused)

	// Empty decision frame denies everything outstanding.
	result, err := f.runner.ResumeTurn(context.Background(), f.deps, approvals, paused.History, nil, f.emit)
	require.NoError(t, err)
	assert.Equal(t, "okay, leaving it alone", result.FinalText)
	assert.False(t, approvals.HasPending())

	var toolMsg *types.Message
	for _, msg := range result.History {
		if msg.Role == types.RoleTool && msg.ToolCallID == "call_1" {
			toolMsg = msg
		}
	}
	require.NotNil(t, toolMsg)
	assert.Contains(t, toolMsg.Content, "denied")
}

func TestResumeTurnWithoutPending(t *testing.T) {
	provider := &scriptedProvider{}
	f := newRunnerFixture(t, provider)
	approvals := approval.NewManager(nil)

	_, err := f.runner.ResumeTurn(context.Background(), f.deps, approvals, nil, nil, f.emit)
	assert.Error(t, err)
}

func TestRunTurnUnknownTool(t *testing.T) {
	provider := &scriptedProvider{responses: [][]*llm.StreamChunk{
		toolCallResponse("call_1", "launch_rocket", "{}"),
		textResponse("sorry, I can't do that"),
	}}
	f := newRunnerFixture(t, provider)

	result, err := f.runner.RunTurn(context.Background(), f.deps, nil, nil, "launch", f.emit)
	require.NoError(t, err)
	assert.Equal(t, "sorry, I can't do that", result.FinalText)

	var toolMsg *types.Message
	for _, msg := range result.History {
		if msg.Role == types.RoleTool {
			toolMsg = msg
		}
	}
	require.NotNil(t, toolMsg)
	assert.Contains(t, toolMsg.Content, "Unknown tool")
}

func TestRunTurnIterationBound(t *testing.T) {
	// A model that calls tools forever must not loop forever.
	provider := &scriptedProvider{responses: [][]*llm.StreamChunk{
		toolCallResponse("call_1", "read_memory", "{}"),
		toolCallResponse("call_2", "read_memory", "{}"),
		toolCallResponse("call_3", "read_memory", "{}"),
	}}
	f := newRunnerFixture(t, provider)
	f.runner.maxIterations = 2

	_, err := f.runner.RunTurn(context.Background(), f.deps, nil, nil, "loop", f.emit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iterations")
}

func TestSystemPromptMentionsCurrentTime(t *testing.T) {
	prompt := SystemPrompt(mustParse(t, "2026-09-01 10:00"))
	assert.Contains(t, prompt, "2026-09-01 10:00")
	assert.Contains(t, prompt, "Tuesday")
	assert.Contains(t, prompt, "read_memory")
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := memory.ParseDateTime(s)
	require.NoError(t, err)
	return v
}
