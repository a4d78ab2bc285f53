package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/aide/pkg/memory"
)

// Tool name constants for the memory toolset.
const (
	readMemoryToolName              = "read_memory"
	updatePreferenceToolName        = "update_preference"
	addTodoToolName                 = "add_todo"
	completeTodoToolName            = "complete_todo"
	removeTodoToolName              = "remove_todo"
	scheduleTodoToolName            = "schedule_todo"
	addMemoryToolName               = "add_memory"
	learnHabitToolName              = "learn_habit"
	addRegularScheduleToolName      = "add_regular_schedule"
	addOneTimeEventToolName         = "add_one_time_event"
	addIdeaToolName                 = "add_idea"
	learnSchedulePreferenceToolName = "learn_schedule_preference"
)

const (
	timeFormatHint            = "YYYY-MM-DD HH:MM"
	unparsableTimeReplyFormat = "I could not understand the time %q. Please give it as %s."
)

// MemoryToolset builds the memory tools over a shared facade and identity
// resolver chain. Every tool resolves its target user the same way, so a
// single toolset serves both personal (pinned owner) and multi-user modes.
type MemoryToolset struct {
	facade *memory.Facade
	chain  []UserResolver
}

// ToolsetOption configures a MemoryToolset.
type ToolsetOption func(*MemoryToolset)

// WithFixedUserID pins every tool invocation to the given user, ahead of
// all other identity sources.
func WithFixedUserID(userID string) ToolsetOption {
	return func(ts *MemoryToolset) {
		ts.chain = NewResolverChain(userID)
	}
}

// NewMemoryToolset creates the toolset over the given facade.
func NewMemoryToolset(facade *memory.Facade, opts ...ToolsetOption) *MemoryToolset {
	ts := &MemoryToolset{
		facade: facade,
		chain:  NewResolverChain(""),
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Tools returns the memory tools in their canonical registration order.
func (ts *MemoryToolset) Tools() []Tool {
	return []Tool{
		&ReadMemoryTool{ts: ts},
		&UpdatePreferenceTool{ts: ts},
		&AddTodoTool{ts: ts},
		&CompleteTodoTool{ts: ts},
		&RemoveTodoTool{ts: ts},
		&ScheduleTodoTool{ts: ts},
		&AddMemoryTool{ts: ts},
		&LearnHabitTool{ts: ts},
		&AddRegularScheduleTool{ts: ts},
		&AddOneTimeEventTool{ts: ts},
		&AddIdeaTool{ts: ts},
		&LearnSchedulePreferenceTool{ts: ts},
	}
}

// user resolves the memory user for one invocation.
func (ts *MemoryToolset) user(ctx context.Context, deps *Deps) string {
	return ResolveUserID(ctx, deps, ts.chain)
}

// todoTarget extracts the content-or-ID argument shared by the todo
// mutation tools. The legacy todo_id key is still honored.
func todoTarget(arguments json.RawMessage, toolName string) (string, error) {
	var args struct {
		ContentOrID string `json:"content_or_id"`
		TodoID      string `json:"todo_id"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", toolName, err)
	}
	target := args.ContentOrID
	if target == "" {
		target = args.TodoID
	}
	if target == "" {
		return "", fmt.Errorf("content_or_id cannot be empty")
	}
	return target, nil
}

// ReadMemoryTool returns an overview of everything known about the user.
type ReadMemoryTool struct {
	ts *MemoryToolset
}

func (t *ReadMemoryTool) Name() string { return readMemoryToolName }

func (t *ReadMemoryTool) Description() string {
	return "Read the user's memory: preferences, todos across all lists, schedule, habits, " +
		"pending reminders and followups, ideas, and recent diary entries. " +
		"Call this before answering questions about the user's plans or past."
}

func (t *ReadMemoryTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"section": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"all", "preferences", "todos", "schedule", "habits", "reminders", "conversations", "ideas", "diary"},
				"description": "Limit the overview to one section. Defaults to everything.",
			},
		},
		nil,
	)
}

func (t *ReadMemoryTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Section string `json:"section"`
	}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", readMemoryToolName, err)
		}
	}
	doc, err := t.ts.facade.Read(t.ts.user(ctx, deps))
	if err != nil {
		return "", err
	}
	return formatOverview(doc, args.Section), nil
}

func (t *ReadMemoryTool) IsLoopBreaking() bool { return false }

// UpdatePreferenceTool stores a single user preference.
type UpdatePreferenceTool struct {
	ts *MemoryToolset
}

func (t *UpdatePreferenceTool) Name() string { return updatePreferenceToolName }

func (t *UpdatePreferenceTool) Description() string {
	return "Save or update a user preference, such as a dietary restriction, a preferred " +
		"working style, or a communication preference. Use a short snake_case key."
}

func (t *UpdatePreferenceTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Preference key in snake_case, e.g. \"preferred_meeting_time\".",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "The preference value.",
			},
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Optional category to group the preference under, e.g. \"diet\".",
			},
		},
		[]string{"key", "value"},
	)
}

func (t *UpdatePreferenceTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Key      string `json:"key"`
		Value    string `json:"value"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", updatePreferenceToolName, err)
	}
	if args.Key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	if err := t.ts.facade.UpdatePreference(t.ts.user(ctx, deps), args.Category, args.Key, args.Value); err != nil {
		return "", err
	}
	return fmt.Sprintf("Preference %q saved.", args.Key), nil
}

func (t *UpdatePreferenceTool) IsLoopBreaking() bool { return false }

// AddTodoTool creates a pending todo.
type AddTodoTool struct {
	ts *MemoryToolset
}

func (t *AddTodoTool) Name() string { return addTodoToolName }

func (t *AddTodoTool) Description() string {
	return "Add a new todo item to the user's pending list. " +
		"Priority defaults to medium when omitted."
}

func (t *AddTodoTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "What needs to be done.",
			},
			"priority": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"high", "medium", "low"},
				"description": "How important this todo is.",
			},
			"due_date": map[string]interface{}{
				"type":        "string",
				"description": "Optional due date, e.g. \"2026-09-15\".",
			},
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Optional category, e.g. \"work\", \"errands\".",
			},
			"estimated_duration": map[string]interface{}{
				"type":        "integer",
				"description": "Optional estimate of how many minutes this will take.",
			},
		},
		[]string{"content"},
	)
}

func (t *AddTodoTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Content           string `json:"content"`
		Priority          string `json:"priority"`
		DueDate           string `json:"due_date"`
		Category          string `json:"category"`
		EstimatedDuration int    `json:"estimated_duration"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", addTodoToolName, err)
	}
	if args.Content == "" {
		return "", fmt.Errorf("content cannot be empty")
	}
	todo, err := t.ts.facade.AddTodo(t.ts.user(ctx, deps), args.Content, args.Priority,
		memory.WithDueDate(args.DueDate),
		memory.WithTodoCategory(args.Category),
		memory.WithEstimatedMinutes(args.EstimatedDuration),
	)
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("Added todo %s (%s priority): %s", todo.ID, todo.Priority, todo.Content)
	if todo.DueDate != "" {
		reply += fmt.Sprintf(", due %s", todo.DueDate)
	}
	return reply, nil
}

func (t *AddTodoTool) IsLoopBreaking() bool { return false }

// CompleteTodoTool marks a todo as completed.
type CompleteTodoTool struct {
	ts *MemoryToolset
}

func (t *CompleteTodoTool) Name() string { return completeTodoToolName }

func (t *CompleteTodoTool) Description() string {
	return "Mark a todo as completed, named by its ID or by its content. " +
		"Works regardless of which list the todo is in."
}

func (t *CompleteTodoTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"content_or_id": map[string]interface{}{
				"type":        "string",
				"description": "The todo's ID, or enough of its content to identify it.",
			},
		},
		[]string{"content_or_id"},
	)
}

func (t *CompleteTodoTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	target, err := todoTarget(arguments, completeTodoToolName)
	if err != nil {
		return "", err
	}
	todo, err := t.ts.facade.CompleteTodo(t.ts.user(ctx, deps), target)
	if errors.Is(err, memory.ErrTodoNotFound) {
		return fmt.Sprintf("No todo matching %q was found.", target), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Completed todo %s: %s", todo.ID, todo.Content), nil
}

func (t *CompleteTodoTool) IsLoopBreaking() bool { return false }

// RemoveTodoTool deletes a todo.
type RemoveTodoTool struct {
	ts *MemoryToolset
}

func (t *RemoveTodoTool) Name() string { return removeTodoToolName }

func (t *RemoveTodoTool) Description() string {
	return "Remove a todo entirely, named by its ID or by its content. " +
		"Use complete_todo instead when the work was done."
}

func (t *RemoveTodoTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"content_or_id": map[string]interface{}{
				"type":        "string",
				"description": "The todo's ID, or enough of its content to identify it.",
			},
		},
		[]string{"content_or_id"},
	)
}

func (t *RemoveTodoTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	target, err := todoTarget(arguments, removeTodoToolName)
	if err != nil {
		return "", err
	}
	removed, found, err := t.ts.facade.RemoveTodo(t.ts.user(ctx, deps), target)
	if err != nil {
		return "", err
	}
	if !found {
		return fmt.Sprintf("No todo matching %q exists; nothing to remove.", target), nil
	}
	return fmt.Sprintf("Removed todo %s: %s", removed.ID, removed.Content), nil
}

func (t *RemoveTodoTool) IsLoopBreaking() bool { return false }

// ScheduleTodoTool assigns a time block to a todo.
type ScheduleTodoTool struct {
	ts *MemoryToolset
}

func (t *ScheduleTodoTool) Name() string { return scheduleTodoToolName }

func (t *ScheduleTodoTool) Description() string {
	return "Schedule a todo at a specific time. The block is checked against existing " +
		"scheduled todos and events; on conflict nothing is changed and the conflicts are " +
		"reported. Scheduling also creates a reminder before the start and a followup after " +
		"the end. Start time must be " + timeFormatHint + "."
}

func (t *ScheduleTodoTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"content_or_id": map[string]interface{}{
				"type":        "string",
				"description": "The todo's ID, or enough of its content to identify it.",
			},
			"start_time": map[string]interface{}{
				"type":        "string",
				"description": "When the block starts, as " + timeFormatHint + ".",
			},
			"duration": map[string]interface{}{
				"type":        "string",
				"description": "How long the block lasts, e.g. \"2小时\", \"30分钟\", \"90\", \"半天\". Defaults to one hour.",
			},
			"reminder_minutes": map[string]interface{}{
				"type":        "integer",
				"description": "Minutes before the start to remind. Defaults to 15.",
			},
		},
		[]string{"content_or_id", "start_time"},
	)
}

func (t *ScheduleTodoTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		ContentOrID     string `json:"content_or_id"`
		TodoID          string `json:"todo_id"`
		StartTime       string `json:"start_time"`
		Duration        string `json:"duration"`
		ReminderMinutes int    `json:"reminder_minutes"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", scheduleTodoToolName, err)
	}
	target := args.ContentOrID
	if target == "" {
		target = args.TodoID
	}
	if target == "" {
		return "", fmt.Errorf("content_or_id cannot be empty")
	}

	result, err := t.ts.facade.ScheduleTodo(t.ts.user(ctx, deps), target, args.StartTime, args.Duration, args.ReminderMinutes)
	if errors.Is(err, memory.ErrUnparsableTime) {
		return fmt.Sprintf(unparsableTimeReplyFormat, args.StartTime, timeFormatHint), nil
	}
	if errors.Is(err, memory.ErrTodoNotFound) {
		return fmt.Sprintf("No todo matching %q was found.", target), nil
	}
	if err != nil {
		return "", err
	}
	if !result.Scheduled() {
		return fmt.Sprintf("The time slot conflicts with: %s. Nothing was scheduled; pick another time or resolve the conflict first.",
			strings.Join(result.Conflicts, "; ")), nil
	}
	return fmt.Sprintf("Scheduled %q from %s to %s. A reminder is set for %s and a followup for %s.",
		result.Todo.Content,
		result.Todo.ScheduledTime.StartTime,
		result.Todo.ScheduledTime.EndTime,
		result.Reminder.RemindAt,
		result.Followup.DueAt), nil
}

func (t *ScheduleTodoTool) IsLoopBreaking() bool { return false }

// AddMemoryTool records a free-form diary note about the user.
type AddMemoryTool struct {
	ts *MemoryToolset
}

func (t *AddMemoryTool) Name() string { return addMemoryToolName }

func (t *AddMemoryTool) Description() string {
	return "Record a free-form note about the user in their diary, such as something they " +
		"mentioned, did, or felt. Use for facts that don't fit todos, schedule, or preferences."
}

func (t *AddMemoryTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"topic": map[string]interface{}{
				"type":        "string",
				"description": "Optional short topic, e.g. \"health\", \"family\".",
			},
			"summary": map[string]interface{}{
				"type":        "string",
				"description": "The note to remember.",
			},
		},
		[]string{"summary"},
	)
}

func (t *AddMemoryTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Topic   string `json:"topic"`
		Summary string `json:"summary"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", addMemoryToolName, err)
	}
	note := args.Summary
	if note == "" {
		note = args.Content
	}
	if note == "" {
		return "", fmt.Errorf("summary cannot be empty")
	}
	if args.Topic != "" {
		note = args.Topic + ": " + note
	}
	if _, err := t.ts.facade.AddDiaryEntry(t.ts.user(ctx, deps), note); err != nil {
		return "", err
	}
	return "Noted.", nil
}

func (t *AddMemoryTool) IsLoopBreaking() bool { return false }

// LearnHabitTool records a behavioral pattern of the user.
type LearnHabitTool struct {
	ts *MemoryToolset
}

func (t *LearnHabitTool) Name() string { return learnHabitToolName }

func (t *LearnHabitTool) Description() string {
	return "Record a habit or behavioral pattern of the user, e.g. \"goes to the gym on " +
		"Tuesday evenings\". Categorize it when a category is apparent."
}

func (t *LearnHabitTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The habit to record.",
			},
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Optional category, e.g. \"health\", \"work\", \"social\".",
			},
		},
		[]string{"content"},
	)
}

func (t *LearnHabitTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Content  string `json:"content"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", learnHabitToolName, err)
	}
	if args.Content == "" {
		return "", fmt.Errorf("content cannot be empty")
	}
	habit, err := t.ts.facade.LearnHabit(t.ts.user(ctx, deps), args.Content, args.Category)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Learned habit %s: %s", habit.ID, habit.Content), nil
}

func (t *LearnHabitTool) IsLoopBreaking() bool { return false }

// AddRegularScheduleTool records a repeating schedule entry.
type AddRegularScheduleTool struct {
	ts *MemoryToolset
}

func (t *AddRegularScheduleTool) Name() string { return addRegularScheduleToolName }

func (t *AddRegularScheduleTool) Description() string {
	return "Record a recurring schedule entry, e.g. a weekly meeting or a daily routine. " +
		"Give the time of day and the recurrence in plain words, e.g. \"every Monday\"."
}

func (t *AddRegularScheduleTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"title": map[string]interface{}{
				"type":        "string",
				"description": "What the recurring entry is.",
			},
			"time": map[string]interface{}{
				"type":        "string",
				"description": "Time of day it happens, e.g. \"10:00\".",
			},
			"frequency": map[string]interface{}{
				"type":        "string",
				"description": "How often it recurs, in plain words, e.g. \"every Monday\", \"daily\".",
			},
			"duration": map[string]interface{}{
				"type":        "integer",
				"description": "Optional length in minutes.",
			},
			"description": map[string]interface{}{
				"type":        "string",
				"description": "Optional details.",
			},
			"reminder_minutes": map[string]interface{}{
				"type":        "integer",
				"description": "Optional minutes before each occurrence to remind.",
			},
		},
		[]string{"title", "time", "frequency"},
	)
}

func (t *AddRegularScheduleTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Title           string `json:"title"`
		Time            string `json:"time"`
		Frequency       string `json:"frequency"`
		Duration        int    `json:"duration"`
		Description     string `json:"description"`
		ReminderMinutes int    `json:"reminder_minutes"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", addRegularScheduleToolName, err)
	}
	if args.Title == "" || args.Time == "" || args.Frequency == "" {
		return "", fmt.Errorf("title, time, and frequency cannot be empty")
	}
	event, err := t.ts.facade.AddRecurringEvent(t.ts.user(ctx, deps), memory.RecurringEvent{
		Name:            args.Title,
		Time:            args.Time,
		Frequency:       args.Frequency,
		DurationMinutes: args.Duration,
		Description:     args.Description,
		ReminderMinutes: args.ReminderMinutes,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added recurring schedule %s: %s at %s, %s", event.ID, event.Name, event.Time, event.Frequency), nil
}

func (t *AddRegularScheduleTool) IsLoopBreaking() bool { return false }

// AddOneTimeEventTool records a dated event.
type AddOneTimeEventTool struct {
	ts *MemoryToolset
}

func (t *AddOneTimeEventTool) Name() string { return addOneTimeEventToolName }

func (t *AddOneTimeEventTool) Description() string {
	return "Record a one-time event at a specific date and time, e.g. an appointment. " +
		"The event is conflict-checked against the existing schedule. " +
		"Times must be " + timeFormatHint + "; end time defaults to one hour after the start."
}

func (t *AddOneTimeEventTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "What the event is.",
			},
			"start_time": map[string]interface{}{
				"type":        "string",
				"description": "When it starts, as " + timeFormatHint + ".",
			},
			"end_time": map[string]interface{}{
				"type":        "string",
				"description": "Optional end, as " + timeFormatHint + ".",
			},
			"duration": map[string]interface{}{
				"type":        "string",
				"description": "Optional length, e.g. \"2小时\", \"90分钟\". Ignored when end_time is given.",
			},
			"description": map[string]interface{}{
				"type":        "string",
				"description": "Optional details.",
			},
			"location": map[string]interface{}{
				"type":        "string",
				"description": "Optional location.",
			},
			"reminder_minutes": map[string]interface{}{
				"type":        "integer",
				"description": "Optional minutes before the start to remind.",
			},
		},
		[]string{"name", "start_time"},
	)
}

func (t *AddOneTimeEventTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Name            string `json:"name"`
		StartTime       string `json:"start_time"`
		EndTime         string `json:"end_time"`
		Duration        string `json:"duration"`
		Description     string `json:"description"`
		Location        string `json:"location"`
		ReminderMinutes int    `json:"reminder_minutes"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", addOneTimeEventToolName, err)
	}
	if args.Name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	result, err := t.ts.facade.AddOneTimeEvent(t.ts.user(ctx, deps), memory.OneTimeEventInput{
		Name:            args.Name,
		StartTime:       args.StartTime,
		EndTime:         args.EndTime,
		Duration:        args.Duration,
		Description:     args.Description,
		Location:        args.Location,
		ReminderMinutes: args.ReminderMinutes,
	})
	if errors.Is(err, memory.ErrUnparsableTime) {
		return fmt.Sprintf(unparsableTimeReplyFormat, args.StartTime+" / "+args.EndTime, timeFormatHint), nil
	}
	if err != nil {
		return "", err
	}
	if len(result.Conflicts) > 0 {
		return fmt.Sprintf("The event conflicts with: %s. Nothing was added.",
			strings.Join(result.Conflicts, "; ")), nil
	}
	reply := fmt.Sprintf("Added event %s: %s from %s to %s",
		result.Event.ID, result.Event.Name, result.Event.StartTime, result.Event.EndTime)
	if result.Reminder != nil {
		reply += fmt.Sprintf(". A reminder is set for %s", result.Reminder.RemindAt)
	}
	return reply, nil
}

func (t *AddOneTimeEventTool) IsLoopBreaking() bool { return false }

// AddIdeaTool captures a free-form idea.
type AddIdeaTool struct {
	ts *MemoryToolset
}

func (t *AddIdeaTool) Name() string { return addIdeaToolName }

func (t *AddIdeaTool) Description() string {
	return "Capture an idea the user mentions, with optional category and tags for later search. " +
		"Date and time backdate the idea to when the user had it."
}

func (t *AddIdeaTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The idea.",
			},
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Optional category, e.g. \"product\", \"writing\".",
			},
			"tags": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Optional tags.",
			},
			"date": map[string]interface{}{
				"type":        "string",
				"description": "Optional date the idea occurred, e.g. \"2026-08-27\".",
			},
			"time": map[string]interface{}{
				"type":        "string",
				"description": "Optional time of day, e.g. \"14:30\". Only used with date.",
			},
		},
		[]string{"content"},
	)
}

func (t *AddIdeaTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Content  string   `json:"content"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
		Date     string   `json:"date"`
		Time     string   `json:"time"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", addIdeaToolName, err)
	}
	if args.Content == "" {
		return "", fmt.Errorf("content cannot be empty")
	}
	notedAt := args.Date
	if notedAt != "" && args.Time != "" {
		notedAt += " " + args.Time
	}
	idea, err := t.ts.facade.AddIdea(t.ts.user(ctx, deps), args.Content, args.Category, args.Tags, notedAt)
	if errors.Is(err, memory.ErrUnparsableTime) {
		return fmt.Sprintf(unparsableTimeReplyFormat, notedAt, timeFormatHint), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Captured idea %s: %s", idea.ID, idea.Content), nil
}

func (t *AddIdeaTool) IsLoopBreaking() bool { return false }

// LearnSchedulePreferenceTool records a scheduling preference with a
// confidence score.
type LearnSchedulePreferenceTool struct {
	ts *MemoryToolset
}

func (t *LearnSchedulePreferenceTool) Name() string { return learnSchedulePreferenceToolName }

func (t *LearnSchedulePreferenceTool) Description() string {
	return "Record a scheduling preference you inferred from the conversation, e.g. that the " +
		"user prefers deep work in the morning. Confidence reflects how sure you are (0 to 1)."
}

func (t *LearnSchedulePreferenceTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"preference_type": map[string]interface{}{
				"type":        "string",
				"description": "What kind of preference this is, in snake_case, e.g. \"focus_time\".",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "The preference itself.",
			},
			"confidence": map[string]interface{}{
				"type":        "number",
				"description": "How confident you are, between 0 and 1.",
			},
		},
		[]string{"preference_type", "value"},
	)
}

func (t *LearnSchedulePreferenceTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		PreferenceType string  `json:"preference_type"`
		Value          string  `json:"value"`
		Confidence     float64 `json:"confidence"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", learnSchedulePreferenceToolName, err)
	}
	if args.PreferenceType == "" || args.Value == "" {
		return "", fmt.Errorf("preference_type and value cannot be empty")
	}
	if args.Confidence <= 0 || args.Confidence > 1 {
		args.Confidence = 0.5
	}
	if err := t.ts.facade.LearnSchedulePreference(t.ts.user(ctx, deps), args.PreferenceType, args.Value, args.Confidence); err != nil {
		return "", err
	}
	return fmt.Sprintf("Learned schedule preference %s = %s (confidence %.2f)", args.PreferenceType, args.Value, args.Confidence), nil
}

func (t *LearnSchedulePreferenceTool) IsLoopBreaking() bool { return false }

// Bounds on the overview digest. The digest is a lossy projection for
// prompt injection, never a full serialization of the document.
const (
	overviewTodoLimit         = 5
	overviewHabitLimit        = 5
	overviewScheduleLimit     = 5
	overviewConversationLimit = 3
	overviewDiaryLimit        = 5
)

// formatOverview renders a memory document as readable text for the
// model. A non-empty section other than "all" limits the output to that
// part of the document. Each section is bounded: up to 5 active todos,
// 5 habits per category, 5 entries per schedule kind, and the 3 newest
// conversations.
func formatOverview(doc *memory.Document, section string) string {
	var b strings.Builder

	want := func(name string) bool {
		return section == "" || section == "all" || section == name
	}

	b.WriteString("# User Memory\n")

	if want("preferences") {
		if len(doc.BasicInfo) > 0 {
			b.WriteString("\n## Profile\n")
			for field, value := range doc.BasicInfo {
				fmt.Fprintf(&b, "- %s: %s\n", field, value)
			}
		}
		if len(doc.Preferences) > 0 {
			b.WriteString("\n## Preferences\n")
			for key, value := range doc.Preferences {
				fmt.Fprintf(&b, "- %s: %v\n", key, value)
			}
		}
	}

	if want("todos") {
		b.WriteString("\n## Todos\n")
		remaining := overviewTodoLimit
		writeTodoSection(&b, "Pending", doc.Todos.Pending, &remaining)
		writeTodoSection(&b, "In progress", doc.Todos.InProgress, &remaining)
		writeTodoSection(&b, "Scheduled", doc.Todos.Scheduled, &remaining)
		fmt.Fprintf(&b, "Completed: %d\n", len(doc.Todos.Completed))
	}

	if want("schedule") && (len(doc.Schedule.Recurring) > 0 || len(doc.Schedule.OneTime) > 0) {
		b.WriteString("\n## Schedule\n")
		for _, ev := range capRecurring(doc.Schedule.Recurring, overviewScheduleLimit) {
			fmt.Fprintf(&b, "- [%s] %s at %s, %s\n", ev.ID, ev.Name, ev.Time, ev.Frequency)
		}
		for _, ev := range capOneTime(doc.Schedule.OneTime, overviewScheduleLimit) {
			line := fmt.Sprintf("- [%s] %s: %s - %s", ev.ID, ev.Name, ev.StartTime, ev.EndTime)
			if ev.Location != "" {
				line += " @ " + ev.Location
			}
			fmt.Fprintln(&b, line)
		}
	}

	if want("habits") && len(doc.Habits) > 0 {
		b.WriteString("\n## Habits\n")
		perCategory := make(map[string]int)
		for _, h := range doc.Habits {
			if perCategory[h.Category] >= overviewHabitLimit {
				continue
			}
			perCategory[h.Category]++
			if h.Category != "" {
				fmt.Fprintf(&b, "- [%s] %s (%s)\n", h.ID, h.Content, h.Category)
			} else {
				fmt.Fprintf(&b, "- [%s] %s\n", h.ID, h.Content)
			}
		}
	}

	if want("reminders") {
		pendingReminders := 0
		for _, r := range doc.Reminders {
			if r.Status == memory.StatusPending {
				pendingReminders++
			}
		}
		pendingFollowups := 0
		for _, fu := range doc.Followups {
			if fu.Status == memory.StatusPending {
				pendingFollowups++
			}
		}
		if pendingReminders > 0 || pendingFollowups > 0 {
			fmt.Fprintf(&b, "\nPending reminders: %d, pending followups: %d\n", pendingReminders, pendingFollowups)
		}
	}

	if want("conversations") && len(doc.Conversations) > 0 {
		b.WriteString("\n## Recent conversations\n")
		limit := overviewConversationLimit
		if len(doc.Conversations) < limit {
			limit = len(doc.Conversations)
		}
		for _, entry := range doc.Conversations[:limit] {
			fmt.Fprintf(&b, "- %s: %s -> %s\n", entry.Timestamp, entry.UserMessage, entry.AssistantReply)
		}
	}

	if want("ideas") && len(doc.Ideas) > 0 {
		b.WriteString("\n## Ideas\n")
		for _, idea := range doc.Ideas {
			fmt.Fprintf(&b, "- [%s] %s\n", idea.ID, idea.Content)
		}
	}

	if want("diary") && len(doc.Diary) > 0 {
		b.WriteString("\n## Recent diary\n")
		limit := overviewDiaryLimit
		if len(doc.Diary) < limit {
			limit = len(doc.Diary)
		}
		for _, entry := range doc.Diary[:limit] {
			fmt.Fprintf(&b, "- %s: %s\n", entry.Timestamp, entry.Content)
		}
	}

	return b.String()
}

// writeTodoSection renders one bucket. The heading always carries the
// full count; remaining bounds how many items are listed across the
// active buckets together.
func writeTodoSection(b *strings.Builder, title string, todos []memory.Todo, remaining *int) {
	fmt.Fprintf(b, "%s (%d):\n", title, len(todos))
	for _, todo := range todos {
		if *remaining <= 0 {
			return
		}
		*remaining--
		line := fmt.Sprintf("- [%s] %s (%s)", todo.ID, todo.Content, todo.Priority)
		if todo.ScheduledTime != nil {
			line += fmt.Sprintf(" at %s - %s", todo.ScheduledTime.StartTime, todo.ScheduledTime.EndTime)
		}
		fmt.Fprintln(b, line)
	}
}

func capRecurring(events []memory.RecurringEvent, limit int) []memory.RecurringEvent {
	if len(events) > limit {
		return events[:limit]
	}
	return events
}

func capOneTime(events []memory.OneTimeEvent, limit int) []memory.OneTimeEvent {
	if len(events) > limit {
		return events[:limit]
	}
	return events
}
