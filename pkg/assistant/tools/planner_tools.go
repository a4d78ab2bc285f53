package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/aide/pkg/memory"
)

// Tool name constants for the planner toolset.
const (
	assessTodoUrgencyToolName   = "assess_todo_urgency"
	findAvailableSlotToolName   = "find_available_time_slot"
	autoScheduleTodoToolName    = "auto_schedule_todo"
	migrateOverdueTodosToolName = "migrate_overdue_todos"
	getPendingRemindersToolName = "get_pending_reminders"
	getPendingFollowupsToolName = "get_pending_followups"
	searchIdeasToolName         = "search_ideas"
	getDailyIdeasToolName       = "get_daily_ideas"
)

// PlannerTools returns the planning tools built over the same facade and
// identity chain as the memory tools.
func (ts *MemoryToolset) PlannerTools() []Tool {
	return []Tool{
		&AssessTodoUrgencyTool{ts: ts},
		&FindAvailableSlotTool{ts: ts},
		&AutoScheduleTodoTool{ts: ts},
		&MigrateOverdueTodosTool{ts: ts},
		&GetPendingRemindersTool{ts: ts},
		&GetPendingFollowupsTool{ts: ts},
		&SearchIdeasTool{ts: ts},
		&GetDailyIdeasTool{ts: ts},
	}
}

// AssessTodoUrgencyTool scores how urgent a todo is.
type AssessTodoUrgencyTool struct {
	ts *MemoryToolset
}

func (t *AssessTodoUrgencyTool) Name() string { return assessTodoUrgencyToolName }

func (t *AssessTodoUrgencyTool) Description() string {
	return "Assess how urgent a todo is from its priority and how close its scheduled time " +
		"is. The urgency level and score are stamped onto the todo."
}

func (t *AssessTodoUrgencyTool) Schema() map[string]interface{} {
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

func (t *AssessTodoUrgencyTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	target, err := todoTarget(arguments, assessTodoUrgencyToolName)
	if err != nil {
		return "", err
	}
	assessment, err := t.ts.facade.AssessUrgency(t.ts.user(ctx, deps), target, time.Now())
	if errors.Is(err, memory.ErrTodoNotFound) {
		return fmt.Sprintf("No todo matching %q was found.", target), nil
	}
	if err != nil {
		return "", err
	}
	reply := fmt.Sprintf("Todo %s urgency: %s (score %.2f)", assessment.TodoID, assessment.Level, assessment.Score)
	if assessment.HoursToDeadline != 0 {
		reply += fmt.Sprintf(", %.1f hours until its scheduled start", assessment.HoursToDeadline)
	}
	return reply, nil
}

func (t *AssessTodoUrgencyTool) IsLoopBreaking() bool { return false }

// FindAvailableSlotTool suggests free time blocks on a given day.
type FindAvailableSlotTool struct {
	ts *MemoryToolset
}

func (t *FindAvailableSlotTool) Name() string { return findAvailableSlotToolName }

func (t *FindAvailableSlotTool) Description() string {
	return "Find free time blocks on a given day that fit a duration, checked against the " +
		"user's scheduled todos and events. Scans the working day from 09:00 to 18:00."
}

func (t *FindAvailableSlotTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"date": map[string]interface{}{
				"type":        "string",
				"description": "The day to scan, as YYYY-MM-DD.",
			},
			"duration": map[string]interface{}{
				"type":        "string",
				"description": "How long a block is needed, e.g. \"2小时\" or \"90\". Defaults to one hour.",
			},
		},
		[]string{"date"},
	)
}

func (t *FindAvailableSlotTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Date     string `json:"date"`
		Duration string `json:"duration"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", findAvailableSlotToolName, err)
	}
	minutes := memory.ParseDurationMinutes(args.Duration)
	slots, err := t.ts.facade.FindAvailableSlots(t.ts.user(ctx, deps), args.Date, minutes)
	if errors.Is(err, memory.ErrUnparsableTime) {
		return fmt.Sprintf(unparsableTimeReplyFormat, args.Date, "YYYY-MM-DD"), nil
	}
	if err != nil {
		return "", err
	}
	if len(slots) == 0 {
		return fmt.Sprintf("No free %d-minute blocks on %s within working hours.", minutes, args.Date), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Free %d-minute blocks on %s:\n", minutes, args.Date)
	for _, slot := range slots {
		fmt.Fprintf(&b, "- %s to %s\n", slot.StartTime, slot.EndTime)
	}
	return b.String(), nil
}

func (t *FindAvailableSlotTool) IsLoopBreaking() bool { return false }

// AutoScheduleTodoTool places a todo into the first free block of a day.
type AutoScheduleTodoTool struct {
	ts *MemoryToolset
}

func (t *AutoScheduleTodoTool) Name() string { return autoScheduleTodoToolName }

func (t *AutoScheduleTodoTool) Description() string {
	return "Automatically schedule a todo into the first free block of the given day that " +
		"fits its duration. Combines find_available_time_slot and schedule_todo in one step."
}

func (t *AutoScheduleTodoTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"content_or_id": map[string]interface{}{
				"type":        "string",
				"description": "The todo's ID, or enough of its content to identify it.",
			},
			"date": map[string]interface{}{
				"type":        "string",
				"description": "The day to place it on, as YYYY-MM-DD.",
			},
			"duration": map[string]interface{}{
				"type":        "string",
				"description": "How long the todo needs. Defaults to one hour.",
			},
		},
		[]string{"content_or_id", "date"},
	)
}

func (t *AutoScheduleTodoTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		ContentOrID string `json:"content_or_id"`
		TodoID      string `json:"todo_id"`
		Date        string `json:"date"`
		Duration    string `json:"duration"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", autoScheduleTodoToolName, err)
	}
	target := args.ContentOrID
	if target == "" {
		target = args.TodoID
	}
	if target == "" {
		return "", fmt.Errorf("content_or_id cannot be empty")
	}

	userID := t.ts.user(ctx, deps)
	minutes := memory.ParseDurationMinutes(args.Duration)
	slots, err := t.ts.facade.FindAvailableSlots(userID, args.Date, minutes)
	if errors.Is(err, memory.ErrUnparsableTime) {
		return fmt.Sprintf(unparsableTimeReplyFormat, args.Date, "YYYY-MM-DD"), nil
	}
	if err != nil {
		return "", err
	}
	if len(slots) == 0 {
		return fmt.Sprintf("No free %d-minute blocks on %s; the todo was not scheduled.", minutes, args.Date), nil
	}

	result, err := t.ts.facade.ScheduleTodo(userID, target, slots[0].StartTime, args.Duration, 0)
	if errors.Is(err, memory.ErrTodoNotFound) {
		return fmt.Sprintf("No todo matching %q was found.", target), nil
	}
	if err != nil {
		return "", err
	}
	if !result.Scheduled() {
		return fmt.Sprintf("The chosen slot conflicts with: %s. Nothing was scheduled.",
			strings.Join(result.Conflicts, "; ")), nil
	}
	return fmt.Sprintf("Auto-scheduled %q from %s to %s.",
		result.Todo.Content, result.Todo.ScheduledTime.StartTime, result.Todo.ScheduledTime.EndTime), nil
}

func (t *AutoScheduleTodoTool) IsLoopBreaking() bool { return false }

// MigrateOverdueTodosTool moves expired scheduled todos back to pending.
type MigrateOverdueTodosTool struct {
	ts *MemoryToolset
}

func (t *MigrateOverdueTodosTool) Name() string { return migrateOverdueTodosToolName }

func (t *MigrateOverdueTodosTool) Description() string {
	return "Move scheduled todos whose time block already passed back to the pending list " +
		"so they can be rescheduled."
}

func (t *MigrateOverdueTodosTool) Schema() map[string]interface{} {
	return BaseToolSchema(map[string]interface{}{}, nil)
}

func (t *MigrateOverdueTodosTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	migrated, err := t.ts.facade.MigrateOverdueTodos(t.ts.user(ctx, deps), time.Now())
	if err != nil {
		return "", err
	}
	if len(migrated) == 0 {
		return "No overdue scheduled todos.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Moved %d overdue todo(s) back to pending:\n", len(migrated))
	for _, todo := range migrated {
		fmt.Fprintf(&b, "- [%s] %s\n", todo.ID, todo.Content)
	}
	return b.String(), nil
}

func (t *MigrateOverdueTodosTool) IsLoopBreaking() bool { return false }

// GetPendingRemindersTool lists reminders that are due.
type GetPendingRemindersTool struct {
	ts *MemoryToolset
}

func (t *GetPendingRemindersTool) Name() string { return getPendingRemindersToolName }

func (t *GetPendingRemindersTool) Description() string {
	return "List reminders that are due now and still pending."
}

func (t *GetPendingRemindersTool) Schema() map[string]interface{} {
	return BaseToolSchema(map[string]interface{}{}, nil)
}

func (t *GetPendingRemindersTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	due, err := t.ts.facade.PendingReminders(t.ts.user(ctx, deps), time.Now())
	if err != nil {
		return "", err
	}
	if len(due) == 0 {
		return "No reminders are due.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d reminder(s) due:\n", len(due))
	for _, r := range due {
		fmt.Fprintf(&b, "- [%s] %s (remind at %s)\n", r.ID, r.Content, r.RemindAt)
	}
	return b.String(), nil
}

func (t *GetPendingRemindersTool) IsLoopBreaking() bool { return false }

// GetPendingFollowupsTool lists followups that are due.
type GetPendingFollowupsTool struct {
	ts *MemoryToolset
}

func (t *GetPendingFollowupsTool) Name() string { return getPendingFollowupsToolName }

func (t *GetPendingFollowupsTool) Description() string {
	return "List followups that are due now and still pending."
}

func (t *GetPendingFollowupsTool) Schema() map[string]interface{} {
	return BaseToolSchema(map[string]interface{}{}, nil)
}

func (t *GetPendingFollowupsTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	due, err := t.ts.facade.PendingFollowups(t.ts.user(ctx, deps), time.Now())
	if err != nil {
		return "", err
	}
	if len(due) == 0 {
		return "No followups are due.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d followup(s) due:\n", len(due))
	for _, fu := range due {
		fmt.Fprintf(&b, "- [%s] %s (due %s)\n", fu.ID, fu.Content, fu.DueAt)
	}
	return b.String(), nil
}

func (t *GetPendingFollowupsTool) IsLoopBreaking() bool { return false }

// SearchIdeasTool searches captured ideas.
type SearchIdeasTool struct {
	ts *MemoryToolset
}

func (t *SearchIdeasTool) Name() string { return searchIdeasToolName }

func (t *SearchIdeasTool) Description() string {
	return "Search captured ideas by content or tag. An empty query lists everything."
}

func (t *SearchIdeasTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Text to match against idea content and tags, case-insensitively.",
			},
		},
		nil,
	)
}

func (t *SearchIdeasTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", searchIdeasToolName, err)
	}
	ideas, err := t.ts.facade.SearchIdeas(t.ts.user(ctx, deps), args.Query)
	if err != nil {
		return "", err
	}
	return formatIdeas(ideas, fmt.Sprintf("No ideas match %q.", args.Query)), nil
}

func (t *SearchIdeasTool) IsLoopBreaking() bool { return false }

// GetDailyIdeasTool lists ideas captured on a given date.
type GetDailyIdeasTool struct {
	ts *MemoryToolset
}

func (t *GetDailyIdeasTool) Name() string { return getDailyIdeasToolName }

func (t *GetDailyIdeasTool) Description() string {
	return "List the ideas captured on a given date."
}

func (t *GetDailyIdeasTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"date": map[string]interface{}{
				"type":        "string",
				"description": "The date to list, as YYYY-MM-DD.",
			},
		},
		[]string{"date"},
	)
}

func (t *GetDailyIdeasTool) Execute(ctx context.Context, deps *Deps, arguments json.RawMessage) (string, error) {
	var args struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", getDailyIdeasToolName, err)
	}
	ideas, err := t.ts.facade.DailyIdeas(t.ts.user(ctx, deps), args.Date)
	if errors.Is(err, memory.ErrUnparsableTime) {
		return fmt.Sprintf(unparsableTimeReplyFormat, args.Date, "YYYY-MM-DD"), nil
	}
	if err != nil {
		return "", err
	}
	return formatIdeas(ideas, fmt.Sprintf("No ideas were captured on %s.", args.Date)), nil
}

func (t *GetDailyIdeasTool) IsLoopBreaking() bool { return false }

func formatIdeas(ideas []memory.Idea, emptyReply string) string {
	if len(ideas) == 0 {
		return emptyReply
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d idea(s):\n", len(ideas))
	for _, idea := range ideas {
		line := fmt.Sprintf("- [%s] %s", idea.ID, idea.Content)
		if len(idea.Tags) > 0 {
			line += " (tags: " + strings.Join(idea.Tags, ", ") + ")"
		}
		fmt.Fprintln(&b, line)
	}
	return b.String()
}
