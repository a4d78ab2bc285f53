package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timeNowDate() string {
	return time.Now().Format("2006-01-02")
}

func TestAssessTodoUrgencyTool(t *testing.T) {
	ts, facade := newTestToolset(t)

	todo, err := facade.AddTodo(testUser, "file taxes", "high")
	require.NoError(t, err)

	reply := execute(t, ts, "assess_todo_urgency", map[string]interface{}{"content_or_id": todo.ID})
	assert.Contains(t, reply, todo.ID)
	assert.Contains(t, reply, "high")

	// Content matching works too
	reply = execute(t, ts, "assess_todo_urgency", map[string]interface{}{"content_or_id": "taxes"})
	assert.Contains(t, reply, todo.ID)

	reply = execute(t, ts, "assess_todo_urgency", map[string]interface{}{"content_or_id": "todo_missing"})
	assert.Contains(t, reply, "No todo")
}

func TestFindAvailableSlotTool(t *testing.T) {
	ts, facade := newTestToolset(t)

	todo, err := facade.AddTodo(testUser, "booked block", "")
	require.NoError(t, err)
	result, err := facade.ScheduleTodo(testUser, todo.ID, "2026-09-03 09:00", "60", 0)
	require.NoError(t, err)
	require.True(t, result.Scheduled())

	reply := execute(t, ts, "find_available_time_slot", map[string]interface{}{
		"date":     "2026-09-03",
		"duration": "60",
	})
	assert.Contains(t, reply, "2026-09-03 10:00")
	assert.NotContains(t, reply, "- 2026-09-03 09:00 to")

	reply = execute(t, ts, "find_available_time_slot", map[string]interface{}{
		"date": "not a date",
	})
	assert.Contains(t, reply, "could not understand the time")
}

func TestAutoScheduleTodoTool(t *testing.T) {
	ts, facade := newTestToolset(t)

	blocker, err := facade.AddTodo(testUser, "early meeting", "")
	require.NoError(t, err)
	result, err := facade.ScheduleTodo(testUser, blocker.ID, "2026-09-03 09:00", "60", 0)
	require.NoError(t, err)
	require.True(t, result.Scheduled())

	todo, err := facade.AddTodo(testUser, "quarterly review", "")
	require.NoError(t, err)

	reply := execute(t, ts, "auto_schedule_todo", map[string]interface{}{
		"content_or_id": todo.ID,
		"date":          "2026-09-03",
		"duration":      "60",
	})
	assert.Contains(t, reply, "Auto-scheduled")
	assert.Contains(t, reply, "2026-09-03 10:00", "first free slot after the booked 09:00 block")

	doc, err := facade.Read(testUser)
	require.NoError(t, err)
	assert.Len(t, doc.Todos.Scheduled, 2)
}

func TestAutoScheduleTodoUnknownID(t *testing.T) {
	ts, _ := newTestToolset(t)

	reply := execute(t, ts, "auto_schedule_todo", map[string]interface{}{
		"content_or_id": "todo_missing",
		"date":          "2026-09-03",
	})
	assert.Contains(t, reply, "No todo")
}

func TestMigrateOverdueTodosTool(t *testing.T) {
	ts, facade := newTestToolset(t)

	todo, err := facade.AddTodo(testUser, "long past", "")
	require.NoError(t, err)
	result, err := facade.ScheduleTodo(testUser, todo.ID, "2020-01-01 10:00", "60", 0)
	require.NoError(t, err)
	require.True(t, result.Scheduled())

	reply := execute(t, ts, "migrate_overdue_todos", nil)
	assert.Contains(t, reply, "Moved 1 overdue")
	assert.Contains(t, reply, "long past")

	reply = execute(t, ts, "migrate_overdue_todos", nil)
	assert.Contains(t, reply, "No overdue")

	doc, err := facade.Read(testUser)
	require.NoError(t, err)
	require.Len(t, doc.Todos.Pending, 1)
	assert.Nil(t, doc.Todos.Pending[0].ScheduledTime)
}

func TestPendingReminderAndFollowupTools(t *testing.T) {
	ts, facade := newTestToolset(t)

	todo, err := facade.AddTodo(testUser, "old task", "")
	require.NoError(t, err)
	result, err := facade.ScheduleTodo(testUser, todo.ID, "2020-01-01 10:00", "60", 0)
	require.NoError(t, err)
	require.True(t, result.Scheduled())

	reply := execute(t, ts, "get_pending_reminders", nil)
	assert.Contains(t, reply, "1 reminder(s) due")
	assert.Contains(t, reply, "old task")

	reply = execute(t, ts, "get_pending_followups", nil)
	assert.Contains(t, reply, "1 followup(s) due")
}

func TestPendingToolsEmpty(t *testing.T) {
	ts, _ := newTestToolset(t)

	assert.Contains(t, execute(t, ts, "get_pending_reminders", nil), "No reminders")
	assert.Contains(t, execute(t, ts, "get_pending_followups", nil), "No followups")
}

func TestSearchIdeasTool(t *testing.T) {
	ts, facade := newTestToolset(t)

	_, err := facade.AddIdea(testUser, "learn woodworking", "", []string{"hobby"}, "")
	require.NoError(t, err)
	_, err = facade.AddIdea(testUser, "side project", "", []string{"coding"}, "")
	require.NoError(t, err)

	reply := execute(t, ts, "search_ideas", map[string]interface{}{"query": "wood"})
	assert.Contains(t, reply, "learn woodworking")
	assert.NotContains(t, reply, "side project")

	reply = execute(t, ts, "search_ideas", map[string]interface{}{"query": "HOBBY"})
	assert.Contains(t, reply, "learn woodworking")

	reply = execute(t, ts, "search_ideas", map[string]interface{}{"query": "garden"})
	assert.Contains(t, reply, "No ideas match")
}

func TestGetDailyIdeasTool(t *testing.T) {
	ts, facade := newTestToolset(t)

	_, err := facade.AddIdea(testUser, "today's spark", "", nil, "")
	require.NoError(t, err)

	today := execute(t, ts, "get_daily_ideas", map[string]interface{}{
		"date": timeNowDate(),
	})
	assert.Contains(t, today, "today's spark")

	past := execute(t, ts, "get_daily_ideas", map[string]interface{}{
		"date": "2001-01-01",
	})
	assert.Contains(t, past, "No ideas were captured")
}
