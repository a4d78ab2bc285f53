package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	return NewFacade(newTestStore(t))
}

// assertInExactlyOneBucket verifies the single-bucket invariant for an ID.
func assertInExactlyOneBucket(t *testing.T, f *Facade, userID, todoID string, want Bucket) {
	t.Helper()
	doc, err := f.Read(userID)
	require.NoError(t, err)

	found := 0
	for _, b := range Buckets {
		for _, todo := range *doc.Todos.list(b) {
			if todo.ID == todoID {
				found++
				assert.Equal(t, want, b, "todo %s in wrong bucket", todoID)
			}
		}
	}
	assert.Equal(t, 1, found, "todo %s must be in exactly one bucket", todoID)
}

func TestAddTodoLandsInPending(t *testing.T) {
	f := newTestFacade(t)

	todo, err := f.AddTodo("u", "write report", "high")
	require.NoError(t, err)
	assert.Regexp(t, `^todo_`, todo.ID)
	assert.Equal(t, "high", todo.Priority)

	assertInExactlyOneBucket(t, f, "u", todo.ID, BucketPending)
}

func TestAddTodoDefaultsPriority(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "something", "")
	require.NoError(t, err)
	assert.Equal(t, "medium", todo.Priority)
}

func TestCompleteTodoMovesAcrossBuckets(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "task", "medium")
	require.NoError(t, err)

	done, err := f.CompleteTodo("u", todo.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, done.CompletedAt)

	assertInExactlyOneBucket(t, f, "u", todo.ID, BucketCompleted)
}

func TestCompleteTodoNotFound(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.CompleteTodo("u", "todo_missing")
	assert.ErrorIs(t, err, ErrTodoNotFound)
}

func TestRemoveTodoIsIdempotent(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "task", "low")
	require.NoError(t, err)

	removed, found, err := f.RemoveTodo("u", todo.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, todo.ID, removed.ID)

	// Second removal reports not found without erroring
	_, found, err = f.RemoveTodo("u", todo.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScheduleTodoDerivesReminderAndFollowup(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "deep work", "high")
	require.NoError(t, err)

	res, err := f.ScheduleTodo("u", todo.ID, "2026-09-01 10:00", "2小时", 30)
	require.NoError(t, err)
	require.True(t, res.Scheduled())

	assert.Equal(t, "2026-09-01 10:00", res.Todo.ScheduledTime.StartTime)
	assert.Equal(t, "2026-09-01 12:00", res.Todo.ScheduledTime.EndTime)
	assert.Equal(t, 120, res.Todo.ScheduledTime.DurationMinutes)

	// Reminder fires reminder_minutes before the start
	assert.Equal(t, "2026-09-01 09:30", res.Reminder.RemindAt)
	assert.Equal(t, todo.ID, res.Reminder.TodoID)
	assert.Equal(t, StatusPending, res.Reminder.Status)

	// Followup is due one hour after the end
	assert.Equal(t, "2026-09-01 13:00", res.Followup.DueAt)
	assert.Equal(t, todo.ID, res.Followup.TodoID)

	assertInExactlyOneBucket(t, f, "u", todo.ID, BucketScheduled)

	doc, err := f.Read("u")
	require.NoError(t, err)
	require.Len(t, doc.Reminders, 1)
	require.Len(t, doc.Followups, 1)
}

func TestScheduleTodoDefaultReminderMinutes(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "call", "medium")
	require.NoError(t, err)

	res, err := f.ScheduleTodo("u", todo.ID, "2026-09-01 10:00", "30", 0)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01 09:45", res.Reminder.RemindAt)
}

func TestScheduleTodoConflictLeavesStateUntouched(t *testing.T) {
	f := newTestFacade(t)
	first, err := f.AddTodo("u", "meeting", "high")
	require.NoError(t, err)
	second, err := f.AddTodo("u", "focus block", "medium")
	require.NoError(t, err)

	res, err := f.ScheduleTodo("u", first.ID, "2026-09-01 10:00", "60", 15)
	require.NoError(t, err)
	require.True(t, res.Scheduled())

	// Overlapping block is rejected with the conflict named
	res, err = f.ScheduleTodo("u", second.ID, "2026-09-01 10:30", "60", 15)
	require.NoError(t, err)
	assert.False(t, res.Scheduled())
	require.Len(t, res.Conflicts, 1)
	assert.Contains(t, res.Conflicts[0], "meeting")

	// The rejected todo stays in pending with no block assigned
	assertInExactlyOneBucket(t, f, "u", second.ID, BucketPending)
	doc, err := f.Read("u")
	require.NoError(t, err)
	got, ok := doc.Todos.Get(second.ID)
	require.True(t, ok)
	assert.Nil(t, got.ScheduledTime)
	assert.Len(t, doc.Reminders, 1) // only the first schedule's reminder
}

func TestScheduleTodoTouchingBlocksDoNotConflict(t *testing.T) {
	f := newTestFacade(t)
	first, err := f.AddTodo("u", "a", "medium")
	require.NoError(t, err)
	second, err := f.AddTodo("u", "b", "medium")
	require.NoError(t, err)

	res, err := f.ScheduleTodo("u", first.ID, "2026-09-01 10:00", "60", 15)
	require.NoError(t, err)
	require.True(t, res.Scheduled())

	// Back-to-back is fine: [10:00,11:00) then [11:00,12:00)
	res, err = f.ScheduleTodo("u", second.ID, "2026-09-01 11:00", "60", 15)
	require.NoError(t, err)
	assert.True(t, res.Scheduled())
}

func TestScheduleTodoConflictsWithOneTimeEvents(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.AddOneTimeEvent("u", OneTimeEventInput{
		Name: "dentist", StartTime: "2026-09-01 10:00", EndTime: "2026-09-01 11:00",
	})
	require.NoError(t, err)

	todo, err := f.AddTodo("u", "errand", "low")
	require.NoError(t, err)

	res, err := f.ScheduleTodo("u", todo.ID, "2026-09-01 10:30", "60", 15)
	require.NoError(t, err)
	assert.False(t, res.Scheduled())
	assert.Contains(t, res.Conflicts[0], "dentist")
}

func TestScheduleTodoUnparsableStartFails(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "x", "low")
	require.NoError(t, err)

	_, err = f.ScheduleTodo("u", todo.ID, "sometime soon", "60", 15)
	assert.ErrorIs(t, err, ErrUnparsableTime)
}

func TestScheduleCompletedTodoRejected(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "done already", "low")
	require.NoError(t, err)
	_, err = f.CompleteTodo("u", todo.ID)
	require.NoError(t, err)

	_, err = f.ScheduleTodo("u", todo.ID, "2026-09-01 10:00", "60", 15)
	assert.Error(t, err)
}

func TestAddOneTimeEventDefaultsEndToOneHour(t *testing.T) {
	f := newTestFacade(t)
	res, err := f.AddOneTimeEvent("u", OneTimeEventInput{Name: "standup", StartTime: "2026-09-01 09:00"})
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, "2026-09-01 10:00", res.Event.EndTime)

	// Every event gets a reminder, 15 minutes before by default
	require.NotNil(t, res.Reminder)
	assert.Equal(t, "2026-09-01 08:45", res.Reminder.RemindAt)
}

func TestAddOneTimeEventDurationSetsEnd(t *testing.T) {
	f := newTestFacade(t)
	res, err := f.AddOneTimeEvent("u", OneTimeEventInput{
		Name: "workshop", StartTime: "2026-09-01 09:00", Duration: "90分钟",
		Description: "intro session", Location: "room 4",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, "2026-09-01 10:30", res.Event.EndTime)
	assert.Equal(t, "room 4", res.Event.Location)
	assert.Equal(t, "intro session", res.Event.Description)
}

func TestAddOneTimeEventWithReminder(t *testing.T) {
	f := newTestFacade(t)
	res, err := f.AddOneTimeEvent("u", OneTimeEventInput{
		Name: "flight", StartTime: "2026-09-01 18:00", ReminderMinutes: 120,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Reminder)
	assert.Equal(t, "2026-09-01 16:00", res.Reminder.RemindAt)

	doc, err := f.Read("u")
	require.NoError(t, err)
	assert.Len(t, doc.Reminders, 1)
}

func TestAddOneTimeEventConflict(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.AddOneTimeEvent("u", OneTimeEventInput{
		Name: "first", StartTime: "2026-09-01 09:00", EndTime: "2026-09-01 10:00",
	})
	require.NoError(t, err)

	res, err := f.AddOneTimeEvent("u", OneTimeEventInput{
		Name: "second", StartTime: "2026-09-01 09:30", EndTime: "2026-09-01 10:30",
	})
	require.NoError(t, err)
	assert.Nil(t, res.Event)
	assert.Contains(t, res.Conflicts[0], "first")
}

func TestConversationsCappedNewestFirst(t *testing.T) {
	f := newTestFacade(t)
	for i := 0; i < MaxConversations+10; i++ {
		require.NoError(t, f.AddConversation("u", fmt.Sprintf("msg %d", i), "ok"))
	}

	doc, err := f.Read("u")
	require.NoError(t, err)
	require.Len(t, doc.Conversations, MaxConversations)

	// Newest entry is first
	assert.Equal(t, fmt.Sprintf("msg %d", MaxConversations+9), doc.Conversations[0].UserMessage)
}

func TestDiaryCapped(t *testing.T) {
	f := newTestFacade(t)
	for i := 0; i < MaxDiaryEntries+5; i++ {
		_, err := f.AddDiaryEntry("u", fmt.Sprintf("note %d", i))
		require.NoError(t, err)
	}

	doc, err := f.Read("u")
	require.NoError(t, err)
	assert.Len(t, doc.Diary, MaxDiaryEntries)
	assert.Equal(t, fmt.Sprintf("note %d", MaxDiaryEntries+4), doc.Diary[0].Content)
}

func TestUpdatePreference(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.UpdatePreference("u", "", "tone", "concise"))

	doc, err := f.Read("u")
	require.NoError(t, err)
	assert.Equal(t, "concise", doc.Preferences["tone"])
}

func TestUpdatePreferenceNestsUnderCategory(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.UpdatePreference("u", "diet", "restriction", "vegetarian"))
	require.NoError(t, f.UpdatePreference("u", "diet", "dislikes", "cilantro"))

	doc, err := f.Read("u")
	require.NoError(t, err)
	group, ok := doc.Preferences["diet"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "vegetarian", group["restriction"])
	assert.Equal(t, "cilantro", group["dislikes"])
}

func TestLearnSchedulePreference(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.LearnSchedulePreference("u", "focus_hours", "mornings", 0.8))

	doc, err := f.Read("u")
	require.NoError(t, err)
	prefs, ok := doc.Preferences["schedule_preferences"].(map[string]interface{})
	require.True(t, ok)
	entry, ok := prefs["focus_hours"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "mornings", entry["value"])
	assert.InDelta(t, 0.8, entry["confidence"].(float64), 0.001)
}

func TestLearnHabitAndRecurringEvent(t *testing.T) {
	f := newTestFacade(t)

	habit, err := f.LearnHabit("u", "reviews email after lunch", "work")
	require.NoError(t, err)
	assert.Regexp(t, `^habit_`, habit.ID)

	event, err := f.AddRecurringEvent("u", RecurringEvent{
		Name: "team sync", Time: "10:00", Frequency: "every Monday",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^event_`, event.ID)
	assert.Equal(t, "every Monday", event.Frequency)

	doc, err := f.Read("u")
	require.NoError(t, err)
	assert.Len(t, doc.Habits, 1)
	assert.Len(t, doc.Schedule.Recurring, 1)
}

func TestAddIdea(t *testing.T) {
	f := newTestFacade(t)
	idea, err := f.AddIdea("u", "build a birdhouse", "hobby", []string{"weekend"}, "")
	require.NoError(t, err)
	assert.Regexp(t, `^idea_`, idea.ID)

	doc, err := f.Read("u")
	require.NoError(t, err)
	require.Len(t, doc.Ideas, 1)
	assert.Equal(t, []string{"weekend"}, doc.Ideas[0].Tags)
	assert.Equal(t, "hobby", doc.Ideas[0].Category)
}

func TestAddIdeaBackdated(t *testing.T) {
	f := newTestFacade(t)
	idea, err := f.AddIdea("u", "shower thought", "", nil, "2026-08-20 07:30")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-20 07:30", idea.CreatedAt)

	_, err = f.AddIdea("u", "bad date", "", nil, "yesterday-ish")
	assert.ErrorIs(t, err, ErrUnparsableTime)
}

func TestUsersAreIsolated(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.AddTodo("alice", "alice's task", "high")
	require.NoError(t, err)

	doc, err := f.Read("bob")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Todos.Count())
}

func TestScheduleTodoRespectsExcludeOnReschedule(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "movable", "medium")
	require.NoError(t, err)

	res, err := f.ScheduleTodo("u", todo.ID, "2026-09-01 10:00", "60", 15)
	require.NoError(t, err)
	require.True(t, res.Scheduled())

	// Rescheduling over its own old block must not self-conflict
	res, err = f.ScheduleTodo("u", todo.ID, "2026-09-01 10:30", "60", 15)
	require.NoError(t, err)
	assert.True(t, res.Scheduled())
	assert.Equal(t, "2026-09-01 10:30", res.Todo.ScheduledTime.StartTime)
}

func TestAddTodoOptions(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "file taxes", "high",
		WithDueDate("2026-09-15"),
		WithTodoCategory("finance"),
		WithEstimatedMinutes(90),
	)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-15", todo.DueDate)
	assert.Equal(t, "finance", todo.Category)
	assert.Equal(t, 90, todo.EstimatedMins)
}

func TestCompleteTodoByContent(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.AddTodo("u", "water the plants", "low")
	require.NoError(t, err)

	done, err := f.CompleteTodo("u", "Water the Plants")
	require.NoError(t, err)
	assert.Equal(t, "water the plants", done.Content)
}

func TestRemoveTodoBySubstring(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "book dentist appointment", "medium")
	require.NoError(t, err)

	removed, found, err := f.RemoveTodo("u", "dentist")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, todo.ID, removed.ID)
}

func TestScheduleTodoByContent(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "prepare slides", "high")
	require.NoError(t, err)

	res, err := f.ScheduleTodo("u", "prepare slides", "2026-09-01 10:00", "60", 15)
	require.NoError(t, err)
	require.True(t, res.Scheduled())
	assert.Equal(t, todo.ID, res.Todo.ID)
	assert.Equal(t, todo.ID, res.Reminder.TodoID)
}

func TestQueryTodosFollowsTodoLifecycle(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "Buy milk", "high")
	require.NoError(t, err)

	pending, err := f.QueryTodos("u", TodoQuery{Status: BucketPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, todo.ID, pending[0].ID)

	done, err := f.CompleteTodo("u", todo.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, done.CompletedAt)

	completed, err := f.QueryTodos("u", TodoQuery{Status: BucketCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, todo.ID, completed[0].ID)

	pending, err = f.QueryTodos("u", TodoQuery{Status: BucketPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestQueryTodosByCategoryAndDueDate(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.AddTodo("u", "taxes", "high", WithTodoCategory("finance"), WithDueDate("2026-09-10"))
	require.NoError(t, err)
	_, err = f.AddTodo("u", "groceries", "low", WithTodoCategory("errands"), WithDueDate("2026-09-20"))
	require.NoError(t, err)
	_, err = f.AddTodo("u", "someday", "low")
	require.NoError(t, err)

	byCategory, err := f.QueryTodos("u", TodoQuery{Category: "finance"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "taxes", byCategory[0].Content)

	// Only dated todos due before the bound match; undated ones never do
	dueSoon, err := f.QueryTodos("u", TodoQuery{DueBefore: "2026-09-15"})
	require.NoError(t, err)
	require.Len(t, dueSoon, 1)
	assert.Equal(t, "taxes", dueSoon[0].Content)

	_, err = f.QueryTodos("u", TodoQuery{DueBefore: "soonish"})
	assert.ErrorIs(t, err, ErrUnparsableTime)

	_, err = f.QueryTodos("u", TodoQuery{Status: "archived"})
	assert.Error(t, err)
}

func TestUpdateTodoMergesFields(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "draft report", "low")
	require.NoError(t, err)

	updated, err := f.UpdateTodo("u", todo.ID, TodoUpdate{
		Priority: "high",
		DueDate:  "2026-09-05",
	})
	require.NoError(t, err)
	assert.Equal(t, todo.ID, updated.ID)
	assert.Equal(t, "draft report", updated.Content)
	assert.Equal(t, "high", updated.Priority)
	assert.Equal(t, "2026-09-05", updated.DueDate)
	assert.NotEmpty(t, updated.UpdatedAt)

	_, err = f.UpdateTodo("u", "todo_missing", TodoUpdate{Priority: "low"})
	assert.ErrorIs(t, err, ErrTodoNotFound)
}

func TestUpdateTodoStatusMovesBuckets(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "ship release", "high")
	require.NoError(t, err)

	moved, err := f.UpdateTodoStatus("u", todo.ID, BucketInProgress)
	require.NoError(t, err)
	assert.NotEmpty(t, moved.UpdatedAt)
	assertInExactlyOneBucket(t, f, "u", todo.ID, BucketInProgress)

	// Moving into completed stamps completed_at like CompleteTodo does
	moved, err = f.UpdateTodoStatus("u", todo.ID, BucketCompleted)
	require.NoError(t, err)
	assert.NotEmpty(t, moved.CompletedAt)
	assertInExactlyOneBucket(t, f, "u", todo.ID, BucketCompleted)

	// The four statuses are a closed set
	_, err = f.UpdateTodoStatus("u", todo.ID, Bucket("someday"))
	assert.Error(t, err)
}

func TestUpdateBasicInfo(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.UpdateBasicInfo("u", "name", "Ada"))
	require.NoError(t, f.UpdateBasicInfo("u", "timezone", "Europe/London"))

	doc, err := f.Read("u")
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.BasicInfo["name"])
	assert.Equal(t, "Europe/London", doc.BasicInfo["timezone"])

	assert.Error(t, f.UpdateBasicInfo("u", "", "x"))
}

func TestIncrementConversationCount(t *testing.T) {
	f := newTestFacade(t)

	n, err := f.IncrementConversationCount("u")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.IncrementConversationCount("u")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	doc, err := f.Read("u")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.ConversationCount)
	assert.NotEmpty(t, doc.CreatedAt)
}

func TestScheduleAppliesDurationTokens(t *testing.T) {
	f := newTestFacade(t)
	todo, err := f.AddTodo("u", "big block", "high")
	require.NoError(t, err)

	res, err := f.ScheduleTodo("u", todo.ID, "2026-09-01 08:00", "半天", 15)
	require.NoError(t, err)
	require.True(t, res.Scheduled())
	assert.Equal(t, 240, res.Todo.ScheduledTime.DurationMinutes)
	assert.Equal(t, "2026-09-01 12:00", res.Todo.ScheduledTime.EndTime)
}
