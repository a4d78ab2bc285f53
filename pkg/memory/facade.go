package memory

import (
	"errors"
	"fmt"
	"time"
)

// errScheduleConflict aborts a conflicting schedule update without writing.
var errScheduleConflict = errors.New("memory: schedule conflict")

// DefaultReminderMinutes is used when a caller does not say how early to
// remind before a scheduled block.
const DefaultReminderMinutes = 15

// Facade is the typed API over per-user memory documents. All memory
// mutations in the system go through here; the store engine below it
// handles locking, caching, and atomic persistence.
type Facade struct {
	store *FileStore
}

// NewFacade creates a facade over the given store.
func NewFacade(store *FileStore) *Facade {
	return &Facade{store: store}
}

// Read returns a copy of the user's full memory document.
func (f *Facade) Read(userID string) (*Document, error) {
	return f.store.Read(userID)
}

// UpdatePreference sets a single preference key. A non-empty category
// nests the key under that category; an empty category stores it at the
// top level.
func (f *Facade) UpdatePreference(userID, category, key string, value interface{}) error {
	_, err := f.store.Update(userID, func(doc *Document) error {
		if category == "" {
			doc.Preferences[key] = value
			return nil
		}
		group, _ := doc.Preferences[category].(map[string]interface{})
		if group == nil {
			group = make(map[string]interface{})
		}
		group[key] = value
		doc.Preferences[category] = group
		return nil
	})
	return err
}

// UpdateBasicInfo sets one profile fact, such as the user's name or
// timezone. Field keys are open-ended.
func (f *Facade) UpdateBasicInfo(userID, field, value string) error {
	if field == "" {
		return fmt.Errorf("memory: basic info field cannot be empty")
	}
	_, err := f.store.Update(userID, func(doc *Document) error {
		if doc.BasicInfo == nil {
			doc.BasicInfo = make(map[string]string)
		}
		doc.BasicInfo[field] = value
		return nil
	})
	return err
}

// LearnSchedulePreference records a scheduling preference with a
// confidence score under the schedule_preferences category.
func (f *Facade) LearnSchedulePreference(userID, prefType, value string, confidence float64) error {
	_, err := f.store.Update(userID, func(doc *Document) error {
		prefs, _ := doc.Preferences["schedule_preferences"].(map[string]interface{})
		if prefs == nil {
			prefs = make(map[string]interface{})
		}
		prefs[prefType] = map[string]interface{}{
			"value":      value,
			"confidence": confidence,
			"updated_at": Timestamp(),
		}
		doc.Preferences["schedule_preferences"] = prefs
		return nil
	})
	return err
}

// TodoOption sets optional fields on a new todo.
type TodoOption func(*Todo)

// WithDueDate sets the todo's due date.
func WithDueDate(date string) TodoOption {
	return func(t *Todo) { t.DueDate = date }
}

// WithTodoCategory sets the todo's category.
func WithTodoCategory(category string) TodoOption {
	return func(t *Todo) { t.Category = category }
}

// WithEstimatedMinutes sets how long the todo is expected to take.
func WithEstimatedMinutes(minutes int) TodoOption {
	return func(t *Todo) {
		if minutes > 0 {
			t.EstimatedMins = minutes
		}
	}
}

// AddTodo creates a todo in the pending bucket.
func (f *Facade) AddTodo(userID, content, priority string, opts ...TodoOption) (*Todo, error) {
	if priority == "" {
		priority = "medium"
	}
	todo := Todo{
		ID:        NewRecordID(IDPrefixTodo),
		Content:   content,
		Priority:  priority,
		CreatedAt: Timestamp(),
	}
	for _, opt := range opts {
		opt(&todo)
	}
	_, err := f.store.Update(userID, func(doc *Document) error {
		doc.Todos.Pending = append(doc.Todos.Pending, todo)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

// CompleteTodo moves a todo from whatever bucket it is in to completed
// and stamps completed_at. The todo may be named by ID or by content.
// Completing an already completed todo is a no-op beyond refreshing
// the stamp.
func (f *Facade) CompleteTodo(userID, contentOrID string) (*Todo, error) {
	var completed Todo
	_, err := f.store.Update(userID, func(doc *Document) error {
		bucket, idx := doc.Todos.Resolve(contentOrID)
		if idx < 0 {
			return ErrTodoNotFound
		}
		items := doc.Todos.list(bucket)
		(*items)[idx].CompletedAt = Timestamp()
		(*items)[idx].UpdatedAt = Timestamp()
		if bucket != BucketCompleted {
			moved, _ := doc.Todos.move((*items)[idx].ID, BucketCompleted)
			completed = *moved
		} else {
			completed = (*items)[idx]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &completed, nil
}

// RemoveTodo deletes a todo from whatever bucket holds it. The todo may
// be named by ID or by content. A missing todo is not an error; found
// reports whether anything was removed.
func (f *Facade) RemoveTodo(userID, contentOrID string) (removed *Todo, found bool, err error) {
	var out Todo
	_, err = f.store.Update(userID, func(doc *Document) error {
		bucket, idx := doc.Todos.Resolve(contentOrID)
		if idx < 0 {
			return ErrTodoNotFound
		}
		out = doc.Todos.remove(bucket, idx)
		return nil
	})
	if errors.Is(err, ErrTodoNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &out, true, nil
}

// TodoUpdate names the todo fields that may be changed after creation.
// Empty fields are left as they are; the ID is never changed.
type TodoUpdate struct {
	Content       string
	Priority      string
	Category      string
	DueDate       string
	EstimatedMins int
}

// UpdateTodo merges the given fields into an existing todo and stamps
// updated_at. The todo may be named by ID or by content.
func (f *Facade) UpdateTodo(userID, contentOrID string, update TodoUpdate) (*Todo, error) {
	var out Todo
	_, err := f.store.Update(userID, func(doc *Document) error {
		bucket, idx := doc.Todos.Resolve(contentOrID)
		if idx < 0 {
			return ErrTodoNotFound
		}
		todo := &(*doc.Todos.list(bucket))[idx]
		if update.Content != "" {
			todo.Content = update.Content
		}
		if update.Priority != "" {
			todo.Priority = update.Priority
		}
		if update.Category != "" {
			todo.Category = update.Category
		}
		if update.DueDate != "" {
			todo.DueDate = update.DueDate
		}
		if update.EstimatedMins > 0 {
			todo.EstimatedMins = update.EstimatedMins
		}
		todo.UpdatedAt = Timestamp()
		out = *todo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTodoStatus moves a todo to the named bucket and stamps
// updated_at. Unknown buckets are rejected; the four statuses are a
// closed set.
func (f *Facade) UpdateTodoStatus(userID, contentOrID string, status Bucket) (*Todo, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("memory: unknown todo status %q", status)
	}
	var out Todo
	_, err := f.store.Update(userID, func(doc *Document) error {
		bucket, idx := doc.Todos.Resolve(contentOrID)
		if idx < 0 {
			return ErrTodoNotFound
		}
		items := doc.Todos.list(bucket)
		(*items)[idx].UpdatedAt = Timestamp()
		if status == BucketCompleted {
			(*items)[idx].CompletedAt = Timestamp()
		}
		if bucket == status {
			out = (*items)[idx]
			return nil
		}
		moved, _ := doc.Todos.move((*items)[idx].ID, status)
		out = *moved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TodoQuery filters QueryTodos. A zero Status means all four buckets;
// DueBefore keeps only todos whose due date parses and falls before it.
type TodoQuery struct {
	Status    Bucket
	Category  string
	DueBefore string
}

// QueryTodos returns the todos matching the query, in bucket order.
func (f *Facade) QueryTodos(userID string, q TodoQuery) ([]Todo, error) {
	var dueBound time.Time
	if q.DueBefore != "" {
		bound, err := ParseDateTime(q.DueBefore)
		if err != nil {
			return nil, err
		}
		dueBound = bound
	}

	doc, err := f.store.Read(userID)
	if err != nil {
		return nil, err
	}

	buckets := Buckets
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, fmt.Errorf("memory: unknown todo status %q", q.Status)
		}
		buckets = []Bucket{q.Status}
	}

	var out []Todo
	for _, b := range buckets {
		for _, todo := range *doc.Todos.list(b) {
			if q.Category != "" && todo.Category != q.Category {
				continue
			}
			if !dueBound.IsZero() {
				if todo.DueDate == "" {
					continue
				}
				due, err := ParseDateTime(todo.DueDate)
				if err != nil || !due.Before(dueBound) {
					continue
				}
			}
			out = append(out, todo)
		}
	}
	return out, nil
}

// ScheduleResult reports the outcome of a scheduling attempt. When
// Conflicts is non-empty nothing was changed.
type ScheduleResult struct {
	Todo      *Todo
	Conflicts []string
	Reminder  *Reminder
	Followup  *Followup
}

// Scheduled reports whether the attempt actually placed the block.
func (r *ScheduleResult) Scheduled() bool {
	return len(r.Conflicts) == 0
}

// ScheduleTodo assigns a time block to a todo and moves it to the
// scheduled bucket. The todo may be named by ID or by content. The block
// is checked against every scheduled todo and one-time event; on conflict
// nothing is written and the conflicting items are returned. Scheduling
// also derives a reminder before the start and a followup one hour after
// the end.
func (f *Facade) ScheduleTodo(userID, contentOrID, startStr, durationDesc string, reminderMinutes int) (*ScheduleResult, error) {
	start, err := ParseDateTime(startStr)
	if err != nil {
		return nil, err
	}
	minutes := ParseDurationMinutes(durationDesc)
	end := start.Add(time.Duration(minutes) * time.Minute)
	if reminderMinutes <= 0 {
		reminderMinutes = DefaultReminderMinutes
	}

	result := &ScheduleResult{}
	_, err = f.store.Update(userID, func(doc *Document) error {
		bucket, idx := doc.Todos.Resolve(contentOrID)
		if idx < 0 {
			return ErrTodoNotFound
		}
		todoID := (*doc.Todos.list(bucket))[idx].ID
		if bucket == BucketCompleted {
			return fmt.Errorf("memory: todo %s is already completed", todoID)
		}

		result.Conflicts = findConflicts(doc, start, end, todoID)
		if len(result.Conflicts) > 0 {
			return errScheduleConflict
		}

		items := doc.Todos.list(bucket)
		(*items)[idx].ScheduledTime = &ScheduledTime{
			StartTime:       FormatDateTime(start),
			EndTime:         FormatDateTime(end),
			DurationMinutes: minutes,
		}
		(*items)[idx].UpdatedAt = Timestamp()
		moved, _ := doc.Todos.move(todoID, BucketScheduled)

		reminder := Reminder{
			ID:       NewRecordID(IDPrefixReminder),
			TodoID:   todoID,
			Content:  fmt.Sprintf("Upcoming: %s starts at %s", moved.Content, FormatDateTime(start)),
			RemindAt: FormatDateTime(RemindTime(start, reminderMinutes)),
			Status:   StatusPending,
		}
		followup := Followup{
			ID:        NewRecordID(IDPrefixFollowup),
			TodoID:    todoID,
			Content:   fmt.Sprintf("Follow up on: %s", moved.Content),
			DueAt:     FormatDateTime(end.Add(time.Hour)),
			Status:    StatusPending,
			Frequency: "after_task_time",
		}
		doc.Reminders = append(doc.Reminders, reminder)
		doc.Followups = append(doc.Followups, followup)

		todoCopy := *moved
		result.Todo = &todoCopy
		result.Reminder = &reminder
		result.Followup = &followup
		return nil
	})
	if errors.Is(err, errScheduleConflict) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// findConflicts returns descriptions of every scheduled todo and one-time
// event whose block intersects [start, end). excludeTodoID skips the todo
// being scheduled itself.
func findConflicts(doc *Document, start, end time.Time, excludeTodoID string) []string {
	var conflicts []string

	for i := range doc.Todos.Scheduled {
		t := &doc.Todos.Scheduled[i]
		if t.ID == excludeTodoID || t.ScheduledTime == nil {
			continue
		}
		otherStart, err := ParseDateTime(t.ScheduledTime.StartTime)
		if err != nil {
			continue
		}
		otherEnd, err := ParseDateTime(t.ScheduledTime.EndTime)
		if err != nil {
			otherEnd = time.Time{}
		}
		if Overlap(start, end, otherStart, otherEnd) {
			conflicts = append(conflicts, fmt.Sprintf("todo %q (%s - %s)",
				t.Content, t.ScheduledTime.StartTime, t.ScheduledTime.EndTime))
		}
	}

	for i := range doc.Schedule.OneTime {
		ev := &doc.Schedule.OneTime[i]
		evStart, err := ParseDateTime(ev.StartTime)
		if err != nil {
			continue
		}
		var evEnd time.Time
		if ev.EndTime != "" {
			if parsed, err := ParseDateTime(ev.EndTime); err == nil {
				evEnd = parsed
			}
		}
		if Overlap(start, end, evStart, evEnd) {
			conflicts = append(conflicts, fmt.Sprintf("event %q (%s)", ev.Name, ev.StartTime))
		}
	}

	return conflicts
}

// AddConversation prepends an exchange to the conversation log, keeping
// the newest MaxConversations entries.
func (f *Facade) AddConversation(userID, userMessage, assistantReply string) error {
	entry := ConversationEntry{
		Timestamp:      Timestamp(),
		UserMessage:    userMessage,
		AssistantReply: assistantReply,
	}
	_, err := f.store.Update(userID, func(doc *Document) error {
		doc.Conversations = append([]ConversationEntry{entry}, doc.Conversations...)
		if len(doc.Conversations) > MaxConversations {
			doc.Conversations = doc.Conversations[:MaxConversations]
		}
		return nil
	})
	return err
}

// IncrementConversationCount bumps the monotonic conversation counter
// and returns the new value.
func (f *Facade) IncrementConversationCount(userID string) (int, error) {
	count := 0
	_, err := f.store.Update(userID, func(doc *Document) error {
		doc.ConversationCount++
		count = doc.ConversationCount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AddDiaryEntry prepends a free-form note to the diary, keeping the
// newest MaxDiaryEntries entries.
func (f *Facade) AddDiaryEntry(userID, content string) (*DiaryEntry, error) {
	entry := DiaryEntry{
		Timestamp: Timestamp(),
		Content:   content,
	}
	_, err := f.store.Update(userID, func(doc *Document) error {
		doc.Diary = append([]DiaryEntry{entry}, doc.Diary...)
		if len(doc.Diary) > MaxDiaryEntries {
			doc.Diary = doc.Diary[:MaxDiaryEntries]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// LearnHabit records a behavioral pattern of the user.
func (f *Facade) LearnHabit(userID, content, category string) (*Habit, error) {
	habit := Habit{
		ID:        NewRecordID(IDPrefixHabit),
		Content:   content,
		Category:  category,
		CreatedAt: Timestamp(),
	}
	_, err := f.store.Update(userID, func(doc *Document) error {
		doc.Habits = append(doc.Habits, habit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &habit, nil
}

// AddRecurringEvent records a repeating schedule entry. The caller fills
// in the event fields; ID and CreatedAt are assigned here.
func (f *Facade) AddRecurringEvent(userID string, event RecurringEvent) (*RecurringEvent, error) {
	if event.Name == "" {
		return nil, fmt.Errorf("memory: recurring event needs a name")
	}
	event.ID = NewRecordID(IDPrefixEvent)
	event.CreatedAt = Timestamp()
	_, err := f.store.Update(userID, func(doc *Document) error {
		doc.Schedule.Recurring = append(doc.Schedule.Recurring, event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// OneTimeEventResult reports the outcome of adding a dated event. When
// Conflicts is non-empty nothing was changed. Every added event carries a
// Reminder before its start.
type OneTimeEventResult struct {
	Event     *OneTimeEvent
	Conflicts []string
	Reminder  *Reminder
}

// OneTimeEventInput describes a dated event to add. EndTime wins over
// Duration when both are given; with neither, the event lasts one hour.
type OneTimeEventInput struct {
	Name            string
	StartTime       string
	EndTime         string
	Duration        string
	Description     string
	Location        string
	ReminderMinutes int
}

// AddOneTimeEvent records a dated event after checking its block against
// the existing schedule. A reminder is always created; ReminderMinutes
// defaults to DefaultReminderMinutes when unset.
func (f *Facade) AddOneTimeEvent(userID string, in OneTimeEventInput) (*OneTimeEventResult, error) {
	start, err := ParseDateTime(in.StartTime)
	if err != nil {
		return nil, err
	}
	if in.ReminderMinutes <= 0 {
		in.ReminderMinutes = DefaultReminderMinutes
	}
	var end time.Time
	switch {
	case in.EndTime != "":
		end, err = ParseDateTime(in.EndTime)
		if err != nil {
			return nil, err
		}
	case in.Duration != "":
		end = start.Add(time.Duration(ParseDurationMinutes(in.Duration)) * time.Minute)
	default:
		end = start.Add(time.Hour)
	}

	result := &OneTimeEventResult{}
	_, err = f.store.Update(userID, func(doc *Document) error {
		result.Conflicts = findConflicts(doc, start, end, "")
		if len(result.Conflicts) > 0 {
			return errScheduleConflict
		}
		event := OneTimeEvent{
			ID:          NewRecordID(IDPrefixEvent),
			Name:        in.Name,
			StartTime:   FormatDateTime(start),
			EndTime:     FormatDateTime(end),
			Description: in.Description,
			Location:    in.Location,
			CreatedAt:   Timestamp(),
		}
		doc.Schedule.OneTime = append(doc.Schedule.OneTime, event)
		result.Event = &event

		reminder := Reminder{
			ID:       NewRecordID(IDPrefixReminder),
			Content:  fmt.Sprintf("Upcoming: %s starts at %s", event.Name, event.StartTime),
			RemindAt: FormatDateTime(RemindTime(start, in.ReminderMinutes)),
			Status:   StatusPending,
		}
		doc.Reminders = append(doc.Reminders, reminder)
		result.Reminder = &reminder
		return nil
	})
	if errors.Is(err, errScheduleConflict) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddIdea captures a free-form idea. A non-empty notedAt backdates the
// idea to that moment; it must parse as a known date-time format.
func (f *Facade) AddIdea(userID, content, category string, tags []string, notedAt string) (*Idea, error) {
	createdAt := Timestamp()
	if notedAt != "" {
		parsed, err := ParseDateTime(notedAt)
		if err != nil {
			return nil, err
		}
		createdAt = FormatDateTime(parsed)
	}
	idea := Idea{
		ID:        NewRecordID(IDPrefixIdea),
		Content:   content,
		Category:  category,
		Tags:      tags,
		CreatedAt: createdAt,
	}
	_, err := f.store.Update(userID, func(doc *Document) error {
		doc.Ideas = append(doc.Ideas, idea)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &idea, nil
}
