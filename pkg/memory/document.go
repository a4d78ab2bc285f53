// Package memory implements the per-user durable memory store: one JSON
// document per user holding preferences, todos, schedules, habits,
// reminders, followups, ideas, and recent conversation history.
package memory

import (
	"encoding/json"
	"strings"
)

// DocumentVersion is written into every new document.
const DocumentVersion = "2.0"

const (
	// MaxConversations caps the conversation log, newest first.
	MaxConversations = 50

	// MaxDiaryEntries caps the diary, newest first.
	MaxDiaryEntries = 100
)

// Bucket identifies which todo list a todo lives in. A todo is in exactly
// one bucket at any time.
type Bucket string

const (
	BucketPending    Bucket = "pending"
	BucketScheduled  Bucket = "scheduled"
	BucketInProgress Bucket = "in_progress"
	BucketCompleted  Bucket = "completed"
)

// Buckets lists all todo buckets in display order.
var Buckets = []Bucket{BucketPending, BucketScheduled, BucketInProgress, BucketCompleted}

// Valid reports whether b is a known bucket.
func (b Bucket) Valid() bool {
	switch b {
	case BucketPending, BucketScheduled, BucketInProgress, BucketCompleted:
		return true
	}
	return false
}

// ScheduledTime is the time block assigned to a scheduled todo.
type ScheduledTime struct {
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Todo is a single todo item. UpdatedAt is stamped whenever the todo's
// fields change or it moves between buckets.
type Todo struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	Priority      string         `json:"priority"`
	Category      string         `json:"category,omitempty"`
	DueDate       string         `json:"due_date,omitempty"`
	EstimatedMins int            `json:"estimated_duration_minutes,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
	ScheduledTime *ScheduledTime `json:"scheduled_time,omitempty"`
	CompletedAt   string         `json:"completed_at,omitempty"`
	UrgencyLevel  string         `json:"urgency_level,omitempty"`
	UrgencyScore  float64        `json:"urgency_score,omitempty"`
}

// TodoLists holds the four todo buckets.
type TodoLists struct {
	Pending    []Todo `json:"pending"`
	Scheduled  []Todo `json:"scheduled"`
	InProgress []Todo `json:"in_progress"`
	Completed  []Todo `json:"completed"`
}

// list returns a mutable pointer to the named bucket.
func (tl *TodoLists) list(b Bucket) *[]Todo {
	switch b {
	case BucketPending:
		return &tl.Pending
	case BucketScheduled:
		return &tl.Scheduled
	case BucketInProgress:
		return &tl.InProgress
	case BucketCompleted:
		return &tl.Completed
	}
	return nil
}

// Find locates a todo by ID across all buckets. Returns the bucket it was
// found in and its index, or ("", -1) if absent.
func (tl *TodoLists) Find(id string) (Bucket, int) {
	for _, b := range Buckets {
		items := *tl.list(b)
		for i := range items {
			if items[i].ID == id {
				return b, i
			}
		}
	}
	return "", -1
}

// Get returns a copy of the todo with the given ID, if present.
func (tl *TodoLists) Get(id string) (Todo, bool) {
	b, i := tl.Find(id)
	if i < 0 {
		return Todo{}, false
	}
	return (*tl.list(b))[i], true
}

// Resolve locates a todo by ID or by content. ID match wins; otherwise an
// exact content match (case-insensitive) is tried, then a substring match.
// Returns ("", -1) when nothing matches.
func (tl *TodoLists) Resolve(contentOrID string) (Bucket, int) {
	if b, i := tl.Find(contentOrID); i >= 0 {
		return b, i
	}
	q := strings.ToLower(strings.TrimSpace(contentOrID))
	if q == "" {
		return "", -1
	}
	for _, b := range Buckets {
		items := *tl.list(b)
		for i := range items {
			if strings.ToLower(items[i].Content) == q {
				return b, i
			}
		}
	}
	for _, b := range Buckets {
		items := *tl.list(b)
		for i := range items {
			if strings.Contains(strings.ToLower(items[i].Content), q) {
				return b, i
			}
		}
	}
	return "", -1
}

// remove deletes the todo at index i of bucket b and returns it.
func (tl *TodoLists) remove(b Bucket, i int) Todo {
	items := tl.list(b)
	todo := (*items)[i]
	*items = append((*items)[:i], (*items)[i+1:]...)
	return todo
}

// move takes the todo with the given ID out of its current bucket and
// appends it to dst. Returns the moved todo, or false if not found.
func (tl *TodoLists) move(id string, dst Bucket) (*Todo, bool) {
	b, i := tl.Find(id)
	if i < 0 {
		return nil, false
	}
	todo := tl.remove(b, i)
	items := tl.list(dst)
	*items = append(*items, todo)
	return &(*items)[len(*items)-1], true
}

// Count returns the total number of todos across all buckets.
func (tl *TodoLists) Count() int {
	n := 0
	for _, b := range Buckets {
		n += len(*tl.list(b))
	}
	return n
}

// RecurringEvent is a repeating schedule entry, e.g. a weekly meeting.
// Time holds the time of day ("10:00") and Frequency the recurrence in
// plain words ("every Monday").
type RecurringEvent struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Time            string `json:"time"`
	Frequency       string `json:"frequency"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Description     string `json:"description,omitempty"`
	ReminderMinutes int    `json:"reminder_minutes,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// OneTimeEvent is a single dated schedule entry.
type OneTimeEvent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ScheduleData holds a user's schedule entries.
type ScheduleData struct {
	Recurring []RecurringEvent `json:"recurring"`
	OneTime   []OneTimeEvent   `json:"one_time"`
}

// Entry status values shared by reminders and followups.
const (
	StatusPending = "pending"
	StatusDone    = "done"
)

// Reminder fires before a scheduled todo's or event's start time.
// Listing due reminders does not consume them; the caller marks a
// reminder triggered once it has been delivered.
type Reminder struct {
	ID          string `json:"id"`
	TodoID      string `json:"todo_id"`
	Content     string `json:"content"`
	RemindAt    string `json:"remind_at"`
	Status      string `json:"status"`
	TriggeredAt string `json:"triggered_at,omitempty"`
}

// Followup checks in after a scheduled todo's end time. Frequency records
// how the followup recurs in plain words; ResponseCount grows by one each
// time the followup is actually asked.
type Followup struct {
	ID            string `json:"id"`
	TodoID        string `json:"todo_id"`
	Content       string `json:"content"`
	DueAt         string `json:"due_at"`
	Status        string `json:"status"`
	Frequency     string `json:"frequency,omitempty"`
	LastAskedAt   string `json:"last_asked_at,omitempty"`
	ResponseCount int    `json:"response_count,omitempty"`
}

// Idea is a free-form captured thought.
type Idea struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Category  string   `json:"category,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// Habit is a learned behavioral pattern of the user.
type Habit struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Category  string `json:"category,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ConversationEntry is one user/assistant exchange, newest first.
type ConversationEntry struct {
	Timestamp      string `json:"timestamp"`
	UserMessage    string `json:"user_message"`
	AssistantReply string `json:"assistant_reply"`
}

// DiaryEntry is a free-form memory note, newest first.
type DiaryEntry struct {
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// Document is the complete per-user memory document as persisted on
// disk. BasicInfo holds open profile facts (name, timezone, locale);
// ConversationCount is a monotonic counter of recorded conversations.
type Document struct {
	Version           string                 `json:"version"`
	CreatedAt         string                 `json:"created_at"`
	LastUpdated       string                 `json:"last_updated"`
	ConversationCount int                    `json:"conversation_count"`
	BasicInfo         map[string]string      `json:"basic_info"`
	Preferences       map[string]interface{} `json:"preferences"`
	Todos             TodoLists              `json:"todos"`
	Schedule          ScheduleData           `json:"schedule"`
	Habits            []Habit                `json:"habits"`
	Reminders         []Reminder             `json:"reminders"`
	Followups         []Followup             `json:"followups"`
	Ideas             []Idea                 `json:"ideas"`
	Conversations     []ConversationEntry    `json:"conversations"`
	Diary             []DiaryEntry           `json:"diary"`
}

// NewDocument returns the default empty document schema.
func NewDocument() *Document {
	return &Document{
		Version:     DocumentVersion,
		CreatedAt:   Timestamp(),
		BasicInfo:   make(map[string]string),
		Preferences: make(map[string]interface{}),
		Todos: TodoLists{
			Pending:    []Todo{},
			Scheduled:  []Todo{},
			InProgress: []Todo{},
			Completed:  []Todo{},
		},
		Schedule: ScheduleData{
			Recurring: []RecurringEvent{},
			OneTime:   []OneTimeEvent{},
		},
		Habits:        []Habit{},
		Reminders:     []Reminder{},
		Followups:     []Followup{},
		Ideas:         []Idea{},
		Conversations: []ConversationEntry{},
		Diary:         []DiaryEntry{},
	}
}

// Clone returns a deep copy of the document via a JSON round trip.
func (d *Document) Clone() (*Document, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	out := &Document{}
	if err := json.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}
