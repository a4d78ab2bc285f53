package memory

import (
	"sort"
	"strings"
	"time"
)

// Working-day bounds scanned by FindAvailableSlots.
const (
	workDayStartHour  = 9
	workDayEndHour    = 18
	maxSuggestedSlots = 5
)

// UrgencyAssessment is the result of scoring a todo's urgency.
type UrgencyAssessment struct {
	TodoID string
	Level  string
	Score  float64
	// HoursToDeadline is negative when the deadline already passed and
	// zero when the todo has no scheduled block.
	HoursToDeadline float64
}

// AssessUrgency scores a todo from its priority and how close its
// scheduled start is, stamps the result onto the todo, and persists it.
// The todo may be named by ID or by content.
func (f *Facade) AssessUrgency(userID, contentOrID string, now time.Time) (*UrgencyAssessment, error) {
	var assessment UrgencyAssessment
	_, err := f.store.Update(userID, func(doc *Document) error {
		bucket, idx := doc.Todos.Resolve(contentOrID)
		if idx < 0 {
			return ErrTodoNotFound
		}
		items := doc.Todos.list(bucket)
		todo := &(*items)[idx]

		score := priorityScore(todo.Priority)
		var hoursLeft float64
		if todo.ScheduledTime != nil {
			if start, err := ParseDateTime(todo.ScheduledTime.StartTime); err == nil {
				hoursLeft = start.Sub(now).Hours()
				switch {
				case hoursLeft <= 6:
					score += 0.4
				case hoursLeft <= 24:
					score += 0.3
				case hoursLeft <= 72:
					score += 0.15
				}
			}
		}
		if score > 1.0 {
			score = 1.0
		}

		todo.UrgencyScore = score
		todo.UrgencyLevel = urgencyLevel(score)
		assessment = UrgencyAssessment{
			TodoID:          todo.ID,
			Level:           todo.UrgencyLevel,
			Score:           score,
			HoursToDeadline: hoursLeft,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

func priorityScore(priority string) float64 {
	switch priority {
	case "high":
		return 0.6
	case "low":
		return 0.2
	default:
		return 0.4
	}
}

func urgencyLevel(score float64) string {
	switch {
	case score >= 0.8:
		return "critical"
	case score >= 0.6:
		return "high"
	case score >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

// Slot is a free time block suggestion.
type Slot struct {
	StartTime string
	EndTime   string
}

// FindAvailableSlots scans the working day (09:00 to 18:00) of the given
// date in hourly steps and returns up to five free blocks long enough for
// durationMinutes, checked against scheduled todos and one-time events.
func (f *Facade) FindAvailableSlots(userID, dateStr string, durationMinutes int) ([]Slot, error) {
	day, err := ParseDateTime(dateStr)
	if err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}

	doc, err := f.store.Read(userID)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), workDayStartHour, 0, 0, 0, day.Location())
	dayEnd := time.Date(day.Year(), day.Month(), day.Day(), workDayEndHour, 0, 0, 0, day.Location())

	var slots []Slot
	for start := dayStart; !start.After(dayEnd); start = start.Add(time.Hour) {
		end := start.Add(time.Duration(durationMinutes) * time.Minute)
		if end.After(dayEnd) {
			break
		}
		if len(findConflicts(doc, start, end, "")) == 0 {
			slots = append(slots, Slot{
				StartTime: FormatDateTime(start),
				EndTime:   FormatDateTime(end),
			})
			if len(slots) == maxSuggestedSlots {
				break
			}
		}
	}
	return slots, nil
}

// MigrateOverdueTodos moves scheduled todos whose block already ended back
// to pending with their block cleared, and returns the moved todos.
func (f *Facade) MigrateOverdueTodos(userID string, now time.Time) ([]Todo, error) {
	var migrated []Todo
	_, err := f.store.Update(userID, func(doc *Document) error {
		var overdueIDs []string
		for i := range doc.Todos.Scheduled {
			t := &doc.Todos.Scheduled[i]
			if t.ScheduledTime == nil {
				continue
			}
			end, err := ParseDateTime(t.ScheduledTime.EndTime)
			if err != nil {
				continue
			}
			if end.Before(now) {
				overdueIDs = append(overdueIDs, t.ID)
			}
		}
		for _, id := range overdueIDs {
			bucket, idx := doc.Todos.Find(id)
			if idx < 0 || bucket != BucketScheduled {
				continue
			}
			items := doc.Todos.list(bucket)
			(*items)[idx].ScheduledTime = nil
			(*items)[idx].UpdatedAt = Timestamp()
			moved, _ := doc.Todos.move(id, BucketPending)
			migrated = append(migrated, *moved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return migrated, nil
}

// PendingReminders returns reminders that are due at or before now and
// still pending.
func (f *Facade) PendingReminders(userID string, now time.Time) ([]Reminder, error) {
	doc, err := f.store.Read(userID)
	if err != nil {
		return nil, err
	}
	var due []Reminder
	for _, r := range doc.Reminders {
		if r.Status != StatusPending {
			continue
		}
		at, err := ParseDateTime(r.RemindAt)
		if err != nil {
			continue
		}
		if !at.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RemindAt < due[j].RemindAt })
	return due, nil
}

// PendingFollowups returns followups that are due at or before now and
// still pending.
func (f *Facade) PendingFollowups(userID string, now time.Time) ([]Followup, error) {
	doc, err := f.store.Read(userID)
	if err != nil {
		return nil, err
	}
	var due []Followup
	for _, fu := range doc.Followups {
		if fu.Status != StatusPending {
			continue
		}
		at, err := ParseDateTime(fu.DueAt)
		if err != nil {
			continue
		}
		if !at.After(now) {
			due = append(due, fu)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt < due[j].DueAt })
	return due, nil
}

// MarkReminderTriggered marks a reminder as delivered so PendingReminders
// stops returning it.
func (f *Facade) MarkReminderTriggered(userID, reminderID string) (*Reminder, error) {
	var out Reminder
	_, err := f.store.Update(userID, func(doc *Document) error {
		for i := range doc.Reminders {
			if doc.Reminders[i].ID != reminderID {
				continue
			}
			doc.Reminders[i].Status = StatusDone
			doc.Reminders[i].TriggeredAt = Timestamp()
			out = doc.Reminders[i]
			return nil
		}
		return ErrReminderNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkFollowupAsked marks a followup as asked, stamps last_asked_at, and
// bumps its response count.
func (f *Facade) MarkFollowupAsked(userID, followupID string) (*Followup, error) {
	var out Followup
	_, err := f.store.Update(userID, func(doc *Document) error {
		for i := range doc.Followups {
			if doc.Followups[i].ID != followupID {
				continue
			}
			doc.Followups[i].Status = StatusDone
			doc.Followups[i].LastAskedAt = Timestamp()
			doc.Followups[i].ResponseCount++
			out = doc.Followups[i]
			return nil
		}
		return ErrFollowupNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchIdeas returns ideas whose content, category, or tags contain the
// query, case-insensitively.
func (f *Facade) SearchIdeas(userID, query string) ([]Idea, error) {
	doc, err := f.store.Read(userID)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return doc.Ideas, nil
	}
	var out []Idea
	for _, idea := range doc.Ideas {
		if strings.Contains(strings.ToLower(idea.Content), q) ||
			(idea.Category != "" && strings.Contains(strings.ToLower(idea.Category), q)) {
			out = append(out, idea)
			continue
		}
		for _, tag := range idea.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				out = append(out, idea)
				break
			}
		}
	}
	return out, nil
}

// DailyIdeas returns ideas captured on the given date.
func (f *Facade) DailyIdeas(userID, dateStr string) ([]Idea, error) {
	day, err := ParseDateTime(dateStr)
	if err != nil {
		return nil, err
	}
	doc, err := f.store.Read(userID)
	if err != nil {
		return nil, err
	}
	prefix := day.Format("2006-01-02")
	var out []Idea
	for _, idea := range doc.Ideas {
		if strings.HasPrefix(idea.CreatedAt, prefix) {
			out = append(out, idea)
		}
	}
	return out, nil
}
