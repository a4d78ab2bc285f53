package memory

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDurationMinutes is assumed when a duration description cannot be
// understood at all.
const DefaultDurationMinutes = 60

// dateTimeLayouts are tried in order by ParseDateTime. A date without a
// time component resolves to midnight.
var dateTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDateTime parses a datetime string against the accepted layouts.
// Unlike duration parsing there is no forgiving fallback here: a time we
// cannot read must fail loudly rather than schedule something at a guessed
// moment.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrUnparsableTime)
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableTime, s)
}

// FormatDateTime renders a time in the canonical "2006-01-02 15:04" form
// used throughout memory documents.
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// Timestamp returns the current time in RFC 3339 form, used for
// last_updated and created_at stamps.
func Timestamp() string {
	return time.Now().Format(time.RFC3339)
}

// ParseDurationMinutes converts a human duration description to minutes.
// Understood forms: "半天" (240), "一天" (480), "2小时" / "1.5小时",
// "90分钟", compounds like "2小时30分钟" which sum both components, and
// bare digits which are taken as minutes. Anything else falls back to
// DefaultDurationMinutes.
func ParseDurationMinutes(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultDurationMinutes
	}

	if strings.Contains(s, "半天") {
		return 240
	}
	if strings.Contains(s, "一天") {
		return 480
	}

	total := 0
	rest := s
	if idx := strings.Index(rest, "小时"); idx > 0 {
		if hours, err := strconv.ParseFloat(strings.TrimSpace(rest[:idx]), 64); err == nil && hours > 0 {
			total += int(hours * 60)
		}
		rest = rest[idx+len("小时"):]
	}
	if idx := strings.Index(rest, "分钟"); idx > 0 {
		if minutes, err := strconv.Atoi(strings.TrimSpace(rest[:idx])); err == nil && minutes > 0 {
			total += minutes
		}
	}
	if total > 0 {
		return total
	}

	if minutes, err := strconv.Atoi(s); err == nil && minutes > 0 {
		return minutes
	}

	return DefaultDurationMinutes
}

// RemindTime computes when a reminder should fire for a block starting at
// start.
func RemindTime(start time.Time, reminderMinutes int) time.Time {
	return start.Add(-time.Duration(reminderMinutes) * time.Minute)
}

// Overlap reports whether two half-open time blocks [aStart, aEnd) and
// [bStart, bEnd) intersect. A zero bEnd is treated as bStart plus one hour.
// Blocks that merely touch at a boundary do not overlap.
func Overlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if bEnd.IsZero() {
		bEnd = bStart.Add(time.Hour)
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
