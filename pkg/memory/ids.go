package memory

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ID prefixes for the record kinds stored in a memory document.
const (
	IDPrefixTodo     = "todo"
	IDPrefixEvent    = "event"
	IDPrefixReminder = "reminder"
	IDPrefixFollowup = "followup"
	IDPrefixIdea     = "idea"
	IDPrefixHabit    = "habit"
)

// NewRecordID generates an identifier like "todo_20260828_153000_a1b2":
// a prefix, the current timestamp, and four random hex characters.
func NewRecordID(prefix string) string {
	return newRecordIDAt(prefix, time.Now())
}

func newRecordIDAt(prefix string, t time.Time) string {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		// The OS crypto source failing is a critical unrecoverable
		// application state.
		panic(fmt.Errorf("crypto/rand failed: %w", err))
	}
	return fmt.Sprintf("%s_%s_%s", prefix, t.Format("20060102_150405"), hex.EncodeToString(b))
}
