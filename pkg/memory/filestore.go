package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/entrhq/aide/pkg/logging"
)

// readCacheTTL is how long a loaded document may be served from cache
// before the next read goes back to disk. Writes invalidate immediately.
const readCacheTTL = 60 * time.Second

// FileStore persists one JSON memory document per user under
// <dir>/<user_id>/memory.json. Reads are served through a short-lived
// cache; writes are atomic via a temporary file and rename.
type FileStore struct {
	dir   string
	cache *gocache.Cache
	log   *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("memory: init directory %s: %w", dir, err)
	}
	log, _ := logging.NewLogger("memory")
	return &FileStore{
		dir:   dir,
		cache: gocache.New(readCacheTTL, 5*time.Minute),
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// userLock returns the mutex guarding a user's read-modify-write cycle.
func (s *FileStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// pathForUser resolves a user's document path. User IDs become path
// components, so anything that could escape the store directory is
// rejected.
func (s *FileStore) pathForUser(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if strings.ContainsAny(userID, "/\\") || strings.Contains(userID, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	dir, err := filepath.Abs(s.dir)
	if err != nil {
		return "", fmt.Errorf("memory: abs dir: %w", err)
	}
	resolved := filepath.Join(dir, userID, "memory.json")
	if !strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal detected for %q", ErrInvalidUserID, userID)
	}
	return resolved, nil
}

// Read returns a copy of the user's document, initializing the default
// schema on first access. Callers own the returned document.
func (s *FileStore) Read(userID string) (*Document, error) {
	if cached, ok := s.cache.Get(userID); ok {
		return cached.(*Document).Clone()
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.loadLocked(userID)
	if err != nil {
		return nil, err
	}
	s.cacheDocument(userID, doc)
	return doc.Clone()
}

// Update applies fn to the user's document under the user's lock, stamps
// last_updated, persists atomically, and invalidates the read cache.
// The updated document copy is returned.
func (s *FileStore) Update(userID string, fn func(doc *Document) error) (*Document, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.loadLocked(userID)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	doc.LastUpdated = Timestamp()
	if err := s.writeLocked(userID, doc); err != nil {
		return nil, err
	}
	s.cache.Delete(userID)
	return doc.Clone()
}

// loadLocked reads the document from disk. The caller must hold the user
// lock. Missing files initialize the default schema; corrupt files are
// backed up to a .corrupt sidecar and reinitialized.
func (s *FileStore) loadLocked(userID string) (*Document, error) {
	path, err := s.pathForUser(userID)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		doc := NewDocument()
		doc.LastUpdated = Timestamp()
		if err := s.writeLocked(userID, doc); err != nil {
			return nil, err
		}
		s.log.Infof("initialized memory document for user %s", userID)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: read %s: %w", path, err)
	}

	doc := &Document{}
	if err := json.Unmarshal(b, doc); err != nil {
		// Never lose the broken file silently. Keep a sidecar copy,
		// then start the user over with a clean schema.
		backup := path + ".corrupt"
		if werr := os.WriteFile(backup, b, 0o600); werr != nil {
			s.log.Errorf("corrupt document for user %s and backup failed: %v (parse error: %v)", userID, werr, err)
		} else {
			s.log.Errorf("corrupt document for user %s, backed up to %s and reinitialized: %v", userID, backup, err)
		}
		doc = NewDocument()
		doc.LastUpdated = Timestamp()
		if werr := s.writeLocked(userID, doc); werr != nil {
			return nil, werr
		}
		return doc, nil
	}

	normalizeDocument(doc)
	return doc, nil
}

// writeLocked persists the document atomically. The caller must hold the
// user lock.
func (s *FileStore) writeLocked(userID string, doc *Document) error {
	path, err := s.pathForUser(userID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("memory: init user directory: %w", err)
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: encode document: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("memory: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("memory: atomic rename %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) cacheDocument(userID string, doc *Document) {
	clone, err := doc.Clone()
	if err != nil {
		return
	}
	s.cache.Set(userID, clone, readCacheTTL)
}

// normalizeDocument restores non-nil defaults for collections a persisted
// document omitted, so callers never see nil slices or maps.
func normalizeDocument(doc *Document) {
	if doc.Version == "" {
		doc.Version = DocumentVersion
	}
	if doc.Preferences == nil {
		doc.Preferences = make(map[string]interface{})
	}
	if doc.Todos.Pending == nil {
		doc.Todos.Pending = []Todo{}
	}
	if doc.Todos.Scheduled == nil {
		doc.Todos.Scheduled = []Todo{}
	}
	if doc.Todos.InProgress == nil {
		doc.Todos.InProgress = []Todo{}
	}
	if doc.Todos.Completed == nil {
		doc.Todos.Completed = []Todo{}
	}
	if doc.Schedule.Recurring == nil {
		doc.Schedule.Recurring = []RecurringEvent{}
	}
	if doc.Schedule.OneTime == nil {
		doc.Schedule.OneTime = []OneTimeEvent{}
	}
	if doc.Habits == nil {
		doc.Habits = []Habit{}
	}
	if doc.Reminders == nil {
		doc.Reminders = []Reminder{}
	}
	if doc.Followups == nil {
		doc.Followups = []Followup{}
	}
	if doc.Ideas == nil {
		doc.Ideas = []Idea{}
	}
	if doc.Conversations == nil {
		doc.Conversations = []ConversationEntry{}
	}
	if doc.Diary == nil {
		doc.Diary = []DiaryEntry{}
	}
}
