package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "memories"))
	require.NoError(t, err)
	return store
}

func TestReadInitializesDefaultDocument(t *testing.T) {
	store := newTestStore(t)

	doc, err := store.Read("alice")
	require.NoError(t, err)

	assert.Equal(t, DocumentVersion, doc.Version)
	assert.NotEmpty(t, doc.LastUpdated)
	assert.NotNil(t, doc.Preferences)
	assert.Empty(t, doc.Todos.Pending)
	assert.Empty(t, doc.Conversations)

	// The file exists on disk after first access
	_, err = os.Stat(filepath.Join(store.dir, "alice", "memory.json"))
	assert.NoError(t, err)
}

func TestInvalidUserIDsRejected(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"", "a/b", `a\b`, "..", "../etc"} {
		_, err := store.Read(id)
		assert.ErrorIs(t, err, ErrInvalidUserID, "user id %q", id)
	}
}

func TestUpdateStampsLastUpdatedAndPersists(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Update("bob", func(doc *Document) error {
		doc.Preferences["tone"] = "casual"
		return nil
	})
	require.NoError(t, err)

	// Re-read straight from a fresh store to bypass any cache
	store2, err := NewFileStore(store.dir)
	require.NoError(t, err)
	doc, err := store2.Read("bob")
	require.NoError(t, err)

	assert.Equal(t, "casual", doc.Preferences["tone"])
	assert.NotEmpty(t, doc.LastUpdated)
}

func TestUpdateErrorDoesNotWrite(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Update("carol", func(doc *Document) error {
		doc.Preferences["x"] = "y"
		return ErrTodoNotFound
	})
	require.ErrorIs(t, err, ErrTodoNotFound)

	doc, err := store.Read("carol")
	require.NoError(t, err)
	assert.NotContains(t, doc.Preferences, "x")
}

func TestWriteInvalidatesReadCache(t *testing.T) {
	store := newTestStore(t)

	doc, err := store.Read("dave")
	require.NoError(t, err)
	assert.Empty(t, doc.Todos.Pending)

	_, err = store.Update("dave", func(doc *Document) error {
		doc.Todos.Pending = append(doc.Todos.Pending, Todo{ID: "todo_x", Content: "buy milk"})
		return nil
	})
	require.NoError(t, err)

	// Within the cache TTL, the read must still see the write
	doc, err = store.Read("dave")
	require.NoError(t, err)
	require.Len(t, doc.Todos.Pending, 1)
	assert.Equal(t, "buy milk", doc.Todos.Pending[0].Content)
}

func TestReadReturnsIndependentCopies(t *testing.T) {
	store := newTestStore(t)

	doc1, err := store.Read("erin")
	require.NoError(t, err)
	doc1.Preferences["mutated"] = true

	doc2, err := store.Read("erin")
	require.NoError(t, err)
	assert.NotContains(t, doc2.Preferences, "mutated")
}

func TestCorruptDocumentReinitializedWithBackup(t *testing.T) {
	store := newTestStore(t)

	// Seed a valid document, then corrupt it on disk
	_, err := store.Update("frank", func(doc *Document) error {
		doc.Preferences["keep"] = "me"
		return nil
	})
	require.NoError(t, err)

	path := filepath.Join(store.dir, "frank", "memory.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	// Fresh store so the cached copy cannot mask the corruption
	store2, err := NewFileStore(store.dir)
	require.NoError(t, err)
	doc, err := store2.Read("frank")
	require.NoError(t, err)

	// Reinitialized to the default schema
	assert.Equal(t, DocumentVersion, doc.Version)
	assert.NotContains(t, doc.Preferences, "keep")

	// The broken bytes survive in the sidecar
	backup, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))

	// And the file on disk is valid JSON again
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NoError(t, json.Unmarshal(raw, &Document{}))
}

func TestLoadedDocumentNormalized(t *testing.T) {
	store := newTestStore(t)

	// A hand-written minimal document missing most collections
	dir := filepath.Join(store.dir, "gina")
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memory.json"), []byte(`{"version":"2.0"}`), 0600))

	doc, err := store.Read("gina")
	require.NoError(t, err)

	assert.NotNil(t, doc.Preferences)
	assert.NotNil(t, doc.Todos.Pending)
	assert.NotNil(t, doc.Schedule.Recurring)
	assert.NotNil(t, doc.Reminders)
	assert.NotNil(t, doc.Ideas)
}
