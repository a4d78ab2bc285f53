package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardValidatePath(t *testing.T) {
	root := t.TempDir()
	g, err := NewGuard(root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative inside", "notes.txt", false},
		{"nested inside", "a/b/c.txt", false},
		{"absolute inside", filepath.Join(root, "doc.md"), false},
		{"root itself", root, false},
		{"dot segments resolving inside", "a/../notes.txt", false},
		{"traversal out", "../outside.txt", true},
		{"deep traversal", "a/../../outside.txt", true},
		{"absolute outside", "/etc/passwd", true},
		{"empty", "", true},
		{"null byte", "a\x00b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := g.ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, resolved == g.Root() ||
				filepath.Dir(resolved) == g.Root() ||
				len(resolved) > len(g.Root()))
		})
	}
}

func TestGuardContains(t *testing.T) {
	g, err := NewGuard(t.TempDir())
	require.NoError(t, err)

	assert.True(t, g.Contains("inside.txt"))
	assert.False(t, g.Contains("../escape.txt"))
}

func TestGuardEmptyRoot(t *testing.T) {
	_, err := NewGuard("")
	assert.Error(t, err)
}
