package session

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Guard enforces workspace boundaries on file paths. Every path a client
// names (uploads, listings) must resolve inside the session's workspace
// root; traversal attempts are rejected.
type Guard struct {
	root string
}

// NewGuard creates a guard for the given workspace root.
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("session: workspace root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("session: resolve workspace root: %w", err)
	}
	return &Guard{root: filepath.Clean(abs)}, nil
}

// Root returns the guarded workspace root.
func (g *Guard) Root() string {
	return g.root
}

// ValidatePath resolves a path relative to the workspace root and verifies
// it stays inside. The cleaned absolute path is returned.
func (g *Guard) ValidatePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("session: path cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("session: path contains null byte")
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(g.root, resolved)
	}
	resolved = filepath.Clean(resolved)

	if resolved != g.root && !strings.HasPrefix(resolved, g.root+string(filepath.Separator)) {
		return "", fmt.Errorf("session: path %q escapes the workspace", path)
	}
	return resolved, nil
}

// Contains reports whether the path sits inside the workspace.
func (g *Guard) Contains(path string) bool {
	_, err := g.ValidatePath(path)
	return err == nil
}
