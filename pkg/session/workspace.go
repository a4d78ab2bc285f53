// Package session manages conversation sessions: their workspaces, their
// history and approval state, and their reclamation when idle.
package session

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/entrhq/aide/pkg/logging"
)

// Workspace kinds.
const (
	KindSandbox    = "sandbox"
	KindFilesystem = "filesystem"
)

// Workspace is the isolated working area backing one session.
type Workspace struct {
	// Kind says which provisioner produced this workspace.
	Kind string

	// Root is the workspace directory. For sandbox workspaces this is the
	// working directory inside the container.
	Root string

	// ContainerID is set for sandbox workspaces only.
	ContainerID string
}

// Provisioner creates and tears down session workspaces.
type Provisioner interface {
	Provision(ctx context.Context, sessionID string) (*Workspace, error)
	Release(ctx context.Context, ws *Workspace) error
}

// DockerProvisioner runs each session workspace as a detached container.
type DockerProvisioner struct {
	image string
	log   *logging.Logger
}

// NewDockerProvisioner creates a provisioner that launches containers from
// the given image.
func NewDockerProvisioner(image string) *DockerProvisioner {
	log, _ := logging.NewLogger("session")
	return &DockerProvisioner{image: image, log: log}
}

// Provision starts a container for the session and returns its workspace.
func (p *DockerProvisioner) Provision(ctx context.Context, sessionID string) (*Workspace, error) {
	name := "aide-session-" + sessionID
	cmd := exec.CommandContext(ctx, "docker", "run", "-d",
		"--name", name,
		"--workdir", "/workspace",
		p.image,
		"sleep", "infinity")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("session: docker run: %w", err)
	}
	containerID := strings.TrimSpace(string(out))
	if containerID == "" {
		return nil, fmt.Errorf("session: docker run returned no container ID")
	}
	p.log.Infof("provisioned sandbox %s for session %s", containerID[:12], sessionID)
	return &Workspace{
		Kind:        KindSandbox,
		Root:        "/workspace",
		ContainerID: containerID,
	}, nil
}

// Release force-removes the session's container.
func (p *DockerProvisioner) Release(ctx context.Context, ws *Workspace) error {
	if ws == nil || ws.ContainerID == "" {
		return nil
	}
	if err := exec.CommandContext(ctx, "docker", "rm", "-f", ws.ContainerID).Run(); err != nil {
		return fmt.Errorf("session: docker rm %s: %w", ws.ContainerID, err)
	}
	return nil
}

// FilesystemProvisioner backs workspaces with plain directories under a
// base path. Used directly in development and as the sandbox fallback.
type FilesystemProvisioner struct {
	base string
}

// NewFilesystemProvisioner creates a provisioner rooted at base.
func NewFilesystemProvisioner(base string) *FilesystemProvisioner {
	return &FilesystemProvisioner{base: base}
}

// Provision creates the session's directory.
func (p *FilesystemProvisioner) Provision(ctx context.Context, sessionID string) (*Workspace, error) {
	root := filepath.Join(p.base, "sessions", sessionID)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("session: create workspace: %w", err)
	}
	return &Workspace{Kind: KindFilesystem, Root: root}, nil
}

// Release removes the session's directory. The path is verified to sit
// under the provisioner's base before anything is deleted.
func (p *FilesystemProvisioner) Release(ctx context.Context, ws *Workspace) error {
	if ws == nil || ws.Root == "" {
		return nil
	}
	base, err := filepath.Abs(p.base)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(ws.Root)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(root, base+string(filepath.Separator)) {
		return fmt.Errorf("session: refusing to remove %s outside workspace base", root)
	}
	return os.RemoveAll(root)
}

// FallbackProvisioner tries the sandbox first and falls back to the
// filesystem. One sandbox failure switches the process to the filesystem
// permanently, so a broken Docker daemon is probed only once.
type FallbackProvisioner struct {
	primary   Provisioner
	secondary Provisioner
	permanent atomic.Bool
	log       *logging.Logger
}

// NewFallbackProvisioner creates the fallback chain.
func NewFallbackProvisioner(primary, secondary Provisioner) *FallbackProvisioner {
	log, _ := logging.NewLogger("session")
	return &FallbackProvisioner{primary: primary, secondary: secondary, log: log}
}

// Provision tries the primary unless it already failed once.
func (p *FallbackProvisioner) Provision(ctx context.Context, sessionID string) (*Workspace, error) {
	if !p.permanent.Load() {
		ws, err := p.primary.Provision(ctx, sessionID)
		if err == nil {
			return ws, nil
		}
		p.permanent.Store(true)
		p.log.Warnf("sandbox provisioning failed, falling back to filesystem permanently: %v", err)
	}
	return p.secondary.Provision(ctx, sessionID)
}

// Release dispatches to whichever provisioner created the workspace.
func (p *FallbackProvisioner) Release(ctx context.Context, ws *Workspace) error {
	if ws == nil {
		return nil
	}
	if ws.Kind == KindSandbox {
		return p.primary.Release(ctx, ws)
	}
	return p.secondary.Release(ctx, ws)
}

// FellBack reports whether the process has switched to the filesystem.
func (p *FallbackProvisioner) FellBack() bool {
	return p.permanent.Load()
}
