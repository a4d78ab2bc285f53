package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/entrhq/aide/pkg/assistant/approval"
	"github.com/entrhq/aide/pkg/assistant/tools"
	"github.com/entrhq/aide/pkg/logging"
)

// Manager owns the live sessions. Sessions survive client disconnects;
// they are released only by an explicit reset or by the idle sweep.
type Manager struct {
	provisioner   Provisioner
	autoApprove   []string
	ownerUserID   string
	idleTimeout   time.Duration
	sweepInterval time.Duration
	log           *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	cron *cron.Cron
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithOwnerUserID pins every session's tool invocations to one user.
func WithOwnerUserID(userID string) ManagerOption {
	return func(m *Manager) {
		m.ownerUserID = userID
	}
}

// WithIdleTimeout overrides how long an unused session survives.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithSweepInterval overrides how often idle sessions are reclaimed.
func WithSweepInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// NewManager creates a session manager. autoApprove holds the tool name
// patterns each session's approval manager is seeded with.
func NewManager(provisioner Provisioner, autoApprove []string, opts ...ManagerOption) *Manager {
	log, _ := logging.NewLogger("session")
	m := &Manager{
		provisioner:   provisioner,
		autoApprove:   autoApprove,
		idleTimeout:   time.Hour,
		sweepInterval: 5 * time.Minute,
		log:           log,
		sessions:      make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the idle sweep.
func (m *Manager) Start() error {
	m.cron = cron.New()
	spec := fmt.Sprintf("@every %s", m.sweepInterval)
	if _, err := m.cron.AddFunc(spec, m.reapIdle); err != nil {
		return fmt.Errorf("session: schedule idle sweep: %w", err)
	}
	m.cron.Start()
	return nil
}

// Stop halts the sweep and releases every workspace.
func (m *Manager) Stop(ctx context.Context) {
	if m.cron != nil {
		m.cron.Stop()
	}
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		if err := m.provisioner.Release(ctx, sess.Workspace); err != nil {
			m.log.Warnf("release workspace for session %s: %v", sess.ID, err)
		}
	}
}

// Create provisions a new session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	ws, err := m.provisioner.Provision(ctx, id)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        id,
		Approvals: approval.NewManager(m.autoApprove),
		Deps: &tools.Deps{
			UserID:    m.ownerUserID,
			SessionID: id,
			Workspace: ws.Root,
		},
		Workspace:  ws,
		lastActive: time.Now(),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.log.Infof("created session %s (%s workspace)", id, ws.Kind)
	return sess, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// GetOrCreate returns the named session, creating a fresh one when the ID
// is empty or unknown. created reports whether a new session was made.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (sess *Session, created bool, err error) {
	if id != "" {
		if existing, ok := m.Get(id); ok {
			return existing, false, nil
		}
	}
	sess, err = m.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Reset releases the session's workspace and forgets it entirely.
func (m *Manager) Reset(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: unknown session %s", id)
	}

	sess.Approvals.Clear()
	if err := m.provisioner.Release(ctx, sess.Workspace); err != nil {
		return err
	}
	m.log.Infof("reset session %s", id)
	return nil
}

// List returns the live sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// reapIdle releases sessions that outlived the idle timeout. Sessions
// with a turn in flight are never reclaimed, however stale their clock.
func (m *Manager) reapIdle() {
	now := time.Now()

	m.mu.Lock()
	var idle []*Session
	for id, sess := range m.sessions {
		if sess.Busy() {
			continue
		}
		if sess.IdleSince(m.idleTimeout, now) {
			idle = append(idle, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, sess := range idle {
		if err := m.provisioner.Release(ctx, sess.Workspace); err != nil {
			m.log.Warnf("reap session %s: %v", sess.ID, err)
			continue
		}
		m.log.Infof("reaped idle session %s", sess.ID)
	}
}
