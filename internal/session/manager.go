package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

// Session is the public snapshot of one tutoring session.
type Session struct {
	ID             string    `json:"session_id"`
	Language       string    `json:"language"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// state holds the live session record plus its single-flight task slot.
// Submissions form a chain: each new task cancels the registered one and
// waits on its done channel before running, so at most one task body
// executes at a time and a superseded run never outlives its successor's
// start.
type state struct {
	Session

	// taskMu guards the registered in-flight task below.
	taskMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	token  int64
	next   int64
}

// Manager owns all session state and serializes work per session.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*state
	inactivityTimeout time.Duration
	onLanguageChange  func(sessionID, language string)
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*state),
		inactivityTimeout: inactivityTimeout,
	}
}

// SetLanguageChangeHook registers the callback fired when a session's
// language actually changes.
func (m *Manager) SetLanguageChangeHook(hook func(sessionID, language string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLanguageChange = hook
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create registers a new session with the given language code.
func (m *Manager) Create(language string) *Session {
	now := time.Now().UTC()
	st := &state{
		Session: Session{
			ID:             uuid.NewString(),
			Language:       language,
			Status:         StatusActive,
			StartedAt:      now,
			LastActivityAt: now,
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[st.ID] = st
	return clone(&st.Session)
}

// Ensure returns the session with the given ID, creating it when missing.
// Callers without an ID get a fresh one.
func (m *Manager) Ensure(sessionID, language string) *Session {
	if sessionID == "" {
		return m.Create(language)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[sessionID]
	if ok && st.Status == StatusActive {
		st.LastActivityAt = time.Now().UTC()
		return clone(&st.Session)
	}

	now := time.Now().UTC()
	st = &state{
		Session: Session{
			ID:             sessionID,
			Language:       language,
			Status:         StatusActive,
			StartedAt:      now,
			LastActivityAt: now,
		},
	}
	m.sessions[sessionID] = st
	return clone(&st.Session)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(&st.Session), nil
}

// SetLanguage updates a session's language. The change hook runs only when
// the code actually differs, so repeated selections are cheap no-ops.
func (m *Manager) SetLanguage(sessionID, language string) (changed bool, err error) {
	m.mu.Lock()
	st, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return false, ErrNotFound
	}
	changed = st.Language != language
	st.Language = language
	st.LastActivityAt = time.Now().UTC()
	hook := m.onLanguageChange
	m.mu.Unlock()

	if changed && hook != nil {
		hook(sessionID, language)
	}
	return changed, nil
}

// Submit runs fn under the session's single-flight slot. Any in-flight run
// is cancelled and awaited first; fn then executes with a context that is
// cancelled if a later Submit supersedes it.
func (m *Manager) Submit(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	m.mu.RLock()
	st, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	// Take the task slot: cancel the registered run and remember its done
	// channel so we start only after it fully unwinds.
	runCtx, runCancel := context.WithCancel(ctx)
	runDone := make(chan struct{})

	st.taskMu.Lock()
	if st.cancel != nil {
		st.cancel()
	}
	prevDone := st.done
	st.next++
	token := st.next
	st.cancel = runCancel
	st.done = runDone
	st.token = token
	st.taskMu.Unlock()

	defer func() {
		runCancel()
		close(runDone)
		st.taskMu.Lock()
		if st.token == token {
			st.cancel = nil
			st.done = nil
			st.token = 0
		}
		st.taskMu.Unlock()
	}()

	if prevDone != nil {
		<-prevDone
	}
	if err := runCtx.Err(); err != nil {
		// Superseded or abandoned before it could start.
		return err
	}

	m.Touch(sessionID)
	err := fn(runCtx)
	// A superseded run never delivers its result, even when fn finished
	// cleanly after the cancel landed.
	if cancelErr := runCtx.Err(); cancelErr != nil {
		return cancelErr
	}
	return err
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	st.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	st, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	st.Status = StatusEnded
	st.LastActivityAt = time.Now().UTC()
	snapshot := clone(&st.Session)
	m.mu.Unlock()

	st.taskMu.Lock()
	cancel := st.cancel
	st.taskMu.Unlock()
	if cancel != nil {
		cancel()
	}
	return snapshot, nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, st := range m.sessions {
		if st.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, st := range m.sessions {
		if now.Sub(st.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		if st.Status == StatusEnded {
			// Ended entries linger for one more timeout so late reads
			// still see the final state, then leave the registry.
			delete(m.sessions, id)
			continue
		}
		st.Status = StatusEnded
		st.LastActivityAt = now
		expired = append(expired, clone(&st.Session))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
