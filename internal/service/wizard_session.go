package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

// WizardMode distinguishes a new enrollment from an edit of an existing one.
type WizardMode string

const (
	WizardModeCreate WizardMode = "create"
	WizardModeUpdate WizardMode = "update"
)

// WizardSession is one wizard instance. All access to Form and Sequencer goes
// through Do, which serialises callers.
type WizardSession struct {
	ID           string
	Mode         WizardMode
	EnrollmentID string
	OwnerID      string
	CreatedAt    time.Time

	Form      *WizardForm
	Sequencer *WizardSequencer
	Gate      *SubmissionGate

	mu       sync.Mutex
	lastUsed atomic.Int64
}

// NewWizardSession wires a form, its cascade and sequencer listeners and a
// submission gate into a fresh session.
func NewWizardSession(form *WizardForm, validator *StepValidator, now time.Time) *WizardSession {
	if form == nil {
		form = NewWizardForm()
	}
	form.Subscribe(CascadeListener())
	s := &WizardSession{
		ID:        uuid.NewString(),
		Mode:      WizardModeCreate,
		CreatedAt: now,
		Form:      form,
		Sequencer: NewWizardSequencer(form, validator),
		Gate:      NewSubmissionGate(),
	}
	s.touch(now)
	return s
}

// Do runs fn while holding the session lock.
func (s *WizardSession) Do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// LastUsed returns when the session was last accessed.
func (s *WizardSession) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *WizardSession) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// WizardSessionStore keeps live sessions in memory.
type WizardSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*WizardSession
	now      func() time.Time
}

// NewWizardSessionStore creates an empty store. A nil clock uses time.Now.
func NewWizardSessionStore(now func() time.Time) *WizardSessionStore {
	if now == nil {
		now = time.Now
	}
	return &WizardSessionStore{sessions: make(map[string]*WizardSession), now: now}
}

// Put registers a session.
func (st *WizardSessionStore) Put(s *WizardSession) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get returns the session and refreshes its idle timer.
func (st *WizardSessionStore) Get(id string) (*WizardSession, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "wizard session not found")
	}
	s.touch(st.now())
	return s, nil
}

// Delete removes a session and reports whether it existed.
func (st *WizardSessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	return true
}

// Count returns the number of live sessions.
func (st *WizardSessionStore) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for longer than ttl. Sessions with a submission in
// flight are kept.
func (st *WizardSessionStore) Sweep(ttl time.Duration) int {
	cutoff := st.now().Add(-ttl)
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.LastUsed().Before(cutoff) && !s.Gate.InFlight() {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (st *WizardSessionStore) RunSweeper(ctx context.Context, interval, ttl time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := st.Sweep(ttl)
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}
