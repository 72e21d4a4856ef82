package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

func TestSubmissionGateLifecycle(t *testing.T) {
	ctx := context.Background()
	gate := NewSubmissionGate()
	assert.Equal(t, SubmissionIdle, gate.State())

	require.NoError(t, gate.Begin(ctx))
	assert.True(t, gate.InFlight())
	assert.ErrorIs(t, gate.Begin(ctx), appErrors.ErrSubmissionInFlight)

	require.NoError(t, gate.Fail(ctx))
	assert.Equal(t, SubmissionFailed, gate.State())

	require.NoError(t, gate.Begin(ctx), "a failed submission may be retried")
	require.NoError(t, gate.Succeed(ctx))
	assert.ErrorIs(t, gate.Begin(ctx), appErrors.ErrConflict)
}

func TestSubmissionGateAdmitsOneConcurrentBegin(t *testing.T) {
	gate := NewSubmissionGate()
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.Begin(context.Background()) == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}

func TestSessionStoreGetPutDelete(t *testing.T) {
	store := NewWizardSessionStore(fixedClock)
	session := NewWizardSession(nil, newTestValidator(), fixtureToday)
	store.Put(session)

	got, err := store.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, 1, store.Count())

	assert.True(t, store.Delete(session.ID))
	assert.False(t, store.Delete(session.ID))
	_, err = store.Get(session.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSessionStoreSweepKeepsActiveAndInFlight(t *testing.T) {
	now := fixtureToday
	clock := func() time.Time { return now }
	store := NewWizardSessionStore(clock)

	idle := NewWizardSession(nil, newTestValidator(), now)
	busy := NewWizardSession(nil, newTestValidator(), now)
	require.NoError(t, busy.Gate.Begin(context.Background()))
	store.Put(idle)
	store.Put(busy)

	now = now.Add(20 * time.Minute)
	fresh := NewWizardSession(nil, newTestValidator(), now)
	store.Put(fresh)

	removed := store.Sweep(15 * time.Minute)
	assert.Equal(t, 1, removed)
	_, err := store.Get(idle.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = store.Get(busy.ID)
	assert.NoError(t, err)
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestSessionWiresCascade(t *testing.T) {
	state := completeState()
	state.Billing.ClassID = "class-6a"
	session := NewWizardSession(NewWizardFormFrom(state), newTestValidator(), fixtureToday)

	err := session.Do(func() error {
		return session.Form.SetField(FieldCourse, rawJSON(t, "course-medio"))
	})
	require.NoError(t, err)
	assert.Empty(t, session.Form.State().Billing.LevelID)
	assert.Empty(t, session.Form.State().Billing.ClassID)
}

func TestRunSweeperReportsRemovals(t *testing.T) {
	// the session was last used an hour before the store's clock
	store := NewWizardSessionStore(func() time.Time { return fixtureToday })
	store.Put(NewWizardSession(nil, newTestValidator(), fixtureToday.Add(-time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	removed := make(chan int, 4)
	go store.RunSweeper(ctx, 5*time.Millisecond, 30*time.Minute, func(n int) {
		select {
		case removed <- n:
		default:
		}
	})

	select {
	case n := <-removed:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not run")
	}
	assert.Zero(t, store.Count())
}
