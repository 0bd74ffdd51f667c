// internal/service/auth/coordinator_test.go
package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"stocksense-service/internal/domain/auth"
	"stocksense-service/internal/gate"
	"stocksense-service/internal/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCoordStore struct {
	mu    sync.Mutex
	cur   *CurrentSession
	err   error
	hang  bool
	calls int
}

func (f *fakeCoordStore) CurrentSession(ctx context.Context) (*CurrentSession, error) {
	f.mu.Lock()
	f.calls++
	cur, err, hang := f.cur, f.err, f.hang
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, nil
	}
	cp := *cur
	return &cp, nil
}

func (f *fakeCoordStore) set(cur *CurrentSession) {
	f.mu.Lock()
	f.cur = cur
	f.mu.Unlock()
}

type fakeFetcher struct {
	mu      sync.Mutex
	profile *auth.Profile
	err     error
	calls   int
	entered chan struct{} // closed on first call, if set
	release chan struct{} // blocks the fetch until closed, if set
}

func (f *fakeFetcher) FetchProfile(ctx context.Context, identityID int64) (*auth.Profile, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	entered, release := f.entered, f.release
	profile, err := f.profile, f.err
	f.mu.Unlock()

	if entered != nil && first {
		close(entered)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}
	cp := *profile
	return &cp, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func startCoordinator(t *testing.T, store *fakeCoordStore, fetcher *fakeFetcher, broker *fakeBroker) *Coordinator {
	t.Helper()

	c := NewCoordinator(store, fetcher, broker, 200*time.Millisecond, zap.NewNop())
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Close)
	return c
}

func waitForState(t *testing.T, c *Coordinator, want func(auth.AuthState) bool) auth.AuthState {
	t.Helper()

	var last auth.AuthState
	require.Eventually(t, func() bool {
		last = c.Snapshot()
		return want(last)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestCoordinatorStartupWithExistingSession(t *testing.T) {
	store := &fakeCoordStore{cur: &CurrentSession{IdentityID: 7, Email: "investor@example.com", JTI: "jti-1"}}
	fetcher := &fakeFetcher{profile: &auth.Profile{ID: 7, Role: auth.RoleInvestor}}

	c := startCoordinator(t, store, fetcher, newFakeBroker())

	state := waitForState(t, c, func(s auth.AuthState) bool {
		return s.Authenticated() && !s.IsLoading
	})
	assert.Equal(t, int64(7), state.Identity.ID)
	assert.False(t, state.IsAdmin)
	require.NotNil(t, state.Profile)
}

func TestCoordinatorStartupWithAdminSession(t *testing.T) {
	store := &fakeCoordStore{cur: &CurrentSession{IdentityID: 1, JTI: "jti-admin"}}
	fetcher := &fakeFetcher{profile: &auth.Profile{ID: 1, Role: auth.RoleAdmin}}

	c := startCoordinator(t, store, fetcher, newFakeBroker())

	state := waitForState(t, c, func(s auth.AuthState) bool { return !s.IsLoading })
	assert.True(t, state.IsAdmin)
}

func TestCoordinatorStartupWithoutSession(t *testing.T) {
	c := startCoordinator(t, &fakeCoordStore{}, &fakeFetcher{}, newFakeBroker())

	state := waitForState(t, c, func(s auth.AuthState) bool { return !s.IsLoading })
	assert.False(t, state.Authenticated())
	assert.False(t, state.IsAdmin)
}

func TestCoordinatorStartupCheckTimeout(t *testing.T) {
	// The session store never answers; the bounded check must resolve
	// the state to signed out instead of loading forever.
	c := startCoordinator(t, &fakeCoordStore{hang: true}, &fakeFetcher{}, newFakeBroker())

	state := waitForState(t, c, func(s auth.AuthState) bool { return !s.IsLoading })
	assert.False(t, state.Authenticated())
}

func TestCoordinatorProfileFailureDegrades(t *testing.T) {
	store := &fakeCoordStore{cur: &CurrentSession{IdentityID: 7, JTI: "jti-1"}}
	fetcher := &fakeFetcher{err: assert.AnError}

	c := startCoordinator(t, store, fetcher, newFakeBroker())

	// Still signed in, just never admin.
	state := waitForState(t, c, func(s auth.AuthState) bool { return !s.IsLoading })
	assert.True(t, state.Authenticated())
	assert.False(t, state.IsAdmin)
	assert.Nil(t, state.Profile)
}

func TestCoordinatorSignInAndRevokeEvents(t *testing.T) {
	store := &fakeCoordStore{}
	fetcher := &fakeFetcher{profile: &auth.Profile{ID: 7, Role: auth.RoleInvestor}}
	broker := newFakeBroker()

	c := startCoordinator(t, store, fetcher, broker)
	waitForState(t, c, func(s auth.AuthState) bool { return !s.IsLoading })

	store.set(&CurrentSession{IdentityID: 7, JTI: "jti-1"})
	broker.Publish(context.Background(), session.Event{
		Type: session.EventSignedIn, IdentityID: 7, JTI: "jti-1", Established: true,
	})

	state := waitForState(t, c, func(s auth.AuthState) bool {
		return s.Authenticated() && !s.IsLoading
	})
	assert.Equal(t, int64(7), state.Identity.ID)

	broker.Publish(context.Background(), session.Event{
		Type: session.EventRevoked, IdentityID: 7, JTI: "jti-1",
	})

	state = waitForState(t, c, func(s auth.AuthState) bool { return !s.Authenticated() })
	assert.False(t, state.IsAdmin)
	assert.Nil(t, state.Profile)
}

func TestCoordinatorApplyIsIdempotent(t *testing.T) {
	store := &fakeCoordStore{cur: &CurrentSession{IdentityID: 7, JTI: "jti-1"}}
	fetcher := &fakeFetcher{profile: &auth.Profile{ID: 7, Role: auth.RoleInvestor}}
	broker := newFakeBroker()

	c := startCoordinator(t, store, fetcher, broker)
	waitForState(t, c, func(s auth.AuthState) bool { return !s.IsLoading })

	// The same session arriving again, as an event racing the startup
	// check would, must not reset the state or refetch the profile.
	for i := 0; i < 3; i++ {
		broker.Publish(context.Background(), session.Event{
			Type: session.EventSignedIn, IdentityID: 7, JTI: "jti-1", Established: true,
		})
	}

	time.Sleep(50 * time.Millisecond)
	state := c.Snapshot()
	assert.True(t, state.Authenticated())
	assert.False(t, state.IsLoading)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestCoordinatorStaleProfileFetchDiscarded(t *testing.T) {
	store := &fakeCoordStore{cur: &CurrentSession{IdentityID: 7, JTI: "jti-1"}}
	fetcher := &fakeFetcher{
		profile: &auth.Profile{ID: 7, Role: auth.RoleAdmin},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	broker := newFakeBroker()

	c := startCoordinator(t, store, fetcher, broker)

	// Wait until the profile fetch is in flight, then sign out from
	// underneath it.
	select {
	case <-fetcher.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("profile fetch never started")
	}

	broker.Publish(context.Background(), session.Event{
		Type: session.EventRevoked, IdentityID: 7,
	})
	waitForState(t, c, func(s auth.AuthState) bool { return !s.Authenticated() })

	close(fetcher.release)

	// The late fetch result must not resurrect the revoked session.
	time.Sleep(50 * time.Millisecond)
	state := c.Snapshot()
	assert.False(t, state.Authenticated())
	assert.False(t, state.IsAdmin)
	assert.Nil(t, state.Profile)
}

func TestCoordinatorNewSessionReplacesOld(t *testing.T) {
	store := &fakeCoordStore{cur: &CurrentSession{IdentityID: 7, JTI: "jti-1"}}
	fetcher := &fakeFetcher{profile: &auth.Profile{ID: 7, Role: auth.RoleInvestor}}
	broker := newFakeBroker()

	c := startCoordinator(t, store, fetcher, broker)
	waitForState(t, c, func(s auth.AuthState) bool { return !s.IsLoading })

	broker.Publish(context.Background(), session.Event{
		Type: session.EventSignedIn, IdentityID: 7, JTI: "jti-2", Established: true,
	})

	// The replacement session keeps the resolved state visible while the
	// profile re-fetches in the background.
	state := c.Snapshot()
	assert.True(t, state.Authenticated())

	require.Eventually(t, func() bool {
		return fetcher.callCount() == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCoordinatorSnapshotFeedsGate(t *testing.T) {
	store := &fakeCoordStore{cur: &CurrentSession{IdentityID: 7, JTI: "jti-1"}}
	fetcher := &fakeFetcher{profile: &auth.Profile{ID: 7, Role: auth.RoleInvestor}}

	c := startCoordinator(t, store, fetcher, newFakeBroker())
	state := waitForState(t, c, func(s auth.AuthState) bool { return !s.IsLoading })

	decision := gate.Decide(gate.SnapshotOf(state), gate.Requirements{RequireAuth: true})
	assert.Equal(t, gate.Render, decision.Outcome)

	decision = gate.Decide(gate.SnapshotOf(state), gate.Requirements{RequireAuth: true, RequireAdmin: true})
	assert.Equal(t, gate.Redirect, decision.Outcome)
	assert.Equal(t, gate.InvestorLanding, decision.Target)
}
