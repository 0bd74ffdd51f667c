// internal/service/auth/coordinator.go
package auth

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"stocksense-service/internal/domain/auth"
	"stocksense-service/internal/pkg/session"

	"go.uber.org/zap"
)

// CurrentSession is the coordinator's view of an established session.
type CurrentSession struct {
	IdentityID int64
	Email      string
	JTI        string
	ExpiresAt  time.Time
}

// SessionStore answers "is there a session right now" for the principal
// the coordinator tracks. A nil CurrentSession with nil error means no
// session exists.
type SessionStore interface {
	CurrentSession(ctx context.Context) (*CurrentSession, error)
}

// ProfileFetcher loads the role-bearing profile for an identity.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, identityID int64) (*auth.Profile, error)
}

// EventSource delivers session-change events. session.Broker satisfies it.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan session.Event, func(), error)
}

// Coordinator owns one AuthState and is its only writer. It subscribes
// to session-change events before checking for a current session, so no
// transition is lost in the gap, and funnels both paths through a single
// apply goroutine. Profile resolution happens out of line: a session
// transition publishes an authenticated, non-admin state immediately and
// a background fetch upgrades it, discarding the result if the session
// changed underneath it.
type Coordinator struct {
	store    SessionStore
	profiles ProfileFetcher
	events   EventSource
	logger   *zap.Logger

	// bounds the startup current-session check; on expiry the state
	// resolves to unauthenticated rather than staying in loading
	startupTimeout time.Duration

	mu         sync.Mutex
	state      auth.AuthState
	currentJTI string
	identityID int64

	onChange func(auth.AuthState)

	cancel      context.CancelFunc
	unsubscribe func()
	done        chan struct{}
	started     bool
}

func NewCoordinator(store SessionStore, profiles ProfileFetcher, events EventSource, startupTimeout time.Duration, logger *zap.Logger) *Coordinator {
	if startupTimeout <= 0 {
		startupTimeout = 10 * time.Second
	}
	return &Coordinator{
		store:          store,
		profiles:       profiles,
		events:         events,
		logger:         logger,
		startupTimeout: startupTimeout,
		state:          auth.AuthState{IsLoading: true},
		done:           make(chan struct{}),
	}
}

// SetOnChange registers a callback invoked with a state snapshot after
// every transition. Must be called before Start.
func (c *Coordinator) SetOnChange(fn func(auth.AuthState)) {
	c.onChange = fn
}

// Start subscribes to session events, resolves the current session and
// enters the event loop. The subscription is established first so an
// event racing the startup check lands in the channel instead of being
// dropped; the idempotent apply makes the overlap harmless.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	events, unsubscribe, err := c.events.Subscribe(runCtx)
	if err != nil {
		cancel()
		return err
	}
	c.unsubscribe = unsubscribe

	go c.run(runCtx, events)
	return nil
}

// run is the single apply goroutine: the startup check and every
// subsequent event pass through it in order.
func (c *Coordinator) run(ctx context.Context, events <-chan session.Event) {
	defer close(c.done)

	checkCtx, checkCancel := context.WithTimeout(ctx, c.startupTimeout)
	cur, err := c.store.CurrentSession(checkCtx)
	checkCancel()
	if err != nil {
		// An unreachable or slow session store at startup resolves to
		// unauthenticated, never to an indefinite loading state.
		c.logger.Warn("startup session check failed, treating as signed out", zap.Error(err))
		cur = nil
	}
	c.apply(cur)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(ctx, ev)
		}
	}
}

func (c *Coordinator) handleEvent(ctx context.Context, ev session.Event) {
	c.mu.Lock()
	boundID := c.identityID
	c.mu.Unlock()

	// Events for other identities are not ours once a session is bound.
	if boundID != 0 && ev.IdentityID != boundID {
		return
	}

	switch ev.Type {
	case session.EventSignedIn, session.EventRefreshed:
		if boundID == 0 && ev.IdentityID != 0 {
			// Not yet bound; the store decides whether this session is
			// ours. A bound store for another principal returns nil.
			cur, err := c.store.CurrentSession(ctx)
			if err != nil {
				c.logger.Warn("session lookup after event failed", zap.Error(err))
				return
			}
			c.apply(cur)
			return
		}
		c.apply(&CurrentSession{IdentityID: ev.IdentityID, JTI: ev.JTI})
	case session.EventRevoked, session.EventExpired:
		c.mu.Lock()
		jti := c.currentJTI
		c.mu.Unlock()
		// Empty event JTI means an identity-wide revocation.
		if ev.JTI == "" || ev.JTI == jti {
			c.apply(nil)
		}
	}
}

// apply is idempotent: re-applying the session already held, or a signed
// out transition while already signed out, changes nothing.
func (c *Coordinator) apply(cur *CurrentSession) {
	c.mu.Lock()

	if cur == nil {
		if c.currentJTI == "" && !c.state.IsLoading && c.state.Identity == nil {
			c.mu.Unlock()
			return
		}
		c.currentJTI = ""
		c.identityID = 0
		c.state = auth.AuthState{}
		snapshot := c.state
		c.mu.Unlock()
		c.notify(snapshot)
		return
	}

	if cur.JTI != "" && cur.JTI == c.currentJTI {
		c.mu.Unlock()
		return
	}

	// A token refresh for the identity already held keeps the resolved
	// state visible while the profile re-fetches; only a fresh session
	// goes through the loading window.
	refresh := c.state.Identity != nil && c.identityID == cur.IdentityID

	c.currentJTI = cur.JTI
	c.identityID = cur.IdentityID
	next := auth.AuthState{
		Identity: &auth.Identity{
			ID:    cur.IdentityID,
			Email: nullString(cur.Email),
		},
		IsLoading: !refresh,
	}
	if refresh {
		next.Profile = c.state.Profile
		next.IsAdmin = c.state.IsAdmin
	}
	c.state = next
	snapshot := c.state
	jti := cur.JTI
	identityID := cur.IdentityID
	c.mu.Unlock()

	c.notify(snapshot)
	go c.resolveProfile(identityID, jti)
}

// resolveProfile fetches the profile off the apply path. The result is
// discarded if the session changed while the fetch was in flight; a
// fetch failure degrades to an authenticated non-admin state.
func (c *Coordinator) resolveProfile(identityID int64, jti string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	profile, err := c.profiles.FetchProfile(ctx, identityID)
	if err != nil {
		c.logger.Warn("profile fetch failed, session degrades to non-admin",
			zap.Int64("identity_id", identityID), zap.Error(err))
		profile = nil
	}

	c.mu.Lock()
	if c.currentJTI != jti {
		c.mu.Unlock()
		return
	}
	c.state.Profile = profile
	c.state.IsAdmin = profile.IsAdmin()
	c.state.IsLoading = false
	snapshot := c.state
	c.mu.Unlock()

	c.notify(snapshot)
}

func (c *Coordinator) notify(state auth.AuthState) {
	if c.onChange != nil {
		c.onChange(state)
	}
}

// Snapshot returns a copy of the current auth state.
func (c *Coordinator) Snapshot() auth.AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close stops the event loop and unsubscribes, waiting for the apply
// goroutine to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	<-c.done
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
