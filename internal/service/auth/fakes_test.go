// internal/service/auth/fakes_test.go
package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"
	"testing"
	"time"

	"stocksense-service/internal/domain/auth"
	xerrors "stocksense-service/internal/pkg/errors"
	"stocksense-service/internal/pkg/jwt"
	"stocksense-service/internal/pkg/session"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func bcryptHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(hash), err
}

// In-memory collaborators for exercising the auth flows.

type fakeAuthStore struct {
	mu             sync.Mutex
	identities     map[int64]*auth.Identity
	byEmail        map[string]int64
	credentials    map[int64]*auth.Credential
	sessions       []*auth.Session
	tokens         map[string]*auth.VerificationToken
	nextID         int64
	failedAttempts map[int64]int
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		identities:     make(map[int64]*auth.Identity),
		byEmail:        make(map[string]int64),
		credentials:    make(map[int64]*auth.Credential),
		tokens:         make(map[string]*auth.VerificationToken),
		failedAttempts: make(map[int64]int),
	}
}

func (f *fakeAuthStore) FindIdentityByEmail(_ context.Context, email string) (*auth.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[email]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *f.identities[id]
	return &cp, nil
}

func (f *fakeAuthStore) FindIdentityByID(_ context.Context, id int64) (*auth.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *identity
	return &cp, nil
}

func (f *fakeAuthStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byEmail[email]
	return ok, nil
}

func (f *fakeAuthStore) CreateIdentity(_ context.Context, identity *auth.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	identity.ID = f.nextID
	identity.CreatedAt = time.Now()
	cp := *identity
	f.identities[identity.ID] = &cp
	f.byEmail[identity.Email.String] = identity.ID
	return nil
}

func (f *fakeAuthStore) MarkEmailVerified(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	identity.EmailVerified = true
	identity.Status = "active"
	return nil
}

func (f *fakeAuthStore) UpdateIdentityLastLogin(_ context.Context, id int64) error {
	return nil
}

func (f *fakeAuthStore) IncrementFailedLoginAttempts(_ context.Context, id int64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedAttempts[id]++
	return nil
}

func (f *fakeAuthStore) CreateCredential(_ context.Context, cred *auth.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials[cred.IdentityID] = cred
	return nil
}

func (f *fakeAuthStore) FindCredentialByIdentity(_ context.Context, identityID int64) (*auth.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.credentials[identityID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return cred, nil
}

func (f *fakeAuthStore) CreateSession(_ context.Context, s *auth.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = int64(len(f.sessions) + 1)
	f.sessions = append(f.sessions, s)
	return nil
}

func (f *fakeAuthStore) FindSessionByToken(_ context.Context, jti string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.SessionToken == jti {
			return s, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeAuthStore) CreateVerificationToken(_ context.Context, token *auth.VerificationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	token.ID = int64(len(f.tokens) + 1)
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeAuthStore) FindVerificationToken(_ context.Context, tokenType, token string) (*auth.VerificationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok || t.TokenType != tokenType || t.UsedAt.Valid || t.ExpiresAt.Before(time.Now()) {
		return nil, xerrors.ErrNotFound
	}
	return t, nil
}

func (f *fakeAuthStore) MarkTokenAsUsed(_ context.Context, tokenID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.ID == tokenID {
			t.UsedAt.Valid = true
			t.UsedAt.Time = time.Now()
		}
	}
	return nil
}

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[int64]*auth.Profile
	getErr   error
	fetches  int
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[int64]*auth.Profile)}
}

func (f *fakeProfileStore) GetProfile(_ context.Context, identityID int64) (*auth.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[identityID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfileStore) CreateProfile(_ context.Context, profile *auth.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *profile
	f.profiles[profile.ID] = &cp
	return nil
}

func (f *fakeProfileStore) ListProfilesByRole(_ context.Context, role string) ([]*auth.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*auth.Profile
	for _, p := range f.profiles {
		if p.Role == role {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeSessionCache struct {
	mu              sync.Mutex
	sessions        map[string]*session.SessionData // key identity:jti
	blacklist       map[string]bool
	purgeCalls      []int64
	invalidateAll   []int64
	invalidateAllEr error
	purgeErr        error
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{
		sessions:  make(map[string]*session.SessionData),
		blacklist: make(map[string]bool),
	}
}

func cacheKey(identityID int64, jti string) string {
	return fmt.Sprintf("%d:%s", identityID, jti)
}

func (f *fakeSessionCache) CreateSession(_ context.Context, data *session.SessionData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[cacheKey(data.IdentityID, data.JTI)] = data
	return nil
}

func (f *fakeSessionCache) GetSession(_ context.Context, identityID int64, jti string) (*session.SessionData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[cacheKey(identityID, jti)]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessionCache) InvalidateSession(_ context.Context, identityID int64, jti string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, cacheKey(identityID, jti))
	return nil
}

func (f *fakeSessionCache) InvalidateAllUserSessions(_ context.Context, identityID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidateAll = append(f.invalidateAll, identityID)
	if f.invalidateAllEr != nil {
		return f.invalidateAllEr
	}
	for k, s := range f.sessions {
		if s.IdentityID == identityID {
			delete(f.sessions, k)
		}
	}
	return nil
}

func (f *fakeSessionCache) PurgeResidue(_ context.Context, identityID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeCalls = append(f.purgeCalls, identityID)
	if f.purgeErr != nil {
		return f.purgeErr
	}
	for k, s := range f.sessions {
		if s.IdentityID == identityID {
			delete(f.sessions, k)
		}
	}
	return nil
}

func (f *fakeSessionCache) IsTokenBlacklisted(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blacklist[jti], nil
}

func (f *fakeSessionCache) BlacklistToken(_ context.Context, jti string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist[jti] = true
	return nil
}

func (f *fakeSessionCache) GetUserActiveSessions(_ context.Context, identityID int64) ([]*session.SessionData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*session.SessionData
	for _, s := range f.sessions {
		if s.IdentityID == identityID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeLimiter struct {
	loginAllowed        bool
	registrationAllowed bool
	resets              int
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{loginAllowed: true, registrationAllowed: true}
}

func (f *fakeLimiter) CheckLoginAttempt(_ context.Context, _, _ string) (bool, int64, error) {
	return f.loginAllowed, 4, nil
}

func (f *fakeLimiter) ResetLoginAttempts(_ context.Context, _, _ string) error {
	f.resets++
	return nil
}

func (f *fakeLimiter) CheckRegistrationAttempt(_ context.Context, _ string) (bool, error) {
	return f.registrationAllowed, nil
}

type fakeBroker struct {
	mu     sync.Mutex
	events []session.Event
	ch     chan session.Event
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{ch: make(chan session.Event, 16)}
}

func (f *fakeBroker) Publish(_ context.Context, event session.Event) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	select {
	case f.ch <- event:
	default:
	}
}

func (f *fakeBroker) Subscribe(ctx context.Context) (<-chan session.Event, func(), error) {
	return f.ch, func() {}, nil
}

func (f *fakeBroker) published() []session.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.Event, len(f.events))
	copy(out, f.events)
	return out
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string // subjects
}

func (f *fakeMailer) Send(to, subject, bodyHTML string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, subject)
	return nil
}

type serviceHarness struct {
	svc      *AuthService
	store    *fakeAuthStore
	profiles *fakeProfileStore
	cache    *fakeSessionCache
	limiter  *fakeLimiter
	broker   *fakeBroker
	mailer   *fakeMailer
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	manager := jwt.NewManagerFromKeys(priv, &priv.PublicKey, jwt.Config{
		Issuer:   "stocksense",
		Audience: "stocksense-dashboard",
		TTL:      time.Hour,
		KID:      "test-key",
	})

	h := &serviceHarness{
		store:    newFakeAuthStore(),
		profiles: newFakeProfileStore(),
		cache:    newFakeSessionCache(),
		limiter:  newFakeLimiter(),
		broker:   newFakeBroker(),
		mailer:   &fakeMailer{},
	}

	logger := zap.NewNop()
	helper := NewEmailHelper(h.mailer, "https://app.stocksense.test", logger)
	h.svc = NewAuthService(h.store, h.profiles, manager, h.cache, h.limiter, h.broker, helper, logger)
	return h
}

// seedUser creates an active identity with credentials and a profile.
func (h *serviceHarness) seedUser(t *testing.T, email, password, role string) *auth.Identity {
	t.Helper()

	ctx := context.Background()
	hash, err := bcryptHash(password)
	require.NoError(t, err)

	identity := &auth.Identity{
		Email:  nullString(email),
		Status: "active",
	}
	require.NoError(t, h.store.CreateIdentity(ctx, identity))
	require.NoError(t, h.store.CreateCredential(ctx, &auth.Credential{
		IdentityID:   identity.ID,
		PasswordHash: hash,
	}))
	require.NoError(t, h.profiles.CreateProfile(ctx, &auth.Profile{
		ID:    identity.ID,
		Email: email,
		Role:  role,
	}))
	return identity
}
