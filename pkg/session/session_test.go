package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/sqlshift/pkg/notify"
	"github.com/modoterra/sqlshift/pkg/state"
	"github.com/modoterra/sqlshift/pkg/transport/api"
)

type fakeAuth struct {
	mu sync.Mutex

	grant       api.TokenGrant
	generateErr error
	valid       bool
	validateErr error
	revokeErr   error

	generateCalls int
	validateCalls int
	revoked       []string
}

func (f *fakeAuth) GenerateToken(context.Context) (api.TokenGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	return f.grant, f.generateErr
}

func (f *fakeAuth) ValidateToken(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateCalls++
	return f.valid, f.validateErr
}

func (f *fakeAuth) RevokeToken(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return f.revokeErr == nil, f.revokeErr
}

type recorder struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (r *recorder) Notify(n notify.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) last() notify.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return notify.Notice{}
	}
	return r.notices[len(r.notices)-1]
}

var baseTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newStore(auth *fakeAuth, persist Persister) (*Store, *recorder) {
	rec := &recorder{}
	s := New(auth, persist, Options{
		WarnBefore: 10 * time.Minute,
		Notifier:   rec,
		Now:        func() time.Time { return baseTime },
	})
	return s, rec
}

func TestLoginSuccess(t *testing.T) {
	auth := &fakeAuth{grant: api.TokenGrant{Token: "tok-1", Expiry: baseTime.Add(time.Hour)}}
	mem := &state.MemoryStore{}
	s, rec := newStore(auth, mem)

	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	require.True(t, s.Login(context.Background()))

	snap := s.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "tok-1", snap.Token)
	assert.Equal(t, "tok-1", s.Token())

	tok, exp, _ := mem.LoadToken()
	assert.Equal(t, "tok-1", tok, "persisted token matches memory")
	assert.Equal(t, baseTime.Add(time.Hour), exp)

	assert.Equal(t, "Authentication successful", rec.last().Title)
	require.Len(t, events, 2)
	assert.Equal(t, StateAuthenticating, events[0].To)
	assert.Equal(t, StateAuthenticated, events[1].To)
}

func TestLoginFailureStaysUnauthenticated(t *testing.T) {
	auth := &fakeAuth{generateErr: errors.New("boom")}
	s, rec := newStore(auth, &state.MemoryStore{})

	assert.False(t, s.Login(context.Background()))
	assert.Equal(t, StateUnauthenticated, s.State())
	assert.False(t, s.Authenticated())
	assert.Equal(t, "Authentication failed", rec.last().Title)
	assert.Equal(t, notify.LevelError, rec.last().Level)
}

func TestLogoutAlwaysClears(t *testing.T) {
	for _, revokeErr := range []error{nil, errors.New("network down")} {
		name := "revoke ok"
		if revokeErr != nil {
			name = "revoke fails"
		}
		t.Run(name, func(t *testing.T) {
			auth := &fakeAuth{grant: api.TokenGrant{Token: "tok-1"}, revokeErr: revokeErr}
			mem := &state.MemoryStore{}
			s, rec := newStore(auth, mem)
			require.True(t, s.Login(context.Background()))

			var states []State
			s.Subscribe(func(e Event) { states = append(states, e.To) })

			s.Logout(context.Background())

			assert.False(t, s.Authenticated())
			assert.Empty(t, s.Token())
			assert.Equal(t, StateUnauthenticated, s.State())
			assert.Equal(t, []string{"tok-1"}, auth.revoked)
			assert.Equal(t, []State{StateRevokedByUser, StateUnauthenticated}, states)

			tok, _, _ := mem.LoadToken()
			assert.Empty(t, tok)
			assert.Equal(t, "Logged out successfully", rec.last().Title)
		})
	}
}

func TestInitRestoresValidToken(t *testing.T) {
	auth := &fakeAuth{valid: true}
	mem := &state.MemoryStore{}
	require.NoError(t, mem.SaveToken("saved", baseTime.Add(time.Hour)))
	s, _ := newStore(auth, mem)

	s.Init(context.Background())

	assert.True(t, s.Authenticated())
	assert.Equal(t, "saved", s.Token())
	assert.Equal(t, 0, auth.generateCalls, "restore needs no login round-trip")
	assert.Equal(t, 1, auth.validateCalls)

	s.Init(context.Background())
	assert.Equal(t, 1, auth.validateCalls, "init runs once")
}

func TestInitInvalidTokenIsCleared(t *testing.T) {
	for name, auth := range map[string]*fakeAuth{
		"rejected":          {valid: false},
		"validation errors": {validateErr: errors.New("unreachable")},
	} {
		t.Run(name, func(t *testing.T) {
			mem := &state.MemoryStore{}
			require.NoError(t, mem.SaveToken("stale", baseTime.Add(time.Hour)))
			s, _ := newStore(auth, mem)

			s.Init(context.Background())

			assert.False(t, s.Authenticated())
			assert.Equal(t, StateUnauthenticated, s.State())
			tok, _, _ := mem.LoadToken()
			assert.Empty(t, tok, "stored token removed")
		})
	}
}

func TestInitExpiredTokenSkipsNetwork(t *testing.T) {
	auth := &fakeAuth{valid: true}
	mem := &state.MemoryStore{}
	require.NoError(t, mem.SaveToken("old", baseTime.Add(-5*time.Minute)))
	s, _ := newStore(auth, mem)

	s.Init(context.Background())

	assert.False(t, s.Authenticated())
	assert.Equal(t, 0, auth.validateCalls)
	assert.Equal(t, 0, auth.generateCalls)
	tok, _, _ := mem.LoadToken()
	assert.Empty(t, tok)
}

func TestInitWithoutToken(t *testing.T) {
	auth := &fakeAuth{}
	s, _ := newStore(auth, &state.MemoryStore{})
	s.Init(context.Background())
	assert.Equal(t, StateUnauthenticated, s.State())
	assert.Equal(t, 0, auth.validateCalls)
}

func TestRefreshSwapsToken(t *testing.T) {
	auth := &fakeAuth{grant: api.TokenGrant{Token: "tok-1", Expiry: baseTime.Add(5 * time.Minute)}}
	mem := &state.MemoryStore{}
	s, _ := newStore(auth, mem)
	require.True(t, s.Login(context.Background()))

	auth.grant = api.TokenGrant{Token: "tok-2", Expiry: baseTime.Add(time.Hour)}
	require.True(t, s.Refresh(context.Background()))

	assert.Equal(t, "tok-2", s.Token())
	assert.Equal(t, []string{"tok-1"}, auth.revoked)
	tok, _, _ := mem.LoadToken()
	assert.Equal(t, "tok-2", tok)
}

func TestRefreshFailureKeepsSession(t *testing.T) {
	auth := &fakeAuth{grant: api.TokenGrant{Token: "tok-1"}}
	s, rec := newStore(auth, &state.MemoryStore{})
	require.True(t, s.Login(context.Background()))

	auth.generateErr = errors.New("boom")
	assert.False(t, s.Refresh(context.Background()))
	assert.Equal(t, "tok-1", s.Token())
	assert.True(t, s.Authenticated())
	assert.Equal(t, "Token refresh failed", rec.last().Title)
}

func TestCheckExpiry(t *testing.T) {
	auth := &fakeAuth{grant: api.TokenGrant{Token: "tok-1", Expiry: baseTime.Add(30 * time.Minute)}}
	mem := &state.MemoryStore{}
	s, rec := newStore(auth, mem)
	require.True(t, s.Login(context.Background()))

	st := s.CheckExpiry(baseTime)
	assert.Equal(t, ExpiryOK, st.Kind)
	assert.Equal(t, StateAuthenticated, s.State())

	st = s.CheckExpiry(baseTime.Add(25 * time.Minute))
	assert.Equal(t, ExpiryWarning, st.Kind)
	assert.Equal(t, 5*time.Minute, st.Remaining)
	assert.Equal(t, StateExpiring, s.State())
	assert.True(t, s.Authenticated(), "expiring sessions are still usable")

	warning := rec.last()
	assert.Equal(t, notify.LevelWarning, warning.Level)
	assert.Equal(t, "Session expires soon", warning.Title)
	assert.Equal(t, "at "+baseTime.Add(30*time.Minute).Local().Format(time.Kitchen), warning.Detail,
		"absolute time so the text stays true while shown")
	require.NotNil(t, warning.Action)
	assert.Equal(t, "R", warning.Action.Key)
	assert.True(t, warning.Sticky)

	count := len(rec.notices)
	s.CheckExpiry(baseTime.Add(26 * time.Minute))
	assert.Len(t, rec.notices, count, "warning raised once per token")

	st = s.CheckExpiry(baseTime.Add(30 * time.Minute))
	assert.Equal(t, ExpiryExpired, st.Kind)
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Token())
	assert.Empty(t, auth.revoked, "expiry logs out without a remote call")
	tok, _, _ := mem.LoadToken()
	assert.Empty(t, tok)
}

func TestCheckExpiryWithoutExpiry(t *testing.T) {
	auth := &fakeAuth{grant: api.TokenGrant{Token: "opaque"}}
	s, _ := newStore(auth, &state.MemoryStore{})
	require.True(t, s.Login(context.Background()))
	assert.Equal(t, ExpiryOK, s.CheckExpiry(baseTime.Add(100*time.Hour)).Kind)
}

func TestRequire(t *testing.T) {
	auth := &fakeAuth{grant: api.TokenGrant{Token: "tok"}}
	s, _ := newStore(auth, &state.MemoryStore{})
	assert.ErrorIs(t, s.Require(), ErrNotAuthenticated)
	require.True(t, s.Login(context.Background()))
	assert.NoError(t, s.Require())
}

func TestWatcherStopsOnExpiry(t *testing.T) {
	auth := &fakeAuth{grant: api.TokenGrant{Token: "tok", Expiry: baseTime.Add(-time.Second)}}
	s, _ := newStore(auth, &state.MemoryStore{})
	require.True(t, s.Login(context.Background()))

	var got []ExpiryStatus
	w := NewWatcher(s, time.Hour, nil, func(st ExpiryStatus) { got = append(got, st) })

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after expiry")
	}
	require.Len(t, got, 1)
	assert.Equal(t, ExpiryExpired, got[0].Kind)
}

// hookStore runs a callback once when the token is saved or cleared.
type hookStore struct {
	state.MemoryStore
	onSave  func()
	onClear func()
}

func (h *hookStore) SaveToken(token string, expiry time.Time) error {
	if err := h.MemoryStore.SaveToken(token, expiry); err != nil {
		return err
	}
	if fn := h.onSave; fn != nil {
		h.onSave = nil
		fn()
	}
	return nil
}

func (h *hookStore) ClearToken() error {
	if err := h.MemoryStore.ClearToken(); err != nil {
		return err
	}
	if fn := h.onClear; fn != nil {
		h.onClear = nil
		fn()
	}
	return nil
}

func TestRefreshDuringLogoutLeavesNothingBehind(t *testing.T) {
	auth := &fakeAuth{grant: api.TokenGrant{Token: "old", Expiry: baseTime.Add(time.Hour)}}
	persist := &hookStore{}
	s, _ := newStore(auth, persist)
	ctx := context.Background()
	require.True(t, s.Login(ctx))

	auth.mu.Lock()
	auth.grant = api.TokenGrant{Token: "new", Expiry: baseTime.Add(2 * time.Hour)}
	auth.mu.Unlock()

	refreshed := make(chan bool, 1)
	persist.onClear = func() {
		go func() { refreshed <- s.Refresh(ctx) }()
	}
	s.Logout(ctx)

	select {
	case ok := <-refreshed:
		assert.False(t, ok, "nothing left to refresh after logout")
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never finished")
	}

	tok, _, _ := persist.LoadToken()
	assert.Empty(t, tok)
	assert.Empty(t, s.Token())
	assert.False(t, s.Authenticated())
}

func TestLogoutDuringRefreshRevokesNewToken(t *testing.T) {
	auth := &fakeAuth{grant: api.TokenGrant{Token: "old", Expiry: baseTime.Add(time.Hour)}}
	persist := &hookStore{}
	s, _ := newStore(auth, persist)
	ctx := context.Background()
	require.True(t, s.Login(ctx))

	auth.mu.Lock()
	auth.grant = api.TokenGrant{Token: "new", Expiry: baseTime.Add(2 * time.Hour)}
	auth.mu.Unlock()

	loggedOut := make(chan struct{})
	persist.onSave = func() {
		go func() {
			s.Logout(ctx)
			close(loggedOut)
		}()
	}
	require.True(t, s.Refresh(ctx))

	select {
	case <-loggedOut:
	case <-time.After(2 * time.Second):
		t.Fatal("logout never finished")
	}

	tok, _, _ := persist.LoadToken()
	assert.Empty(t, tok)
	assert.Empty(t, s.Token())
	auth.mu.Lock()
	assert.ElementsMatch(t, []string{"old", "new"}, auth.revoked)
	auth.mu.Unlock()
}

func TestRefreshWithoutSession(t *testing.T) {
	auth := &fakeAuth{grant: api.TokenGrant{Token: "tok-1"}}
	s, _ := newStore(auth, &state.MemoryStore{})

	assert.False(t, s.Refresh(context.Background()))
	assert.Equal(t, 0, auth.generateCalls)
	assert.False(t, s.Authenticated())
}
