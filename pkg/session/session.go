// Package session owns the bearer-token lifecycle: restore, login, refresh,
// logout and expiry.
//
// States move Unauthenticated → Authenticating → Authenticated →
// (Expiring → Expired | RevokedByUser) → Unauthenticated. Expired and
// RevokedByUser are transient: subscribers see them, then the store settles in
// Unauthenticated.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/modoterra/sqlshift/pkg/core"
	"github.com/modoterra/sqlshift/pkg/notify"
	"github.com/modoterra/sqlshift/pkg/transport/api"
)

// ErrNotAuthenticated is returned by callers that need a live session.
var ErrNotAuthenticated = errors.New("not authenticated: run `sqlshift login` first")

// State is the lifecycle state of the session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateExpiring
	StateExpired
	StateRevokedByUser
)

func (s State) String() string {
	return [...]string{"unauthenticated", "authenticating", "authenticated", "expiring", "expired", "revoked"}[s]
}

// Event describes one state transition.
type Event struct {
	From   State
	To     State
	Reason string
}

// Auth is the remote side of the token lifecycle.
type Auth interface {
	GenerateToken(ctx context.Context) (api.TokenGrant, error)
	ValidateToken(ctx context.Context, token string) (bool, error)
	RevokeToken(ctx context.Context, token string) (bool, error)
}

// Persister stores the token across runs.
type Persister interface {
	LoadToken() (string, time.Time, error)
	SaveToken(token string, expiry time.Time) error
	ClearToken() error
}

// Options tunes a Store.
type Options struct {
	WarnBefore time.Duration
	Notifier   notify.Notifier
	Logger     *slog.Logger
	Now        func() time.Time
}

// Store is the process-wide session state. Methods are safe for concurrent use.
// Remote calls are made without holding mu; opMu runs the token lifecycle
// operations (restore, login, logout, refresh, forced expiry) one at a time so
// memory and storage never disagree.
type Store struct {
	auth       Auth
	persist    Persister
	notifier   notify.Notifier
	logger     *slog.Logger
	now        func() time.Time
	warnBefore time.Duration

	opMu sync.Mutex

	mu       sync.Mutex
	state    State
	token    string
	expiry   time.Time
	warnedOn string // token for which the expiry warning was raised
	subs     map[int]func(Event)
	nextSub  int
	initOnce sync.Once
}

// New creates an unauthenticated store.
func New(auth Auth, persist Persister, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	warn := opts.WarnBefore
	if warn == 0 {
		warn = 10 * time.Minute
	}
	return &Store{
		auth:       auth,
		persist:    persist,
		notifier:   opts.Notifier,
		logger:     logger,
		now:        now,
		warnBefore: warn,
		subs:       make(map[int]func(Event)),
	}
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the token, authenticated flag and expiry.
func (s *Store) Snapshot() core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() core.Session {
	return core.Session{
		Token:         s.token,
		Authenticated: s.token != "" && (s.state == StateAuthenticated || s.state == StateExpiring),
		Expiry:        s.expiry,
	}
}

// Authenticated reports whether a usable token is held.
func (s *Store) Authenticated() bool {
	return s.Snapshot().Authenticated
}

// Subscribe registers fn for every transition.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// transition must be called with s.mu held; it returns the events to publish
// once the lock is released.
func (s *Store) transitionLocked(to State, reason string) []Event {
	if s.state == to {
		return nil
	}
	ev := Event{From: s.state, To: to, Reason: reason}
	s.state = to
	return []Event{ev}
}

func (s *Store) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.logger.Debug("session transition", "from", ev.From, "to", ev.To, "reason", ev.Reason)
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// Init restores a persisted token once per Store. A token already past its
// stored expiry is dropped without any network call; otherwise the token is
// validated remotely and kept only if the service accepts it.
func (s *Store) Init(ctx context.Context) {
	s.initOnce.Do(func() {
		s.opMu.Lock()
		defer s.opMu.Unlock()
		s.restore(ctx)
	})
}

func (s *Store) restore(ctx context.Context) {
	token, expiry, err := s.persist.LoadToken()
	if err != nil {
		s.logger.Warn("load persisted token", "err", err)
		return
	}
	if token == "" {
		return
	}

	if !expiry.IsZero() && !s.now().Before(expiry) {
		s.logger.Info("persisted token expired", "expiry", expiry)
		s.clearPersisted()
		notify.Info(s.notifier, "Session expired, please log in again")
		return
	}

	s.mu.Lock()
	events := s.transitionLocked(StateAuthenticating, "restore")
	s.mu.Unlock()
	s.publish(events)

	valid, err := s.auth.ValidateToken(ctx, token)
	if err != nil || !valid {
		s.logger.Info("persisted token rejected", "valid", valid, "err", err)
		s.clearPersisted()
		s.mu.Lock()
		events = s.transitionLocked(StateUnauthenticated, "restore rejected")
		s.mu.Unlock()
		s.publish(events)
		if err == nil {
			notify.Info(s.notifier, "Saved session is no longer valid")
		}
		return
	}

	s.mu.Lock()
	s.token = token
	s.expiry = expiry
	events = s.transitionLocked(StateAuthenticated, "restored")
	s.mu.Unlock()
	s.publish(events)
}

// Login requests a new token. It reports success and never returns an error;
// failures are surfaced as notices.
func (s *Store) Login(ctx context.Context) bool {
	s.mu.Lock()
	if s.state == StateAuthenticating {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	prev := s.state
	events := s.transitionLocked(StateAuthenticating, "login")
	s.mu.Unlock()
	s.publish(events)

	grant, err := s.auth.GenerateToken(ctx)
	if err == nil {
		err = s.persist.SaveToken(grant.Token, grant.Expiry)
	}
	if err != nil {
		s.logger.Warn("login failed", "err", err)
		s.mu.Lock()
		back := StateUnauthenticated
		if prev == StateAuthenticated || prev == StateExpiring {
			back = prev
		}
		events = s.transitionLocked(back, "login failed")
		s.mu.Unlock()
		s.publish(events)
		notify.Error(s.notifier, "Authentication failed", "")
		return false
	}

	s.mu.Lock()
	s.token = grant.Token
	s.expiry = grant.Expiry
	s.warnedOn = ""
	events = s.transitionLocked(StateAuthenticated, "login")
	s.mu.Unlock()
	s.publish(events)

	s.logger.Info("logged in", "expiry", grant.Expiry)
	notify.Success(s.notifier, "Authentication successful")
	return true
}

// Logout revokes the token remotely on a best-effort basis, then always
// clears local state.
func (s *Store) Logout(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	token := s.Token()
	if token != "" {
		if _, err := s.auth.RevokeToken(ctx, token); err != nil {
			s.logger.Warn("revoke token", "err", err)
		}
	}
	s.end(StateRevokedByUser, "logout")
	notify.Success(s.notifier, "Logged out successfully")
}

// end clears memory and storage, passing through the given terminal state.
func (s *Store) end(terminal State, reason string) {
	s.clearPersisted()

	s.mu.Lock()
	s.token = ""
	s.expiry = time.Time{}
	s.warnedOn = ""
	events := s.transitionLocked(terminal, reason)
	events = append(events, s.transitionLocked(StateUnauthenticated, reason)...)
	s.mu.Unlock()
	s.publish(events)
}

func (s *Store) clearPersisted() {
	if err := s.persist.ClearToken(); err != nil {
		s.logger.Warn("clear persisted token", "err", err)
	}
}

// Refresh swaps the current token for a new one. The old token is revoked on
// a best-effort basis. On failure the current session is kept. Without a
// session there is nothing to refresh and it returns false.
func (s *Store) Refresh(ctx context.Context) bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	old := s.Token()
	if old == "" {
		s.logger.Info("refresh skipped, no session")
		return false
	}

	grant, err := s.auth.GenerateToken(ctx)
	if err == nil {
		err = s.persist.SaveToken(grant.Token, grant.Expiry)
	}
	if err != nil {
		s.logger.Warn("refresh failed", "err", err)
		notify.Error(s.notifier, "Token refresh failed", "")
		return false
	}

	s.mu.Lock()
	s.token = grant.Token
	s.expiry = grant.Expiry
	s.warnedOn = ""
	events := s.transitionLocked(StateAuthenticated, "refresh")
	s.mu.Unlock()
	s.publish(events)

	if _, err := s.auth.RevokeToken(ctx, old); err != nil {
		s.logger.Warn("revoke replaced token", "err", err)
	}
	notify.Success(s.notifier, "Session refreshed")
	return true
}

// ExpiryKind classifies the result of CheckExpiry.
type ExpiryKind int

const (
	ExpiryOK ExpiryKind = iota
	ExpiryWarning
	ExpiryExpired
)

// ExpiryStatus is what CheckExpiry found.
type ExpiryStatus struct {
	Kind      ExpiryKind
	Remaining time.Duration
}

// RefreshAction is the one-click action attached to the expiry warning.
var RefreshAction = notify.Action{Key: "R", Label: "refresh session"}

// CheckExpiry compares the stored expiry with now. Within the warning window
// it moves to Expiring and raises one dismissible warning per token; at or
// past expiry it logs out locally.
func (s *Store) CheckExpiry(now time.Time) ExpiryStatus {
	s.mu.Lock()
	if s.token == "" || s.expiry.IsZero() {
		s.mu.Unlock()
		return ExpiryStatus{Kind: ExpiryOK}
	}
	remaining := s.expiry.Sub(now)

	if remaining <= 0 {
		token, expiry := s.token, s.expiry
		s.mu.Unlock()

		s.opMu.Lock()
		defer s.opMu.Unlock()
		// A refresh or logout may have finished while waiting.
		if s.Token() != token {
			return ExpiryStatus{Kind: ExpiryOK}
		}
		s.logger.Info("session expired", "expiry", expiry)
		s.end(StateExpired, "expired")
		notify.Warn(s.notifier, "Session expired", "log in again to continue")
		return ExpiryStatus{Kind: ExpiryExpired}
	}

	if remaining > s.warnBefore {
		s.mu.Unlock()
		return ExpiryStatus{Kind: ExpiryOK, Remaining: remaining}
	}

	events := s.transitionLocked(StateExpiring, "expiring")
	raise := s.warnedOn != s.token
	s.warnedOn = s.token
	expiry := s.expiry
	s.mu.Unlock()
	s.publish(events)

	if raise && s.notifier != nil {
		action := RefreshAction
		s.notifier.Notify(notify.Notice{
			Level:  notify.LevelWarning,
			Title:  "Session expires soon",
			Detail: "at " + expiry.Local().Format(time.Kitchen),
			Action: &action,
			Sticky: true,
		})
	}
	return ExpiryStatus{Kind: ExpiryWarning, Remaining: remaining}
}

// Require returns ErrNotAuthenticated unless a usable token is held.
func (s *Store) Require() error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	return nil
}
