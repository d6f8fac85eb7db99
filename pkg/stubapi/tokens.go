package stubapi

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errInvalidToken = errors.New("invalid token")

// issuer signs and checks HS256 bearer tokens and remembers revocations.
type issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> token expiry
}

func newIssuer(key []byte, ttl time.Duration, now func() time.Time) *issuer {
	return &issuer{key: key, ttl: ttl, now: now, revoked: make(map[string]time.Time)}
}

func (i *issuer) issue() (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "sqlshift-client",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	})
	signed, err := tok.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (i *issuer) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.key, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

// verify checks signature, expiry and the revocation list.
func (i *issuer) verify(token string) error {
	claims, err := i.parse(token)
	if err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.revoked[claims.ID]; ok {
		return errInvalidToken
	}
	return nil
}

// revoke reports whether token was live before the call.
func (i *issuer) revoke(token string) bool {
	claims, err := i.parse(token)
	if err != nil {
		return false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.revoked[claims.ID]; ok {
		return false
	}
	i.revoked[claims.ID] = claims.ExpiresAt.Time
	i.pruneLocked()
	return true
}

// pruneLocked drops revocations whose tokens have expired anyway.
func (i *issuer) pruneLocked() {
	now := i.now()
	for id, exp := range i.revoked {
		if now.After(exp) {
			delete(i.revoked, id)
		}
	}
}
