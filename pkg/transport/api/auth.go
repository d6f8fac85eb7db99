package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenGrant is a freshly issued bearer token.
type TokenGrant struct {
	Token  string
	Expiry time.Time // zero when the service gave no lifetime
}

// GenerateToken asks the service for a new bearer token.
func (c *Client) GenerateToken(ctx context.Context) (TokenGrant, error) {
	var resp GenerateResponse
	if err := c.Request(ctx, http.MethodPost, PathGenerate, nil, nil, &resp); err != nil {
		return TokenGrant{}, err
	}
	if resp.Token == "" {
		err := fmt.Errorf("generate token: empty token in response")
		c.report(err)
		return TokenGrant{}, err
	}

	grant := TokenGrant{Token: resp.Token}
	switch {
	case resp.ExpiresIn > 0:
		grant.Expiry = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	default:
		grant.Expiry = jwtExpiry(resp.Token)
	}
	return grant, nil
}

// ValidateToken reports whether the service still accepts token.
func (c *Client) ValidateToken(ctx context.Context, token string) (bool, error) {
	var resp ValidateResponse
	q := url.Values{"token": {token}}
	if err := c.Request(ctx, http.MethodGet, PathValidate, q, nil, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// RevokeToken invalidates token on the service.
func (c *Client) RevokeToken(ctx context.Context, token string) (bool, error) {
	var resp RevokeResponse
	q := url.Values{"token": {token}}
	if err := c.Request(ctx, http.MethodDelete, PathRevoke, q, nil, &resp); err != nil {
		return false, err
	}
	return resp.Revoked, nil
}

// jwtExpiry reads the exp claim of a JWT without verifying it. Opaque
// tokens and tokens without exp yield the zero time.
func jwtExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
