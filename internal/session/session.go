// Package session persists the client's platform session so a restarted
// process can resume without signing in again.
package session

import (
	"context"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"taxmatch/internal/gateway"
)

// Store persists at most one session per client.
type Store interface {
	Save(ctx context.Context, sess gateway.Session) error
	// Load returns the stored session; ok is false when none is stored or
	// the stored one has expired.
	Load(ctx context.Context) (sess gateway.Session, ok bool, err error)
	Clear(ctx context.Context) error
}

// FromToken rebuilds a session from a bare access token by reading its
// subject and expiry claims. The signature is not verified here; the
// platform rejects forged tokens on first use.
func FromToken(token string) (gateway.Session, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return gateway.Session{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return gateway.Session{}, fmt.Errorf("token missing subject")
	}
	sess := gateway.Session{AccessToken: token, UserID: claims.Subject}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

func expired(sess gateway.Session) bool {
	return !sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt)
}
