/**
 * @description
 * This file implements session token issuance and verification. A session is
 * an HS256-signed JWT binding the principal's storage id (sub), its kind
 * (customer or employee), the employee role where applicable, a unique jti
 * for revocation, and a bounded expiry. Tokens are stateless; logout is made
 * effective through the optional revoker (a Redis deny-list keyed by jti).
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: Token signing and parsing.
 * - github.com/google/uuid: Principal ids and jti generation.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/portalbank/payments-portal/internal/domain"
)

var (
	// ErrSessionInvalid covers missing, malformed, expired and
	// wrong-signature tokens alike.
	ErrSessionInvalid = errors.New("session token invalid")
	// ErrSessionRevoked marks a structurally valid token that has been
	// logged out.
	ErrSessionRevoked = errors.New("session token revoked")
)

// SessionClaims are the JWT claims carried by a portal session token.
type SessionClaims struct {
	Kind domain.PrincipalKind `json:"kind"`
	Role string               `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SessionRevoker records revoked token ids until their natural expiry and
// answers whether a token id has been revoked.
type SessionRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// SessionManager issues and verifies session tokens.
type SessionManager struct {
	secret  []byte
	ttl     time.Duration
	revoker SessionRevoker
	now     func() time.Time
}

// NewSessionManager creates a SessionManager signing with the given secret.
// revoker may be nil, in which case logout degrades to letting tokens age out.
func NewSessionManager(secret string, ttl time.Duration, revoker SessionRevoker) *SessionManager {
	return &SessionManager{
		secret:  []byte(secret),
		ttl:     ttl,
		revoker: revoker,
		now:     time.Now,
	}
}

// Issue signs a new session token for the given principal identity.
func (m *SessionManager) Issue(principalID uuid.UUID, kind domain.PrincipalKind, role string) (string, error) {
	now := m.now()
	claims := SessionClaims{
		Kind: kind,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, including the revocation
// check when a revoker is configured. It returns the claims on success.
func (m *SessionManager) Verify(ctx context.Context, tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, ErrSessionInvalid
	}
	if claims.Kind != domain.KindCustomer && claims.Kind != domain.KindEmployee {
		return nil, ErrSessionInvalid
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrSessionInvalid
	}

	if m.revoker != nil && claims.ID != "" {
		revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Revocation storage being unreachable must not lock every
			// user out; the token signature and expiry still hold.
			return claims, nil
		}
		if revoked {
			return nil, ErrSessionRevoked
		}
	}
	return claims, nil
}

// RevokeToken invalidates a live token by deny-listing its jti for the
// remainder of its lifetime. A nil revoker makes this a no-op: the token
// then simply ages out at expiry.
func (m *SessionManager) RevokeToken(ctx context.Context, tokenString string) error {
	claims, err := m.Verify(ctx, tokenString)
	if err != nil {
		if errors.Is(err, ErrSessionRevoked) {
			return nil
		}
		return err
	}
	if m.revoker == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.ID, ttl)
}
