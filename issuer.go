package authlib

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/internal/metrics"
)

// TokenIssuer mints the tokens a grant hands out. How token values are
// encoded (opaque, JWT, ...) is the issuer's concern; the engine only
// requires that issuance persists the credentials before returning.
type TokenIssuer interface {
	Issue(ctx context.Context, client *domain.Client, grantType, scope, userID string, includeRefresh bool) (*TokenPayload, error)
}

// OpaqueTokenIssuer issues high-entropy opaque token strings and persists
// them through the token repository.
type OpaqueTokenIssuer struct {
	tokens     domain.TokenRepository
	clock      domain.Clock
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewOpaqueTokenIssuer creates the default issuer.
func NewOpaqueTokenIssuer(tokens domain.TokenRepository, clock domain.Clock, accessTTL, refreshTTL time.Duration) *OpaqueTokenIssuer {
	return &OpaqueTokenIssuer{
		tokens:     tokens,
		clock:      clock,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Issue mints an access token, and a refresh token when requested, and
// stores both before returning the response payload.
func (i *OpaqueTokenIssuer) Issue(ctx context.Context, client *domain.Client, grantType, scope, userID string, includeRefresh bool) (*TokenPayload, error) {
	now := i.clock.Now()

	access := &domain.Token{
		ID:         uuid.NewString(),
		TokenType:  domain.TokenTypeAccess,
		TokenValue: newOpaqueValue(),
		ClientID:   client.ID,
		UserID:     userID,
		Scope:      scope,
		ExpiresAt:  now.Add(i.accessTTL),
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if err := i.tokens.StoreToken(ctx, access); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}

	payload := &TokenPayload{
		AccessToken: access.TokenValue,
		TokenType:   "Bearer",
		ExpiresIn:   int64(i.accessTTL / time.Second),
		Scope:       scope,
	}

	if includeRefresh {
		refresh := &domain.Token{
			ID:         uuid.NewString(),
			TokenType:  domain.TokenTypeRefresh,
			TokenValue: newOpaqueValue(),
			ClientID:   client.ID,
			UserID:     userID,
			Scope:      scope,
			ExpiresAt:  now.Add(i.refreshTTL),
			CreatedAt:  now,
			LastUsedAt: now,
		}
		if err := i.tokens.StoreToken(ctx, refresh); err != nil {
			return nil, fmt.Errorf("failed to store refresh token: %w", err)
		}
		payload.RefreshToken = refresh.TokenValue
	}

	metrics.TokensIssuedTotal.WithLabelValues(grantType).Inc()

	return payload, nil
}

// newOpaqueValue generates a high-entropy opaque credential string.
func newOpaqueValue() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// userCodeAlphabet avoids ambiguous characters so user codes survive being
// read aloud or typed from a TV screen.
const userCodeAlphabet = "BCDFGHJKLMNPQRSTVWXZ"

// newUserCode generates a human-facing code in XXXX-XXXX form.
func newUserCode() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = userCodeAlphabet[int(b[i])%len(userCodeAlphabet)]
	}
	return string(b[:4]) + "-" + string(b[4:])
}
