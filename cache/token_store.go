package cache

import (
	"context"
	"time"

	"github.com/coopfeathy/authlib-django/domain"
)

// TokenEntry is the cached projection of an access token: everything the
// bearer-token pipeline needs without touching the repository.
type TokenEntry struct {
	ID         string    `json:"id"`
	TokenValue string    `json:"-"`
	ClientID   string    `json:"client_id"`
	UserID     string    `json:"user_id"`
	Scope      string    `json:"scope"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsRevoked  bool      `json:"is_revoked"`
}

// NewTokenEntry projects a stored token into a cache entry.
func NewTokenEntry(t *domain.Token) *TokenEntry {
	return &TokenEntry{
		ID:         t.ID,
		TokenValue: t.TokenValue,
		ClientID:   t.ClientID,
		UserID:     t.UserID,
		Scope:      t.Scope,
		ExpiresAt:  t.ExpiresAt,
		IsRevoked:  t.IsRevoked,
	}
}

// Token rebuilds a domain token from the cached projection.
func (e *TokenEntry) Token() *domain.Token {
	return &domain.Token{
		ID:         e.ID,
		TokenType:  domain.TokenTypeAccess,
		TokenValue: e.TokenValue,
		ClientID:   e.ClientID,
		UserID:     e.UserID,
		Scope:      e.Scope,
		ExpiresAt:  e.ExpiresAt,
		IsRevoked:  e.IsRevoked,
	}
}

// TokenStore caches access tokens in front of the token repository. Entries
// are keyed by a hash of the token value so raw credentials never land in
// the cache backend.
type TokenStore interface {
	Set(ctx context.Context, entry *TokenEntry) error
	Get(ctx context.Context, tokenValue string) (*TokenEntry, error)
	Delete(ctx context.Context, tokenValue string) error
	DeleteExpired(ctx context.Context) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) int
	Close() error
}
