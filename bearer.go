package authlib

import (
	"context"
	goerrors "errors"

	"github.com/rs/zerolog/log"

	"github.com/coopfeathy/authlib-django/cache"
	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

// BearerTokenValidator runs the fixed-order validation pipeline of RFC 6750
// on protected-resource requests. The order is load-bearing: an expired and
// scope-insufficient token must report expired, never insufficient_scope.
type BearerTokenValidator struct {
	tokens domain.TokenRepository
	clock  domain.Clock
	// store is an optional read-through cache in front of the repository.
	store cache.TokenStore
}

// NewBearerTokenValidator builds a validator. store may be nil to read the
// repository directly.
func NewBearerTokenValidator(tokens domain.TokenRepository, clock domain.Clock, store cache.TokenStore) *BearerTokenValidator {
	return &BearerTokenValidator{tokens: tokens, clock: clock, store: store}
}

// Validate checks the presented tokens against the required scope and
// returns the authenticated token. presented carries every token value found
// in the request (header, body, query); more than one location is a
// malformed presentation.
func (v *BearerTokenValidator) Validate(ctx context.Context, presented []string, requiredScope string) (*domain.Token, error) {
	if len(presented) != 1 || presented[0] == "" {
		return nil, errors.NewInvalidRequest("The request presents no usable bearer token")
	}
	value := presented[0]

	token, err := v.lookup(ctx, value)
	if err != nil {
		if goerrors.Is(err, errors.ErrTokenNotFound) {
			return nil, errors.NewInvalidToken("The access token provided is unknown")
		}
		return nil, err
	}
	if token.Expired(v.clock.Now()) {
		return nil, errors.NewInvalidToken("The access token provided is expired")
	}
	if token.IsRevoked {
		return nil, errors.NewInvalidToken("The access token provided is revoked")
	}
	if !ScopeCovers(token.Scope, requiredScope) {
		return nil, errors.NewInsufficientScope()
	}
	return token, nil
}

func (v *BearerTokenValidator) lookup(ctx context.Context, value string) (*domain.Token, error) {
	if v.store != nil {
		if entry, err := v.store.Get(ctx, value); err == nil {
			return entry.Token(), nil
		}
	}
	token, err := v.tokens.GetAccessToken(ctx, value)
	if err != nil {
		return nil, err
	}
	if v.store != nil {
		if err := v.store.Set(ctx, cache.NewTokenEntry(token)); err != nil {
			log.Warn().Err(err).Msg("failed to cache bearer token")
		}
	}
	return token, nil
}
