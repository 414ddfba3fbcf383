package authlib

import (
	"context"
	goerrors "errors"

	"github.com/rs/zerolog/log"

	"github.com/coopfeathy/authlib-django/cache"
	"github.com/coopfeathy/authlib-django/errors"
	"github.com/coopfeathy/authlib-django/internal/metrics"
)

// RevocationEndpoint implements RFC 7009 token revocation. Revocation is
// idempotent and deliberately quiet: whether the token was found, foreign,
// already revoked or never existed, the outcome is the same success, so the
// endpoint cannot be used as a token-existence oracle. Only client
// authentication failures are reported.
type RevocationEndpoint struct {
	srv *AuthorizationServer
	// store is the optional bearer-token cache to invalidate on revocation.
	store cache.TokenStore
}

// NewRevocationEndpoint builds the endpoint. store may be nil.
func NewRevocationEndpoint(srv *AuthorizationServer, store cache.TokenStore) *RevocationEndpoint {
	return &RevocationEndpoint{srv: srv, store: store}
}

// Revoke authenticates the requesting client and revokes the presented
// token when it exists and belongs to that client.
func (e *RevocationEndpoint) Revoke(ctx context.Context, r *Request) error {
	client, err := e.srv.authn.Authenticate(ctx, r, []string{
		AuthMethodClientSecretBasic, AuthMethodClientSecretPost, AuthMethodNone,
	})
	if err != nil {
		return err
	}

	value := r.Param("token")
	if value == "" {
		// Nothing to revoke; still a success per the oracle rule.
		return nil
	}

	token, err := e.srv.lookupByHint(ctx, value, r.Param("token_type_hint"))
	if err != nil {
		if goerrors.Is(err, errors.ErrTokenNotFound) {
			return nil
		}
		return err
	}
	if token.ClientID != client.ID {
		log.Debug().Str("client_id", client.ID).Msg("revocation of foreign token ignored")
		return nil
	}

	if err := e.srv.stores.Tokens.RevokeToken(ctx, value); err != nil {
		if goerrors.Is(err, errors.ErrTokenNotFound) {
			return nil
		}
		return err
	}
	if e.store != nil {
		if err := e.store.Delete(ctx, value); err != nil {
			log.Warn().Err(err).Msg("failed to evict revoked token from cache")
		}
	}
	metrics.TokensRevokedTotal.Inc()

	log.Debug().Str("client_id", client.ID).Str("token_type", token.TokenType).
		Msg("token revoked")

	return nil
}
