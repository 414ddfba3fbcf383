package authlib

import (
	"context"
	goerrors "errors"

	"github.com/rs/zerolog/log"

	"github.com/coopfeathy/authlib-django/errors"
	"github.com/coopfeathy/authlib-django/internal/metrics"
)

// RefreshTokenGrant refreshes an access token (RFC 6749 section 6). Whether
// the presented refresh token is rotated on use is the server's
// RotateRefreshTokens policy, not a fixed contract.
type RefreshTokenGrant struct {
	srv *AuthorizationServer
}

func (g *RefreshTokenGrant) GrantType() string { return "refresh_token" }

func (g *RefreshTokenGrant) TokenResponse(ctx context.Context, r *Request) (*TokenPayload, error) {
	client, err := g.srv.authn.Authenticate(ctx, r, []string{
		AuthMethodClientSecretBasic, AuthMethodClientSecretPost,
	})
	if err != nil {
		return nil, err
	}
	if err := g.srv.contract.CheckGrantType(client, g.GrantType()); err != nil {
		return nil, err
	}

	refreshValue := r.Param("refresh_token")
	if refreshValue == "" {
		return nil, errors.NewInvalidRequest(`Missing "refresh_token" in request`)
	}

	token, err := g.srv.stores.Tokens.GetRefreshToken(ctx, refreshValue)
	if err != nil {
		if goerrors.Is(err, errors.ErrTokenNotFound) {
			return nil, errors.NewInvalidGrant(`Invalid "refresh_token" in request`)
		}
		return nil, err
	}
	if token.IsRevoked || token.Expired(g.srv.clock.Now()) {
		return nil, errors.NewInvalidGrant(`Invalid "refresh_token" in request`)
	}
	if token.ClientID != client.ID {
		return nil, errors.NewInvalidGrant(`Invalid "refresh_token" in request`)
	}

	// Narrowing the original grant is allowed, widening is not.
	scope := token.Scope
	if requested := r.Param("scope"); requested != "" {
		if !ScopeCovers(token.Scope, requested) {
			return nil, errors.NewInvalidScope("The requested scope exceeds the original grant")
		}
		scope = requested
	}

	rotate := g.srv.opts.RotateRefreshTokens
	payload, err := g.srv.issuer.Issue(ctx, client, g.GrantType(), scope, token.UserID, rotate)
	if err != nil {
		return nil, err
	}
	if rotate {
		if err := g.srv.stores.Tokens.RevokeRefreshToken(ctx, refreshValue); err != nil {
			log.Error().Err(err).Str("client_id", client.ID).Msg("failed to revoke rotated refresh token")
			return nil, err
		}
	} else {
		payload.RefreshToken = ""
	}
	metrics.TokensRefreshedTotal.Inc()

	log.Debug().Str("client_id", client.ID).Bool("rotated", rotate).Msg("refresh token exchanged")

	return payload, nil
}
