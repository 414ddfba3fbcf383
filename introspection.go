package authlib

import (
	"context"
	goerrors "errors"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

// IntrospectToken implements RFC 7662 token introspection. Unknown, expired,
// revoked and foreign tokens all introspect as inactive rather than erroring,
// for the same oracle-avoidance reason as revocation.
func (s *AuthorizationServer) IntrospectToken(ctx context.Context, r *Request) (*TokenIntrospection, error) {
	client, err := s.authn.Authenticate(ctx, r, []string{
		AuthMethodClientSecretBasic, AuthMethodClientSecretPost,
	})
	if err != nil {
		return nil, err
	}

	value := r.Param("token")
	if value == "" {
		return nil, errors.NewInvalidRequest(`Missing "token" in request`)
	}

	token, err := s.lookupByHint(ctx, value, r.Param("token_type_hint"))
	if err != nil {
		if goerrors.Is(err, errors.ErrTokenNotFound) {
			return &TokenIntrospection{Active: false}, nil
		}
		return nil, err
	}
	if token.IsRevoked || token.Expired(s.clock.Now()) || token.ClientID != client.ID {
		return &TokenIntrospection{Active: false}, nil
	}

	return &TokenIntrospection{
		Active:    true,
		Scope:     token.Scope,
		ClientID:  token.ClientID,
		TokenType: token.TokenType,
		Exp:       token.ExpiresAt.Unix(),
		Iat:       token.CreatedAt.Unix(),
		Sub:       token.UserID,
		Iss:       s.opts.Issuer,
		Jti:       token.ID,
	}, nil
}

func (s *AuthorizationServer) lookupByHint(ctx context.Context, value, hint string) (*domain.Token, error) {
	if hint == domain.TokenTypeRefresh {
		token, err := s.stores.Tokens.GetRefreshToken(ctx, value)
		if err == nil {
			return token, nil
		}
		if !goerrors.Is(err, errors.ErrTokenNotFound) {
			return nil, err
		}
		return s.stores.Tokens.GetAccessToken(ctx, value)
	}
	token, err := s.stores.Tokens.GetAccessToken(ctx, value)
	if err == nil {
		return token, nil
	}
	if !goerrors.Is(err, errors.ErrTokenNotFound) {
		return nil, err
	}
	return s.stores.Tokens.GetRefreshToken(ctx, value)
}
