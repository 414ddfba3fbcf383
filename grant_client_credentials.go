package authlib

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ClientCredentialsGrant implements the client credentials flow (RFC 6749
// section 4.4): a confidential client trades its own credentials for an
// access token with no resource owner and no refresh token.
type ClientCredentialsGrant struct {
	srv *AuthorizationServer
}

func (g *ClientCredentialsGrant) GrantType() string { return "client_credentials" }

func (g *ClientCredentialsGrant) TokenResponse(ctx context.Context, r *Request) (*TokenPayload, error) {
	client, err := g.srv.authn.Authenticate(ctx, r, []string{
		AuthMethodClientSecretBasic, AuthMethodClientSecretPost,
	})
	if err != nil {
		return nil, err
	}
	if err := g.srv.contract.CheckGrantType(client, g.GrantType()); err != nil {
		return nil, err
	}
	scope, err := g.srv.contract.ResolveScope(client, r.Param("scope"))
	if err != nil {
		return nil, err
	}

	payload, err := g.srv.issuer.Issue(ctx, client, g.GrantType(), scope, "", false)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("client_id", client.ID).Msg("client credentials grant issued")

	return payload, nil
}
