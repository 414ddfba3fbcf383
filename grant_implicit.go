package authlib

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/coopfeathy/authlib-django/errors"
)

// ImplicitGrant implements the implicit flow (RFC 6749 section 4.2). It is
// optimized for public clients: the access token is delivered directly in
// the redirect URI's fragment, no code and never a refresh token. Errors are
// placed in the fragment as well.
type ImplicitGrant struct {
	srv *AuthorizationServer
}

func (g *ImplicitGrant) ResponseType() string { return "token" }

// ValidateAuthorizationRequest runs the same validation contract as the
// authorization code flow; only the response placement differs.
func (g *ImplicitGrant) ValidateAuthorizationRequest(ctx context.Context, req *AuthorizationRequest) error {
	req.fragment = true

	client, err := lookupClient(ctx, g.srv.stores.Clients, req.ClientID)
	if err != nil {
		return wrapStateless(err, req.State)
	}
	req.Client = client

	if err := g.srv.contract.CheckResponseType(client, req.ResponseType); err != nil {
		return wrapStateless(err, req.State)
	}
	uri, err := g.srv.contract.ResolveRedirectURI(client, req.RedirectURI)
	if err != nil {
		return wrapStateless(err, req.State)
	}
	req.ResolvedRedirectURI = uri

	scope, err := g.srv.contract.ResolveScope(client, req.Scope)
	if err != nil {
		return wrapStateless(err, req.State)
	}
	req.GrantedScope = scope

	return nil
}

// AuthorizationResponse issues an access token directly and places the token
// parameters in the fragment. Denials carry access_denied in the fragment,
// never the query string.
func (g *ImplicitGrant) AuthorizationResponse(ctx context.Context, req *AuthorizationRequest, userID string) (*Redirect, error) {
	if userID == "" {
		return errorRedirect(req.ResolvedRedirectURI, true,
			errors.NewAccessDenied("The resource owner denied the request").WithState(req.State)), nil
	}

	payload, err := g.srv.issuer.Issue(ctx, req.Client, "implicit", req.GrantedScope, userID, false)
	if err != nil {
		log.Error().Err(err).Str("client_id", req.Client.ID).Msg("failed to issue implicit token")
		return nil, err
	}

	params := url.Values{}
	params.Set("access_token", payload.AccessToken)
	params.Set("token_type", payload.TokenType)
	params.Set("expires_in", strconv.FormatInt(payload.ExpiresIn, 10))
	if payload.Scope != "" {
		params.Set("scope", payload.Scope)
	}
	if req.State != "" {
		params.Set("state", req.State)
	}
	return &Redirect{URI: req.ResolvedRedirectURI, Params: params, Fragment: true}, nil
}
