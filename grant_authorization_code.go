package authlib

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	goerrors "errors"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
	"github.com/coopfeathy/authlib-django/internal/metrics"
)

// AuthorizationCodeGrant implements the authorization code flow with PKCE
// (RFC 6749 section 4.1, RFC 7636). It serves both endpoints: response_type
// "code" at the authorization endpoint and grant_type "authorization_code"
// at the token endpoint.
type AuthorizationCodeGrant struct {
	srv *AuthorizationServer
}

func (g *AuthorizationCodeGrant) ResponseType() string { return "code" }
func (g *AuthorizationCodeGrant) GrantType() string    { return "authorization_code" }

// ValidateAuthorizationRequest authenticates the client by public lookup
// (the authorization endpoint never sees a client secret) and runs the
// shared validation contract, capturing the optional PKCE challenge.
func (g *AuthorizationCodeGrant) ValidateAuthorizationRequest(ctx context.Context, req *AuthorizationRequest) error {
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

	if req.CodeChallenge != "" {
		switch req.CodeChallengeMethod {
		case "":
			req.CodeChallengeMethod = domain.CodeChallengePlain
		case domain.CodeChallengePlain, domain.CodeChallengeS256:
		default:
			return errors.NewInvalidRequest(`Unsupported "code_challenge_method"`).WithState(req.State)
		}
	}

	return nil
}

// AuthorizationResponse mints and persists an authorization code for a
// granted request, or delivers access_denied on the redirect URI for a
// denied one. State is echoed either way.
func (g *AuthorizationCodeGrant) AuthorizationResponse(ctx context.Context, req *AuthorizationRequest, userID string) (*Redirect, error) {
	if userID == "" {
		return errorRedirect(req.ResolvedRedirectURI, false,
			errors.NewAccessDenied("The resource owner denied the request").WithState(req.State)), nil
	}

	now := g.srv.clock.Now()
	code := &domain.AuthCode{
		Code:                newOpaqueValue(),
		ClientID:            req.Client.ID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.GrantedScope,
		ExpiresAt:           now.Add(g.srv.opts.AuthCodeTTL),
		CreatedAt:           now,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	}
	if err := g.srv.stores.Codes.SaveAuthCode(ctx, code); err != nil {
		log.Error().Err(err).Str("client_id", req.Client.ID).Msg("failed to save authorization code")
		return nil, err
	}
	metrics.AuthCodesIssuedTotal.Inc()

	params := url.Values{}
	params.Set("code", code.Code)
	if req.State != "" {
		params.Set("state", req.State)
	}
	return &Redirect{URI: req.ResolvedRedirectURI, Params: params}, nil
}

// TokenResponse exchanges an authorization code for tokens. The code is
// atomically marked consumed before issuance so a retransmitted exchange
// fails with invalid_grant instead of double-issuing.
func (g *AuthorizationCodeGrant) TokenResponse(ctx context.Context, r *Request) (*TokenPayload, error) {
	client, err := g.srv.authn.Authenticate(ctx, r, []string{
		AuthMethodClientSecretBasic, AuthMethodClientSecretPost, AuthMethodNone,
	})
	if err != nil {
		return nil, err
	}
	if err := g.srv.contract.CheckGrantType(client, g.GrantType()); err != nil {
		return nil, err
	}

	codeValue := r.Param("code")
	if codeValue == "" {
		return nil, errors.NewInvalidRequest(`Missing "code" in request`)
	}

	code, err := g.srv.stores.Codes.GetAuthCode(ctx, codeValue)
	if err != nil {
		if goerrors.Is(err, errors.ErrAuthCodeNotFound) {
			return nil, errors.NewInvalidGrant(`Invalid "code" in request`)
		}
		return nil, err
	}
	if code.Used || code.Expired(g.srv.clock.Now()) {
		return nil, errors.NewInvalidGrant(`Invalid "code" in request`)
	}
	if code.ClientID != client.ID {
		return nil, errors.NewInvalidGrant(`Invalid "code" in request`)
	}
	// The code records the redirect_uri as the client presented it at the
	// authorization endpoint. Per RFC 6749 section 4.1.3 it must be repeated
	// at the token endpoint only when one was presented there.
	if code.RedirectURI != "" && code.RedirectURI != r.Param("redirect_uri") {
		return nil, errors.NewInvalidGrant(`Invalid "redirect_uri" in request`)
	}
	if code.CodeChallenge != "" {
		if !verifyPKCE(code.CodeChallenge, code.CodeChallengeMethod, r.Param("code_verifier")) {
			return nil, errors.NewInvalidGrant(`Invalid "code_verifier" in request`)
		}
	}

	// Commit point: exactly one exchange may pass this mark.
	if _, err := g.srv.stores.Codes.ConsumeAuthCode(ctx, codeValue); err != nil {
		if goerrors.Is(err, errors.ErrAuthCodeConsumed) || goerrors.Is(err, errors.ErrAuthCodeNotFound) {
			return nil, errors.NewInvalidGrant(`Invalid "code" in request`)
		}
		return nil, err
	}

	includeRefresh := client.CheckGrantType("refresh_token")
	payload, err := g.srv.issuer.Issue(ctx, client, g.GrantType(), code.Scope, code.UserID, includeRefresh)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("client_id", client.ID).Str("user_id", code.UserID).
		Msg("authorization code exchanged")

	return payload, nil
}

// verifyPKCE recomputes the challenge from the submitted verifier using the
// recorded method: byte equality for plain, base64url(SHA-256(verifier)) for
// S256.
func verifyPKCE(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}
	switch method {
	case domain.CodeChallengeS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(computed)) == 1
	default:
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	}
}

// wrapStateless attaches the request state to protocol errors raised before
// the redirect URI was resolved; infrastructure errors pass through.
func wrapStateless(err error, state string) error {
	var oerr *errors.OAuth2Error
	if goerrors.As(err, &oerr) {
		return oerr.WithState(state)
	}
	return err
}
