// Package echo adapts the grant engine to HTTP using the Echo framework.
// Handlers translate HTTP requests into the engine's transport-neutral
// Request, dispatch, and serialize the outcome (JSON payloads, 302 redirects,
// RFC 6749 error documents).
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	authlib "github.com/coopfeathy/authlib-django"
	"github.com/coopfeathy/authlib-django/errors"
)

// ResourceOwnerFunc resolves the authenticated resource owner for the
// authorization and device-approval surfaces. Returning ok=false means no
// user is signed in and the request is treated as denied.
type ResourceOwnerFunc func(c echo.Context) (userID string, ok bool)

// OAuth2API holds the HTTP-facing dependencies.
type OAuth2API struct {
	srv        *authlib.AuthorizationServer
	revocation *authlib.RevocationEndpoint
	owner      ResourceOwnerFunc
}

// NewOAuth2API initializes the OAuth2 API. The owner callback supplies the
// resource-owner identity for browser-facing endpoints; nil denies everything,
// which suffices for machine-only deployments.
func NewOAuth2API(srv *authlib.AuthorizationServer, revocation *authlib.RevocationEndpoint, owner ResourceOwnerFunc) *OAuth2API {
	if owner == nil {
		owner = func(echo.Context) (string, bool) { return "", false }
	}
	return &OAuth2API{srv: srv, revocation: revocation, owner: owner}
}

// RegisterRoutes registers the OAuth2 routes.
func (oa *OAuth2API) RegisterRoutes(e *echo.Echo) {
	e.GET("/oauth2/authorize", oa.AuthorizeHandler)
	e.POST("/oauth2/token", oa.TokenHandler)
	e.POST("/oauth2/device_authorization", oa.DeviceAuthorizationHandler)
	e.POST("/oauth2/revoke", oa.RevokeHandler)
	e.POST("/oauth2/introspect", oa.IntrospectHandler)
	e.POST("/activate", oa.DeviceApprovalHandler)
	e.GET("/.well-known/oauth-authorization-server", oa.MetadataHandler)
}

// MetadataHandler serves the RFC 8414 authorization-server metadata document.
func (oa *OAuth2API) MetadataHandler(c echo.Context) error {
	meta := oa.srv.Metadata()
	base := meta.Issuer
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
		meta.Issuer = base
	}
	meta.AuthorizationEndpoint = base + "/oauth2/authorize"
	meta.TokenEndpoint = base + "/oauth2/token"
	meta.DeviceAuthorizationEndpoint = base + "/oauth2/device_authorization"
	meta.RevocationEndpoint = base + "/oauth2/revoke"
	meta.IntrospectionEndpoint = base + "/oauth2/introspect"
	return c.JSON(http.StatusOK, meta)
}

// AuthorizeHandler serves the authorization endpoint for redirect-based
// grants. Validation failures that resolved a redirect URI are relayed to the
// client application; everything else is shown as a JSON error document.
func (oa *OAuth2API) AuthorizeHandler(c echo.Context) error {
	ctx := c.Request().Context()
	r := authlib.NewRequest(c.QueryParams(), c.Request().Header.Get(echo.HeaderAuthorization))

	req, err := oa.srv.ValidateAuthorizationRequest(ctx, r)
	if err != nil {
		oerr := errors.AsOAuth2Error(err)
		if redirect := oa.srv.ErrorRedirect(req, oerr); redirect != nil {
			return c.Redirect(http.StatusFound, redirect.Location())
		}
		return writeOAuthError(c, oerr)
	}

	// The resource owner's decision. An empty user denies the request, which
	// the grant turns into an access_denied redirect.
	userID, ok := oa.owner(c)
	if !ok {
		userID = ""
	}

	redirect, err := oa.srv.CreateAuthorizationResponse(ctx, req, userID)
	if err != nil {
		oerr := errors.AsOAuth2Error(err)
		if r := oa.srv.ErrorRedirect(req, oerr); r != nil {
			return c.Redirect(http.StatusFound, r.Location())
		}
		return writeOAuthError(c, oerr)
	}
	return c.Redirect(http.StatusFound, redirect.Location())
}

// TokenHandler serves the token endpoint for every registered grant_type.
func (oa *OAuth2API) TokenHandler(c echo.Context) error {
	r, err := formRequest(c)
	if err != nil {
		return writeOAuthError(c, errors.NewInvalidRequest("Malformed request body"))
	}

	payload, err := oa.srv.CreateTokenResponse(c.Request().Context(), r)
	if err != nil {
		return writeOAuthError(c, errors.AsOAuth2Error(err))
	}

	setNoStore(c)
	return c.JSON(http.StatusOK, payload)
}

// DeviceAuthorizationHandler serves the device-authorization endpoint
// (RFC 8628 section 3.2).
func (oa *OAuth2API) DeviceAuthorizationHandler(c echo.Context) error {
	r, err := formRequest(c)
	if err != nil {
		return writeOAuthError(c, errors.NewInvalidRequest("Malformed request body"))
	}

	payload, err := oa.srv.CreateDeviceAuthorizationResponse(c.Request().Context(), r)
	if err != nil {
		return writeOAuthError(c, errors.AsOAuth2Error(err))
	}

	setNoStore(c)
	return c.JSON(http.StatusOK, payload)
}

// DeviceApprovalHandler records the signed-in user's decision on a pending
// device credential, keyed by the user_code they typed in.
func (oa *OAuth2API) DeviceApprovalHandler(c echo.Context) error {
	userCode := c.FormValue("user_code")
	if userCode == "" {
		return writeOAuthError(c, errors.NewInvalidRequest(`Missing "user_code" in request`))
	}

	userID, ok := oa.owner(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login_required"})
	}

	ctx := c.Request().Context()

	var err error
	if c.FormValue("action") == "deny" {
		_, err = oa.srv.DenyDeviceCode(ctx, userCode)
	} else {
		_, err = oa.srv.ApproveDeviceCode(ctx, userCode, userID)
	}
	if err != nil {
		log.Debug().Err(err).Str("user_code", userCode).Msg("device approval failed")
		return writeOAuthError(c, errors.NewInvalidRequest("Invalid or expired user code"))
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// RevokeHandler serves RFC 7009 token revocation. Per the RFC the endpoint
// reports success for unknown tokens; only client authentication failures
// surface as errors.
func (oa *OAuth2API) RevokeHandler(c echo.Context) error {
	r, err := formRequest(c)
	if err != nil {
		return writeOAuthError(c, errors.NewInvalidRequest("Malformed request body"))
	}

	if err := oa.revocation.Revoke(c.Request().Context(), r); err != nil {
		return writeOAuthError(c, errors.AsOAuth2Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{})
}

// IntrospectHandler serves RFC 7662 token introspection.
func (oa *OAuth2API) IntrospectHandler(c echo.Context) error {
	r, err := formRequest(c)
	if err != nil {
		return writeOAuthError(c, errors.NewInvalidRequest("Malformed request body"))
	}

	introspection, err := oa.srv.IntrospectToken(c.Request().Context(), r)
	if err != nil {
		return writeOAuthError(c, errors.AsOAuth2Error(err))
	}
	return c.JSON(http.StatusOK, introspection)
}

// formRequest builds an engine request from a form-encoded body plus the
// Authorization header.
func formRequest(c echo.Context) (*authlib.Request, error) {
	params, err := c.FormParams()
	if err != nil {
		return nil, err
	}
	return authlib.NewRequest(params, c.Request().Header.Get(echo.HeaderAuthorization)), nil
}

// writeOAuthError serializes a protocol error with its RFC-mandated status
// code. Failed client authentication carries a WWW-Authenticate challenge.
func writeOAuthError(c echo.Context, oerr *errors.OAuth2Error) error {
	status := oerr.StatusCode()
	if oerr.Code == errors.InvalidClient {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="oauth2"`)
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(oerr).Msg("token request failed")
	}
	return c.JSON(status, oerr)
}

func setNoStore(c echo.Context) {
	c.Response().Header().Set("Cache-Control", "no-store")
	c.Response().Header().Set("Pragma", "no-cache")
}
