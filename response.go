package authlib

import (
	"net/url"

	"github.com/coopfeathy/authlib-django/errors"
)

// Redirect describes an authorization-endpoint response: the registered
// redirect URI plus the parameters to deliver, either in the query string
// (authorization code flow) or in the URI fragment (implicit flow).
type Redirect struct {
	URI      string
	Params   url.Values
	Fragment bool
}

// Location assembles the full redirect target.
func (r *Redirect) Location() string {
	u, err := url.Parse(r.URI)
	if err != nil {
		// Redirect URIs were validated against the registration before any
		// Redirect is built; treat a parse failure as a plain base URI.
		return r.URI
	}
	if r.Fragment {
		u.Fragment = ""
		u.RawFragment = ""
		return u.String() + "#" + r.Params.Encode()
	}
	q := u.Query()
	for k, vs := range r.Params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// errorRedirect delivers a protocol error back to the client's redirect URI,
// echoing state when the original request carried one.
func errorRedirect(uri string, fragment bool, oerr *errors.OAuth2Error) *Redirect {
	params := url.Values{}
	params.Set("error", oerr.Code)
	if oerr.Description != "" {
		params.Set("error_description", oerr.Description)
	}
	if oerr.State != "" {
		params.Set("state", oerr.State)
	}
	return &Redirect{URI: uri, Params: params, Fragment: fragment}
}

// TokenPayload is the token-endpoint success body, RFC 6749 section 5.1.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// DeviceAuthorizationPayload is the device-authorization response body,
// RFC 8628 section 3.2.
type DeviceAuthorizationPayload struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// ServerMetadata is the authorization-server metadata document, RFC 8414.
// Endpoint URLs are filled in by the transport adapter, which knows where the
// engine's surfaces are mounted.
type ServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                     string   `json:"token_endpoint,omitempty"`
	DeviceAuthorizationEndpoint       string   `json:"device_authorization_endpoint,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// TokenIntrospection is the introspection response body, RFC 7662.
type TokenIntrospection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Iss       string `json:"iss,omitempty"`
	Jti       string `json:"jti,omitempty"`
}
