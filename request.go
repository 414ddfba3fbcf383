// Package authlib implements the protocol core of an OAuth 2.0 authorization
// server: grant dispatch, client authentication, request validation, token
// issuance and validation, and token revocation. It owns no transport or
// storage; callers translate their HTTP runtime into the abstract Request
// model and provide persistence through the domain repository interfaces.
package authlib

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/coopfeathy/authlib-django/domain"
)

// Request is the engine's transport-neutral view of an inbound request:
// the decoded query or form parameters plus the raw Authorization header.
type Request struct {
	// Params holds the query parameters (authorization endpoint) or the
	// form-encoded body parameters (token, device and revocation endpoints).
	Params url.Values
	// Authorization is the raw Authorization header value, when present.
	Authorization string
}

// NewRequest builds a Request from decoded parameters.
func NewRequest(params url.Values, authorization string) *Request {
	if params == nil {
		params = url.Values{}
	}
	return &Request{Params: params, Authorization: authorization}
}

// Param returns the named request parameter, "" when absent.
func (r *Request) Param(name string) string {
	return r.Params.Get(name)
}

// ParamCount returns how many values were supplied for the named parameter.
func (r *Request) ParamCount(name string) int {
	return len(r.Params[name])
}

// BasicAuth decodes client credentials from an HTTP Basic Authorization
// header, per RFC 2617 as profiled by RFC 6749 section 2.3.1.
func (r *Request) BasicAuth() (clientID, clientSecret string, ok bool) {
	const prefix = "Basic "
	if len(r.Authorization) < len(prefix) || !strings.EqualFold(r.Authorization[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(r.Authorization[len(prefix):])
	if err != nil {
		return "", "", false
	}
	id, secret, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	// Credentials are form-urlencoded inside the header.
	if id, err = url.QueryUnescape(id); err != nil {
		return "", "", false
	}
	if secret, err = url.QueryUnescape(secret); err != nil {
		return "", "", false
	}
	return id, secret, true
}

// AuthorizationRequest is the parsed view of an authorization-endpoint
// request. Validation resolves the effective redirect URI and scope and
// attaches the client; the same value is then handed to the response phase.
type AuthorizationRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string

	// Client is the looked-up client, set by validation.
	Client *domain.Client
	// ResolvedRedirectURI is the effective redirect URI after matching the
	// request value against the client's registration.
	ResolvedRedirectURI string
	// GrantedScope is the effective scope after applying scope defaults.
	GrantedScope string

	// fragment records the grant's error/response placement rule.
	fragment bool
}

// ParseAuthorizationRequest extracts the authorization-endpoint parameters
// from a raw request.
func ParseAuthorizationRequest(r *Request) *AuthorizationRequest {
	return &AuthorizationRequest{
		ResponseType:        r.Param("response_type"),
		ClientID:            r.Param("client_id"),
		RedirectURI:         r.Param("redirect_uri"),
		Scope:               r.Param("scope"),
		State:               r.Param("state"),
		CodeChallenge:       r.Param("code_challenge"),
		CodeChallengeMethod: r.Param("code_challenge_method"),
	}
}
