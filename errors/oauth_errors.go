package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard OAuth2 error codes
const (
	InvalidRequest          = "invalid_request"
	InvalidClient           = "invalid_client"
	InvalidGrant            = "invalid_grant"
	UnauthorizedClient      = "unauthorized_client"
	UnsupportedResponseType = "unsupported_response_type"
	UnsupportedGrantType    = "unsupported_grant_type"
	InvalidScope            = "invalid_scope"
	AccessDenied            = "access_denied"
	InvalidToken            = "invalid_token"
	InsufficientScope       = "insufficient_scope"
	AuthorizationPending    = "authorization_pending"
	SlowDown                = "slow_down"
	ExpiredToken            = "expired_token"
	ServerError             = "server_error"
	TemporarilyUnavailable  = "temporarily_unavailable"
)

// OAuth2Error represents a standardized OAuth 2.0 error
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *OAuth2Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// StatusCode maps the error code to the HTTP status used at the token and
// revocation endpoints. invalid_client answers 401 with a challenge header.
func (e *OAuth2Error) StatusCode() int {
	switch e.Code {
	case InvalidClient, InvalidToken:
		return http.StatusUnauthorized
	case InsufficientScope:
		return http.StatusForbidden
	case ServerError:
		return http.StatusInternalServerError
	case TemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// Temporary reports whether the caller may retry the same request later.
// Only the device-flow polling codes qualify.
func (e *OAuth2Error) Temporary() bool {
	return e.Code == AuthorizationPending || e.Code == SlowDown
}

// WithState returns a copy of the error carrying the request state, so
// redirect-based errors echo it verbatim.
func (e *OAuth2Error) WithState(state string) *OAuth2Error {
	if state == "" {
		return e
	}
	cp := *e
	cp.State = state
	return &cp
}

// Common error constructors
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidRequest, Description: description}
}

func NewInvalidClient(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidClient, Description: description}
}

func NewInvalidGrant(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidGrant, Description: description}
}

func NewUnauthorizedClient(description string) *OAuth2Error {
	return &OAuth2Error{Code: UnauthorizedClient, Description: description}
}

func NewUnsupportedResponseType(responseType string) *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedResponseType,
		Description: fmt.Sprintf("response_type %q is not supported", responseType),
	}
}

func NewUnsupportedGrantType(grantType string) *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedGrantType,
		Description: fmt.Sprintf("grant_type %q is not supported", grantType),
	}
}

func NewInvalidScope(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidScope, Description: description}
}

func NewAccessDenied(description string) *OAuth2Error {
	return &OAuth2Error{Code: AccessDenied, Description: description}
}

func NewInvalidToken(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidToken, Description: description}
}

func NewInsufficientScope() *OAuth2Error {
	return &OAuth2Error{
		Code:        InsufficientScope,
		Description: "The request requires higher privileges than provided by the access token",
	}
}

func NewAuthorizationPending() *OAuth2Error {
	return &OAuth2Error{Code: AuthorizationPending}
}

func NewSlowDown() *OAuth2Error {
	return &OAuth2Error{Code: SlowDown}
}

func NewExpiredToken() *OAuth2Error {
	return &OAuth2Error{Code: ExpiredToken, Description: "The device_code has expired"}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{Code: ServerError, Description: description}
}

// AsOAuth2Error converts err to an OAuth2Error. Store and other
// infrastructure failures never leak to clients as-is; anything that is not
// already a protocol error becomes server_error.
func AsOAuth2Error(err error) *OAuth2Error {
	var oerr *OAuth2Error
	if errors.As(err, &oerr) {
		return oerr
	}
	return NewServerError("internal error")
}
