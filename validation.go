package authlib

import (
	"fmt"
	"strings"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

// Contract bundles the request checks every grant variant shares: type
// support, redirect-URI matching and scope resolution. Grants receive it
// from the server rather than reimplementing the rules.
type Contract struct {
	// ServerScopes is the server-wide scope whitelist. Empty means the
	// client registration alone bounds the grantable scopes.
	ServerScopes []string
}

// CheckResponseType fails with unauthorized_client unless the client is
// registered for the requested response type.
func (v *Contract) CheckResponseType(client *domain.Client, responseType string) error {
	if !client.CheckResponseType(responseType) {
		return errors.NewUnauthorizedClient(
			fmt.Sprintf("The client is not authorized to use response_type %q", responseType))
	}
	return nil
}

// CheckGrantType fails with unauthorized_client unless the client is
// registered for the requested grant type.
func (v *Contract) CheckGrantType(client *domain.Client, grantType string) error {
	if !client.CheckGrantType(grantType) {
		return errors.NewUnauthorizedClient(
			fmt.Sprintf("The client is not authorized to use grant_type %q", grantType))
	}
	return nil
}

// ResolveRedirectURI applies the registration rules of RFC 6749 section
// 3.1.2.3: an omitted redirect_uri falls back on the client's sole
// registered URI, and a supplied one must equal a registered URI exactly.
func (v *Contract) ResolveRedirectURI(client *domain.Client, requested string) (string, error) {
	if requested == "" {
		uri := client.DefaultRedirectURI()
		if uri == "" {
			return "", errors.NewInvalidRequest(`Missing "redirect_uri" in request`)
		}
		return uri, nil
	}
	if !client.CheckRedirectURI(requested) {
		return "", errors.NewInvalidRequest(`Invalid "redirect_uri" in request`)
	}
	return requested, nil
}

// ResolveScope validates the requested scope against the intersection of the
// server-wide and client-allowed scopes. An absent request defaults to the
// client's full allowed scope.
func (v *Contract) ResolveScope(client *domain.Client, requested string) (string, error) {
	allowed := client.AllowedScopes
	if len(v.ServerScopes) > 0 {
		allowed = intersectScopes(allowed, v.ServerScopes)
	}
	if requested == "" {
		return strings.Join(allowed, " "), nil
	}
	for _, s := range SplitScope(requested) {
		if !containsScope(allowed, s) {
			return "", errors.NewInvalidScope(fmt.Sprintf("Scope %q is not allowed", s))
		}
	}
	return requested, nil
}

// SplitScope splits a scope string into its scope tokens.
func SplitScope(scope string) []string {
	return strings.Fields(scope)
}

// ScopeCovers reports whether the granted scope string includes every token
// of the required scope string.
func ScopeCovers(granted, required string) bool {
	have := SplitScope(granted)
	for _, s := range SplitScope(required) {
		if !containsScope(have, s) {
			return false
		}
	}
	return true
}

func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func intersectScopes(a, b []string) []string {
	out := make([]string, 0, len(a))
	for _, s := range a {
		if containsScope(b, s) {
			out = append(out, s)
		}
	}
	return out
}
