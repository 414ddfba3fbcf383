package domain

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ClientType represents the type of OAuth2 client
type ClientType string

const (
	// Confidential clients can securely store secrets
	Confidential ClientType = "confidential"
	// Public clients cannot securely store secrets (mobile apps, SPAs)
	Public ClientType = "public"
)

// Client represents a registered OAuth2 client application. It is owned by
// the ClientStore; the engine only reads it.
type Client struct {
	ID                   string     `bson:"client_id" json:"client_id"`
	Secret               string     `bson:"client_secret,omitempty" json:"client_secret,omitempty"`
	Type                 ClientType `bson:"client_type" json:"client_type"`
	Name                 string     `bson:"client_name,omitempty" json:"client_name,omitempty"`
	RedirectURIs         []string   `bson:"redirect_uris" json:"redirect_uris"`
	AllowedScopes        []string   `bson:"allowed_scopes" json:"allowed_scopes"`
	AllowedGrantTypes    []string   `bson:"allowed_grant_types" json:"allowed_grant_types"`
	AllowedResponseTypes []string   `bson:"allowed_response_types" json:"allowed_response_types"`
	TokenEndpointAuth    string     `bson:"token_endpoint_auth_method" json:"token_endpoint_auth_method"`
}

// CheckGrantType reports whether the client is registered for the grant type.
func (c *Client) CheckGrantType(grantType string) bool {
	return contains(c.AllowedGrantTypes, grantType)
}

// CheckResponseType reports whether the client is registered for the
// authorization-endpoint response type.
func (c *Client) CheckResponseType(responseType string) bool {
	return contains(c.AllowedResponseTypes, responseType)
}

// CheckRedirectURI reports whether uri exactly matches a registered redirect
// URI. Matching is byte-for-byte, no normalization.
func (c *Client) CheckRedirectURI(uri string) bool {
	return contains(c.RedirectURIs, uri)
}

// DefaultRedirectURI returns the sole registered redirect URI, or "" when the
// client has none or more than one registered.
func (c *Client) DefaultRedirectURI() string {
	if len(c.RedirectURIs) == 1 {
		return c.RedirectURIs[0]
	}
	return ""
}

// CheckTokenEndpointAuthMethod reports whether the client is configured for
// the given token-endpoint authentication method.
func (c *Client) CheckTokenEndpointAuthMethod(method string) bool {
	if c.TokenEndpointAuth == "" {
		// Unconfigured clients fall back on the historical default.
		return method == "client_secret_basic"
	}
	return c.TokenEndpointAuth == method
}

// HasClientSecret reports whether the client was issued a secret.
func (c *Client) HasClientSecret() bool {
	return c.Secret != ""
}

// CheckClientSecret verifies a presented secret against the stored one.
// Stored secrets may be plain (compared in constant time) or bcrypt hashes.
func (c *Client) CheckClientSecret(secret string) bool {
	if c.Secret == "" {
		return false
	}
	if strings.HasPrefix(c.Secret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(c.Secret), []byte(secret)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) == 1
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
