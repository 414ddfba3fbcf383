package domain

import "time"

// Code challenge methods accepted for PKCE-protected authorization codes.
const (
	CodeChallengePlain = "plain"
	CodeChallengeS256  = "S256"
)

// AuthCode represents an OAuth 2.0 authorization code.
type AuthCode struct {
	Code        string    `bson:"code" json:"code"`                 // Unique authorization code
	ClientID    string    `bson:"client_id" json:"client_id"`       // Client application ID
	UserID      string    `bson:"user_id" json:"user_id"`           // Resource owner who granted the request
	RedirectURI string    `bson:"redirect_uri" json:"redirect_uri"` // Redirect URI as presented, empty when omitted
	Scope       string    `bson:"scope" json:"scope"`               // Granted scopes
	ExpiresAt   time.Time `bson:"expires_at" json:"expires_at"`     // Expiration timestamp
	Used        bool      `bson:"used" json:"used"`                 // Whether code has been exchanged
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`     // Creation timestamp

	CodeChallenge       string `bson:"code_challenge,omitempty" json:"code_challenge,omitempty"`
	CodeChallengeMethod string `bson:"code_challenge_method,omitempty" json:"code_challenge_method,omitempty"`
}

// Expired reports whether the code has passed its expiry at the given instant.
func (c *AuthCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
