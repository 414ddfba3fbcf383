package authlib

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopfeathy/authlib-django/errors"
)

func TestClientCredentialsGrant(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	ctx := context.Background()

	r := formReq("grant_type", "client_credentials", "scope", "read")
	r.Authorization = basicAuthHeader("s1", "secret-s1")

	payload, err := env.srv.CreateTokenResponse(ctx, r)
	require.NoError(t, err)
	assert.NotEmpty(t, payload.AccessToken)
	assert.Equal(t, "read", payload.Scope)
	// No resource owner and no refresh token in this flow.
	assert.Empty(t, payload.RefreshToken)

	stored, err := env.stores.Tokens.GetAccessToken(ctx, payload.AccessToken)
	require.NoError(t, err)
	assert.Empty(t, stored.UserID)
	assert.Equal(t, "s1", stored.ClientID)
}

func TestClientCredentialsRequiresSecret(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())

	r := formReq("grant_type", "client_credentials", "client_id", "s1")

	_, err := env.srv.CreateTokenResponse(context.Background(), r)
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidClient, oerr.Code)
}

func TestClientCredentialsGrantNotAllowed(t *testing.T) {
	c := confidentialClient()
	c.AllowedGrantTypes = []string{"authorization_code"}
	env := newTestEnv(Options{}, c)

	r := formReq("grant_type", "client_credentials")
	r.Authorization = basicAuthHeader("s1", "secret-s1")

	_, err := env.srv.CreateTokenResponse(context.Background(), r)
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.UnauthorizedClient, oerr.Code)
}
