package authlib

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopfeathy/authlib-django/errors"
)

func introspectReq(extra ...string) *Request {
	r := formReq(extra...)
	r.Authorization = basicAuthHeader("s1", "secret-s1")
	return r
}

func TestIntrospectActiveToken(t *testing.T) {
	env := newTestEnv(Options{Issuer: "https://auth.example.com"}, confidentialClient())
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, confidentialClient(), "authorization_code", "read", "u1", false)
	require.NoError(t, err)

	result, err := env.srv.IntrospectToken(ctx, introspectReq("token", payload.AccessToken))
	require.NoError(t, err)
	assert.True(t, result.Active)
	assert.Equal(t, "read", result.Scope)
	assert.Equal(t, "s1", result.ClientID)
	assert.Equal(t, "u1", result.Sub)
	assert.Equal(t, "https://auth.example.com", result.Iss)
	assert.Equal(t, "access_token", result.TokenType)
	assert.NotZero(t, result.Exp)
}

func TestIntrospectUnknownTokenInactive(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())

	result, err := env.srv.IntrospectToken(context.Background(), introspectReq("token", "never-issued"))
	require.NoError(t, err)
	assert.False(t, result.Active)
	assert.Empty(t, result.ClientID)
}

func TestIntrospectExpiredTokenInactive(t *testing.T) {
	env := newTestEnv(Options{AccessTokenTTL: time.Hour}, confidentialClient())
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, confidentialClient(), "client_credentials", "read", "", false)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)

	result, err := env.srv.IntrospectToken(ctx, introspectReq("token", payload.AccessToken))
	require.NoError(t, err)
	assert.False(t, result.Active)
}

func TestIntrospectRevokedTokenInactive(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, confidentialClient(), "client_credentials", "read", "", false)
	require.NoError(t, err)
	require.NoError(t, env.stores.Tokens.RevokeToken(ctx, payload.AccessToken))

	result, err := env.srv.IntrospectToken(ctx, introspectReq("token", payload.AccessToken))
	require.NoError(t, err)
	assert.False(t, result.Active)
}

func TestIntrospectForeignTokenInactive(t *testing.T) {
	other := confidentialClient()
	other.ID = "s2"
	other.Secret = "secret-s2"
	env := newTestEnv(Options{}, confidentialClient(), other)
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, other, "client_credentials", "read", "", false)
	require.NoError(t, err)

	// s1 asking about s2's token learns nothing.
	result, err := env.srv.IntrospectToken(ctx, introspectReq("token", payload.AccessToken))
	require.NoError(t, err)
	assert.False(t, result.Active)
}

func TestIntrospectRefreshTokenByHint(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, confidentialClient(), "authorization_code", "read", "u1", true)
	require.NoError(t, err)

	result, err := env.srv.IntrospectToken(ctx, introspectReq(
		"token", payload.RefreshToken,
		"token_type_hint", "refresh_token"))
	require.NoError(t, err)
	assert.True(t, result.Active)
	assert.Equal(t, "refresh_token", result.TokenType)
}

func TestIntrospectMissingToken(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())

	_, err := env.srv.IntrospectToken(context.Background(), introspectReq())
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidRequest, oerr.Code)
}

func TestIntrospectRequiresAuthentication(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())

	_, err := env.srv.IntrospectToken(context.Background(), formReq("token", "x", "client_id", "s1"))
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidClient, oerr.Code)
}
