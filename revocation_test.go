package authlib

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopfeathy/authlib-django/cache"
	"github.com/coopfeathy/authlib-django/errors"
)

func revokeReq(extra ...string) *Request {
	r := formReq(extra...)
	r.Authorization = basicAuthHeader("s1", "secret-s1")
	return r
}

func TestRevokeAccessToken(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	endpoint := NewRevocationEndpoint(env.srv, nil)
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, confidentialClient(), "client_credentials", "read", "", false)
	require.NoError(t, err)

	err = endpoint.Revoke(ctx, revokeReq("token", payload.AccessToken))
	require.NoError(t, err)

	stored, err := env.stores.Tokens.GetAccessToken(ctx, payload.AccessToken)
	require.NoError(t, err)
	assert.True(t, stored.IsRevoked)
}

func TestRevokeRefreshTokenWithHint(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	endpoint := NewRevocationEndpoint(env.srv, nil)
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, confidentialClient(), "authorization_code", "read", "u1", true)
	require.NoError(t, err)

	err = endpoint.Revoke(ctx, revokeReq(
		"token", payload.RefreshToken,
		"token_type_hint", "refresh_token"))
	require.NoError(t, err)

	stored, err := env.stores.Tokens.GetRefreshToken(ctx, payload.RefreshToken)
	require.NoError(t, err)
	assert.True(t, stored.IsRevoked)
}

func TestRevokeWrongHintStillFindsToken(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	endpoint := NewRevocationEndpoint(env.srv, nil)
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, confidentialClient(), "authorization_code", "read", "u1", true)
	require.NoError(t, err)

	// Hinted as access token, but it is a refresh token; the lookup falls
	// through to the other type.
	err = endpoint.Revoke(ctx, revokeReq(
		"token", payload.RefreshToken,
		"token_type_hint", "access_token"))
	require.NoError(t, err)

	stored, err := env.stores.Tokens.GetRefreshToken(ctx, payload.RefreshToken)
	require.NoError(t, err)
	assert.True(t, stored.IsRevoked)
}

func TestRevokeUnknownTokenIsSuccess(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	endpoint := NewRevocationEndpoint(env.srv, nil)

	assert.NoError(t, endpoint.Revoke(context.Background(), revokeReq("token", "never-issued")))
}

func TestRevokeMissingTokenIsSuccess(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	endpoint := NewRevocationEndpoint(env.srv, nil)

	assert.NoError(t, endpoint.Revoke(context.Background(), revokeReq()))
}

func TestRevokeIsIdempotent(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	endpoint := NewRevocationEndpoint(env.srv, nil)
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, confidentialClient(), "client_credentials", "read", "", false)
	require.NoError(t, err)

	require.NoError(t, endpoint.Revoke(ctx, revokeReq("token", payload.AccessToken)))
	assert.NoError(t, endpoint.Revoke(ctx, revokeReq("token", payload.AccessToken)))
}

func TestRevokeForeignTokenIgnored(t *testing.T) {
	other := confidentialClient()
	other.ID = "s2"
	other.Secret = "secret-s2"
	env := newTestEnv(Options{}, confidentialClient(), other)
	endpoint := NewRevocationEndpoint(env.srv, nil)
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, other, "client_credentials", "read", "", false)
	require.NoError(t, err)

	// s1 revoking s2's token reports success but changes nothing.
	require.NoError(t, endpoint.Revoke(ctx, revokeReq("token", payload.AccessToken)))

	stored, err := env.stores.Tokens.GetAccessToken(ctx, payload.AccessToken)
	require.NoError(t, err)
	assert.False(t, stored.IsRevoked)
}

func TestRevokeRequiresClientAuthentication(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	endpoint := NewRevocationEndpoint(env.srv, nil)

	r := formReq("token", "whatever")
	r.Authorization = basicAuthHeader("s1", "wrong-secret")

	err := endpoint.Revoke(context.Background(), r)
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidClient, oerr.Code)
}

func TestRevokeEvictsCache(t *testing.T) {
	env := newTestEnv(Options{}, confidentialClient())
	store := cache.NewMemoryTokenStore(time.Minute)
	defer store.Close()
	endpoint := NewRevocationEndpoint(env.srv, store)
	ctx := context.Background()

	payload, err := env.srv.issuer.Issue(ctx, confidentialClient(), "client_credentials", "read", "", false)
	require.NoError(t, err)

	stored, err := env.stores.Tokens.GetAccessToken(ctx, payload.AccessToken)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, cache.NewTokenEntry(stored)))

	require.NoError(t, endpoint.Revoke(ctx, revokeReq("token", payload.AccessToken)))

	_, err = store.Get(ctx, payload.AccessToken)
	assert.ErrorIs(t, err, errors.ErrTokenNotFound)
}
