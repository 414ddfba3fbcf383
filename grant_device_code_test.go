package authlib

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

func deviceOpts() Options {
	return Options{
		DeviceCodeTTL:      10 * time.Minute,
		DeviceCodeInterval: 5,
		VerificationURI:    "https://auth.example.com/activate",
	}
}

// startDeviceFlow requests device credentials for the public client.
func startDeviceFlow(t *testing.T, env *testEnv) *DeviceAuthorizationPayload {
	t.Helper()
	payload, err := env.srv.CreateDeviceAuthorizationResponse(context.Background(),
		formReq("client_id", "p1", "scope", "read"))
	require.NoError(t, err)
	return payload
}

func devicePoll(env *testEnv, deviceCode string) (*TokenPayload, error) {
	return env.srv.CreateTokenResponse(context.Background(), formReq(
		"grant_type", DeviceGrantType,
		"device_code", deviceCode,
		"client_id", "p1"))
}

func TestDeviceAuthorizationResponse(t *testing.T) {
	env := newTestEnv(deviceOpts(), publicClient())

	payload := startDeviceFlow(t, env)
	assert.NotEmpty(t, payload.DeviceCode)
	assert.Regexp(t, `^[BCDFGHJKLMNPQRSTVWXZ]{4}-[BCDFGHJKLMNPQRSTVWXZ]{4}$`, payload.UserCode)
	assert.Equal(t, "https://auth.example.com/activate", payload.VerificationURI)
	assert.Equal(t, "https://auth.example.com/activate?user_code="+payload.UserCode,
		payload.VerificationURIComplete)
	assert.Equal(t, int64(600), payload.ExpiresIn)
	assert.Equal(t, 5, payload.Interval)
}

func TestDeviceFlowApproval(t *testing.T) {
	env := newTestEnv(deviceOpts(), publicClient())
	ctx := context.Background()

	payload := startDeviceFlow(t, env)

	// First poll before approval.
	_, err := devicePoll(env, payload.DeviceCode)
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.AuthorizationPending, oerr.Code)
	assert.True(t, oerr.Temporary())

	// An immediate re-poll is too fast.
	_, err = devicePoll(env, payload.DeviceCode)
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.SlowDown, oerr.Code)
	assert.True(t, oerr.Temporary())

	_, err = env.srv.ApproveDeviceCode(ctx, payload.UserCode, "u1")
	require.NoError(t, err)

	env.clock.Advance(6 * time.Second)
	tokens, err := devicePoll(env, payload.DeviceCode)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.Equal(t, "read", tokens.Scope)

	stored, err := env.stores.Tokens.GetAccessToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)

	// The credential yields a token exactly once.
	env.clock.Advance(6 * time.Second)
	_, err = devicePoll(env, payload.DeviceCode)
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.ExpiredToken, oerr.Code)
}

func TestDeviceFlowDenial(t *testing.T) {
	env := newTestEnv(deviceOpts(), publicClient())
	ctx := context.Background()

	payload := startDeviceFlow(t, env)

	_, err := env.srv.DenyDeviceCode(ctx, payload.UserCode)
	require.NoError(t, err)

	_, err = devicePoll(env, payload.DeviceCode)
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.AccessDenied, oerr.Code)
	assert.False(t, oerr.Temporary())

	// A resolved credential cannot be re-resolved.
	_, err = env.srv.ApproveDeviceCode(ctx, payload.UserCode, "u1")
	assert.ErrorIs(t, err, errors.ErrDeviceCodeResolved)
}

func TestDeviceFlowExpiry(t *testing.T) {
	env := newTestEnv(deviceOpts(), publicClient())

	payload := startDeviceFlow(t, env)
	env.clock.Advance(11 * time.Minute)

	_, err := devicePoll(env, payload.DeviceCode)
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.ExpiredToken, oerr.Code)
}

func TestDeviceFlowForeignClient(t *testing.T) {
	other := publicClient()
	other.ID = "p2"
	other.RedirectURIs = nil
	env := newTestEnv(deviceOpts(), publicClient(), other)

	payload := startDeviceFlow(t, env)

	_, err := env.srv.CreateTokenResponse(context.Background(), formReq(
		"grant_type", DeviceGrantType,
		"device_code", payload.DeviceCode,
		"client_id", "p2"))
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidClient, oerr.Code)
}

func TestDeviceFlowUnknownCode(t *testing.T) {
	env := newTestEnv(deviceOpts(), publicClient())

	_, err := devicePoll(env, "no-such-code")
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidRequest, oerr.Code)
}

func TestDeviceFlowMissingParameters(t *testing.T) {
	env := newTestEnv(deviceOpts(), publicClient())
	ctx := context.Background()

	var oerr *errors.OAuth2Error

	_, err := env.srv.CreateTokenResponse(ctx, formReq("grant_type", DeviceGrantType, "client_id", "p1"))
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidRequest, oerr.Code)

	_, err = env.srv.CreateTokenResponse(ctx, formReq("grant_type", DeviceGrantType, "device_code", "x"))
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidRequest, oerr.Code)
}

func TestDeviceFlowGrantNotAllowed(t *testing.T) {
	c := publicClient()
	c.AllowedGrantTypes = []string{"authorization_code"}
	env := newTestEnv(deviceOpts(), c)

	_, err := env.srv.CreateDeviceAuthorizationResponse(context.Background(),
		formReq("client_id", "p1"))
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.UnauthorizedClient, oerr.Code)
}

func TestDeviceFlowSlowDownPolicyOverride(t *testing.T) {
	opts := deviceOpts()
	// A permissive policy lets back-to-back polls through.
	opts.SlowDown = func(auth *domain.DeviceCode, now time.Time) bool { return false }
	env := newTestEnv(opts, publicClient())

	payload := startDeviceFlow(t, env)

	var oerr *errors.OAuth2Error
	for i := 0; i < 3; i++ {
		_, err := devicePoll(env, payload.DeviceCode)
		require.ErrorAs(t, err, &oerr)
		assert.Equal(t, errors.AuthorizationPending, oerr.Code)
	}
}
