package authlib

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
	"github.com/coopfeathy/authlib-django/internal/memstore"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticateClientSecretBasic(t *testing.T) {
	authn := NewClientAuthenticator(memstore.NewClientStore(confidentialClient()))

	r := formReq("grant_type", "client_credentials")
	r.Authorization = basicAuthHeader("s1", "secret-s1")

	client, err := authn.Authenticate(context.Background(), r, []string{AuthMethodClientSecretBasic})
	require.NoError(t, err)
	assert.Equal(t, "s1", client.ID)
}

func TestAuthenticateClientSecretBasicWrongSecret(t *testing.T) {
	authn := NewClientAuthenticator(memstore.NewClientStore(confidentialClient()))

	r := formReq()
	r.Authorization = basicAuthHeader("s1", "wrong")

	_, err := authn.Authenticate(context.Background(), r, []string{AuthMethodClientSecretBasic})
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidClient, oerr.Code)
	assert.Equal(t, 401, oerr.StatusCode())
}

func TestAuthenticateClientSecretPost(t *testing.T) {
	c := confidentialClient()
	c.TokenEndpointAuth = AuthMethodClientSecretPost
	authn := NewClientAuthenticator(memstore.NewClientStore(c))

	r := formReq("client_id", "s1", "client_secret", "secret-s1")

	client, err := authn.Authenticate(context.Background(), r,
		[]string{AuthMethodClientSecretBasic, AuthMethodClientSecretPost})
	require.NoError(t, err)
	assert.Equal(t, "s1", client.ID)
}

func TestAuthenticatePostRejectedWhenConfiguredForBasic(t *testing.T) {
	// An unconfigured auth method defaults to client_secret_basic, so valid
	// credentials in the body must not authenticate.
	authn := NewClientAuthenticator(memstore.NewClientStore(confidentialClient()))

	r := formReq("client_id", "s1", "client_secret", "secret-s1")

	_, err := authn.Authenticate(context.Background(), r,
		[]string{AuthMethodClientSecretBasic, AuthMethodClientSecretPost})
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidClient, oerr.Code)
}

func TestAuthenticateNone(t *testing.T) {
	authn := NewClientAuthenticator(memstore.NewClientStore(publicClient()))

	r := formReq("client_id", "p1")

	client, err := authn.Authenticate(context.Background(), r,
		[]string{AuthMethodClientSecretBasic, AuthMethodClientSecretPost, AuthMethodNone})
	require.NoError(t, err)
	assert.Equal(t, "p1", client.ID)
}

func TestAuthenticateNoneRejectsClientWithSecret(t *testing.T) {
	c := confidentialClient()
	c.TokenEndpointAuth = AuthMethodNone
	authn := NewClientAuthenticator(memstore.NewClientStore(c))

	r := formReq("client_id", "s1")

	_, err := authn.Authenticate(context.Background(), r, []string{AuthMethodNone})
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidClient, oerr.Code)
}

func TestAuthenticateTriesMethodsInOrder(t *testing.T) {
	// Basic carries no credentials here, so the authenticator falls through
	// to the post method.
	c := confidentialClient()
	c.TokenEndpointAuth = AuthMethodClientSecretPost
	authn := NewClientAuthenticator(memstore.NewClientStore(c))

	r := formReq("client_id", "s1", "client_secret", "secret-s1")

	client, err := authn.Authenticate(context.Background(), r,
		[]string{AuthMethodClientSecretBasic, AuthMethodClientSecretPost})
	require.NoError(t, err)
	assert.Equal(t, "s1", client.ID)
}

func TestAuthenticateUnknownClient(t *testing.T) {
	authn := NewClientAuthenticator(memstore.NewClientStore())

	r := formReq()
	r.Authorization = basicAuthHeader("ghost", "whatever")

	_, err := authn.Authenticate(context.Background(), r, []string{AuthMethodClientSecretBasic})
	var oerr *errors.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, errors.InvalidClient, oerr.Code)
}

func TestCheckClientSecretBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-s1"), bcrypt.MinCost)
	require.NoError(t, err)

	c := confidentialClient()
	c.Secret = string(hash)

	assert.True(t, c.CheckClientSecret("secret-s1"))
	assert.False(t, c.CheckClientSecret("wrong"))
}

func TestRegisterCustomAuthMethod(t *testing.T) {
	store := memstore.NewClientStore(confidentialClient())
	authn := NewClientAuthenticator(store)
	authn.Register("api_key", func(ctx context.Context, clients domain.ClientStore, r *Request) (*domain.Client, error) {
		if r.Param("api_key") != "k1" {
			return nil, nil
		}
		return clients.GetClient(ctx, "s1")
	})

	client, err := authn.Authenticate(context.Background(), formReq("api_key", "k1"), []string{"api_key"})
	require.NoError(t, err)
	assert.Equal(t, "s1", client.ID)
}
