package authlib

import (
	"encoding/base64"
	"net/url"
	"time"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/internal/memstore"
)

// fakeClock is an adjustable time source for deterministic expiry tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	srv     *AuthorizationServer
	stores  Stores
	clients *memstore.ClientStore
	clock   *fakeClock
}

// newTestEnv builds a server on in-memory stores with an adjustable clock,
// seeded with the given clients. The clock is anchored at wall time because
// the read-through token cache computes TTLs against the wall clock.
func newTestEnv(opts Options, clients ...*domain.Client) *testEnv {
	clock := &fakeClock{now: time.Now()}
	clientStore := memstore.NewClientStore(clients...)
	stores := Stores{
		Clients: clientStore,
		Codes:   memstore.NewAuthCodeStore(),
		Tokens:  memstore.NewTokenStore(),
		Devices: memstore.NewDeviceAuthStore().WithClock(clock),
	}
	opts.Clock = clock
	return &testEnv{
		srv:     NewAuthorizationServer(stores, opts),
		stores:  stores,
		clients: clientStore,
		clock:   clock,
	}
}

// confidentialClient registers for every flow and authenticates with
// client_secret_basic.
func confidentialClient() *domain.Client {
	return &domain.Client{
		ID:            "s1",
		Secret:        "secret-s1",
		Type:          domain.Confidential,
		RedirectURIs:  []string{"https://app.example.com/cb"},
		AllowedScopes: []string{"read", "write", "profile"},
		AllowedGrantTypes: []string{
			"authorization_code", "refresh_token", "client_credentials", DeviceGrantType,
		},
		AllowedResponseTypes: []string{"code", "token"},
	}
}

// publicClient has no secret and authenticates with the none method.
func publicClient() *domain.Client {
	return &domain.Client{
		ID:                   "p1",
		Type:                 domain.Public,
		RedirectURIs:         []string{"https://spa.example.com/cb"},
		AllowedScopes:        []string{"read"},
		AllowedGrantTypes:    []string{"authorization_code", DeviceGrantType},
		AllowedResponseTypes: []string{"code", "token"},
		TokenEndpointAuth:    AuthMethodNone,
	}
}

// formReq builds a token-endpoint style request from key/value pairs.
func formReq(kv ...string) *Request {
	params := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		params.Add(kv[i], kv[i+1])
	}
	return NewRequest(params, "")
}

// basicAuthHeader encodes client credentials the way RFC 6749 wants them on
// the wire.
func basicAuthHeader(clientID, clientSecret string) string {
	creds := url.QueryEscape(clientID) + ":" + url.QueryEscape(clientSecret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

// authorizeReq builds an authorization-endpoint request.
func authorizeReq(kv ...string) *Request {
	return formReq(kv...)
}
