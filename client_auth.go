package authlib

import (
	"context"
	goerrors "errors"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

// Token-endpoint client authentication method names.
const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
)

// ClientAuthMethod authenticates a client against one scheme. It returns
// (nil, nil) when the request does not carry the method's credentials or the
// credentials do not verify, so the authenticator can try the next permitted
// method. A non-nil error aborts authentication immediately.
type ClientAuthMethod func(ctx context.Context, clients domain.ClientStore, r *Request) (*domain.Client, error)

// ClientAuthenticator tries the permitted authentication methods in order
// and returns the first authenticated client. The method set is an open
// registry; Register adds schemes beyond the built-in three.
type ClientAuthenticator struct {
	clients domain.ClientStore
	methods map[string]ClientAuthMethod
}

// NewClientAuthenticator builds an authenticator with the built-in methods
// none, client_secret_basic and client_secret_post registered.
func NewClientAuthenticator(clients domain.ClientStore) *ClientAuthenticator {
	a := &ClientAuthenticator{
		clients: clients,
		methods: make(map[string]ClientAuthMethod),
	}
	a.Register(AuthMethodNone, authenticateNone)
	a.Register(AuthMethodClientSecretBasic, authenticateClientSecretBasic)
	a.Register(AuthMethodClientSecretPost, authenticateClientSecretPost)
	return a
}

// Register adds or replaces an authentication method under the given name.
func (a *ClientAuthenticator) Register(name string, method ClientAuthMethod) {
	a.methods[name] = method
}

// MethodNames lists the registered authentication methods, sorted.
func (a *ClientAuthenticator) MethodNames() []string {
	names := make([]string, 0, len(a.methods))
	for name := range a.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Authenticate tries each permitted method in order and returns the first
// authenticated client, or invalid_client when none succeeds.
func (a *ClientAuthenticator) Authenticate(ctx context.Context, r *Request, permitted []string) (*domain.Client, error) {
	for _, name := range permitted {
		method, ok := a.methods[name]
		if !ok {
			continue
		}
		client, err := method(ctx, a.clients, r)
		if err != nil {
			return nil, err
		}
		if client != nil {
			log.Debug().Str("client_id", client.ID).Str("method", name).
				Msg("client authenticated")
			return client, nil
		}
	}
	return nil, errors.NewInvalidClient("Client authentication failed")
}

func authenticateClientSecretBasic(ctx context.Context, clients domain.ClientStore, r *Request) (*domain.Client, error) {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok || clientID == "" || clientSecret == "" {
		return nil, nil
	}
	client, err := lookupClient(ctx, clients, clientID)
	if err != nil {
		return nil, err
	}
	if client.CheckTokenEndpointAuthMethod(AuthMethodClientSecretBasic) &&
		client.CheckClientSecret(clientSecret) {
		return client, nil
	}
	log.Debug().Str("client_id", clientID).Msg("client_secret_basic authentication failed")
	return nil, nil
}

func authenticateClientSecretPost(ctx context.Context, clients domain.ClientStore, r *Request) (*domain.Client, error) {
	clientID := r.Param("client_id")
	clientSecret := r.Param("client_secret")
	if clientID == "" || clientSecret == "" {
		return nil, nil
	}
	client, err := lookupClient(ctx, clients, clientID)
	if err != nil {
		return nil, err
	}
	if client.CheckTokenEndpointAuthMethod(AuthMethodClientSecretPost) &&
		client.CheckClientSecret(clientSecret) {
		return client, nil
	}
	log.Debug().Str("client_id", clientID).Msg("client_secret_post authentication failed")
	return nil, nil
}

// authenticateNone accepts a public client that presents only its client_id
// and has no secret registered.
func authenticateNone(ctx context.Context, clients domain.ClientStore, r *Request) (*domain.Client, error) {
	clientID := r.Param("client_id")
	if clientID == "" || r.Param("client_secret") != "" {
		return nil, nil
	}
	client, err := lookupClient(ctx, clients, clientID)
	if err != nil {
		return nil, err
	}
	if client.CheckTokenEndpointAuthMethod(AuthMethodNone) && !client.HasClientSecret() {
		return client, nil
	}
	log.Debug().Str("client_id", clientID).Msg("none authentication failed")
	return nil, nil
}

// lookupClient resolves a client_id, mapping an unknown id onto
// invalid_client. Store failures pass through untouched and surface as
// server_error at the endpoint boundary.
func lookupClient(ctx context.Context, clients domain.ClientStore, clientID string) (*domain.Client, error) {
	client, err := clients.GetClient(ctx, clientID)
	if err != nil {
		if goerrors.Is(err, errors.ErrClientNotFound) {
			return nil, errors.NewInvalidClient("Unknown client")
		}
		return nil, err
	}
	return client, nil
}
