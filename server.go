package authlib

import (
	"context"
	"sort"
	"time"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

// AuthorizationGrant is implemented by grant variants that serve the
// authorization endpoint, keyed by response_type.
type AuthorizationGrant interface {
	ResponseType() string
	// ValidateAuthorizationRequest authenticates the client by public lookup,
	// runs the shared validation contract and fills the resolved fields of
	// req. It must be called before AuthorizationResponse.
	ValidateAuthorizationRequest(ctx context.Context, req *AuthorizationRequest) error
	// AuthorizationResponse finishes the flow once the resource owner
	// decided. An empty userID means the request was denied.
	AuthorizationResponse(ctx context.Context, req *AuthorizationRequest, userID string) (*Redirect, error)
}

// TokenGrant is implemented by grant variants that serve the token endpoint,
// keyed by grant_type.
type TokenGrant interface {
	GrantType() string
	TokenResponse(ctx context.Context, r *Request) (*TokenPayload, error)
}

// SlowDownPolicy decides whether a device-code poll arrived too early.
type SlowDownPolicy func(auth *domain.DeviceCode, now time.Time) bool

// Options configures an AuthorizationServer. Zero values fall back on the
// defaults documented per field.
type Options struct {
	// Issuer is the server's issuer identifier, used in introspection responses.
	Issuer string
	// ScopesSupported is the server-wide scope whitelist. Empty leaves the
	// client registration as the only bound.
	ScopesSupported []string
	// AuthCodeTTL bounds authorization-code validity. Default 10 minutes.
	AuthCodeTTL time.Duration
	// AccessTokenTTL bounds access-token validity. Default 1 hour.
	AccessTokenTTL time.Duration
	// RefreshTokenTTL bounds refresh-token validity. Default 30 days.
	RefreshTokenTTL time.Duration
	// DeviceCodeTTL bounds device-credential validity. Default 30 minutes.
	DeviceCodeTTL time.Duration
	// DeviceCodeInterval is the advertised minimum polling interval in
	// seconds. Default 5.
	DeviceCodeInterval int
	// VerificationURI is the page where users enter their user_code.
	VerificationURI string
	// RotateRefreshTokens revokes the presented refresh token and issues a
	// replacement on every refresh_token grant.
	RotateRefreshTokens bool
	// SlowDown overrides the default device-flow slow-down policy (a poll
	// earlier than last_polled_at + interval).
	SlowDown SlowDownPolicy
	// Clock overrides the time source. Default is the system clock.
	Clock domain.Clock
	// TokenIssuer overrides the token issuance strategy. Default is the
	// opaque issuer persisting through the token repository.
	TokenIssuer TokenIssuer
}

// Stores groups the persistence collaborators the engine consumes.
type Stores struct {
	Clients domain.ClientStore
	Codes   domain.AuthCodeRepository
	Tokens  domain.TokenRepository
	Devices domain.DeviceAuthRepository
}

// AuthorizationServer owns the grant and client-authentication registries,
// the injected clock and the token issuer. It is constructed once at startup
// and safe for concurrent use; all mutable protocol state lives behind the
// repositories.
type AuthorizationServer struct {
	stores   Stores
	opts     Options
	clock    domain.Clock
	issuer   TokenIssuer
	authn    *ClientAuthenticator
	contract *Contract

	authGrants  map[string]AuthorizationGrant
	tokenGrants map[string]TokenGrant
}

// NewAuthorizationServer builds a server with the default grant variants
// (authorization_code, implicit, refresh_token, device_code,
// client_credentials) and client authentication methods registered.
func NewAuthorizationServer(stores Stores, opts Options) *AuthorizationServer {
	if opts.AuthCodeTTL == 0 {
		opts.AuthCodeTTL = 10 * time.Minute
	}
	if opts.AccessTokenTTL == 0 {
		opts.AccessTokenTTL = time.Hour
	}
	if opts.RefreshTokenTTL == 0 {
		opts.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if opts.DeviceCodeTTL == 0 {
		opts.DeviceCodeTTL = 30 * time.Minute
	}
	if opts.DeviceCodeInterval == 0 {
		opts.DeviceCodeInterval = 5
	}
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}
	issuer := opts.TokenIssuer
	if issuer == nil {
		issuer = NewOpaqueTokenIssuer(stores.Tokens, clock, opts.AccessTokenTTL, opts.RefreshTokenTTL)
	}

	s := &AuthorizationServer{
		stores:      stores,
		opts:        opts,
		clock:       clock,
		issuer:      issuer,
		authn:       NewClientAuthenticator(stores.Clients),
		contract:    &Contract{ServerScopes: opts.ScopesSupported},
		authGrants:  make(map[string]AuthorizationGrant),
		tokenGrants: make(map[string]TokenGrant),
	}

	authCode := &AuthorizationCodeGrant{srv: s}
	s.RegisterAuthorizationGrant(authCode)
	s.RegisterTokenGrant(authCode)
	s.RegisterAuthorizationGrant(&ImplicitGrant{srv: s})
	s.RegisterTokenGrant(&RefreshTokenGrant{srv: s})
	s.RegisterTokenGrant(&DeviceCodeGrant{srv: s})
	s.RegisterTokenGrant(&ClientCredentialsGrant{srv: s})

	return s
}

// RegisterAuthorizationGrant registers a grant variant for its response_type.
func (s *AuthorizationServer) RegisterAuthorizationGrant(g AuthorizationGrant) {
	s.authGrants[g.ResponseType()] = g
}

// RegisterTokenGrant registers a grant variant for its grant_type.
func (s *AuthorizationServer) RegisterTokenGrant(g TokenGrant) {
	s.tokenGrants[g.GrantType()] = g
}

// RegisterClientAuthMethod extends the client authentication registry.
func (s *AuthorizationServer) RegisterClientAuthMethod(name string, method ClientAuthMethod) {
	s.authn.Register(name, method)
}

// ValidateAuthorizationRequest dispatches an authorization-endpoint request
// to the grant matching its response_type and runs the grant's validation.
// The returned request carries the resolved client, redirect URI and scope
// for the response phase.
func (s *AuthorizationServer) ValidateAuthorizationRequest(ctx context.Context, r *Request) (*AuthorizationRequest, error) {
	req := ParseAuthorizationRequest(r)
	grant, ok := s.authGrants[req.ResponseType]
	if !ok {
		return nil, errors.NewUnsupportedResponseType(req.ResponseType).WithState(req.State)
	}
	if err := grant.ValidateAuthorizationRequest(ctx, req); err != nil {
		return req, err
	}
	return req, nil
}

// CreateAuthorizationResponse finishes a validated authorization request
// with the resource owner's decision. An empty userID denies the request.
func (s *AuthorizationServer) CreateAuthorizationResponse(ctx context.Context, req *AuthorizationRequest, userID string) (*Redirect, error) {
	grant, ok := s.authGrants[req.ResponseType]
	if !ok {
		return nil, errors.NewUnsupportedResponseType(req.ResponseType).WithState(req.State)
	}
	return grant.AuthorizationResponse(ctx, req, userID)
}

// ErrorRedirect places a protocol error on the validated redirect URI,
// honoring the grant's placement rule (query vs. fragment). It returns nil
// when the request never resolved a redirect URI; such errors must be shown
// directly instead of redirected.
func (s *AuthorizationServer) ErrorRedirect(req *AuthorizationRequest, oerr *errors.OAuth2Error) *Redirect {
	if req == nil || req.ResolvedRedirectURI == "" {
		return nil
	}
	return errorRedirect(req.ResolvedRedirectURI, req.fragment, oerr.WithState(req.State))
}

// CreateTokenResponse dispatches a token-endpoint request to the grant
// matching its grant_type.
func (s *AuthorizationServer) CreateTokenResponse(ctx context.Context, r *Request) (*TokenPayload, error) {
	grantType := r.Param("grant_type")
	grant, ok := s.tokenGrants[grantType]
	if !ok {
		return nil, errors.NewUnsupportedGrantType(grantType)
	}
	return grant.TokenResponse(ctx, r)
}

// CreateDeviceAuthorizationResponse serves the device-authorization endpoint
// (RFC 8628 section 3.2) when the device grant is registered.
func (s *AuthorizationServer) CreateDeviceAuthorizationResponse(ctx context.Context, r *Request) (*DeviceAuthorizationPayload, error) {
	grant, ok := s.tokenGrants[DeviceGrantType].(*DeviceCodeGrant)
	if !ok {
		return nil, errors.NewUnsupportedGrantType(DeviceGrantType)
	}
	return grant.DeviceAuthorizationResponse(ctx, r)
}

// ApproveDeviceCode records the resource owner's approval of a pending device
// credential, keyed by the user code they typed in.
func (s *AuthorizationServer) ApproveDeviceCode(ctx context.Context, userCode, userID string) (*domain.DeviceCode, error) {
	return s.stores.Devices.ApproveDeviceAuth(ctx, userCode, userID)
}

// DenyDeviceCode records the resource owner's denial of a pending device
// credential.
func (s *AuthorizationServer) DenyDeviceCode(ctx context.Context, userCode string) (*domain.DeviceCode, error) {
	return s.stores.Devices.DenyDeviceAuth(ctx, userCode)
}

// Metadata reports the server's capabilities from its registries: everything
// except endpoint URLs, which only the transport adapter can fill in.
func (s *AuthorizationServer) Metadata() *ServerMetadata {
	responseTypes := make([]string, 0, len(s.authGrants))
	for rt := range s.authGrants {
		responseTypes = append(responseTypes, rt)
	}
	sort.Strings(responseTypes)

	grantTypes := make([]string, 0, len(s.tokenGrants))
	for gt := range s.tokenGrants {
		grantTypes = append(grantTypes, gt)
	}
	sort.Strings(grantTypes)

	return &ServerMetadata{
		Issuer:                            s.opts.Issuer,
		ScopesSupported:                   s.opts.ScopesSupported,
		ResponseTypesSupported:            responseTypes,
		GrantTypesSupported:               grantTypes,
		TokenEndpointAuthMethodsSupported: s.authn.MethodNames(),
		CodeChallengeMethodsSupported: []string{
			domain.CodeChallengePlain, domain.CodeChallengeS256,
		},
	}
}

// Clock exposes the injected time source to registered grant extensions.
func (s *AuthorizationServer) Clock() domain.Clock { return s.clock }
