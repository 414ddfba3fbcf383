package authlib

import (
	"context"
	goerrors "errors"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
	"github.com/coopfeathy/authlib-django/internal/metrics"
)

// DeviceGrantType is the grant_type URN of the device flow, RFC 8628.
const DeviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// DeviceCodeGrant implements the device authorization flow (RFC 8628): the
// device-authorization surface mints a device_code/user_code pair, an
// external approval surface resolves the user's decision, and the token
// endpoint is polled with the device_code until a terminal outcome.
type DeviceCodeGrant struct {
	srv *AuthorizationServer
}

func (g *DeviceCodeGrant) GrantType() string { return DeviceGrantType }

// DeviceAuthorizationResponse validates the client and scope and creates a
// pending device credential.
func (g *DeviceCodeGrant) DeviceAuthorizationResponse(ctx context.Context, r *Request) (*DeviceAuthorizationPayload, error) {
	client, err := g.srv.authn.Authenticate(ctx, r, []string{
		AuthMethodClientSecretBasic, AuthMethodClientSecretPost, AuthMethodNone,
	})
	if err != nil {
		return nil, err
	}
	if err := g.srv.contract.CheckGrantType(client, g.GrantType()); err != nil {
		return nil, err
	}
	scope, err := g.srv.contract.ResolveScope(client, r.Param("scope"))
	if err != nil {
		return nil, err
	}

	now := g.srv.clock.Now()
	auth := &domain.DeviceCode{
		ID:         uuid.NewString(),
		DeviceCode: newOpaqueValue(),
		UserCode:   newUserCode(),
		ClientID:   client.ID,
		Scope:      scope,
		Status:     domain.DeviceCodeStatusPending,
		ExpiresAt:  now.Add(g.srv.opts.DeviceCodeTTL),
		Interval:   g.srv.opts.DeviceCodeInterval,
		CreatedAt:  now,
	}
	if err := g.srv.stores.Devices.SaveDeviceAuth(ctx, auth); err != nil {
		log.Error().Err(err).Str("client_id", client.ID).Msg("failed to save device authorization")
		return nil, err
	}

	log.Debug().Str("client_id", client.ID).Str("user_code", auth.UserCode).
		Msg("device authorization created")

	payload := &DeviceAuthorizationPayload{
		DeviceCode:      auth.DeviceCode,
		UserCode:        auth.UserCode,
		VerificationURI: g.srv.opts.VerificationURI,
		ExpiresIn:       int64(g.srv.opts.DeviceCodeTTL / time.Second),
		Interval:        auth.Interval,
	}
	if g.srv.opts.VerificationURI != "" {
		payload.VerificationURIComplete = g.srv.opts.VerificationURI +
			"?user_code=" + url.QueryEscape(auth.UserCode)
	}
	return payload, nil
}

// TokenResponse runs one poll of the device-flow state machine. Pending and
// slow_down outcomes are non-terminal; expiry and denial are terminal; an
// approved credential yields a token exactly once and replays report
// expired_token.
func (g *DeviceCodeGrant) TokenResponse(ctx context.Context, r *Request) (*TokenPayload, error) {
	deviceCode := r.Param("device_code")
	if deviceCode == "" {
		return nil, errors.NewInvalidRequest(`Missing "device_code" in request`)
	}
	clientID := r.Param("client_id")
	if clientID == "" {
		return nil, errors.NewInvalidRequest(`Missing "client_id" in request`)
	}

	auth, err := g.srv.stores.Devices.GetDeviceAuthByDeviceCode(ctx, deviceCode)
	if err != nil {
		if goerrors.Is(err, errors.ErrDeviceCodeNotFound) {
			return nil, errors.NewInvalidRequest(`Invalid "device_code" in request`)
		}
		return nil, err
	}

	client, err := lookupClient(ctx, g.srv.stores.Clients, clientID)
	if err != nil {
		return nil, err
	}
	if auth.ClientID != client.ID {
		return nil, errors.NewInvalidClient("The device code was issued to another client")
	}
	if err := g.srv.contract.CheckGrantType(client, g.GrantType()); err != nil {
		return nil, err
	}

	now := g.srv.clock.Now()
	if auth.Expired(now) {
		metrics.DevicePollsTotal.WithLabelValues(errors.ExpiredToken).Inc()
		return nil, errors.NewExpiredToken()
	}

	if g.shouldSlowDown(auth, now) {
		metrics.DevicePollsTotal.WithLabelValues(errors.SlowDown).Inc()
		return nil, errors.NewSlowDown()
	}
	if err := g.srv.stores.Devices.UpdateDeviceAuthLastPolledAt(ctx, deviceCode); err != nil {
		log.Warn().Err(err).Str("client_id", client.ID).Msg("failed to record device poll time")
	}

	switch auth.Status {
	case domain.DeviceCodeStatusPending:
		metrics.DevicePollsTotal.WithLabelValues(errors.AuthorizationPending).Inc()
		return nil, errors.NewAuthorizationPending()
	case domain.DeviceCodeStatusDenied:
		metrics.DevicePollsTotal.WithLabelValues(errors.AccessDenied).Inc()
		return nil, errors.NewAccessDenied("The resource owner denied the request")
	case domain.DeviceCodeStatusApproved:
		// fall through to redemption
	default:
		// Redeemed or any unknown state: the credential can never yield
		// another token.
		metrics.DevicePollsTotal.WithLabelValues(errors.ExpiredToken).Inc()
		return nil, errors.NewExpiredToken()
	}

	// Commit point: at most one concurrent poll may redeem the credential.
	redeemed, err := g.srv.stores.Devices.RedeemDeviceCode(ctx, deviceCode)
	if err != nil {
		if goerrors.Is(err, errors.ErrDeviceCodeRedeemed) || goerrors.Is(err, errors.ErrDeviceCodeNotFound) {
			return nil, errors.NewInvalidGrant(`Invalid "device_code" in request`)
		}
		return nil, err
	}

	includeRefresh := client.CheckGrantType("refresh_token")
	payload, err := g.srv.issuer.Issue(ctx, client, g.GrantType(), redeemed.Scope, redeemed.UserID, includeRefresh)
	if err != nil {
		return nil, err
	}
	metrics.DevicePollsTotal.WithLabelValues("granted").Inc()

	log.Debug().Str("client_id", client.ID).Str("user_id", redeemed.UserID).
		Msg("device code redeemed")

	return payload, nil
}

func (g *DeviceCodeGrant) shouldSlowDown(auth *domain.DeviceCode, now time.Time) bool {
	if g.srv.opts.SlowDown != nil {
		return g.srv.opts.SlowDown(auth, now)
	}
	if auth.LastPolledAt.IsZero() {
		return false
	}
	return now.Before(auth.LastPolledAt.Add(time.Duration(auth.Interval) * time.Second))
}
