package domain

import "context"

// ClientStore provides read access to registered OAuth2 clients.
type ClientStore interface {
	GetClient(ctx context.Context, clientID string) (*Client, error)
}

// AuthCodeRepository persists authorization codes. ConsumeAuthCode is the
// atomic find-and-mark primitive the engine relies on: it must flip the Used
// flag of a not-yet-used code and return it in one step, or fail with
// ErrAuthCodeConsumed (ErrAuthCodeNotFound when the code never existed), so
// that exactly one of two concurrent exchanges can win.
type AuthCodeRepository interface {
	SaveAuthCode(ctx context.Context, code *AuthCode) error
	GetAuthCode(ctx context.Context, code string) (*AuthCode, error)
	ConsumeAuthCode(ctx context.Context, code string) (*AuthCode, error)
	DeleteExpiredAuthCodes(ctx context.Context) error
}

// TokenRepository persists issued tokens.
type TokenRepository interface {
	StoreToken(ctx context.Context, token *Token) error
	GetAccessToken(ctx context.Context, tokenValue string) (*Token, error)
	GetRefreshToken(ctx context.Context, tokenValue string) (*Token, error)
	RevokeToken(ctx context.Context, tokenValue string) error
	RevokeRefreshToken(ctx context.Context, tokenValue string) error
	DeleteExpiredTokens(ctx context.Context) error
}

// DeviceAuthRepository persists device authorization credentials.
// RedeemDeviceCode is the device-flow twin of ConsumeAuthCode: it must
// atomically move an approved credential to redeemed and return it, failing
// with ErrDeviceCodeRedeemed when another poll already won.
// ApproveDeviceAuth and DenyDeviceAuth are driven by the external
// user-approval surface, keyed by the human-facing user code, and only apply
// to credentials still pending.
type DeviceAuthRepository interface {
	SaveDeviceAuth(ctx context.Context, auth *DeviceCode) error
	GetDeviceAuthByDeviceCode(ctx context.Context, deviceCode string) (*DeviceCode, error)
	GetDeviceAuthByUserCode(ctx context.Context, userCode string) (*DeviceCode, error)
	ApproveDeviceAuth(ctx context.Context, userCode, userID string) (*DeviceCode, error)
	DenyDeviceAuth(ctx context.Context, userCode string) (*DeviceCode, error)
	RedeemDeviceCode(ctx context.Context, deviceCode string) (*DeviceCode, error)
	UpdateDeviceAuthLastPolledAt(ctx context.Context, deviceCode string) error
	DeleteExpiredDeviceAuths(ctx context.Context) error
}
