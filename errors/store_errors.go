package errors

import "errors"

// Sentinel errors returned by the persistence collaborators. The engine maps
// them onto protocol errors at the validation boundary.
var (
	ErrClientNotFound     = errors.New("client not found")
	ErrAuthCodeNotFound   = errors.New("authorization code not found")
	ErrAuthCodeConsumed   = errors.New("authorization code already consumed")
	ErrTokenNotFound      = errors.New("token not found")
	ErrDeviceCodeNotFound = errors.New("device code not found")
	ErrUserCodeNotFound   = errors.New("user code not found")
	ErrDeviceCodeResolved = errors.New("device code already resolved")
	ErrDeviceCodeRedeemed = errors.New("device code already redeemed")
)
