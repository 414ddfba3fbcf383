package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

func TestConsumeAuthCodeExactlyOnce(t *testing.T) {
	store := NewAuthCodeStore()
	ctx := context.Background()

	require.NoError(t, store.SaveAuthCode(ctx, &domain.AuthCode{
		Code:      "c1",
		ClientID:  "s1",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	const workers = 16
	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeAuthCode(ctx, "c1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins)

	_, err := store.ConsumeAuthCode(ctx, "c1")
	assert.ErrorIs(t, err, errors.ErrAuthCodeConsumed)
	_, err = store.ConsumeAuthCode(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrAuthCodeNotFound)
}

func TestAuthCodeCopySemantics(t *testing.T) {
	store := NewAuthCodeStore()
	ctx := context.Background()

	code := &domain.AuthCode{Code: "c1", Scope: "read"}
	require.NoError(t, store.SaveAuthCode(ctx, code))

	// Mutating the caller's value must not reach the store.
	code.Scope = "read write"

	got, err := store.GetAuthCode(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "read", got.Scope)
}

func TestTokenStoreTypedLookup(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, store.StoreToken(ctx, &domain.Token{
		TokenType: domain.TokenTypeRefresh, TokenValue: "r1",
	}))

	_, err := store.GetAccessToken(ctx, "r1")
	assert.ErrorIs(t, err, errors.ErrTokenNotFound)

	got, err := store.GetRefreshToken(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeRefresh, got.TokenType)
}

func TestRevokeRefreshTokenRequiresRefreshType(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, store.StoreToken(ctx, &domain.Token{
		TokenType: domain.TokenTypeAccess, TokenValue: "a1",
	}))

	assert.ErrorIs(t, store.RevokeRefreshToken(ctx, "a1"), errors.ErrTokenNotFound)
	// RevokeToken is type-agnostic.
	assert.NoError(t, store.RevokeToken(ctx, "a1"))
}

func TestDeviceAuthResolveOnce(t *testing.T) {
	store := NewDeviceAuthStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDeviceAuth(ctx, &domain.DeviceCode{
		DeviceCode: "d1",
		UserCode:   "WXYZ-WXYZ",
		Status:     domain.DeviceCodeStatusPending,
	}))

	auth, err := store.ApproveDeviceAuth(ctx, "WXYZ-WXYZ", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceCodeStatusApproved, auth.Status)
	assert.Equal(t, "u1", auth.UserID)

	_, err = store.DenyDeviceAuth(ctx, "WXYZ-WXYZ")
	assert.ErrorIs(t, err, errors.ErrDeviceCodeResolved)
}

func TestRedeemDeviceCodeExactlyOnce(t *testing.T) {
	store := NewDeviceAuthStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDeviceAuth(ctx, &domain.DeviceCode{
		DeviceCode: "d1",
		UserCode:   "WXYZ-WXYZ",
		Status:     domain.DeviceCodeStatusApproved,
	}))

	const workers = 16
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.RedeemDeviceCode(ctx, "d1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)

	_, err := store.RedeemDeviceCode(ctx, "d1")
	assert.ErrorIs(t, err, errors.ErrDeviceCodeRedeemed)
}

func TestDeviceAuthPollStampUsesInjectedClock(t *testing.T) {
	anchor := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewDeviceAuthStore().WithClock(domain.ClockFunc(func() time.Time { return anchor }))
	ctx := context.Background()

	require.NoError(t, store.SaveDeviceAuth(ctx, &domain.DeviceCode{
		DeviceCode: "d1",
		Status:     domain.DeviceCodeStatusPending,
	}))

	require.NoError(t, store.UpdateDeviceAuthLastPolledAt(ctx, "d1"))

	auth, err := store.GetDeviceAuthByDeviceCode(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, anchor, auth.LastPolledAt)
}

func TestRedeemPendingDeviceCodeFails(t *testing.T) {
	store := NewDeviceAuthStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDeviceAuth(ctx, &domain.DeviceCode{
		DeviceCode: "d1",
		Status:     domain.DeviceCodeStatusPending,
	}))

	_, err := store.RedeemDeviceCode(ctx, "d1")
	assert.ErrorIs(t, err, errors.ErrDeviceCodeRedeemed)
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	codes := NewAuthCodeStore()
	require.NoError(t, codes.SaveAuthCode(ctx, &domain.AuthCode{
		Code: "old", ExpiresAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, codes.SaveAuthCode(ctx, &domain.AuthCode{
		Code: "fresh", ExpiresAt: time.Now().Add(time.Minute),
	}))
	require.NoError(t, codes.DeleteExpiredAuthCodes(ctx))

	_, err := codes.GetAuthCode(ctx, "old")
	assert.ErrorIs(t, err, errors.ErrAuthCodeNotFound)
	_, err = codes.GetAuthCode(ctx, "fresh")
	assert.NoError(t, err)
}
