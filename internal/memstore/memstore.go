// Package memstore provides in-memory implementations of the persistence
// collaborators, including the atomic find-and-mark primitives. It backs the
// test suite and the standalone server when no MongoDB is configured.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

// ClientStore is a fixed in-memory client registry.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]*domain.Client
}

// NewClientStore creates a store seeded with the given clients.
func NewClientStore(clients ...*domain.Client) *ClientStore {
	s := &ClientStore{clients: make(map[string]*domain.Client)}
	for _, c := range clients {
		s.clients[c.ID] = c
	}
	return s
}

// PutClient adds or replaces a client registration.
func (s *ClientStore) PutClient(client *domain.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = client
}

// GetClient implements domain.ClientStore.
func (s *ClientStore) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[clientID]
	if !ok {
		return nil, errors.ErrClientNotFound
	}
	return client, nil
}

// AuthCodeStore keeps authorization codes in memory. ConsumeAuthCode flips
// the Used flag under the store lock, so exactly one of two concurrent
// exchanges wins.
type AuthCodeStore struct {
	mu    sync.Mutex
	codes map[string]*domain.AuthCode
}

// NewAuthCodeStore creates an empty code store.
func NewAuthCodeStore() *AuthCodeStore {
	return &AuthCodeStore{codes: make(map[string]*domain.AuthCode)}
}

// SaveAuthCode implements domain.AuthCodeRepository.
func (s *AuthCodeStore) SaveAuthCode(_ context.Context, code *domain.AuthCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *code
	s.codes[code.Code] = &cp
	return nil
}

// GetAuthCode implements domain.AuthCodeRepository.
func (s *AuthCodeStore) GetAuthCode(_ context.Context, code string) (*domain.AuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[code]
	if !ok {
		return nil, errors.ErrAuthCodeNotFound
	}
	cp := *stored
	return &cp, nil
}

// ConsumeAuthCode implements the atomic find-and-mark contract.
func (s *AuthCodeStore) ConsumeAuthCode(_ context.Context, code string) (*domain.AuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[code]
	if !ok {
		return nil, errors.ErrAuthCodeNotFound
	}
	if stored.Used {
		return nil, errors.ErrAuthCodeConsumed
	}
	stored.Used = true
	cp := *stored
	return &cp, nil
}

// DeleteExpiredAuthCodes implements domain.AuthCodeRepository.
func (s *AuthCodeStore) DeleteExpiredAuthCodes(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for value, code := range s.codes {
		if code.Expired(now) {
			delete(s.codes, value)
		}
	}
	return nil
}

// TokenStore keeps issued tokens in memory, keyed by token value.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]*domain.Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]*domain.Token)}
}

// StoreToken implements domain.TokenRepository.
func (s *TokenStore) StoreToken(_ context.Context, token *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[token.TokenValue] = &cp
	return nil
}

// GetAccessToken implements domain.TokenRepository.
func (s *TokenStore) GetAccessToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	return s.getByType(tokenValue, domain.TokenTypeAccess)
}

// GetRefreshToken implements domain.TokenRepository.
func (s *TokenStore) GetRefreshToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	return s.getByType(tokenValue, domain.TokenTypeRefresh)
}

func (s *TokenStore) getByType(tokenValue, tokenType string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[tokenValue]
	if !ok || stored.TokenType != tokenType {
		return nil, errors.ErrTokenNotFound
	}
	cp := *stored
	return &cp, nil
}

// RevokeToken implements domain.TokenRepository. It revokes whichever token
// row carries the value, access or refresh.
func (s *TokenStore) RevokeToken(_ context.Context, tokenValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[tokenValue]
	if !ok {
		return errors.ErrTokenNotFound
	}
	stored.IsRevoked = true
	return nil
}

// RevokeRefreshToken implements domain.TokenRepository.
func (s *TokenStore) RevokeRefreshToken(_ context.Context, tokenValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[tokenValue]
	if !ok || stored.TokenType != domain.TokenTypeRefresh {
		return errors.ErrTokenNotFound
	}
	stored.IsRevoked = true
	return nil
}

// DeleteExpiredTokens implements domain.TokenRepository.
func (s *TokenStore) DeleteExpiredTokens(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for value, token := range s.tokens {
		if token.Expired(now) {
			delete(s.tokens, value)
		}
	}
	return nil
}

// DeviceAuthStore keeps device credentials in memory. Approve, Deny and
// Redeem run their status transitions under the store lock, matching the
// compare-and-swap contract.
type DeviceAuthStore struct {
	mu    sync.Mutex
	auths map[string]*domain.DeviceCode // keyed by device_code
	clock domain.Clock
}

// NewDeviceAuthStore creates an empty device credential store.
func NewDeviceAuthStore() *DeviceAuthStore {
	return &DeviceAuthStore{
		auths: make(map[string]*domain.DeviceCode),
		clock: domain.SystemClock{},
	}
}

// WithClock replaces the store's time source for poll stamps and expiry
// sweeps.
func (s *DeviceAuthStore) WithClock(clock domain.Clock) *DeviceAuthStore {
	s.clock = clock
	return s
}

// SaveDeviceAuth implements domain.DeviceAuthRepository.
func (s *DeviceAuthStore) SaveDeviceAuth(_ context.Context, auth *domain.DeviceCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *auth
	s.auths[auth.DeviceCode] = &cp
	return nil
}

// GetDeviceAuthByDeviceCode implements domain.DeviceAuthRepository.
func (s *DeviceAuthStore) GetDeviceAuthByDeviceCode(_ context.Context, deviceCode string) (*domain.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.auths[deviceCode]
	if !ok {
		return nil, errors.ErrDeviceCodeNotFound
	}
	cp := *stored
	return &cp, nil
}

// GetDeviceAuthByUserCode implements domain.DeviceAuthRepository.
func (s *DeviceAuthStore) GetDeviceAuthByUserCode(_ context.Context, userCode string) (*domain.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.auths {
		if stored.UserCode == userCode {
			cp := *stored
			return &cp, nil
		}
	}
	return nil, errors.ErrUserCodeNotFound
}

// ApproveDeviceAuth implements domain.DeviceAuthRepository.
func (s *DeviceAuthStore) ApproveDeviceAuth(_ context.Context, userCode, userID string) (*domain.DeviceCode, error) {
	return s.resolve(userCode, domain.DeviceCodeStatusApproved, userID)
}

// DenyDeviceAuth implements domain.DeviceAuthRepository.
func (s *DeviceAuthStore) DenyDeviceAuth(_ context.Context, userCode string) (*domain.DeviceCode, error) {
	return s.resolve(userCode, domain.DeviceCodeStatusDenied, "")
}

func (s *DeviceAuthStore) resolve(userCode string, status domain.DeviceCodeStatus, userID string) (*domain.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.auths {
		if stored.UserCode != userCode {
			continue
		}
		if stored.Status != domain.DeviceCodeStatusPending {
			return nil, errors.ErrDeviceCodeResolved
		}
		stored.Status = status
		stored.UserID = userID
		cp := *stored
		return &cp, nil
	}
	return nil, errors.ErrUserCodeNotFound
}

// RedeemDeviceCode implements the atomic redemption contract: only an
// approved credential transitions to redeemed, exactly once.
func (s *DeviceAuthStore) RedeemDeviceCode(_ context.Context, deviceCode string) (*domain.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.auths[deviceCode]
	if !ok {
		return nil, errors.ErrDeviceCodeNotFound
	}
	if stored.Status != domain.DeviceCodeStatusApproved {
		return nil, errors.ErrDeviceCodeRedeemed
	}
	stored.Status = domain.DeviceCodeStatusRedeemed
	cp := *stored
	return &cp, nil
}

// UpdateDeviceAuthLastPolledAt implements domain.DeviceAuthRepository.
func (s *DeviceAuthStore) UpdateDeviceAuthLastPolledAt(_ context.Context, deviceCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.auths[deviceCode]
	if !ok {
		return errors.ErrDeviceCodeNotFound
	}
	stored.LastPolledAt = s.clock.Now()
	return nil
}

// DeleteExpiredDeviceAuths implements domain.DeviceAuthRepository.
func (s *DeviceAuthStore) DeleteExpiredDeviceAuths(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for value, auth := range s.auths {
		if auth.Expired(now) {
			delete(s.auths, value)
		}
	}
	return nil
}
