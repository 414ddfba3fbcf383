package mongodb

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

// TokenRepository implements domain.TokenRepository on MongoDB.
type TokenRepository struct {
	tokens *mongo.Collection
}

func NewTokenRepository(db *mongo.Database) *TokenRepository {
	return &TokenRepository{tokens: db.Collection(TokensCollection)}
}

// StoreToken implements domain.TokenRepository.
func (r *TokenRepository) StoreToken(ctx context.Context, token *domain.Token) error {
	if _, err := r.tokens.InsertOne(ctx, token); err != nil {
		log.Error().Err(err).Str("token_type", token.TokenType).Msg("error storing token")
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// GetAccessToken implements domain.TokenRepository.
func (r *TokenRepository) GetAccessToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	return r.getByType(ctx, tokenValue, domain.TokenTypeAccess)
}

// GetRefreshToken implements domain.TokenRepository.
func (r *TokenRepository) GetRefreshToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	return r.getByType(ctx, tokenValue, domain.TokenTypeRefresh)
}

func (r *TokenRepository) getByType(ctx context.Context, tokenValue, tokenType string) (*domain.Token, error) {
	var token domain.Token
	filter := bson.M{"token_value": tokenValue, "token_type": tokenType}
	err := r.tokens.FindOne(ctx, filter).Decode(&token)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to retrieve token: %w", err)
	}
	return &token, nil
}

// RevokeToken implements domain.TokenRepository. It revokes whichever token
// row carries the value.
func (r *TokenRepository) RevokeToken(ctx context.Context, tokenValue string) error {
	return r.revoke(ctx, bson.M{"token_value": tokenValue})
}

// RevokeRefreshToken implements domain.TokenRepository.
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, tokenValue string) error {
	return r.revoke(ctx, bson.M{"token_value": tokenValue, "token_type": domain.TokenTypeRefresh})
}

func (r *TokenRepository) revoke(ctx context.Context, filter bson.M) error {
	update := bson.M{"$set": bson.M{"is_revoked": true}}
	result, err := r.tokens.UpdateMany(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Msg("error revoking token")
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrTokenNotFound
	}
	return nil
}

// DeleteExpiredTokens implements domain.TokenRepository.
func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context) error {
	_, err := r.tokens.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
