package mongodb

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

// AuthCodeRepository implements domain.AuthCodeRepository on MongoDB.
type AuthCodeRepository struct {
	authCodes *mongo.Collection
}

func NewAuthCodeRepository(db *mongo.Database) *AuthCodeRepository {
	return &AuthCodeRepository{authCodes: db.Collection(CodesCollection)}
}

// SaveAuthCode implements domain.AuthCodeRepository.
func (r *AuthCodeRepository) SaveAuthCode(ctx context.Context, authCode *domain.AuthCode) error {
	if authCode.Code == "" {
		return goerrors.New("auth code value cannot be empty")
	}

	_, err := r.authCodes.InsertOne(ctx, authCode)
	if err != nil {
		var writeException mongo.WriteException
		if goerrors.As(err, &writeException) {
			for _, writeError := range writeException.WriteErrors {
				if writeError.Code == 11000 || writeError.Code == 11001 {
					return fmt.Errorf("authorization code already exists: %w", err)
				}
			}
		}
		log.Error().Err(err).Msg("error saving authorization code")
		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	log.Debug().Str("client_id", authCode.ClientID).Msg("authorization code saved")

	return nil
}

// GetAuthCode implements domain.AuthCodeRepository.
func (r *AuthCodeRepository) GetAuthCode(ctx context.Context, codeValue string) (*domain.AuthCode, error) {
	var authCode domain.AuthCode
	err := r.authCodes.FindOne(ctx, bson.M{"code": codeValue}).Decode(&authCode)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrAuthCodeNotFound
		}
		log.Error().Err(err).Msg("error retrieving authorization code")
		return nil, fmt.Errorf("failed to retrieve authorization code: %w", err)
	}
	return &authCode, nil
}

// ConsumeAuthCode atomically marks a not-yet-used code as used and returns
// it. The used:false filter makes MongoDB arbitrate concurrent exchanges;
// the loser sees no matching document.
func (r *AuthCodeRepository) ConsumeAuthCode(ctx context.Context, codeValue string) (*domain.AuthCode, error) {
	filter := bson.M{"code": codeValue, "used": false}
	update := bson.M{"$set": bson.M{"used": true}}
	opt := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var authCode domain.AuthCode
	err := r.authCodes.FindOneAndUpdate(ctx, filter, update, opt).Decode(&authCode)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			// Either the code never existed or another exchange already won.
			if _, getErr := r.GetAuthCode(ctx, codeValue); getErr != nil {
				return nil, errors.ErrAuthCodeNotFound
			}
			return nil, errors.ErrAuthCodeConsumed
		}
		log.Error().Err(err).Msg("error consuming authorization code")
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	log.Debug().Str("client_id", authCode.ClientID).Msg("authorization code consumed")

	return &authCode, nil
}

// DeleteExpiredAuthCodes implements domain.AuthCodeRepository.
func (r *AuthCodeRepository) DeleteExpiredAuthCodes(ctx context.Context) error {
	_, err := r.authCodes.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
