package mongodb

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

// DeviceAuthRepository implements domain.DeviceAuthRepository on MongoDB.
type DeviceAuthRepository struct {
	deviceAuth *mongo.Collection
}

func NewDeviceAuthRepository(db *mongo.Database) *DeviceAuthRepository {
	return &DeviceAuthRepository{deviceAuth: db.Collection(DeviceAuthCollection)}
}

// SaveDeviceAuth implements domain.DeviceAuthRepository.
func (r *DeviceAuthRepository) SaveDeviceAuth(ctx context.Context, auth *domain.DeviceCode) error {
	if auth.ID == "" {
		auth.ID = uuid.NewString()
	}
	_, err := r.deviceAuth.InsertOne(ctx, auth)
	return err
}

// GetDeviceAuthByDeviceCode implements domain.DeviceAuthRepository.
func (r *DeviceAuthRepository) GetDeviceAuthByDeviceCode(ctx context.Context, deviceCode string) (*domain.DeviceCode, error) {
	var result domain.DeviceCode
	err := r.deviceAuth.FindOne(ctx, bson.M{"device_code": deviceCode}).Decode(&result)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrDeviceCodeNotFound
		}
		return nil, err
	}
	return &result, nil
}

// GetDeviceAuthByUserCode implements domain.DeviceAuthRepository. Expired
// credentials are not returned; the approval surface should treat them as
// unknown codes.
func (r *DeviceAuthRepository) GetDeviceAuthByUserCode(ctx context.Context, userCode string) (*domain.DeviceCode, error) {
	var result domain.DeviceCode
	filter := bson.M{
		"user_code":  userCode,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}
	err := r.deviceAuth.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrUserCodeNotFound
		}
		return nil, err
	}
	return &result, nil
}

// ApproveDeviceAuth implements domain.DeviceAuthRepository. Only a pending,
// unexpired credential can be approved; the status filter makes the
// pending -> approved transition happen at most once.
func (r *DeviceAuthRepository) ApproveDeviceAuth(ctx context.Context, userCode, userID string) (*domain.DeviceCode, error) {
	update := bson.M{"$set": bson.M{
		"status":  domain.DeviceCodeStatusApproved,
		"user_id": userID,
	}}
	return r.resolvePending(ctx, userCode, update)
}

// DenyDeviceAuth implements domain.DeviceAuthRepository.
func (r *DeviceAuthRepository) DenyDeviceAuth(ctx context.Context, userCode string) (*domain.DeviceCode, error) {
	update := bson.M{"$set": bson.M{"status": domain.DeviceCodeStatusDenied}}
	return r.resolvePending(ctx, userCode, update)
}

func (r *DeviceAuthRepository) resolvePending(ctx context.Context, userCode string, update bson.M) (*domain.DeviceCode, error) {
	filter := bson.M{
		"user_code":  userCode,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
		"status":     domain.DeviceCodeStatusPending,
	}
	opt := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.DeviceCode
	err := r.deviceAuth.FindOneAndUpdate(ctx, filter, update, opt).Decode(&updated)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrDeviceCodeResolved
		}
		return nil, err
	}
	return &updated, nil
}

// RedeemDeviceCode atomically moves an approved credential to redeemed and
// returns it. The status filter lets exactly one concurrent poll win.
func (r *DeviceAuthRepository) RedeemDeviceCode(ctx context.Context, deviceCode string) (*domain.DeviceCode, error) {
	filter := bson.M{
		"device_code": deviceCode,
		"status":      domain.DeviceCodeStatusApproved,
	}
	update := bson.M{"$set": bson.M{"status": domain.DeviceCodeStatusRedeemed}}
	opt := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var redeemed domain.DeviceCode
	err := r.deviceAuth.FindOneAndUpdate(ctx, filter, update, opt).Decode(&redeemed)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			if _, getErr := r.GetDeviceAuthByDeviceCode(ctx, deviceCode); getErr != nil {
				return nil, errors.ErrDeviceCodeNotFound
			}
			return nil, errors.ErrDeviceCodeRedeemed
		}
		return nil, err
	}
	return &redeemed, nil
}

// UpdateDeviceAuthLastPolledAt implements domain.DeviceAuthRepository.
func (r *DeviceAuthRepository) UpdateDeviceAuthLastPolledAt(ctx context.Context, deviceCode string) error {
	filter := bson.M{"device_code": deviceCode}
	update := bson.M{"$set": bson.M{"last_polled_at": time.Now().UTC()}}

	result, err := r.deviceAuth.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.ErrDeviceCodeNotFound
	}
	return nil
}

// DeleteExpiredDeviceAuths implements domain.DeviceAuthRepository.
func (r *DeviceAuthRepository) DeleteExpiredDeviceAuths(ctx context.Context) error {
	_, err := r.deviceAuth.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
