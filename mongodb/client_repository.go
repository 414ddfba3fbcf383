package mongodb

import (
	"context"
	goerrors "errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/coopfeathy/authlib-django/domain"
	"github.com/coopfeathy/authlib-django/errors"
)

// ClientRepository implements domain.ClientStore on MongoDB.
type ClientRepository struct {
	clients *mongo.Collection
}

func NewClientRepository(db *mongo.Database) *ClientRepository {
	return &ClientRepository{clients: db.Collection(ClientsCollection)}
}

// RegisterClient inserts a client registration.
func (r *ClientRepository) RegisterClient(ctx context.Context, client *domain.Client) error {
	if _, err := r.clients.InsertOne(ctx, client); err != nil {
		return fmt.Errorf("failed to register client: %w", err)
	}
	return nil
}

// GetClient implements domain.ClientStore.
func (r *ClientRepository) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	var client domain.Client
	err := r.clients.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&client)
	if err != nil {
		if goerrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to retrieve client: %w", err)
	}
	return &client, nil
}
