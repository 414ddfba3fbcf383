// Package mongodb implements the persistence collaborators on MongoDB. The
// find-and-atomically-mark primitives (code consumption, device redemption)
// map onto FindOneAndUpdate with a status filter, so concurrent exchanges
// resolve on the server.
package mongodb

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

const (
	ClientsCollection    = "oauth_clients"         // For OAuth clients
	CodesCollection      = "oauth_auth_codes"      // For authorization codes
	TokensCollection     = "oauth_tokens"          // For issued tokens
	DeviceAuthCollection = "device_authorizations" // For device credentials (RFC 8628)
)

// Connect opens an instrumented MongoDB client and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	log.Info().Str("uri", uri).Msg("connecting to MongoDB")

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetConnectTimeout(10 * time.Second)
	clientOptions.SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}
