package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// InitMongo connects to MongoDB with the pool settings the service runs with,
// pings the primary and returns the client together with the named database.
// The caller owns the client and must Disconnect it on shutdown.
func InitMongo(ctx context.Context, mongoURI, databaseName string, log zerolog.Logger) (*mongo.Client, *mongo.Database, error) {
	if databaseName == "" {
		return nil, nil, fmt.Errorf("database name is required")
	}

	clientOptions := options.Client().ApplyURI(mongoURI).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		if closeErr := client.Disconnect(ctx); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error disconnecting failed mongo client")
		}
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info().Str("database", databaseName).Msg("connected to MongoDB")
	return client, client.Database(databaseName), nil
}

// PingMongo reports whether the primary answers within timeout.
func PingMongo(ctx context.Context, client *mongo.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Ping(ctx, readpref.Primary())
}
