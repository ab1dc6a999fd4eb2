// internal/database/indexes.go
package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	zap.L().Info("Creating database indexes")

	usageCollection := m.GetCollection(UsageCollection)
	if err := m.createUsageIndexes(ctx, usageCollection); err != nil {
		return err
	}

	zap.L().Info("Database indexes created successfully")
	return nil
}

// createUsageIndexes backs the store's range scans: every query filters by
// timestamp, optionally narrowed by customer or organization attribution.
func (m *MongoDB) createUsageIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "organization_name", Value: 1}, {Key: "timestamp", Value: -1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return err
	}

	zap.L().Debug("Usage collection indexes created")
	return nil
}
