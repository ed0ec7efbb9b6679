package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// settingsDocID is the id of the single settings document.
const settingsDocID = "main"

// MongoSettingsCollection implements SettingsStore for MongoDB.
type MongoSettingsCollection struct {
	Collection *mongo.Collection
}

// GetSettings loads the settings document, or ErrNotFound before the first save.
func (c *MongoSettingsCollection) GetSettings(ctx context.Context) (*models.Settings, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var s models.Settings
	if err := c.Collection.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&s); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// SaveSettings replaces the settings document.
func (c *MongoSettingsCollection) SaveSettings(ctx context.Context, s models.Settings) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	_, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": settingsDocID}, s, options.Replace().SetUpsert(true))
	return err
}

// MongoCounterCollection implements Counter with one document per key.
type MongoCounterCollection struct {
	Collection *mongo.Collection
}

// Next atomically increments the key's count, creating it at 1, and returns
// the new value. Concurrent callers always receive distinct values.
func (c *MongoCounterCollection) Next(ctx context.Context, key string) (int, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var doc struct {
		Count int `bson:"count"`
	}
	err := c.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"count": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", key, err)
	}
	return doc.Count, nil
}
