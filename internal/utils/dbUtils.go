package utils

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateUniqueIndex creates a unique index on the specified collection and keys.
// It returns an error if the index creation fails, including a specific error for duplicate keys.
func CreateUniqueIndex(ctx context.Context, collection *mongo.Collection, keys interface{}, fieldName string) error {
	indexModel := mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(true),
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s already exists", fieldName)
		}
		return fmt.Errorf("failed to create index for %s: %w", fieldName, err)
	}
	return nil
}

// CreateIndex creates a plain (non-unique) index.
func CreateIndex(ctx context.Context, collection *mongo.Collection, keys interface{}) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys})
	if err != nil {
		return fmt.Errorf("failed to create index on %s: %w", collection.Name(), err)
	}
	return nil
}
