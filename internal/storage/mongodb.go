// mongodb.go - MongoDB cache backend (product_cache collection, _id = fingerprint)

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bosocmputer/product_identify/pkg/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const productCacheCollection = "product_cache"

// MongoStore implements CacheStore on a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// ConnectMongo connects, pings and returns a store on dbName.product_cache
func ConnectMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logrus.Infof("✅ Connected to MongoDB (db: %s)", dbName)
	return NewMongoStore(client, client.Database(dbName).Collection(productCacheCollection)), nil
}

// NewMongoStore wraps an existing collection
func NewMongoStore(client *mongo.Client, coll *mongo.Collection) *MongoStore {
	return &MongoStore{client: client, coll: coll}
}

// Close closes MongoDB connection
func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.client.Disconnect(ctx)
	logrus.Info("MongoDB connection closed")
	return err
}

// Get loads an entry by fingerprint
func (s *MongoStore) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var entry models.CacheEntry
	err := s.coll.FindOne(ctx, bson.M{"_id": fingerprint}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to query product cache: %w", err)
	}
	return &entry, nil
}

// Put reads the current entry, merges, and writes back with a compare-and-swap
// on updatedAt. A lost race re-reads and merges again.
func (s *MongoStore) Put(ctx context.Context, fingerprint string, entry models.CacheEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	// BSON dates carry milliseconds only
	entry.UpdatedAt = entry.UpdatedAt.Truncate(time.Millisecond)

	for attempt := 1; attempt <= maxMergeAttempts; attempt++ {
		existing, err := s.Get(ctx, fingerprint)
		if err != nil && !errors.Is(err, ErrCacheMiss) {
			return err
		}

		merged, changed := MergeEntry(fingerprint, existing, entry)
		if !changed {
			return nil
		}

		if existing == nil {
			_, err := s.coll.InsertOne(ctx, merged)
			if err == nil {
				return nil
			}
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("failed to insert product cache entry: %w", err)
		}

		filter := bson.M{"_id": fingerprint, "updatedAt": existing.UpdatedAt}
		res, err := s.coll.ReplaceOne(ctx, filter, merged)
		if err != nil {
			return fmt.Errorf("failed to update product cache entry: %w", err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return fmt.Errorf("product cache entry %s: too much write contention", fingerprint)
}

// EnsureIndexes creates the secondary index used for housekeeping queries
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updatedAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create product cache index: %w", err)
	}
	return nil
}
