package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/address-formatter/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const addressCacheCollection = "address_cache"

// MongoCacheService persistent cache in MongoDB
type MongoCacheService struct {
	collection   *mongo.Collection
	rulesVersion string
	ttl          time.Duration
	logger       *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMongoCacheService creates the cache on db. Entries built with another
// rules version or older than ttl are misses.
func NewMongoCacheService(db *mongo.Database, rulesVersion string, ttl time.Duration, logger *zap.Logger) *MongoCacheService {
	return &MongoCacheService{
		collection:   db.Collection(addressCacheCollection),
		rulesVersion: rulesVersion,
		ttl:          ttl,
		logger:       logger,
	}
}

// EnsureIndexes creates the cache indexes, logging failures
func (mcs *MongoCacheService) EnsureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := mcs.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "fingerprint", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{bson.E{Key: "rules_version", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "last_accessed", Value: 1}}},
	})
	if err != nil {
		mcs.logger.Warn("Cannot create address_cache indexes", zap.Error(err))
	}
}

func (mcs *MongoCacheService) Get(ctx context.Context, key string) (*models.ParseResult, bool, error) {
	var entry models.AddressCache
	err := mcs.collection.FindOne(ctx, bson.M{"fingerprint": key}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		mcs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error querying MongoDB cache: %w", err)
	}
	if entry.RulesVersion != mcs.rulesVersion || entry.IsExpired(mcs.ttl) {
		mcs.misses.Add(1)
		return nil, false, nil
	}

	mcs.hits.Add(1)
	go mcs.updateAccessStats(entry.ID)

	return &entry.Result, true, nil
}

func (mcs *MongoCacheService) Set(ctx context.Context, key string, result *models.ParseResult) error {
	entry := models.NewAddressCache(key, *result, mcs.rulesVersion)

	_, err := mcs.collection.ReplaceOne(ctx,
		bson.M{"fingerprint": key},
		entry,
		options.Replace().SetUpsert(true))
	if err != nil {
		mcs.logger.Error("Cannot store cache entry", zap.Error(err), zap.String("fingerprint", key))
		return fmt.Errorf("error writing MongoDB cache: %w", err)
	}
	return nil
}

func (mcs *MongoCacheService) Delete(ctx context.Context, key string) error {
	if _, err := mcs.collection.DeleteOne(ctx, bson.M{"fingerprint": key}); err != nil {
		return fmt.Errorf("error deleting from MongoDB cache: %w", err)
	}
	return nil
}

func (mcs *MongoCacheService) Clear(ctx context.Context) error {
	if _, err := mcs.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("error clearing MongoDB cache: %w", err)
	}
	mcs.hits.Store(0)
	mcs.misses.Store(0)
	return nil
}

// InvalidateByRulesVersion deletes entries of any other rules version
func (mcs *MongoCacheService) InvalidateByRulesVersion(ctx context.Context, rulesVersion string) error {
	res, err := mcs.collection.DeleteMany(ctx, bson.M{"rules_version": bson.M{"$ne": rulesVersion}})
	if err != nil {
		return fmt.Errorf("error invalidating MongoDB cache: %w", err)
	}
	mcs.logger.Info("MongoDB cache invalidated",
		zap.String("rules_version", rulesVersion),
		zap.Int64("deleted_count", res.DeletedCount))
	return nil
}

func (mcs *MongoCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	count, err := mcs.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error counting MongoDB cache documents: %w", err)
	}
	return newCacheStats(mcs.hits.Load(), mcs.misses.Load(), count), nil
}

func (mcs *MongoCacheService) Exists(ctx context.Context, key string) (bool, error) {
	count, err := mcs.collection.CountDocuments(ctx, bson.M{"fingerprint": key})
	if err != nil {
		return false, fmt.Errorf("error checking MongoDB cache: %w", err)
	}
	return count > 0, nil
}

// GetTTL documents carry no TTL of their own
func (mcs *MongoCacheService) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, nil
}

// Close the client belongs to the caller
func (mcs *MongoCacheService) Close() error {
	return nil
}

// WarmUp loads the most used entries into dst
func (mcs *MongoCacheService) WarmUp(ctx context.Context, dst ICacheService, limit int64) (int, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "access_count", Value: -1}}).
		SetLimit(limit)

	cursor, err := mcs.collection.Find(ctx, bson.M{"rules_version": mcs.rulesVersion}, opts)
	if err != nil {
		return 0, fmt.Errorf("error warming up cache: %w", err)
	}
	defer cursor.Close(ctx)

	count := 0
	for cursor.Next(ctx) {
		var entry models.AddressCache
		if err := cursor.Decode(&entry); err != nil {
			mcs.logger.Warn("Cannot decode cache entry", zap.Error(err))
			continue
		}
		if err := dst.Set(ctx, entry.Fingerprint, &entry.Result); err != nil {
			return count, err
		}
		count++
	}
	mcs.logger.Info("Cache warm up finished", zap.Int("loaded_items", count))
	return count, cursor.Err()
}

func (mcs *MongoCacheService) updateAccessStats(id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{"last_accessed": time.Now()},
		"$inc": bson.M{"access_count": 1},
	}
	if _, err := mcs.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		mcs.logger.Warn("Cannot update cache access stats", zap.Error(err))
	}
}
