package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/address-formatter/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoSink upserts addresses by legacy id and stores review records
type MongoSink struct {
	addresses *mongo.Collection
	reviews   *mongo.Collection
	logger    *zap.Logger
}

// NewMongoSink creates a MongoSink on db
func NewMongoSink(db *mongo.Database, collection, reviewsCollection string, logger *zap.Logger) *MongoSink {
	return &MongoSink{
		addresses: db.Collection(collection),
		reviews:   db.Collection(reviewsCollection),
		logger:    logger,
	}
}

// EnsureIndexes creates the lookup indexes. Failures are logged, not fatal.
func (ms *MongoSink) EnsureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := ms.addresses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "old_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{bson.E{Key: "country", Value: 1}, bson.E{Key: "postal_code", Value: 1}},
		},
	})
	if err != nil {
		ms.logger.Warn("Could not create address indexes", zap.Error(err))
	}

	_, err = ms.reviews.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "status", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "old_id", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "run_id", Value: 1}}},
	})
	if err != nil {
		ms.logger.Warn("Could not create review indexes", zap.Error(err))
	}
}

func (ms *MongoSink) Write(ctx context.Context, addr *models.StructuredAddress) error {
	_, err := ms.addresses.ReplaceOne(ctx,
		bson.M{"old_id": addr.ID},
		addr,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert address %s: %w", addr.ID, err)
	}
	return nil
}

// Enqueue stores a review record
func (ms *MongoSink) Enqueue(ctx context.Context, review *models.AddressReview) error {
	res, err := ms.reviews.InsertOne(ctx, review)
	if err != nil {
		return fmt.Errorf("queue review %s: %w", review.OldID, err)
	}
	ms.logger.Debug("Review queued",
		zap.String("old_id", review.OldID),
		zap.Strings("reasons", review.Reasons),
		zap.Any("review_id", res.InsertedID))
	return nil
}

// PendingReviews lists reviews still waiting for a decision, oldest first
func (ms *MongoSink) PendingReviews(ctx context.Context, limit int64) ([]models.AddressReview, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := ms.reviews.Find(ctx, bson.M{"status": models.ReviewStatusPending}, opts)
	if err != nil {
		return nil, fmt.Errorf("find pending reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.AddressReview
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return out, nil
}

// RunsCollection collection holding one report per migration run
const RunsCollection = "migration_runs"

// SaveReport stores the report of a migration run
func (ms *MongoSink) SaveReport(ctx context.Context, report *models.MigrationReport) error {
	runs := ms.reviews.Database().Collection(RunsCollection)
	if _, err := runs.ReplaceOne(ctx,
		bson.M{"run_id": report.RunID},
		report,
		options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("save report %s: %w", report.RunID, err)
	}
	return nil
}

// Close is a no-op, the client belongs to the caller
func (ms *MongoSink) Close() error {
	return nil
}
