// Package bootstrap builds the components shared by the API server and the
// worker commands from a loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/address-formatter/app/config"
	"github.com/address-formatter/app/services"
	"github.com/address-formatter/internal/normalizer"
	"github.com/address-formatter/internal/parser"
	"github.com/address-formatter/internal/search"
	"github.com/address-formatter/internal/sink"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// NewLogger production JSON logger in production, console logger otherwise
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	return zc.Build()
}

// NewParser builds the parser from the embedded rules and the parser section
func NewParser(cfg *config.Config) (*parser.AddressParser, error) {
	countries, err := normalizer.DefaultCountryResolver()
	if err != nil {
		return nil, fmt.Errorf("load country table: %w", err)
	}
	return parser.NewAddressParser(parser.DefaultPatterns(), countries, parser.Options{
		DefaultCountry: cfg.Parser.DefaultCountry,
		StreetOnly:     cfg.Parser.StreetOnly,
		CountryLines:   cfg.Parser.CountryLines,
	}), nil
}

// ConnectMongo connects and pings MongoDB. It returns nil when mongo.url is empty.
func ConnectMongo(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*mongo.Database, error) {
	if cfg.Mongo.URL == "" {
		return nil, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URL))
	if err != nil {
		return nil, fmt.Errorf("connect MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", cfg.Mongo.Database))
	return client.Database(cfg.Mongo.Database), nil
}

// NewCache builds the cache tiers: in-process LRU, then Redis when
// configured, then MongoDB when persistent. It returns nil when caching is disabled.
func NewCache(ctx context.Context, cfg *config.Config, rulesVersion string, db *mongo.Database, logger *zap.Logger) (services.ICacheService, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	l1, err := services.NewCacheService(cfg.Cache.L1Size, cfg.Cache.TTL, rulesVersion)
	if err != nil {
		return nil, err
	}
	tiers := []services.ICacheService{l1}

	if cfg.Cache.RedisURL != "" {
		redisCache, err := services.NewRedisCacheService(cfg.Cache.RedisURL, cfg.Cache.TTL, logger)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, redisCache)
	}

	if cfg.Cache.Persistent && db != nil {
		mongoCache := services.NewMongoCacheService(db, rulesVersion, cfg.Cache.TTL, logger)
		mongoCache.EnsureIndexes(ctx)
		if n, err := mongoCache.WarmUp(ctx, l1, int64(cfg.Cache.L1Size/2)); err != nil {
			logger.Warn("Failed to warm up cache", zap.Error(err))
		} else {
			logger.Info("Cache warmed up", zap.Int("entries", n))
		}
		tiers = append(tiers, mongoCache)
	}

	if len(tiers) == 1 {
		return l1, nil
	}
	return services.NewHybridCacheService(logger, tiers...), nil
}

// NewAddressIndex connects to Meilisearch. It returns nil when meilisearch.url is empty.
func NewAddressIndex(cfg *config.Config, logger *zap.Logger) (*search.AddressIndex, error) {
	if cfg.Meilisearch.URL == "" {
		return nil, nil
	}
	return search.NewAddressIndex(search.IndexConfig{
		URL:       cfg.Meilisearch.URL,
		APIKey:    cfg.Meilisearch.MasterKey,
		IndexName: cfg.Meilisearch.Index,
	}, logger)
}

// Sinks destination of a migration run
type Sinks struct {
	Sink    sink.Sink
	Reviews sink.ReviewQueue // nil when the review queue is off
	Store   *sink.MongoSink  // run reports; nil without MongoDB
}

// OpenSinks opens every sink named in sink.kinds. db is required by the
// mongo sink and the review queue; index by the meilisearch sink.
func OpenSinks(ctx context.Context, cfg *config.Config, db *mongo.Database, index *search.AddressIndex, logger *zap.Logger) (*Sinks, error) {
	var (
		opened []sink.Sink
		mongoS *sink.MongoSink
	)
	fail := func(err error) (*Sinks, error) {
		return nil, errors.Join(err, sink.Multi(opened).Close())
	}

	for _, kind := range cfg.Sink.Kinds {
		switch kind {
		case config.SinkPostgres:
			pg, err := sink.NewPostgresSink(ctx, cfg.SinkDSN(), cfg.Sink, cfg.Source.AttributeColumns, logger)
			if err != nil {
				return fail(err)
			}
			opened = append(opened, pg)
		case config.SinkMongo:
			if db == nil {
				return fail(errors.New("mongo sink requires mongo.url"))
			}
			mongoS = sink.NewMongoSink(db, cfg.Sink.Collection, cfg.Sink.ReviewsCollection, logger)
			mongoS.EnsureIndexes(ctx)
			opened = append(opened, mongoS)
		case config.SinkKafka:
			ks, err := sink.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
			if err != nil {
				return fail(err)
			}
			opened = append(opened, ks)
		case config.SinkMeilisearch:
			if index == nil {
				return fail(errors.New("meilisearch sink requires meilisearch.url"))
			}
			opened = append(opened, sink.NewIndexSink(index, cfg.Source.BatchSize))
		case config.SinkNone:
		default:
			return fail(fmt.Errorf("unknown sink %q", kind))
		}
	}

	sinks := &Sinks{Sink: sink.Discard{}}
	switch len(opened) {
	case 0:
	case 1:
		sinks.Sink = opened[0]
	default:
		sinks.Sink = sink.Multi(opened)
	}

	if db != nil && mongoS == nil {
		mongoS = sink.NewMongoSink(db, cfg.Sink.Collection, cfg.Sink.ReviewsCollection, logger)
		mongoS.EnsureIndexes(ctx)
	}
	sinks.Store = mongoS

	switch {
	case cfg.Sink.ReviewQueue && mongoS != nil:
		sinks.Reviews = mongoS
	case cfg.Sink.ReviewQueue:
		logger.Warn("Review queue disabled: mongo.url is not set")
	}
	return sinks, nil
}
