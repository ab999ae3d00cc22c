package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/address-formatter/app/models"
	"go.uber.org/zap"
)

// KafkaSink publishes every migrated address as a JSON message keyed by legacy id
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewProducerConfig producer settings used by NewKafkaSink
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Net.DialTimeout = 30 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

// NewKafkaSink connects a sync producer to brokers
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) (*KafkaSink, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	logger.Info("Kafka producer created", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return NewKafkaSinkFromProducer(producer, topic, logger), nil
}

// NewKafkaSinkFromProducer wraps an existing producer
func NewKafkaSinkFromProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, logger: logger}
}

func (ks *KafkaSink) Write(ctx context.Context, addr *models.StructuredAddress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ks.producer == nil {
		return errors.New("kafka producer is not initialized")
	}

	payload, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("encode address %s: %w", addr.ID, err)
	}

	partition, offset, err := ks.producer.SendMessage(&sarama.ProducerMessage{
		Topic: ks.topic,
		Key:   sarama.StringEncoder(addr.ID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish address %s to %s: %w", addr.ID, ks.topic, err)
	}
	ks.logger.Debug("Address published",
		zap.String("old_id", addr.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (ks *KafkaSink) Close() error {
	if ks.producer != nil {
		return ks.producer.Close()
	}
	return nil
}
