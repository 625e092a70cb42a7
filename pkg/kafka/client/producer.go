package client

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/edgeflare/kafkaform/pkg/config"
	"go.uber.org/zap"
)

// Publisher writes messages to a single topic.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

type saramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewPublisher creates a SyncProducer for topic on the given cluster.
func NewPublisher(cluster config.Cluster, topic string, timeout time.Duration, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conf, err := ToSaramaConfig(cluster, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama config: %w", err)
	}

	producer, err := sarama.NewSyncProducer(cluster.Brokers(), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	return &saramaPublisher{producer: producer, topic: topic, logger: logger}, nil
}

func (p *saramaPublisher) Publish(ctx context.Context, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	var (
		partition int32
		offset    int64
	)
	err := call(ctx, func() error {
		var err error
		partition, offset, err = p.producer.SendMessage(msg)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Debug("message produced",
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (p *saramaPublisher) Close() error {
	return p.producer.Close()
}
