package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ProducerConfig holds configuration for the Kafka producer
type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	WriteTimeout time.Duration
}

// Producer publishes records to Kafka
type Producer struct {
	client *kgo.Client
	config *ProducerConfig
}

// NewProducer creates a Kafka producer and verifies the connection
func NewProducer(ctx context.Context, cfg *ProducerConfig) (*Producer, error) {
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(cfg.WriteTimeout),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}

	return &Producer{client: client, config: cfg}, nil
}

// Publish sends a single record and waits for the broker ack
func (p *Producer) Publish(ctx context.Context, topic string, key string, value []byte) error {
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}

	result := p.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	return nil
}

// PublishAsync sends a record without waiting for the ack. The callback,
// if non-nil, receives the delivery error.
func (p *Producer) PublishAsync(ctx context.Context, topic string, key string, value []byte, onDone func(error)) {
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}

	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if onDone != nil {
			onDone(err)
		}
	})
}

// Close flushes pending records and closes the client
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.WriteTimeout)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
