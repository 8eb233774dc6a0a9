package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/retry"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON messages to one topic
type Producer struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer, topic: topic, logger: util.GetLogger()}
}

// PublishEvent publishes an event to Kafka
func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	p.logger.Debug("Published event",
		zap.String("topic", p.topic),
		zap.String("key", key),
		zap.String("type", fmt.Sprintf("%T", event)))
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

// Consumer represents a Kafka consumer
type Consumer struct {
	reader  messageReader
	backoff *retry.Executor
	logger  *zap.Logger
}

// NewConsumer creates a new Kafka consumer. backoff paces redelivery of a
// message whose handler failed; nil uses the default retry policy.
func NewConsumer(brokers []string, topic, groupID string, backoff *retry.Executor) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return newConsumer(reader, backoff)
}

func newConsumer(reader messageReader, backoff *retry.Executor) *Consumer {
	if backoff == nil {
		backoff = retry.NewExecutor(retry.DefaultPolicy())
	}
	return &Consumer{reader: reader, backoff: backoff, logger: util.GetLogger()}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches messages until ctx is done. A message is committed
// only after handler succeeds, and a failing message is retried in place so
// no later offset of the partition is committed past it.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	topic := c.reader.Config().Topic
	c.logger.Info("Starting Kafka consumer", zap.String("topic", topic))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer context cancelled, stopping", zap.String("topic", topic))
			return ctx.Err()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("Error fetching message", zap.String("topic", topic), zap.Error(err))
				if err := c.backoff.Backoff(ctx, 0); err != nil {
					return err
				}
				continue
			}

			if err := c.handleUntilDone(ctx, msg, handler); err != nil {
				c.logger.Info("Consumer stopped before message was handled",
					zap.String("topic", topic),
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset))
				return err
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Error committing message", zap.String("topic", topic), zap.Error(err))
			}
		}
	}
}

// handleUntilDone runs handler on msg until it succeeds or ctx is done
func (c *Consumer) handleUntilDone(ctx context.Context, msg kafka.Message, handler MessageHandler) error {
	for attempt := 0; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		c.logger.Error("Error handling message, retrying",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if err := c.backoff.Backoff(ctx, attempt); err != nil {
			return err
		}
	}
}
