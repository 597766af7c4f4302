package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one fetched message. A non-nil error leaves the
// offset uncommitted.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	HandlerTimeout time.Duration
}

type Consumer struct {
	reader         *kafka.Reader
	handler        MessageHandler
	handlerTimeout time.Duration
	logger         *zap.Logger
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		Topic:             cfg.Topic,
		MinBytes:          1,
		MaxBytes:          10e6,
		MaxWait:           500 * time.Millisecond,
		HeartbeatInterval: 3 * time.Second,
		CommitInterval:    0,
		StartOffset:       kafka.FirstOffset,
		Logger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	})

	timeout := cfg.HandlerTimeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Consumer{
		reader:         reader,
		handler:        handler,
		handlerTimeout: timeout,
		logger:         logger,
	}
}

// Consume fetches and handles messages until ctx is cancelled or the reader is
// closed. Offsets are committed only after the handler succeeds.
func (c *Consumer) Consume(ctx context.Context) error {
	cfg := c.reader.Config()
	c.logger.Info("Kafka consumer starting", zap.String("topic", cfg.Topic), zap.String("group_id", cfg.GroupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, kafka.ErrGroupClosed) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Kafka consumer stopping", zap.String("topic", cfg.Topic), zap.Error(err))
				return nil
			}
			c.logger.Error("Failed to fetch message from Kafka", zap.String("topic", cfg.Topic), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		handleCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		err = c.handler(handleCtx, msg)
		cancel()
		if err != nil {
			c.logger.Error("Error handling Kafka message, offset not committed",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}

		commitCtx, cancelCommit := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
			c.logger.Error("Failed to commit offset",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
		cancelCommit()
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka consumer reader: %w", err)
	}
	c.logger.Info("Kafka consumer closed.", zap.String("topic", c.reader.Config().Topic))
	return nil
}
