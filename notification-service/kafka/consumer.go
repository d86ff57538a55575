// Package kafka reads order events off the orders topic and hands each one
// to a Handler, retrying handler failures with a linear backoff.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vrushab-bit/mini-shop/middleware"
	"github.com/vrushab-bit/mini-shop/order-service/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, event models.OrderEvent) error

var errMalformed = errors.New("malformed event")

func NewSaramaConsumer(broker string, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer([]string{broker}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized", zap.String("broker", broker))
	return consumer, nil
}

type Consumer struct {
	consumer   sarama.Consumer
	topic      string
	handle     Handler
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewConsumer(consumer sarama.Consumer, topic string, handle Handler, logger *zap.Logger) *Consumer {
	return &Consumer{
		consumer:   consumer,
		topic:      topic,
		handle:     handle,
		maxRetries: 3,
		backoff:    time.Second,
		logger:     logger,
	}
}

// Run consumes every partition of the topic from the newest offset until ctx
// is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	partitions, err := c.consumer.Partitions(c.topic)
	if err != nil {
		return fmt.Errorf("failed to list partitions of %s: %w", c.topic, err)
	}

	pcs := make([]sarama.PartitionConsumer, 0, len(partitions))
	for _, partition := range partitions {
		pc, err := c.consumer.ConsumePartition(c.topic, partition, sarama.OffsetNewest)
		if err != nil {
			for _, started := range pcs {
				_ = started.Close()
			}
			return fmt.Errorf("failed to consume partition %d: %w", partition, err)
		}
		pcs = append(pcs, pc)
	}

	c.logger.Info("Kafka consumer started", zap.String("topic", c.topic), zap.Int("partitions", len(pcs)))

	var wg sync.WaitGroup
	for _, pc := range pcs {
		wg.Add(1)
		go func(pc sarama.PartitionConsumer) {
			defer wg.Done()
			defer pc.Close()
			c.consumePartition(ctx, pc)
		}(pc)
	}
	wg.Wait()
	return nil
}

func (c *Consumer) consumePartition(ctx context.Context, pc sarama.PartitionConsumer) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pc.Messages():
			if !ok {
				return
			}
			if err := c.handleWithRetry(ctx, msg); err != nil {
				c.logger.Error("Failed to handle message",
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		case err, ok := <-pc.Errors():
			if !ok {
				return
			}
			c.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err := c.handleMessage(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, errMalformed) {
			return err
		}
		lastErr = err
		if attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(attempt) * c.backoff
		c.logger.Warn("Retrying message handling",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Consumer) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(msg.Headers))
	ctx, span := otel.Tracer("notification-service").Start(ctx, "ProcessOrderEvent")
	defer span.End()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if event.EventType == "" {
		return fmt.Errorf("%w: missing event_type", errMalformed)
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.Int64("order.id", event.OrderID),
	)

	if event.EventType != models.EventOrderCreated {
		c.logger.Debug("Ignoring event",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("event_type", event.EventType),
		)
		return nil
	}

	if err := c.handle(ctx, event); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// headerCarrier adapts consumed record headers to propagation.TextMapCarrier.
type headerCarrier []*sarama.RecordHeader

func (c headerCarrier) Get(key string) string {
	for _, h := range c {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set is a no-op: consumed headers are read-only.
func (c headerCarrier) Set(string, string) {}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, h := range c {
		if h != nil {
			keys = append(keys, string(h.Key))
		}
	}
	return keys
}
