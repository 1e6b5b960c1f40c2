package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aescanero/netprov/pkg/domain"
	"github.com/aescanero/netprov/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	jobsStream   = "netprov:jobs"
	eventsStream = "netprov:events"

	// pendingIdle is how long a delivery may sit unacknowledged before
	// another consumer reclaims it.
	pendingIdle = time.Minute

	// eventsMaxLen caps the lifecycle event stream; events are
	// observational and safe to trim.
	eventsMaxLen = 4096
)

// StreamsBus implements the dispatch Queue and the lifecycle EventBus using
// Redis Streams.
//
// Dispatch messages are read through a consumer group and acknowledged only
// after the handler returns nil, so delivery is at-least-once: a crashed or
// failed handler leaves the entry pending and XAUTOCLAIM hands it to the
// next consumer.
type StreamsBus struct {
	client        *redis.Client
	logger        *zap.Logger
	consumerGroup string
}

// NewStreamsBus creates a new Redis Streams bus
func NewStreamsBus(client *redis.Client, consumerGroup string, logger *zap.Logger) (*StreamsBus, error) {
	return &StreamsBus{
		client:        client,
		logger:        logger,
		consumerGroup: consumerGroup,
	}, nil
}

// Enqueue submits a request id for provisioning (ports.Queue interface)
func (b *StreamsBus) Enqueue(ctx context.Context, requestID string) error {
	args := &redis.XAddArgs{
		Stream: jobsStream,
		Values: map[string]interface{}{
			"request_id": requestID,
		},
	}

	if _, err := b.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	b.logger.Debug("request enqueued",
		zap.String("request_id", requestID),
		zap.String("stream", jobsStream))

	return nil
}

// Consume delivers queued request ids to handler until ctx is done
// (ports.Queue interface). Entries are acknowledged only on a nil handler
// return.
func (b *StreamsBus) Consume(ctx context.Context, consumer string, handler ports.JobHandler) error {
	err := b.client.XGroupCreateMkStream(ctx, jobsStream, b.consumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	b.logger.Info("consuming dispatch stream",
		zap.String("stream", jobsStream),
		zap.String("consumer_group", b.consumerGroup),
		zap.String("consumer", consumer))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			b.claimStale(ctx, consumer, handler)

			streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    b.consumerGroup,
				Consumer: consumer,
				Streams:  []string{jobsStream, ">"},
				Count:    10,
				Block:    time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					// No new messages
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.logger.Error("failed to read from stream",
					zap.String("stream", jobsStream),
					zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					b.processMessage(ctx, message, handler)
				}
			}
		}
	}
}

// claimStale reclaims deliveries another consumer left pending.
func (b *StreamsBus) claimStale(ctx context.Context, consumer string, handler ports.JobHandler) {
	messages, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   jobsStream,
		Group:    b.consumerGroup,
		Consumer: consumer,
		MinIdle:  pendingIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil && err != redis.Nil {
		if ctx.Err() == nil {
			b.logger.Error("failed to claim pending messages",
				zap.String("stream", jobsStream),
				zap.Error(err))
		}
		return
	}

	for _, message := range messages {
		b.processMessage(ctx, message, handler)
	}
}

// processMessage processes a single dispatch message.
func (b *StreamsBus) processMessage(ctx context.Context, message redis.XMessage, handler ports.JobHandler) {
	requestID, ok := message.Values["request_id"].(string)
	if !ok {
		b.logger.Error("invalid message format",
			zap.String("stream", jobsStream),
			zap.String("message_id", message.ID))
		// Malformed entries can never succeed; ack to drop them.
		b.ack(ctx, message.ID)
		return
	}

	if err := handler(ctx, requestID); err != nil {
		// Leave the entry pending; redelivery policy decides next action.
		b.logger.Error("handler error, leaving message pending",
			zap.String("stream", jobsStream),
			zap.String("message_id", message.ID),
			zap.String("request_id", requestID),
			zap.Error(err))
		return
	}

	b.ack(ctx, message.ID)
}

func (b *StreamsBus) ack(ctx context.Context, messageID string) {
	if err := b.client.XAck(ctx, jobsStream, b.consumerGroup, messageID).Err(); err != nil {
		b.logger.Error("failed to acknowledge message",
			zap.String("stream", jobsStream),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}

// Publish publishes a lifecycle event (ports.EventBus interface)
func (b *StreamsBus) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: eventsStream,
		MaxLen: eventsMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}

	if _, err := b.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	b.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("request_id", event.RequestID))

	return nil
}

// Tail streams lifecycle events published after the call until ctx is done
// (ports.EventBus interface). Every tailer sees every event; no consumer
// group is involved.
func (b *StreamsBus) Tail(ctx context.Context, handler ports.EventHandler) error {
	lastID := "$"

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			streams, err := b.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{eventsStream, lastID},
				Count:   10,
				Block:   time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.logger.Error("failed to read event stream",
					zap.String("stream", eventsStream),
					zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					lastID = message.ID

					data, ok := message.Values["data"].(string)
					if !ok {
						continue
					}

					var event domain.Event
					if err := json.Unmarshal([]byte(data), &event); err != nil {
						b.logger.Error("failed to unmarshal event",
							zap.String("message_id", message.ID),
							zap.Error(err))
						continue
					}

					if err := handler(ctx, event); err != nil {
						return err
					}
				}
			}
		}
	}
}

// Close closes the bus and cleans up resources. The Redis client is owned
// and closed by the caller.
func (b *StreamsBus) Close() error {
	return nil
}
