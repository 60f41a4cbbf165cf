// Package transport wires the work-queue transport: a partitioned,
// offset-acknowledged pub/sub stream (Kafka via segmentio/kafka-go),
// message key jobId, manual commit after successful insertion into the
// pending set.
package transport

import (
	"context"
	"encoding/json"

	kafka "github.com/segmentio/kafka-go"

	"github.com/crawlctl/crawlctl/internal/apperr"
	"github.com/crawlctl/crawlctl/internal/job"
	"github.com/crawlctl/crawlctl/internal/logging"
)

// Producer publishes TaskMessages at submit time.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // partition by key, preserving per-jobId ordering
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish writes msg keyed by msg.JobID. The caller has already written
// the durable PENDING row; on failure it surfaces the error and leaves
// that row behind for an operator to reconcile.
func (p *Producer) Publish(ctx context.Context, msg job.TaskMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return apperr.Internal("failed to encode task message", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.JobID),
		Value: value,
	})
	if err != nil {
		return apperr.TransportError("failed to publish task message", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Handler processes one intaken task. Returning an error means "do not
// acknowledge": the message stays uncommitted and is redelivered.
type Handler func(ctx context.Context, msg job.TaskMessage) error

// Consumer drives the intake loop.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Run blocks, fetching and handling messages until ctx is cancelled.
// Malformed messages are acknowledged and logged, never redelivered, so a
// poison pill can't wedge the consumer. Handler errors leave the message
// uncommitted for redelivery.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return apperr.TransportError("failed to fetch task message", err)
		}

		var msg job.TaskMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			logging.Get().Warn("malformed task message, acknowledging and dropping", "error", err, "partition", m.Partition, "offset", m.Offset)
			if commitErr := c.reader.CommitMessages(ctx, m); commitErr != nil {
				logging.Get().Error("failed to commit offset for malformed message", "error", commitErr)
			}
			continue
		}

		if err := handle(ctx, msg); err != nil {
			logging.Get().Error("intake handler failed, leaving message uncommitted for redelivery", "jobId", msg.JobID, "error", err)
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			logging.Get().Error("failed to commit offset after successful intake", "jobId", msg.JobID, "error", err)
		}
	}
}
