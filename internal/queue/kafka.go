package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"typed-todo/internal/models"
	"typed-todo/pkg/logger"
)

// EnsureTopic creates the todo events topic with the given partitions (idempotent).
// Call at startup; if it fails (e.g. no broker or topic exists), app still runs.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int) {
	if len(brokers) == 0 {
		return
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", topic, "partitions", partitions)
}

// Publisher writes todo change events. A nil Publisher drops events.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns an async producer for topic, or nil when brokers is empty.
func NewPublisher(ctx context.Context, brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		logger.Info(ctx, "Kafka producer disabled (no brokers)")
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn(context.Background(), "Kafka async write failed", "error", err, "messages", len(messages))
			}
		},
	}
	logger.Info(ctx, "Kafka producer initialized", "topic", topic, "brokers", brokers)
	return &Publisher{writer: w}
}

// NewTodoEvent stamps a change event for todoID.
func NewTodoEvent(action string, todoID int64) *models.TodoEvent {
	return &models.TodoEvent{
		EventID:    uuid.NewString(),
		Action:     action,
		TodoID:     todoID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publish enqueues ev. Events of one todo share a key and so a partition.
func (p *Publisher) Publish(ctx context.Context, ev *models.TodoEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	msg, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeEvent(ev *models.TodoEvent) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.TodoID, 10)),
		Value: payload,
	}, nil
}

// DecodeEvent parses a message value written by Publish.
func DecodeEvent(payload []byte) (*models.TodoEvent, error) {
	var ev models.TodoEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode todo event: %w", err)
	}
	return &ev, nil
}
