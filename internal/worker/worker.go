package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"typed-todo/internal/queue"
	"typed-todo/pkg/logger"
)

// Evictor drops cached entries for the given todos.
type Evictor interface {
	Invalidate(ctx context.Context, ids ...int64)
}

// Worker consumes todo change events and evicts the affected cache keys a
// second time after a delay. The service already evicts synchronously; the
// delayed pass removes entries a concurrent read put back with pre-write data.
type Worker struct {
	evictor   Evictor
	delay     time.Duration
	processed atomic.Int64
}

// New returns a Worker.
func New(evictor Evictor, delay time.Duration) *Worker {
	return &Worker{evictor: evictor, delay: delay}
}

// Processed returns the number of events handled so far.
func (w *Worker) Processed() int64 {
	return w.processed.Load()
}

// Run reads events from the topic until ctx is done. One consumer per
// process; replicas share partitions through the consumer group.
func (w *Worker) Run(ctx context.Context, brokers []string, topic, groupID string) {
	if len(brokers) == 0 {
		logger.Info(ctx, "Worker disabled (no Kafka brokers)")
		return
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	logger.Info(ctx, "Kafka consumer started", "topic", topic, "group", groupID)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "Worker fetch failed", "error", err)
			continue
		}
		if err := w.handleMessage(ctx, msg.Value); err != nil {
			logger.Error(ctx, "Worker handle failed", "error", err, "payload", string(msg.Value))
		}
		// Committed either way so a poison message cannot block the partition.
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "Worker commit failed", "error", err)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, payload []byte) error {
	ev, err := queue.DecodeEvent(payload)
	if err != nil {
		return err
	}
	id := ev.TodoID
	time.AfterFunc(w.delay, func() {
		w.evictor.Invalidate(context.WithoutCancel(ctx), id)
	})
	w.processed.Add(1)
	logger.Debug(ctx, "Scheduled delayed eviction", "todo_id", id, "action", ev.Action)
	return nil
}
