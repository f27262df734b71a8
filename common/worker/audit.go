// Package worker contains background consumers for catalog events.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dhis2/dhis2-apptore/common/logger"
	"github.com/dhis2/dhis2-apptore/common/queue"
	"github.com/dhis2/dhis2-apptore/common/redis"
)

// AuditWorker consumes catalog events and records an audit trail. The trail
// is the structured log plus per-topic counters in Redis when a client is
// configured; without Redis only the log is written.
type AuditWorker struct {
	queue queue.Queue
	redis *redis.Client
	log   *logger.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(q queue.Queue, redisClient *redis.Client, log *logger.Logger) *AuditWorker {
	return &AuditWorker{
		queue: q,
		redis: redisClient,
		log:   log,
	}
}

// Start subscribes to all catalog topics. Consumers run until ctx is
// cancelled.
func (w *AuditWorker) Start(ctx context.Context) error {
	topics := []string{
		queue.TopicAppSubmitted,
		queue.TopicAppApproval,
		queue.TopicAppDeleted,
	}

	for _, topic := range topics {
		topic := topic
		if err := w.queue.Subscribe(ctx, topic, func(ctx context.Context, _ string, value []byte) error {
			return w.record(ctx, topic, value)
		}); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	w.log.Info("audit worker started", "topics", len(topics))
	return nil
}

// record writes one audit entry for a catalog event
func (w *AuditWorker) record(ctx context.Context, topic string, value []byte) error {
	var event queue.AppEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("malformed event on %s: %w", topic, err)
	}

	w.log.Info("catalog event",
		"topic", topic,
		"app_id", event.AppUID,
		"app_name", event.AppName,
		"actor", event.Actor,
		"status", event.Status)

	if w.redis != nil {
		counterKey := fmt.Sprintf("audit:count:%s", topic)
		if _, err := w.redis.Increment(ctx, counterKey); err != nil {
			// Counters are best effort, the log entry already exists
			w.log.Warn("failed to bump audit counter", "topic", topic, "error", err)
		}
	}

	return nil
}
