package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/swim-eval-api/internal/models"
	"github.com/noah-isme/swim-eval-api/pkg/jobs"
)

const (
	eventEvaluationChanged = "evaluation.changed"
	eventStudentChanged    = "student.changed"
)

// Notifier is told about committed changes. Calls happen after the transaction
// commits and must not fail the request that caused them.
type Notifier interface {
	EvaluationChanged(ctx context.Context, event models.EvaluationEvent)
	StudentChanged(ctx context.Context, event models.StudentEvent)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) EvaluationChanged(context.Context, models.EvaluationEvent) {}
func (NopNotifier) StudentChanged(context.Context, models.StudentEvent)       {}

type eventPublisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// ChangeMessage is the envelope published on the notification channel.
type ChangeMessage struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Attempt     int         `json:"attempt"`
	PublishedAt time.Time   `json:"published_at"`
	Payload     interface{} `json:"payload"`
}

// QueueNotifier hands events to a worker pool that publishes them to a Redis channel,
// so slow or failing delivery never holds up the caller.
type QueueNotifier struct {
	queue     *jobs.Queue
	publisher eventPublisher
	channel   string
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewQueueNotifier builds the notifier and its delivery queue. Call Start before use.
func NewQueueNotifier(publisher eventPublisher, channel string, workers, retries int, metrics *MetricsService, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &QueueNotifier{
		publisher: publisher,
		channel:   channel,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
	n.queue = jobs.NewQueue("notifications", n.deliver, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
		OnDrop: func(job jobs.Job, err error) {
			metrics.RecordNotification("dropped")
		},
	})
	return n
}

// Start launches the delivery workers.
func (n *QueueNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop halts the delivery workers.
func (n *QueueNotifier) Stop() {
	n.queue.Stop()
}

// Stats reports the delivery queue counters.
func (n *QueueNotifier) Stats() jobs.Stats {
	return n.queue.Stats()
}

// EvaluationChanged queues an evaluation event.
func (n *QueueNotifier) EvaluationChanged(ctx context.Context, event models.EvaluationEvent) {
	n.enqueue(eventEvaluationChanged, event)
}

// StudentChanged queues a student event.
func (n *QueueNotifier) StudentChanged(ctx context.Context, event models.StudentEvent) {
	n.enqueue(eventStudentChanged, event)
}

func (n *QueueNotifier) enqueue(kind string, payload interface{}) {
	job := jobs.Job{ID: uuid.NewString(), Type: kind, Payload: payload}
	if err := n.queue.Enqueue(job); err != nil {
		n.metrics.RecordNotification("rejected")
		n.logger.Warn("notification not queued", zap.String("type", kind), zap.Error(err))
	}
}

func (n *QueueNotifier) deliver(ctx context.Context, job jobs.Job) error {
	msg := ChangeMessage{
		ID:          job.ID,
		Type:        job.Type,
		Attempt:     job.Attempt + 1,
		PublishedAt: n.now().UTC(),
		Payload:     job.Payload,
	}
	if err := n.publisher.Publish(ctx, n.channel, msg); err != nil {
		n.metrics.RecordNotification("failed")
		return err
	}
	n.metrics.RecordNotification("published")
	return nil
}
