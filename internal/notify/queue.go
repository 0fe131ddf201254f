package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TypeEmail is the asynq task type carrying a Message.
	TypeEmail = "notification:email"
	// QueueName is the asynq queue notifications are enqueued on.
	QueueName = "notifications"

	maxRetry = 5
)

// NewEmailTask wraps a message in an asynq task.
func NewEmailTask(msg Message) (*asynq.Task, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmail, b), nil
}

// QueueGateway enqueues messages on Redis for the notification worker.
type QueueGateway struct {
	client *asynq.Client
}

func NewQueueGateway(opt asynq.RedisConnOpt) *QueueGateway {
	return &QueueGateway{client: asynq.NewClient(opt)}
}

func (g *QueueGateway) Notify(ctx context.Context, msg Message) error {
	task, err := NewEmailTask(msg)
	if err != nil {
		return fmt.Errorf("build email task: %w", err)
	}
	if _, err := g.client.EnqueueContext(ctx, task, asynq.Queue(QueueName), asynq.MaxRetry(maxRetry)); err != nil {
		return fmt.Errorf("enqueue email task: %w", err)
	}
	return nil
}

func (g *QueueGateway) Close() error {
	return g.client.Close()
}
