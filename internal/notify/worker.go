package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Sender hands a message to the mail transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of a mail transport.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info("email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.HTMLBody)),
	)
	return nil
}

// HandleEmailTask decodes an email task and sends it. A malformed payload is
// not retried.
func HandleEmailTask(sender Sender) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var msg Message
		if err := json.Unmarshal(task.Payload(), &msg); err != nil {
			return fmt.Errorf("decode email task: %v: %w", err, asynq.SkipRetry)
		}
		return sender.Send(ctx, msg)
	}
}

// Worker consumes notification tasks.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewWorker(opt asynq.RedisConnOpt, sender Sender, logger *zap.Logger, concurrency int) *Worker {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueName: 1},
		Logger:      logger.Sugar(),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmail, HandleEmailTask(sender))

	return &Worker{srv: srv, mux: mux}
}

// Run processes tasks until ctx is done, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.srv.Start(w.mux); err != nil {
		return fmt.Errorf("start notification worker: %w", err)
	}
	<-ctx.Done()
	w.srv.Shutdown()
	return nil
}
