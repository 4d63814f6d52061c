package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EmailType tags one kind of outbound mail. Every type has a fixed payload
// struct (see templates.go); free-form data maps never reach a template.
type EmailType string

const (
	EmailSendContract     EmailType = "SEND_CONTRACT_TO_SIGNEE"
	EmailSigningConfirmed EmailType = "SIGNING_CONFIRMATION"
	EmailSignedByAll      EmailType = "SIGNED_BY_ALL_SIGNEES"
	EmailCancelled        EmailType = "CONTRACT_CANCELLED"
	EmailSigningReminder  EmailType = "SIGNING_REMINDER"
	EmailDeletionNotice   EmailType = "ACCOUNT_DELETION_SCHEDULED"
)

// EmailJob is the unit handed to the delivery queue. Delivery is best-effort
// and fire-and-forget: the business action that produced the job never waits
// for, or learns about, the outcome.
type EmailJob struct {
	EmailTo   string            `json:"email_to"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	EmailType EmailType         `json:"email_type"`
	EmailData map[string]string `json:"email_data,omitempty"`
	OrgID     string            `json:"org_id,omitempty"`
}

// Dispatcher enqueues email jobs for asynchronous delivery
type Dispatcher interface {
	Enqueue(ctx context.Context, job EmailJob) error
}

// RedisDispatcher pushes jobs onto a Redis list consumed by the delivery
// worker (LPUSH here, BRPOP in the worker).
type RedisDispatcher struct {
	client *redis.Client
	queue  string
	logger *zap.Logger
}

func NewRedisDispatcher(client *redis.Client, queue string, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{
		client: client,
		queue:  queue,
		logger: logger,
	}
}

func (d *RedisDispatcher) Enqueue(ctx context.Context, job EmailJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}

	if err := d.client.LPush(ctx, d.queue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue email job: %w", err)
	}

	d.logger.Debug("email job enqueued",
		zap.String("type", string(job.EmailType)),
		zap.String("to", job.EmailTo),
	)
	return nil
}

// Sender delivers one rendered email. The production implementation lives at
// the provider boundary; LogSender stands in when no provider is configured.
type Sender interface {
	Send(ctx context.Context, job EmailJob) error
}

// LogSender writes outbound mail to the log instead of delivering it
type LogSender struct {
	Logger *zap.Logger
}

func (s *LogSender) Send(ctx context.Context, job EmailJob) error {
	s.Logger.Info("outbound email",
		zap.String("type", string(job.EmailType)),
		zap.String("to", job.EmailTo),
		zap.String("subject", job.Subject),
	)
	return nil
}

// Worker drains the Redis queue and hands each job to the Sender. A delivery
// failure is logged and the job is dropped; there is no retry.
type Worker struct {
	client *redis.Client
	queue  string
	sender Sender
	logger *zap.Logger
}

func NewWorker(client *redis.Client, queue string, sender Sender, logger *zap.Logger) *Worker {
	return &Worker{
		client: client,
		queue:  queue,
		sender: sender,
		logger: logger,
	}
}

// Run blocks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) {
	for {
		res, err := w.client.BRPop(ctx, 0, w.queue).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("email queue pop failed", zap.Error(err))
			continue
		}
		if len(res) < 2 {
			continue
		}

		var job EmailJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			w.logger.Error("malformed email job", zap.Error(err))
			continue
		}

		if err := w.sender.Send(ctx, job); err != nil {
			w.logger.Error("email delivery failed",
				zap.String("type", string(job.EmailType)),
				zap.String("to", job.EmailTo),
				zap.Error(err),
			)
		}
	}
}

// LogDispatcher skips the queue entirely and logs the job; used by tests and
// by local runs without Redis.
type LogDispatcher struct {
	Logger *zap.Logger
}

func (d *LogDispatcher) Enqueue(ctx context.Context, job EmailJob) error {
	d.Logger.Info("email job (no queue configured)",
		zap.String("type", string(job.EmailType)),
		zap.String("to", job.EmailTo),
		zap.String("subject", job.Subject),
	)
	return nil
}
