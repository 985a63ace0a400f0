package mailer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/smallbiznis/seohub/internal/config"
	"github.com/smallbiznis/seohub/internal/telemetry"
	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("mail_queue_full")

// Queue buffers outbound messages and delivers them in order on a single
// drain goroutine. Sends are retried with exponential backoff; a message
// that exhausts its attempts is dropped and logged, never re-queued.
type Queue struct {
	ch       chan Message
	provider Provider
	log      *zap.Logger
	metrics  *telemetry.Metrics

	maxAttempts int
	retryDelay  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(cfg config.MailConfig, log *zap.Logger, provider Provider, metrics *telemetry.Metrics) *Queue {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	return &Queue{
		ch:          make(chan Message, size),
		provider:    provider,
		log:         log.Named("mailer.queue"),
		metrics:     metrics,
		maxAttempts: attempts,
		retryDelay:  delay,
	}
}

// Enqueue hands a message to the drain loop without blocking. A full queue
// rejects the message; callers treat that as a logged, non-fatal condition.
func (q *Queue) Enqueue(msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		q.log.Warn("mail queue full, dropping message", zap.String("subject", msg.Subject))
		q.record("queue_full")
		return ErrQueueFull
	}
}

// Start launches the drain loop.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for msg := range q.ch {
			q.deliver(ctx, msg)
		}
	}()
}

// Stop closes the queue and waits for buffered messages to drain.
func (q *Queue) Stop() {
	close(q.ch)
	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
}

func (q *Queue) deliver(ctx context.Context, msg Message) {
	err := retry.Do(
		func() error {
			return q.provider.Send(ctx, msg)
		},
		retry.Attempts(uint(q.maxAttempts)),
		retry.Delay(q.retryDelay),
		retry.MaxDelay(2*time.Minute),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			q.log.Warn("email send failed, retrying",
				zap.Uint("attempt", n),
				zap.String("to", msg.To),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		q.log.Error("email dropped after retries",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		q.record("dropped")
		return
	}
	q.record("sent")
}

func (q *Queue) record(outcome string) {
	if q.metrics == nil {
		return
	}
	q.metrics.EmailDeliveries.WithLabelValues(outcome).Inc()
}
