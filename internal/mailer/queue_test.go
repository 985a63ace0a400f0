package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/seohub/internal/config"
	"go.uber.org/zap"
)

// flakyProvider fails a fixed number of sends before succeeding.
type flakyProvider struct {
	mu        sync.Mutex
	failures  int
	delivered []Message
}

func (p *flakyProvider) Send(ctx context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("smtp unavailable")
	}
	p.delivered = append(p.delivered, msg)
	return nil
}

func (p *flakyProvider) sent() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.delivered...)
}

func queueConfig() config.MailConfig {
	return config.MailConfig{
		QueueSize:   8,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}
}

func TestQueueDeliversInOrder(t *testing.T) {
	provider := &flakyProvider{}
	q := NewQueue(queueConfig(), zap.NewNop(), provider, nil)
	q.Start()

	for _, subject := range []string{"first", "second", "third"} {
		if err := q.Enqueue(Message{To: "a@b.c", Subject: subject}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	q.Stop()

	sent := provider.sent()
	if len(sent) != 3 {
		t.Fatalf("delivered %d messages, want 3", len(sent))
	}
	for i, subject := range []string{"first", "second", "third"} {
		if sent[i].Subject != subject {
			t.Fatalf("message %d = %q, want %q", i, sent[i].Subject, subject)
		}
	}
}

func TestQueueRetriesTransientFailure(t *testing.T) {
	provider := &flakyProvider{failures: 2}
	q := NewQueue(queueConfig(), zap.NewNop(), provider, nil)
	q.Start()

	if err := q.Enqueue(Message{To: "a@b.c", Subject: "hello"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Stop()

	if sent := provider.sent(); len(sent) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(sent))
	}
}

func TestQueueDropsAfterExhaustedRetries(t *testing.T) {
	provider := &flakyProvider{failures: 100}
	q := NewQueue(queueConfig(), zap.NewNop(), provider, nil)
	q.Start()

	if err := q.Enqueue(Message{To: "a@b.c", Subject: "doomed"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(Message{To: "a@b.c", Subject: "survives"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Stop()

	sent := provider.sent()
	if len(sent) != 1 || sent[0].Subject != "survives" {
		t.Fatalf("delivered = %+v, want only the second message", sent)
	}
}

func TestQueueRejectsWhenFull(t *testing.T) {
	cfg := queueConfig()
	cfg.QueueSize = 1
	q := NewQueue(cfg, zap.NewNop(), &flakyProvider{}, nil)
	// Not started: the buffer fills and stays full.

	if err := q.Enqueue(Message{Subject: "fits"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(Message{Subject: "overflow"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}
