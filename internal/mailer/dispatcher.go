package mailer

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seohub/internal/clock"
	"github.com/smallbiznis/seohub/internal/config"
	dealershipdomain "github.com/smallbiznis/seohub/internal/dealership/domain"
	"github.com/smallbiznis/seohub/internal/mailer/token"
	"github.com/smallbiznis/seohub/internal/plan"
	requestdomain "github.com/smallbiznis/seohub/internal/request/domain"
	"go.uber.org/zap"
)

// Notification types embedded in unsubscribe tokens.
const (
	NotificationTaskCompleted = "task_completed"
	NotificationStatusChanged = "request_status"
)

// Notifier queues customer-facing emails for webhook outcomes. Implementations
// must be safe to call after the primary mutation committed; failures are the
// caller's to log, never to propagate.
type Notifier interface {
	TaskCompleted(ctx context.Context, user *dealershipdomain.User, dealership *dealershipdomain.Dealership, task requestdomain.CompletedTask, progress *plan.Progress) error
	StatusChanged(ctx context.Context, user *dealershipdomain.User, req *requestdomain.Request, oldStatus requestdomain.Status) error
}

// Dispatcher renders templates and hands messages to the delivery queue.
type Dispatcher struct {
	queue   *Queue
	signer  *token.Signer
	clock   clock.Clock
	baseURL string
	log     *zap.Logger
}

func NewDispatcher(cfg config.MailConfig, queue *Queue, signer *token.Signer, clk clock.Clock, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		signer:  signer,
		clock:   clk,
		baseURL: cfg.BaseURL,
		log:     log.Named("mailer.dispatcher"),
	}
}

func (d *Dispatcher) TaskCompleted(ctx context.Context, user *dealershipdomain.User, dealership *dealershipdomain.Dealership, task requestdomain.CompletedTask, progress *plan.Progress) error {
	if user == nil || user.Email == "" {
		return nil
	}

	unsubscribe := d.unsubscribeURL(user.ID, NotificationTaskCompleted)

	var subject, body string
	if isContentType(task.Type) {
		dealershipName := "Your Website"
		if dealership != nil {
			dealershipName = dealership.Name
		}
		subject, body = RenderContentAdded(ContentAddedData{
			DealershipName: dealershipName,
			TaskType:       task.Type,
			Title:          task.Title,
			URL:            task.URL,
			Progress:       progress,
			UnsubscribeURL: unsubscribe,
		})
	} else {
		subject, body = RenderTaskCompleted(TaskCompletedData{
			TaskType:       task.Type,
			Title:          task.Title,
			UnsubscribeURL: unsubscribe,
		})
	}

	return d.queue.Enqueue(Message{To: user.Email, Subject: subject, HTML: body})
}

func (d *Dispatcher) StatusChanged(ctx context.Context, user *dealershipdomain.User, req *requestdomain.Request, oldStatus requestdomain.Status) error {
	if user == nil || user.Email == "" {
		return nil
	}

	subject, body := RenderStatusChanged(StatusChangedData{
		RequestTitle:   req.Title,
		OldStatus:      string(oldStatus),
		NewStatus:      string(req.Status),
		UnsubscribeURL: d.unsubscribeURL(user.ID, NotificationStatusChanged),
	})

	return d.queue.Enqueue(Message{To: user.Email, Subject: subject, HTML: body})
}

func (d *Dispatcher) unsubscribeURL(userID snowflake.ID, notificationType string) string {
	t := d.signer.Generate(userID, notificationType, d.clock.Now())
	return d.baseURL + "/api/unsubscribe?token=" + t
}
