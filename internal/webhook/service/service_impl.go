package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seohub/internal/clock"
	dealershipdomain "github.com/smallbiznis/seohub/internal/dealership/domain"
	"github.com/smallbiznis/seohub/internal/mailer"
	"github.com/smallbiznis/seohub/internal/plan"
	requestdomain "github.com/smallbiznis/seohub/internal/request/domain"
	"github.com/smallbiznis/seohub/internal/telemetry"
	usagedomain "github.com/smallbiznis/seohub/internal/usage/domain"
	webhookdomain "github.com/smallbiznis/seohub/internal/webhook/domain"
	"github.com/smallbiznis/seohub/pkg/db/option"
	"github.com/smallbiznis/seohub/pkg/db/pagination"
	"github.com/smallbiznis/seohub/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Plans    *plan.Holder
	Usage    usagedomain.Service
	Notifier mailer.Notifier    `optional:"true"`
	Metrics  *telemetry.Metrics `optional:"true"`
}

// resolverStrategy is one step of the ordered task-record resolution chain.
// The slice below is the authoritative order; first match wins.
type resolverStrategy struct {
	name webhookdomain.Strategy
	fn   func(ctx context.Context, event *webhookdomain.TaskEvent) (*requestdomain.Request, error)
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	plans    *plan.Holder
	usage    usagedomain.Service
	notifier mailer.Notifier
	metrics  *telemetry.Metrics

	requests repository.Repository[requestdomain.Request]
	users    repository.Repository[dealershipdomain.User]
	orphans  repository.Repository[webhookdomain.OrphanedTask]

	strategies []resolverStrategy
}

func NewService(p ServiceParam) webhookdomain.Service {
	s := &Service{
		db:  p.DB,
		log: p.Log.Named("webhook.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		plans:    p.Plans,
		usage:    p.Usage,
		notifier: p.Notifier,
		metrics:  p.Metrics,

		requests: repository.ProvideStore[requestdomain.Request](p.DB),
		users:    repository.ProvideStore[dealershipdomain.User](p.DB),
		orphans:  repository.ProvideStore[webhookdomain.OrphanedTask](p.DB),
	}

	s.strategies = []resolverStrategy{
		{name: webhookdomain.StrategyRequestID, fn: s.byRequestID},
		{name: webhookdomain.StrategyLinkedTask, fn: s.byLinkedTaskID},
		{name: webhookdomain.StrategyUserRequest, fn: s.byUserActiveRequest},
		{name: webhookdomain.StrategySynthesized, fn: s.synthesizeCompleted},
	}

	return s
}

func (s *Service) Process(ctx context.Context, event *webhookdomain.TaskEvent) (*webhookdomain.Outcome, error) {
	req, strategy, err := s.resolve(ctx, event)
	if err != nil {
		s.recordEvent(event.EventType, "error")
		return nil, err
	}

	if req == nil {
		if err := s.recordOrphan(ctx, event); err != nil {
			s.recordEvent(event.EventType, "error")
			return nil, err
		}
		s.recordEvent(event.EventType, "orphaned")
		if s.metrics != nil {
			s.metrics.OrphanedTasks.Inc()
		}
		return &webhookdomain.Outcome{Matched: false, Strategy: webhookdomain.StrategyNone}, nil
	}

	log := s.log.With(
		zap.String("event_type", event.EventType),
		zap.String("external_id", event.Data.ExternalID),
		zap.String("request_id", req.ID.String()),
		zap.String("strategy", string(strategy)),
	)

	switch event.EventType {
	case webhookdomain.EventTaskCompleted:
		if err := s.handleCompleted(ctx, event, req, strategy == webhookdomain.StrategySynthesized); err != nil {
			s.recordEvent(event.EventType, "error")
			return nil, err
		}
	case webhookdomain.EventTaskCancelled:
		if err := s.handleCancelled(ctx, req); err != nil {
			s.recordEvent(event.EventType, "error")
			return nil, err
		}
	case webhookdomain.EventTaskUpdated, webhookdomain.EventTaskCreated:
		log.Info("task event acknowledged without mutation")
	default:
		log.Warn("unhandled event type")
	}

	s.recordEvent(event.EventType, "ok")
	return &webhookdomain.Outcome{Matched: true, Strategy: strategy, RequestID: req.ID}, nil
}

func (s *Service) resolve(ctx context.Context, event *webhookdomain.TaskEvent) (*requestdomain.Request, webhookdomain.Strategy, error) {
	for _, strategy := range s.strategies {
		req, err := strategy.fn(ctx, event)
		if err != nil {
			return nil, strategy.name, err
		}
		if req != nil {
			return req, strategy.name, nil
		}
	}
	return nil, webhookdomain.StrategyNone, nil
}

// byRequestID matches the vendor external id against our own request ids.
func (s *Service) byRequestID(ctx context.Context, event *webhookdomain.TaskEvent) (*requestdomain.Request, error) {
	id, err := strconv.ParseInt(event.Data.ExternalID, 10, 64)
	if err != nil {
		return nil, nil
	}
	return s.requests.FindOne(ctx, &requestdomain.Request{ID: snowflake.ID(id)})
}

// byLinkedTaskID matches a previously linked SEOWorks task id.
func (s *Service) byLinkedTaskID(ctx context.Context, event *webhookdomain.TaskEvent) (*requestdomain.Request, error) {
	external := event.Data.ExternalID
	return s.requests.FindOne(ctx, &requestdomain.Request{SeoworksTaskID: &external})
}

// byUserActiveRequest identifies the user from clientId or clientEmail and
// claims their oldest open request of the same type that has no linked task
// yet. The link is persisted immediately so replays hit byLinkedTaskID.
func (s *Service) byUserActiveRequest(ctx context.Context, event *webhookdomain.TaskEvent) (*requestdomain.Request, error) {
	user, err := s.findUser(ctx, event)
	if err != nil || user == nil {
		return nil, err
	}

	var req requestdomain.Request
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ? AND LOWER(type) = LOWER(?) AND seoworks_task_id IS NULL",
			user.ID,
			[]requestdomain.Status{requestdomain.StatusPending, requestdomain.StatusInProgress},
			event.Data.TaskType,
		).
		Order("created_at ASC").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	external := event.Data.ExternalID
	err = s.db.WithContext(ctx).
		Model(&requestdomain.Request{}).
		Where("id = ?", req.ID).
		Updates(map[string]any{
			"seoworks_task_id": external,
			"updated_at":       s.clock.Now(),
		}).Error
	if err != nil {
		return nil, err
	}
	req.SeoworksTaskID = &external
	return &req, nil
}

// synthesizeCompleted creates a completed request on the spot when work we
// never tracked arrives finished for a known user.
func (s *Service) synthesizeCompleted(ctx context.Context, event *webhookdomain.TaskEvent) (*requestdomain.Request, error) {
	if event.EventType != webhookdomain.EventTaskCompleted {
		return nil, nil
	}

	user, err := s.findUser(ctx, event)
	if err != nil || user == nil {
		return nil, err
	}

	now := s.clock.Now()
	entry := buildCompletedTask(event, now)

	var tier *plan.Tier
	if user.DealershipID != nil {
		var dealership dealershipdomain.Dealership
		err := s.db.WithContext(ctx).First(&dealership, "id = ?", *user.DealershipID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			tier = dealership.PackageTier
		}
	}

	external := event.Data.ExternalID
	req := &requestdomain.Request{
		ID:             s.genID.Generate(),
		AgencyID:       user.AgencyID,
		DealershipID:   user.DealershipID,
		UserID:         user.ID,
		Title:          entry.Title,
		Description:    fmt.Sprintf("Created automatically from completed SEOWorks task %s", external),
		Type:           strings.ToLower(event.Data.TaskType),
		Priority:       "MEDIUM",
		Status:         requestdomain.StatusCompleted,
		PackageTier:    tier,
		SeoworksTaskID: &external,
		CompletedAt:    &entry.CompletedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if category, tracked := plan.CategoryForTaskType(event.Data.TaskType); tracked {
		req.AddCompletedCount(category)
	}
	if err := req.AppendTask(entry); err != nil {
		return nil, err
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.log.Info("synthesized completed request",
		zap.String("request_id", req.ID.String()),
		zap.String("external_id", external),
		zap.String("user_id", user.ID.String()),
	)
	return req, nil
}

func (s *Service) findUser(ctx context.Context, event *webhookdomain.TaskEvent) (*dealershipdomain.User, error) {
	if event.Data.ClientID != nil {
		if id, err := strconv.ParseInt(strings.TrimSpace(*event.Data.ClientID), 10, 64); err == nil {
			user, err := s.users.FindOne(ctx, &dealershipdomain.User{ID: snowflake.ID(id)})
			if err != nil {
				return nil, err
			}
			if user != nil {
				return user, nil
			}
		}
	}

	if event.Data.ClientEmail != nil && strings.TrimSpace(*event.Data.ClientEmail) != "" {
		var user dealershipdomain.User
		err := s.db.WithContext(ctx).
			Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(*event.Data.ClientEmail))).
			First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &user, nil
	}

	return nil, nil
}

// handleCompleted applies a completion to the request, then runs best-effort
// side effects. Only the request mutation can fail the webhook; usage and
// notification failures are logged and swallowed.
func (s *Service) handleCompleted(ctx context.Context, event *webhookdomain.TaskEvent, req *requestdomain.Request, synthesized bool) error {
	now := s.clock.Now()
	entry := buildCompletedTask(event, now)
	category, tracked := plan.CategoryForTaskType(event.Data.TaskType)

	oldStatus := req.Status
	wasCompleted := req.Status == requestdomain.StatusCompleted

	if !synthesized {
		if err := req.AppendTask(entry); err != nil {
			return err
		}
		if tracked {
			req.AddCompletedCount(category)
		}
		if !wasCompleted && req.ShouldComplete(s.plans.CompletionTargets) {
			req.Status = requestdomain.StatusCompleted
			req.CompletedAt = &entry.CompletedAt
		}
		req.UpdatedAt = now

		if err := s.db.WithContext(ctx).Save(req).Error; err != nil {
			return err
		}
	}

	transitioned := !wasCompleted && req.Status == requestdomain.StatusCompleted

	user := s.lookupUser(ctx, req.UserID)
	dealership, progress := s.applyUsage(ctx, req, category, tracked)

	if s.notifier != nil && user != nil {
		if err := s.notifier.TaskCompleted(ctx, user, dealership, entry, progress); err != nil {
			s.log.Warn("completion notification failed", zap.Error(err))
		}
		if transitioned {
			if err := s.notifier.StatusChanged(ctx, user, req, oldStatus); err != nil {
				s.log.Warn("status notification failed", zap.Error(err))
			}
		}
	}

	return nil
}

func (s *Service) handleCancelled(ctx context.Context, req *requestdomain.Request) error {
	if req.Status == requestdomain.StatusCompleted {
		return nil
	}

	oldStatus := req.Status
	req.Status = requestdomain.StatusCancelled
	req.UpdatedAt = s.clock.Now()

	if err := s.db.WithContext(ctx).Save(req).Error; err != nil {
		return err
	}

	if s.notifier != nil {
		if user := s.lookupUser(ctx, req.UserID); user != nil {
			if err := s.notifier.StatusChanged(ctx, user, req, oldStatus); err != nil {
				s.log.Warn("status notification failed", zap.Error(err))
			}
		}
	}
	return nil
}

// applyUsage bumps the dealership's monthly counter. Quota exhaustion and
// transient failures never fail the webhook.
func (s *Service) applyUsage(ctx context.Context, req *requestdomain.Request, category plan.Category, tracked bool) (*dealershipdomain.Dealership, *plan.Progress) {
	if !tracked || req.DealershipID == nil {
		return nil, nil
	}

	dealership, err := s.usage.IncrementUsage(ctx, *req.DealershipID, category)
	switch {
	case errors.Is(err, usagedomain.ErrQuotaExceeded):
		s.log.Warn("usage quota exceeded, completion recorded without increment",
			zap.String("dealership_id", req.DealershipID.String()),
			zap.String("category", string(category)),
		)
		return nil, nil
	case errors.Is(err, usagedomain.ErrNoActivePackage):
		return nil, nil
	case err != nil:
		s.log.Error("usage increment failed", zap.Error(err))
		return nil, nil
	}

	if dealership.PackageTier == nil {
		return dealership, nil
	}
	progress, err := s.plans.Progress(*dealership.PackageTier, dealership.UsedCounts())
	if err != nil {
		return dealership, nil
	}
	return dealership, &progress
}

func (s *Service) lookupUser(ctx context.Context, userID snowflake.ID) *dealershipdomain.User {
	user, err := s.users.FindOne(ctx, &dealershipdomain.User{ID: userID})
	if err != nil {
		s.log.Warn("user lookup failed", zap.Error(err))
		return nil
	}
	return user
}

func (s *Service) recordOrphan(ctx context.Context, event *webhookdomain.TaskEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}

	orphan := &webhookdomain.OrphanedTask{
		ID:                s.genID.Generate(),
		EventType:         event.EventType,
		ExternalID:        event.Data.ExternalID,
		ClientID:          event.Data.ClientID,
		ClientEmail:       event.Data.ClientEmail,
		TaskType:          event.Data.TaskType,
		RawPayload:        raw,
		DeliverableTitles: event.Data.DeliverableTitles(),
		Reason:            "no matching request",
		CreatedAt:         s.clock.Now(),
		UpdatedAt:         s.clock.Now(),
	}
	if err := s.orphans.Create(ctx, orphan); err != nil {
		return err
	}

	s.log.Warn("webhook event orphaned",
		zap.String("event_type", event.EventType),
		zap.String("external_id", event.Data.ExternalID),
	)
	return nil
}

func (s *Service) ListOrphans(ctx context.Context, req webhookdomain.ListOrphansRequest) (webhookdomain.ListOrphansResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	tx := s.db.WithContext(ctx).Model(&webhookdomain.OrphanedTask{})
	tx = option.ApplyPagination(pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	}).Apply(tx)

	var items []*webhookdomain.OrphanedTask
	if err := tx.Order("processed ASC").Order("created_at DESC").Find(&items).Error; err != nil {
		return webhookdomain.ListOrphansResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *webhookdomain.OrphanedTask) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	tasks := make([]webhookdomain.OrphanedTask, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		tasks = append(tasks, *item)
	}

	resp := webhookdomain.ListOrphansResponse{Tasks: tasks}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) recordEvent(eventType, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// buildCompletedTask maps the event to a ledger entry. The first deliverable
// supplies title and url; without one the task type stands in for the title
// and the completion date falls back to now.
func buildCompletedTask(event *webhookdomain.TaskEvent, now time.Time) requestdomain.CompletedTask {
	entry := requestdomain.CompletedTask{
		Title:       event.Data.TaskType,
		Type:        event.Data.TaskType,
		CompletedAt: now,
	}
	if deliverable := event.Data.FirstDeliverable(); deliverable != nil {
		entry.Title = deliverable.Title
		entry.URL = deliverable.URL
	}
	if event.Data.CompletionDate != nil {
		entry.CompletedAt = *event.Data.CompletionDate
	}
	return entry
}
