package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seohub/internal/clock"
	dealershipdomain "github.com/smallbiznis/seohub/internal/dealership/domain"
	"github.com/smallbiznis/seohub/internal/plan"
	"github.com/smallbiznis/seohub/internal/telemetry"
	usagedomain "github.com/smallbiznis/seohub/internal/usage/domain"
	"github.com/smallbiznis/seohub/pkg/db"
	"github.com/smallbiznis/seohub/pkg/db/option"
	"github.com/smallbiznis/seohub/pkg/db/pagination"
	"github.com/smallbiznis/seohub/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Plans   *plan.Holder
	Metrics *telemetry.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	plans       *plan.Holder
	dealerships repository.Repository[dealershipdomain.Dealership]
	archives    repository.Repository[usagedomain.MonthlyUsage]
	metrics     *telemetry.Metrics
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("usage.service"),

		genID:       p.GenID,
		clock:       p.Clock,
		plans:       p.Plans,
		dealerships: repository.ProvideStore[dealershipdomain.Dealership](p.DB),
		archives:    repository.ProvideStore[usagedomain.MonthlyUsage](p.DB),
		metrics:     p.Metrics,
	}
}

func (s *Service) EnsureCurrentPeriod(ctx context.Context, dealershipID snowflake.ID) (*dealershipdomain.Dealership, error) {
	record, err := s.dealerships.FindOne(ctx, &dealershipdomain.Dealership{ID: dealershipID})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, usagedomain.ErrDealershipNotFound
	}

	// Initial package setup is external; nothing to roll without a tier or
	// period bounds.
	if record.PackageTier == nil || record.BillingPeriodStart == nil || record.BillingPeriodEnd == nil {
		return record, nil
	}

	now := s.clock.Now()
	if !now.After(*record.BillingPeriodEnd) {
		return record, nil
	}

	if err := s.rollover(ctx, record, now); err != nil {
		return nil, err
	}

	updated, err := s.dealerships.FindOne(ctx, &dealershipdomain.Dealership{ID: dealershipID})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, usagedomain.ErrDealershipNotFound
	}
	return updated, nil
}

func (s *Service) rollover(ctx context.Context, record *dealershipdomain.Dealership, now time.Time) error {
	previous := record.BillingPeriodStart.UTC()
	start, end := monthBounds(now)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		archive := &usagedomain.MonthlyUsage{
			ID:               s.genID.Generate(),
			DealershipID:     record.ID,
			Month:            int(previous.Month()),
			Year:             previous.Year(),
			PackageTier:      *record.PackageTier,
			PagesUsed:        record.PagesUsed,
			BlogsUsed:        record.BlogsUsed,
			GBPPostsUsed:     record.GBPPostsUsed,
			ImprovementsUsed: record.ImprovementsUsed,
			ArchivedAt:       now,
		}

		if err := tx.Create(archive).Error; err != nil {
			// A concurrent rollover already archived this period; the reset
			// below is idempotent.
			if !db.IsDuplicateKeyErr(err) {
				return err
			}
			s.log.Warn("billing period already archived",
				zap.String("dealership_id", record.ID.String()),
				zap.Int("month", archive.Month),
				zap.Int("year", archive.Year),
			)
		}

		return tx.Model(&dealershipdomain.Dealership{}).
			Where("id = ?", record.ID).
			Updates(map[string]any{
				"pages_used":           0,
				"blogs_used":           0,
				"gbp_posts_used":       0,
				"improvements_used":    0,
				"billing_period_start": start,
				"billing_period_end":   end,
				"updated_at":           now,
			}).Error
	})
}

func (s *Service) IncrementUsage(ctx context.Context, dealershipID snowflake.ID, category plan.Category) (*dealershipdomain.Dealership, error) {
	record, err := s.EnsureCurrentPeriod(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	if record.PackageTier == nil {
		s.recordIncrement(category, "no_active_package")
		return nil, usagedomain.ErrNoActivePackage
	}

	limits, err := s.plans.Limits(*record.PackageTier)
	if err != nil {
		return nil, err
	}

	column, err := usageColumn(category)
	if err != nil {
		return nil, err
	}

	// The quota check and the increment are one conditional statement so two
	// concurrent completions cannot both pass the check and overshoot.
	result := s.db.WithContext(ctx).
		Model(&dealershipdomain.Dealership{}).
		Where("id = ? AND "+column+" < ?", dealershipID, limits.Get(category)).
		Updates(map[string]any{
			column:       gorm.Expr(column + " + 1"),
			"updated_at": s.clock.Now(),
		})
	if result.Error != nil {
		s.recordIncrement(category, "error")
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		s.recordIncrement(category, "quota_exceeded")
		return nil, usagedomain.ErrQuotaExceeded
	}

	s.recordIncrement(category, "ok")

	updated, err := s.dealerships.FindOne(ctx, &dealershipdomain.Dealership{ID: dealershipID})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, usagedomain.ErrDealershipNotFound
	}
	return updated, nil
}

func (s *Service) Summary(ctx context.Context, dealershipID snowflake.ID) (*plan.Progress, error) {
	record, err := s.EnsureCurrentPeriod(ctx, dealershipID)
	if err != nil {
		return nil, err
	}
	if record.PackageTier == nil {
		return nil, usagedomain.ErrNoActivePackage
	}

	progress, err := s.plans.Progress(*record.PackageTier, record.UsedCounts())
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (s *Service) Archives(ctx context.Context, req usagedomain.ListArchivesRequest) (usagedomain.ListArchivesResponse, error) {
	if req.DealershipID == 0 {
		return usagedomain.ListArchivesResponse{}, usagedomain.ErrDealershipNotFound
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.archives.Find(ctx,
		&usagedomain.MonthlyUsage{DealershipID: req.DealershipID},
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return usagedomain.ListArchivesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *usagedomain.MonthlyUsage) string {
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

	records := make([]usagedomain.MonthlyUsage, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := usagedomain.ListArchivesResponse{Archives: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) recordIncrement(category plan.Category, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.UsageIncrements.WithLabelValues(string(category), outcome).Inc()
}

func usageColumn(category plan.Category) (string, error) {
	switch category {
	case plan.CategoryPages:
		return "pages_used", nil
	case plan.CategoryBlogs:
		return "blogs_used", nil
	case plan.CategoryGBPPosts:
		return "gbp_posts_used", nil
	case plan.CategoryImprovements:
		return "improvements_used", nil
	default:
		return "", plan.ErrInvalidCategory
	}
}

func monthBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}
