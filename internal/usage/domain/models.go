// Package domain contains persistence models and contracts for monthly usage
// accounting.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	dealershipdomain "github.com/smallbiznis/seohub/internal/dealership/domain"
	"github.com/smallbiznis/seohub/internal/plan"
	"github.com/smallbiznis/seohub/pkg/db/pagination"
)

// MonthlyUsage is an immutable snapshot of a dealership's counters for one
// billing period, written once at rollover.
type MonthlyUsage struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	DealershipID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_monthly_usages_period"`
	Month        int          `gorm:"not null;uniqueIndex:ux_monthly_usages_period"`
	Year         int          `gorm:"not null;uniqueIndex:ux_monthly_usages_period"`
	PackageTier  plan.Tier    `gorm:"type:text;not null"`

	PagesUsed        int `gorm:"not null;default:0"`
	BlogsUsed        int `gorm:"not null;default:0"`
	GBPPostsUsed     int `gorm:"column:gbp_posts_used;not null;default:0"`
	ImprovementsUsed int `gorm:"not null;default:0"`

	ArchivedAt time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MonthlyUsage) TableName() string { return "monthly_usages" }

type ListArchivesRequest struct {
	DealershipID snowflake.ID
	PageToken    string
	PageSize     int32
}

type ListArchivesResponse struct {
	pagination.PageInfo
	Archives []MonthlyUsage `json:"archives"`
}

type Service interface {
	// EnsureCurrentPeriod rolls the dealership's billing window forward when
	// it has elapsed, archiving the previous period's counters.
	EnsureCurrentPeriod(ctx context.Context, dealershipID snowflake.ID) (*dealershipdomain.Dealership, error)

	// IncrementUsage bumps one category counter, enforcing the tier's monthly
	// limit atomically at the storage layer.
	IncrementUsage(ctx context.Context, dealershipID snowflake.ID, category plan.Category) (*dealershipdomain.Dealership, error)

	// Summary reports current-period progress against the active limits.
	Summary(ctx context.Context, dealershipID snowflake.ID) (*plan.Progress, error)

	// Archives lists prior-period snapshots, newest first.
	Archives(ctx context.Context, req ListArchivesRequest) (ListArchivesResponse, error)
}

var (
	ErrDealershipNotFound = errors.New("dealership_not_found")
	ErrNoActivePackage    = errors.New("no_active_package")
	ErrQuotaExceeded      = errors.New("quota_exceeded")
)
