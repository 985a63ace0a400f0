// Package domain contains persistence models for agencies, dealerships and
// their users.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seohub/internal/plan"
)

// Agency is the top-level tenant grouping dealerships.
type Agency struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	Domain    *string      `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Agency) TableName() string { return "agencies" }

// Dealership is the tenant unit usage is accounted against.
type Dealership struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	AgencyID snowflake.ID `gorm:"not null;index"`
	Name     string       `gorm:"type:text;not null"`

	PackageTier        *plan.Tier `gorm:"type:text"`
	BillingPeriodStart *time.Time `gorm:""`
	BillingPeriodEnd   *time.Time `gorm:""`

	PagesUsed        int `gorm:"not null;default:0"`
	BlogsUsed        int `gorm:"not null;default:0"`
	GBPPostsUsed     int `gorm:"column:gbp_posts_used;not null;default:0"`
	ImprovementsUsed int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Dealership) TableName() string { return "dealerships" }

// UsedCounts snapshots the four live counters.
func (d *Dealership) UsedCounts() plan.LimitSet {
	return plan.LimitSet{
		Pages:        d.PagesUsed,
		Blogs:        d.BlogsUsed,
		GBPPosts:     d.GBPPostsUsed,
		Improvements: d.ImprovementsUsed,
	}
}

// User belongs to at most one agency and one dealership.
type User struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	AgencyID     *snowflake.ID `gorm:"index"`
	DealershipID *snowflake.ID `gorm:"index"`
	Email        string        `gorm:"type:text;not null;uniqueIndex"`
	Name         string        `gorm:"type:text"`
	Role         string        `gorm:"type:text;not null;default:USER"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
