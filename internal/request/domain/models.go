// Package domain contains persistence models for SEO work requests.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seohub/internal/plan"
	"gorm.io/datatypes"
)

// Status represents lifecycle states for a request.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// CompletedTask is one delivered unit of work appended to a request.
type CompletedTask struct {
	Title       string    `json:"title"`
	Type        string    `json:"type"`
	URL         *string   `json:"url,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// Request is a unit of SEO work requested for a dealership/user. Requests are
// created by the normal application flow or synthesized by the webhook when a
// completed task arrives with no match.
type Request struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	AgencyID     *snowflake.ID `gorm:"index"`
	DealershipID *snowflake.ID `gorm:"index"`
	UserID       snowflake.ID  `gorm:"not null;index"`

	Title       string `gorm:"type:text;not null"`
	Description string `gorm:"type:text"`
	Type        string `gorm:"type:text;not null"` // page|blog|gbp_post|improvement|maintenance|...
	Priority    string `gorm:"type:text;not null;default:MEDIUM"`
	Status      Status `gorm:"type:text;not null;default:PENDING;index"`

	PackageTier    *plan.Tier `gorm:"type:text"`
	SeoworksTaskID *string    `gorm:"type:text;uniqueIndex"`

	PagesCompleted        int `gorm:"not null;default:0"`
	BlogsCompleted        int `gorm:"not null;default:0"`
	GBPPostsCompleted     int `gorm:"column:gbp_posts_completed;not null;default:0"`
	ImprovementsCompleted int `gorm:"not null;default:0"`

	CompletedTasks datatypes.JSON `gorm:"type:jsonb"`
	CompletedAt    *time.Time     `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Request) TableName() string { return "requests" }

// CompletedCounts snapshots the four completion counters.
func (r *Request) CompletedCounts() plan.LimitSet {
	return plan.LimitSet{
		Pages:        r.PagesCompleted,
		Blogs:        r.BlogsCompleted,
		GBPPosts:     r.GBPPostsCompleted,
		Improvements: r.ImprovementsCompleted,
	}
}

// AddCompletedCount bumps the counter matching the category.
func (r *Request) AddCompletedCount(c plan.Category) {
	switch c {
	case plan.CategoryPages:
		r.PagesCompleted++
	case plan.CategoryBlogs:
		r.BlogsCompleted++
	case plan.CategoryGBPPosts:
		r.GBPPostsCompleted++
	case plan.CategoryImprovements:
		r.ImprovementsCompleted++
	}
}

// TaskList decodes the completed-task ledger. A corrupt column degrades to an
// empty list rather than failing the caller.
func (r *Request) TaskList() []CompletedTask {
	if len(r.CompletedTasks) == 0 {
		return nil
	}
	var tasks []CompletedTask
	if err := json.Unmarshal(r.CompletedTasks, &tasks); err != nil {
		return nil
	}
	return tasks
}

// AppendTask adds one entry to the completed-task ledger.
func (r *Request) AppendTask(task CompletedTask) error {
	tasks := append(r.TaskList(), task)
	encoded, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	r.CompletedTasks = datatypes.JSON(encoded)
	return nil
}

// ShouldComplete decides whether the request transitions to COMPLETED. Without
// a package tier any single completion finishes the request; with a tier every
// completion target for that tier must be met.
func (r *Request) ShouldComplete(targets func(plan.Tier) (plan.LimitSet, error)) bool {
	if r.PackageTier == nil {
		return r.CompletedCounts().Total() > 0
	}
	required, err := targets(*r.PackageTier)
	if err != nil {
		return false
	}
	return r.CompletedCounts().Meets(required)
}
