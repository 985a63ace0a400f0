// Package option carries composable gorm query options used by the generic
// repository.
package option

import (
	"strings"

	"github.com/smallbiznis/seohub/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination applies cursor pagination. It fetches one row beyond the
// page size so callers can detect whether more rows exist.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := p.PageSize
		if size <= 0 {
			size = 10
		}
		if size > 250 {
			size = 250
		}

		if token := strings.TrimSpace(p.PageToken); token != "" {
			if cursor, err := pagination.DecodeCursor(token); err == nil && cursor.CreatedAt != "" {
				db = db.Where("created_at < ?", cursor.CreatedAt)
			}
		}

		return db.Limit(size + 1)
	})
}

// QuerySortBy restricts sortable columns to an allow list.
type QuerySortBy struct {
	Allow  map[string]bool
	Column string
	Desc   bool
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column := strings.TrimSpace(sort.Column)
		if column == "" || !sort.Allow[column] {
			column = "created_at"
		}
		direction := "DESC"
		if !sort.Desc && sort.Column != "" {
			direction = "ASC"
		}
		return db.Order(column + " " + direction)
	})
}

// WithLimit caps result size without pagination bookkeeping.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	})
}
