// Package plan defines the SEO package tiers, their monthly usage limits and
// their completion targets. Everything here is pure lookup and arithmetic.
package plan

import (
	"errors"
	"math"
	"strings"
)

// Tier is a dealership's active SEO package.
type Tier string

const (
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

// Category identifies one of the four tracked task categories.
type Category string

const (
	CategoryPages        Category = "pages"
	CategoryBlogs        Category = "blogs"
	CategoryGBPPosts     Category = "gbpPosts"
	CategoryImprovements Category = "improvements"
)

var (
	ErrInvalidTier     = errors.New("invalid_tier")
	ErrInvalidCategory = errors.New("invalid_category")
)

// Categories lists all tracked categories in display order.
var Categories = []Category{CategoryPages, CategoryBlogs, CategoryGBPPosts, CategoryImprovements}

// LimitSet holds one integer per category.
type LimitSet struct {
	Pages        int `json:"pages" mapstructure:"pages"`
	Blogs        int `json:"blogs" mapstructure:"blogs"`
	GBPPosts     int `json:"gbpPosts" mapstructure:"gbp_posts"`
	Improvements int `json:"improvements" mapstructure:"improvements"`
}

// Get returns the value for one category.
func (s LimitSet) Get(c Category) int {
	switch c {
	case CategoryPages:
		return s.Pages
	case CategoryBlogs:
		return s.Blogs
	case CategoryGBPPosts:
		return s.GBPPosts
	case CategoryImprovements:
		return s.Improvements
	default:
		return 0
	}
}

// Meets reports whether every category in s reaches the target.
func (s LimitSet) Meets(target LimitSet) bool {
	for _, c := range Categories {
		if s.Get(c) < target.Get(c) {
			return false
		}
	}
	return true
}

// Total sums all four categories.
func (s LimitSet) Total() int {
	return s.Pages + s.Blogs + s.GBPPosts + s.Improvements
}

// defaultLimits are the monthly usage caps per tier.
var defaultLimits = map[Tier]LimitSet{
	TierSilver:   {Pages: 3, Blogs: 4, GBPPosts: 8, Improvements: 8},
	TierGold:     {Pages: 6, Blogs: 8, GBPPosts: 16, Improvements: 10},
	TierPlatinum: {Pages: 9, Blogs: 12, GBPPosts: 20, Improvements: 20},
}

// defaultCompletionTargets decide when a work item counts as fully delivered.
// These are deliberately smaller than, and maintained separately from, the
// monthly limits above: a target is the minimum package deliverable, a limit
// is the monthly cap.
var defaultCompletionTargets = map[Tier]LimitSet{
	TierSilver:   {Pages: 1, Blogs: 2, GBPPosts: 4, Improvements: 4},
	TierGold:     {Pages: 2, Blogs: 4, GBPPosts: 8, Improvements: 5},
	TierPlatinum: {Pages: 3, Blogs: 6, GBPPosts: 10, Improvements: 10},
}

// ParseTier normalizes a tier string.
func ParseTier(raw string) (Tier, error) {
	switch Tier(strings.ToUpper(strings.TrimSpace(raw))) {
	case TierSilver:
		return TierSilver, nil
	case TierGold:
		return TierGold, nil
	case TierPlatinum:
		return TierPlatinum, nil
	default:
		return "", ErrInvalidTier
	}
}

// ParseCategory maps the four canonical category names.
func ParseCategory(raw string) (Category, error) {
	switch Category(strings.TrimSpace(raw)) {
	case CategoryPages:
		return CategoryPages, nil
	case CategoryBlogs:
		return CategoryBlogs, nil
	case CategoryGBPPosts:
		return CategoryGBPPosts, nil
	case CategoryImprovements:
		return CategoryImprovements, nil
	default:
		return "", ErrInvalidCategory
	}
}

// CategoryForTaskType maps an inbound SEOWorks task type to a usage category.
// Unrecognized types return false and increment nothing.
func CategoryForTaskType(taskType string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(taskType)) {
	case "page":
		return CategoryPages, true
	case "blog":
		return CategoryBlogs, true
	case "gbp_post", "gbp-post":
		return CategoryGBPPosts, true
	case "improvement", "maintenance":
		return CategoryImprovements, true
	default:
		return "", false
	}
}

// Limits returns the monthly usage limits for a tier.
func Limits(tier Tier) (LimitSet, error) {
	limits, ok := defaultLimits[tier]
	if !ok {
		return LimitSet{}, ErrInvalidTier
	}
	return limits, nil
}

// CompletionTargets returns the work-item completion thresholds for a tier.
func CompletionTargets(tier Tier) (LimitSet, error) {
	targets, ok := defaultCompletionTargets[tier]
	if !ok {
		return LimitSet{}, ErrInvalidTier
	}
	return targets, nil
}

// CategoryProgress reports one category's usage against its limit.
type CategoryProgress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Progress aggregates per-category progress for a tier.
type Progress struct {
	Tier       Tier                          `json:"tier"`
	Categories map[Category]CategoryProgress `json:"categories"`
	TotalUsed  int                           `json:"totalUsed"`
	TotalLimit int                           `json:"totalLimit"`
}

// ComputeProgress builds per-category and aggregate progress for a tier's
// default limits against the given counts.
func ComputeProgress(tier Tier, counts LimitSet) (Progress, error) {
	limits, err := Limits(tier)
	if err != nil {
		return Progress{}, err
	}
	return buildProgress(tier, limits, counts), nil
}

func buildProgress(tier Tier, limits, counts LimitSet) Progress {
	progress := Progress{
		Tier:       tier,
		Categories: make(map[Category]CategoryProgress, len(Categories)),
	}
	for _, c := range Categories {
		completed := counts.Get(c)
		total := limits.Get(c)
		progress.Categories[c] = CategoryProgress{
			Completed:  completed,
			Total:      total,
			Percentage: percentage(completed, total),
		}
		progress.TotalUsed += completed
		progress.TotalLimit += total
	}

	return progress
}

func percentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
