package plan

import (
	"errors"
	"testing"
)

func TestLimitsUnknownTier(t *testing.T) {
	if _, err := Limits(Tier("BRONZE")); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("expected ErrInvalidTier, got %v", err)
	}
}

func TestCompletionTargetsDivergeFromLimits(t *testing.T) {
	// The two tables are maintained separately; the Gold divergence pins that
	// they are never collapsed into one.
	limits, err := Limits(TierGold)
	if err != nil {
		t.Fatal(err)
	}
	targets, err := CompletionTargets(TierGold)
	if err != nil {
		t.Fatal(err)
	}

	if targets.Pages != 2 {
		t.Fatalf("gold completion target pages = %d, want 2", targets.Pages)
	}
	if limits.Pages != 6 {
		t.Fatalf("gold usage limit pages = %d, want 6", limits.Pages)
	}

	for _, c := range Categories {
		if targets.Get(c) > limits.Get(c) {
			t.Fatalf("completion target for %s exceeds usage limit", c)
		}
	}
}

func TestCategoryForTaskType(t *testing.T) {
	cases := []struct {
		taskType string
		want     Category
		ok       bool
	}{
		{"page", CategoryPages, true},
		{"Blog", CategoryBlogs, true},
		{"gbp_post", CategoryGBPPosts, true},
		{"gbp-post", CategoryGBPPosts, true},
		{"improvement", CategoryImprovements, true},
		{"maintenance", CategoryImprovements, true},
		{"seo_audit", "", false},
	}

	for _, tc := range cases {
		got, ok := CategoryForTaskType(tc.taskType)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("CategoryForTaskType(%q) = (%q, %v), want (%q, %v)", tc.taskType, got, ok, tc.want, tc.ok)
		}
	}
}

func TestComputeProgress(t *testing.T) {
	progress, err := ComputeProgress(TierSilver, LimitSet{Pages: 1, Blogs: 2, GBPPosts: 0, Improvements: 8})
	if err != nil {
		t.Fatal(err)
	}

	if got := progress.Categories[CategoryPages]; got.Completed != 1 || got.Total != 3 || got.Percentage != 33 {
		t.Fatalf("pages progress = %+v", got)
	}
	if got := progress.Categories[CategoryImprovements]; got.Percentage != 100 {
		t.Fatalf("improvements percentage = %d, want 100", got.Percentage)
	}
	if progress.TotalUsed != 11 {
		t.Fatalf("total used = %d, want 11", progress.TotalUsed)
	}
	if progress.TotalLimit != 23 {
		t.Fatalf("total limit = %d, want 23", progress.TotalLimit)
	}
}

func TestComputeProgressZeroTotal(t *testing.T) {
	holder := NewStaticHolder(Tables{
		Limits:            map[Tier]LimitSet{TierSilver: {}},
		CompletionTargets: map[Tier]LimitSet{TierSilver: {}},
	})

	limits, err := holder.Limits(TierSilver)
	if err != nil {
		t.Fatal(err)
	}
	if got := percentage(0, limits.Pages); got != 0 {
		t.Fatalf("percentage with zero total = %d, want 0", got)
	}
}
