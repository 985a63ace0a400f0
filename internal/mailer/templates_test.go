package mailer

import (
	"strings"
	"testing"

	"github.com/smallbiznis/seohub/internal/plan"
)

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"page":        "New Page",
		"blog":        "Blog Post",
		"gbp_post":    "Google Business Profile Post",
		"gbp-post":    "Google Business Profile Post",
		"improvement": "Website Improvement",
		"maintenance": "Website Update",
		"mystery":     "Content",
		"  Page  ":    "New Page",
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeliveryVerb(t *testing.T) {
	for _, taskType := range []string{"improvement", "maintenance"} {
		if got := deliveryVerb(taskType); got != "updated on" {
			t.Errorf("deliveryVerb(%q) = %q, want %q", taskType, got, "updated on")
		}
	}
	for _, taskType := range []string{"page", "blog", "gbp_post", "anything"} {
		if got := deliveryVerb(taskType); got != "added to" {
			t.Errorf("deliveryVerb(%q) = %q, want %q", taskType, got, "added to")
		}
	}
}

func TestRenderContentAddedEscapesBodyNotSubject(t *testing.T) {
	title := `<script>alert("x")</script> Landing Page`

	subject, body := RenderContentAdded(ContentAddedData{
		DealershipName: "Sunrise Motors",
		TaskType:       "page",
		Title:          title,
	})

	if !strings.Contains(subject, title) {
		t.Fatalf("subject must carry the raw title, got %q", subject)
	}
	if strings.Contains(body, "<script>") {
		t.Fatal("body must not contain the unescaped title")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Fatal("body must contain the escaped title")
	}
}

func TestRenderContentAddedProgressRows(t *testing.T) {
	progress, err := plan.ComputeProgress(plan.TierSilver, plan.LimitSet{Pages: 1, Blogs: 0, GBPPosts: 2, Improvements: 0})
	if err != nil {
		t.Fatal(err)
	}

	_, body := RenderContentAdded(ContentAddedData{
		DealershipName: "Sunrise Motors",
		TaskType:       "page",
		Title:          "About Us",
		Progress:       &progress,
	})

	if !strings.Contains(body, "Pages: 1 of 3") {
		t.Fatalf("missing pages row in body:\n%s", body)
	}
	if !strings.Contains(body, "Google Business Profile Posts: 2 of 8") {
		t.Fatalf("missing gbp row in body:\n%s", body)
	}
	if strings.Contains(body, "Blog Posts:") {
		t.Fatal("zero-count categories must be omitted")
	}
}

func TestRenderContentAddedLink(t *testing.T) {
	url := "https://dealer.example/pages/about"
	_, body := RenderContentAdded(ContentAddedData{
		TaskType: "blog",
		Title:    "Spring Tires",
		URL:      &url,
	})
	if !strings.Contains(body, url) {
		t.Fatal("body must link the deliverable URL")
	}
}

func TestRenderStatusChangedFooter(t *testing.T) {
	_, body := RenderStatusChanged(StatusChangedData{
		RequestTitle:   "Homepage refresh",
		OldStatus:      "IN_PROGRESS",
		NewStatus:      "CANCELLED",
		UnsubscribeURL: "https://seohub.app/api/unsubscribe?token=abc",
	})
	if !strings.Contains(body, "unsubscribe?token=abc") {
		t.Fatal("body must carry the unsubscribe link")
	}
}
