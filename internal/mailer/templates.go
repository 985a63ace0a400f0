package mailer

import (
	"fmt"
	"html"
	"strings"

	"github.com/smallbiznis/seohub/internal/plan"
)

// DisplayName maps an inbound task type to the customer-facing name used in
// subjects and bodies.
func DisplayName(taskType string) string {
	switch strings.ToLower(strings.TrimSpace(taskType)) {
	case "page":
		return "New Page"
	case "blog":
		return "Blog Post"
	case "gbp_post", "gbp-post":
		return "Google Business Profile Post"
	case "improvement":
		return "Website Improvement"
	case "maintenance":
		return "Website Update"
	default:
		return "Content"
	}
}

// deliveryVerb phrases how the work landed on the customer's site.
// Improvements and maintenance change existing content; everything else adds.
func deliveryVerb(taskType string) string {
	switch strings.ToLower(strings.TrimSpace(taskType)) {
	case "improvement", "maintenance":
		return "updated on"
	default:
		return "added to"
	}
}

// isContentType reports whether the task type gets the rich content-added
// template rather than the plain completion notice.
func isContentType(taskType string) bool {
	switch strings.ToLower(strings.TrimSpace(taskType)) {
	case "page", "blog", "gbp_post", "gbp-post":
		return true
	default:
		return false
	}
}

// ContentAddedData feeds the rich template sent for content task types.
type ContentAddedData struct {
	DealershipName string
	TaskType       string
	Title          string
	URL            *string
	Progress       *plan.Progress
	UnsubscribeURL string
}

// TaskCompletedData feeds the plain completion notice.
type TaskCompletedData struct {
	TaskType       string
	Title          string
	UnsubscribeURL string
}

// StatusChangedData feeds the request status-change notice.
type StatusChangedData struct {
	RequestTitle   string
	OldStatus      string
	NewStatus      string
	UnsubscribeURL string
}

var categoryLabels = map[plan.Category]string{
	plan.CategoryPages:        "Pages",
	plan.CategoryBlogs:        "Blog Posts",
	plan.CategoryGBPPosts:     "Google Business Profile Posts",
	plan.CategoryImprovements: "Improvements",
}

// RenderContentAdded builds the rich notification for delivered content.
// The title is escaped in the body but left raw in the subject line.
func RenderContentAdded(data ContentAddedData) (subject, body string) {
	name := DisplayName(data.TaskType)
	verb := deliveryVerb(data.TaskType)

	subject = fmt.Sprintf("%s %s Your Website: %s", name, verb, data.Title)

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s %s %s</h2>", html.EscapeString(name), verb, html.EscapeString(data.DealershipName))
	fmt.Fprintf(&b, "<p><strong>%s</strong></p>", html.EscapeString(data.Title))
	if data.URL != nil && *data.URL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">View it live</a></p>`, html.EscapeString(*data.URL))
	}
	if data.Progress != nil {
		b.WriteString("<h3>This Month's Progress</h3><ul>")
		for _, c := range plan.Categories {
			row := data.Progress.Categories[c]
			if row.Completed == 0 {
				continue
			}
			fmt.Fprintf(&b, "<li>%s: %d of %d (%d%%)</li>", categoryLabels[c], row.Completed, row.Total, row.Percentage)
		}
		b.WriteString("</ul>")
	}
	writeFooter(&b, data.UnsubscribeURL)
	b.WriteString("</body></html>")

	return subject, b.String()
}

// RenderTaskCompleted builds the plain completion notice for non-content
// task types.
func RenderTaskCompleted(data TaskCompletedData) (subject, body string) {
	name := DisplayName(data.TaskType)
	verb := deliveryVerb(data.TaskType)

	subject = fmt.Sprintf("%s %s Your Website", name, verb)

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s %s your website</h2>", html.EscapeString(name), verb)
	fmt.Fprintf(&b, "<p>%s has been completed.</p>", html.EscapeString(data.Title))
	writeFooter(&b, data.UnsubscribeURL)
	b.WriteString("</body></html>")

	return subject, b.String()
}

// RenderStatusChanged builds the notice sent when a request transitions to a
// terminal status.
func RenderStatusChanged(data StatusChangedData) (subject, body string) {
	subject = fmt.Sprintf("Request %s: %s", strings.ToLower(data.NewStatus), data.RequestTitle)

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>Your request status changed</h2>")
	fmt.Fprintf(&b, "<p><strong>%s</strong> moved from %s to %s.</p>",
		html.EscapeString(data.RequestTitle),
		html.EscapeString(data.OldStatus),
		html.EscapeString(data.NewStatus),
	)
	writeFooter(&b, data.UnsubscribeURL)
	b.WriteString("</body></html>")

	return subject, b.String()
}

func writeFooter(b *strings.Builder, unsubscribeURL string) {
	if unsubscribeURL == "" {
		return
	}
	fmt.Fprintf(b, `<p style="font-size:12px;color:#666"><a href="%s">Unsubscribe from these notifications</a></p>`,
		html.EscapeString(unsubscribeURL))
}
