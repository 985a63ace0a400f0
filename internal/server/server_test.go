package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/seohub/internal/clock"
	"github.com/smallbiznis/seohub/internal/config"
	dealershipdomain "github.com/smallbiznis/seohub/internal/dealership/domain"
	"github.com/smallbiznis/seohub/internal/mailer/token"
	"github.com/smallbiznis/seohub/internal/plan"
	usagedomain "github.com/smallbiznis/seohub/internal/usage/domain"
	webhookdomain "github.com/smallbiznis/seohub/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const testSecret = "webhook-secret"

type stubWebhookService struct {
	outcome *webhookdomain.Outcome
	err     error
	events  []*webhookdomain.TaskEvent
}

func (s *stubWebhookService) Process(ctx context.Context, event *webhookdomain.TaskEvent) (*webhookdomain.Outcome, error) {
	s.events = append(s.events, event)
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

func (s *stubWebhookService) ListOrphans(ctx context.Context, req webhookdomain.ListOrphansRequest) (webhookdomain.ListOrphansResponse, error) {
	return webhookdomain.ListOrphansResponse{}, nil
}

type stubUsageService struct {
	progress *plan.Progress
	err      error
}

func (s *stubUsageService) EnsureCurrentPeriod(ctx context.Context, id snowflake.ID) (*dealershipdomain.Dealership, error) {
	return nil, s.err
}

func (s *stubUsageService) IncrementUsage(ctx context.Context, id snowflake.ID, category plan.Category) (*dealershipdomain.Dealership, error) {
	return nil, s.err
}

func (s *stubUsageService) Summary(ctx context.Context, id snowflake.ID) (*plan.Progress, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.progress, nil
}

func (s *stubUsageService) Archives(ctx context.Context, req usagedomain.ListArchivesRequest) (usagedomain.ListArchivesResponse, error) {
	if s.err != nil {
		return usagedomain.ListArchivesResponse{}, s.err
	}
	return usagedomain.ListArchivesResponse{}, nil
}

func newTestServer(t *testing.T, webhookSvc webhookdomain.Service, usageSvc usagedomain.Service) (*Server, *clock.FakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		WebhookAPIKey: testSecret,
		Mail:          config.MailConfig{UnsubscribeSecret: "unsub-secret"},
	}
	fake := clock.NewFakeClock(time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC))

	s := NewServer(ServerParams{
		Gin:        NewEngine(cfg, zap.NewNop()),
		Cfg:        cfg,
		Log:        zap.NewNop(),
		Clock:      fake,
		WebhookSvc: webhookSvc,
		UsageSvc:   usageSvc,
		Signer:     token.NewSigner(cfg.Mail.UnsubscribeSecret),
	})
	return s, fake
}

func doRequest(s *Server, method, path, apiKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func validEventBody(externalID string) string {
	return `{
		"eventType": "task.completed",
		"timestamp": "2026-04-10T07:59:00Z",
		"data": {
			"externalId": "` + externalID + `",
			"clientEmail": "pat@dealer.example",
			"taskType": "page",
			"status": "completed",
			"deliverables": [{"type": "page", "title": "About Us"}]
		}
	}`
}

// TestModuleGraphResolves validates the fx wiring end to end: every
// dependency of the module's invokes, including the engine run consumes,
// must be satisfiable without constructing anything by hand.
func TestModuleGraphResolves(t *testing.T) {
	gin.SetMode(gin.TestMode)

	err := fx.ValidateApp(
		Module,
		fx.NopLogger,
		fx.Supply(config.Config{}),
		fx.Provide(
			zap.NewNop,
			func() clock.Clock {
				return clock.NewFakeClock(time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC))
			},
			func() webhookdomain.Service { return &stubWebhookService{} },
			func() usagedomain.Service { return &stubUsageService{} },
			func() *token.Signer { return token.NewSigner("unsub-secret") },
		),
	)
	if err != nil {
		t.Fatalf("module graph: %v", err)
	}
}

func TestWebhookRequiresAPIKey(t *testing.T) {
	s, _ := newTestServer(t, &stubWebhookService{}, &stubUsageService{})

	for _, key := range []string{"", "wrong-secret"} {
		rec := doRequest(s, http.MethodPost, "/api/seoworks/webhook", key, validEventBody("1"))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("key %q: status = %d, want 401", key, rec.Code)
		}
	}
}

func TestWebhookProbe(t *testing.T) {
	s, fake := newTestServer(t, &stubWebhookService{}, &stubUsageService{})

	rec := doRequest(s, http.MethodGet, "/api/seoworks/webhook", testSecret, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
	if body["timestamp"] != fake.Now().UTC().Format(time.RFC3339) {
		t.Fatalf("timestamp = %v", body["timestamp"])
	}
}

func TestWebhookValidationFailure(t *testing.T) {
	svc := &stubWebhookService{}
	s, _ := newTestServer(t, svc, &stubUsageService{})

	rec := doRequest(s, http.MethodPost, "/api/seoworks/webhook", testSecret, `{"eventType":"task.completed"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatal("invalid payloads must not reach the service")
	}

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Type != "validation_error" || len(body.Error.Errors) == 0 {
		t.Fatalf("error payload = %+v", body.Error)
	}
}

func TestWebhookMatchedResponse(t *testing.T) {
	requestID := snowflake.ID(987654)
	svc := &stubWebhookService{outcome: &webhookdomain.Outcome{
		Matched:   true,
		Strategy:  webhookdomain.StrategyRequestID,
		RequestID: requestID,
	}}
	s, _ := newTestServer(t, svc, &stubUsageService{})

	rec := doRequest(s, http.MethodPost, "/api/seoworks/webhook", testSecret, validEventBody("987654"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	if body["message"] != "Webhook processed successfully" {
		t.Fatalf("message = %v", body["message"])
	}
	if body["requestId"] != requestID.String() {
		t.Fatalf("requestId = %v", body["requestId"])
	}
	if body["taskType"] != "page" || body["status"] != "completed" {
		t.Fatalf("task fields = %v / %v", body["taskType"], body["status"])
	}
}

func TestWebhookOrphanResponse(t *testing.T) {
	svc := &stubWebhookService{outcome: &webhookdomain.Outcome{
		Matched:  false,
		Strategy: webhookdomain.StrategyNone,
	}}
	s, _ := newTestServer(t, svc, &stubUsageService{})

	rec := doRequest(s, http.MethodPost, "/api/seoworks/webhook", testSecret, validEventBody("sw-unknown"))
	if rec.Code != http.StatusOK {
		t.Fatalf("unmatched events must still ack with 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["message"] != "Webhook received (no matching request found)" {
		t.Fatalf("message = %v", body["message"])
	}
	for _, key := range []string{"requestId", "taskType", "status"} {
		if _, exists := body[key]; exists {
			t.Fatalf("orphan ack must not carry %q", key)
		}
	}
}

func TestWebhookInternalErrorSanitized(t *testing.T) {
	svc := &stubWebhookService{err: context.DeadlineExceeded}
	s, _ := newTestServer(t, svc, &stubUsageService{})

	rec := doRequest(s, http.MethodPost, "/api/seoworks/webhook", testSecret, validEventBody("1"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "deadline") {
		t.Fatal("internal error detail must not leak")
	}
}

func TestDealershipUsageNotFound(t *testing.T) {
	s, _ := newTestServer(t, &stubWebhookService{}, &stubUsageService{err: usagedomain.ErrDealershipNotFound})

	rec := doRequest(s, http.MethodGet, "/api/dealerships/42/usage", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDealershipUsageSummary(t *testing.T) {
	progress, err := plan.ComputeProgress(plan.TierSilver, plan.LimitSet{Pages: 2})
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newTestServer(t, &stubWebhookService{}, &stubUsageService{progress: &progress})

	rec := doRequest(s, http.MethodGet, "/api/dealerships/42/usage", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body plan.Progress
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Tier != plan.TierSilver || body.TotalUsed != 2 {
		t.Fatalf("body = %+v", body)
	}
}

func TestUnsubscribe(t *testing.T) {
	s, fake := newTestServer(t, &stubWebhookService{}, &stubUsageService{})
	signer := token.NewSigner("unsub-secret")

	valid := signer.Generate(77, "task_completed", fake.Now())
	rec := doRequest(s, http.MethodGet, "/api/unsubscribe?token="+valid, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["userId"] != "77" || body["notificationType"] != "task_completed" {
		t.Fatalf("body = %v", body)
	}

	rec = doRequest(s, http.MethodGet, "/api/unsubscribe?token="+valid+"x", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("tampered token status = %d, want 400", rec.Code)
	}

	expired := signer.Generate(77, "task_completed", fake.Now().Add(-80*time.Hour))
	rec = doRequest(s, http.MethodGet, "/api/unsubscribe?token="+expired, "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expired token status = %d, want 400", rec.Code)
	}
}
