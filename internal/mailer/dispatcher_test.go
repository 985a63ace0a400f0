package mailer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/seohub/internal/clock"
	"github.com/smallbiznis/seohub/internal/config"
	dealershipdomain "github.com/smallbiznis/seohub/internal/dealership/domain"
	"github.com/smallbiznis/seohub/internal/mailer/token"
	"github.com/smallbiznis/seohub/internal/plan"
	requestdomain "github.com/smallbiznis/seohub/internal/request/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type providerMock struct {
	mock.Mock
}

func (m *providerMock) Send(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newTestDispatcher(t *testing.T, provider Provider) (*Dispatcher, *Queue, *token.Signer, *clock.FakeClock) {
	t.Helper()

	cfg := config.MailConfig{
		BaseURL:           "https://hub.example",
		UnsubscribeSecret: "unsub-secret",
		QueueSize:         8,
		MaxAttempts:       1,
		RetryDelay:        time.Millisecond,
	}
	signer := token.NewSigner(cfg.UnsubscribeSecret)
	fake := clock.NewFakeClock(time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC))
	q := NewQueue(cfg, zap.NewNop(), provider, nil)

	return NewDispatcher(cfg, q, signer, fake, zap.NewNop()), q, signer, fake
}

func TestDispatcherTaskCompletedContent(t *testing.T) {
	provider := &providerMock{}
	d, q, signer, fake := newTestDispatcher(t, provider)

	var got Message
	provider.On("Send", mock.Anything, mock.AnythingOfType("mailer.Message")).
		Run(func(args mock.Arguments) { got = args.Get(1).(Message) }).
		Return(nil).Once()

	user := &dealershipdomain.User{ID: 42, Email: "pat@dealer.example"}
	dealership := &dealershipdomain.Dealership{Name: "Sunrise Motors"}
	task := requestdomain.CompletedTask{Title: "About Us", Type: "page", CompletedAt: fake.Now()}
	progress, err := plan.ComputeProgress(plan.TierSilver, plan.LimitSet{Pages: 2})
	if err != nil {
		t.Fatal(err)
	}

	q.Start()
	err = d.TaskCompleted(context.Background(), user, dealership, task, &progress)
	q.Stop()

	assert.NoError(t, err)
	provider.AssertExpectations(t)

	assert.Equal(t, "pat@dealer.example", got.To)
	assert.Equal(t, "New Page added to Your Website: About Us", got.Subject)
	assert.Contains(t, got.HTML, "Sunrise Motors")
	assert.Contains(t, got.HTML, "This Month's Progress")
	assert.Contains(t, got.HTML, "<li>Pages: 2 of 3 (67%)</li>")
	assert.NotContains(t, got.HTML, "Blog Posts:")

	expectedURL := "https://hub.example/api/unsubscribe?token=" +
		signer.Generate(user.ID, NotificationTaskCompleted, fake.Now())
	assert.Contains(t, got.HTML, expectedURL)
}

func TestDispatcherStatusChanged(t *testing.T) {
	provider := &providerMock{}
	d, q, signer, fake := newTestDispatcher(t, provider)

	var got Message
	provider.On("Send", mock.Anything, mock.AnythingOfType("mailer.Message")).
		Run(func(args mock.Arguments) { got = args.Get(1).(Message) }).
		Return(nil).Once()

	user := &dealershipdomain.User{ID: 7, Email: "pat@dealer.example"}
	req := &requestdomain.Request{Title: "Service Specials", Status: requestdomain.StatusCancelled}

	q.Start()
	err := d.StatusChanged(context.Background(), user, req, requestdomain.StatusInProgress)
	q.Stop()

	assert.NoError(t, err)
	provider.AssertExpectations(t)

	assert.Equal(t, "Request cancelled: Service Specials", got.Subject)

	// The footer link carries a token the unsubscribe endpoint accepts.
	idx := strings.Index(got.HTML, "token=")
	assert.GreaterOrEqual(t, idx, 0)
	raw := got.HTML[idx+len("token="):]
	raw = raw[:strings.IndexAny(raw, `"`)]
	claims, err := signer.Verify(raw, fake.Now())
	assert.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, NotificationStatusChanged, claims.NotificationType)
}

func TestDispatcherSkipsUserWithoutEmail(t *testing.T) {
	provider := &providerMock{}
	d, q, _, fake := newTestDispatcher(t, provider)

	task := requestdomain.CompletedTask{Title: "About Us", Type: "page", CompletedAt: fake.Now()}

	q.Start()
	assert.NoError(t, d.TaskCompleted(context.Background(), nil, nil, task, nil))
	assert.NoError(t, d.TaskCompleted(context.Background(), &dealershipdomain.User{ID: 1}, nil, task, nil))
	q.Stop()

	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
