package cleancut

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/cleancut/internal/http/middlewarectx"
	"github.com/magabrotheeeer/cleancut/internal/lib/jwt"
	"github.com/magabrotheeeer/cleancut/internal/models"
	"github.com/magabrotheeeer/cleancut/internal/paddle"
	authservice "github.com/magabrotheeeer/cleancut/internal/services/auth"
	"github.com/magabrotheeeer/cleancut/internal/services/payment"
)

const (
	testJWTSecret     = "jwt-secret"
	testWebhookSecret = "whsec"
)

type fakeCredits struct{}

func (fakeCredits) EnsureLedger(_ context.Context, id models.Identity) (*models.Ledger, error) {
	return &models.Ledger{AccountID: id.AccountID, PlanID: models.PlanFree, CreditsRemaining: 30, Initialized: true}, nil
}

func (fakeCredits) Consume(_ context.Context, _ string, imageCount int, _ bool) (*models.ConsumeResult, error) {
	return &models.ConsumeResult{
		PlanID:           models.PlanFree,
		CreditsRemaining: 30 - int64(imageCount),
		Cost:             int64(imageCount),
		Mode:             models.ModeFast,
	}, nil
}

func (fakeCredits) ListUsage(context.Context, string, int, int) ([]*models.UsageEvent, error) {
	return []*models.UsageEvent{}, nil
}

func (fakeCredits) FindLedger(_ context.Context, accountID string) (*models.Ledger, error) {
	return &models.Ledger{AccountID: accountID, PlanID: models.PlanFree, CreditsRemaining: 30, Initialized: true}, nil
}

func (fakeCredits) ApplyAdminAction(_ context.Context, accountID string, _ models.AdminMutation) (*models.AdminResult, error) {
	return &models.AdminResult{AccountID: accountID}, nil
}

type fakePayments struct{}

func (fakePayments) ProcessEvent(context.Context, *paddle.Event) (payment.Outcome, error) {
	return payment.OutcomeIgnored, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, burst int) (http.Handler, *jwt.MakerImpl) {
	t.Helper()
	maker := jwt.NewJWTMaker(testJWTSecret, time.Hour)
	r := chi.NewRouter()
	RegisterRoutes(r, newNoopLogger(), Deps{
		Auth:     authservice.NewAuthService(maker, "admin", []string{"ops@cleancut.app"}),
		Credits:  fakeCredits{},
		Payments: fakePayments{},
		Verifier: paddle.NewVerifier(testWebhookSecret, 0),
		Limiter:  middlewarectx.NewAccountLimiter(0.001, burst),
		DB:       okPinger{},
		Cache:    okPinger{},
	})
	return r, maker
}

func TestRoutes(t *testing.T) {
	router, maker := newTestRouter(t, 10)

	token := func(subject, email, role string) string {
		tok, err := maker.GenerateToken(subject, email, role)
		require.NoError(t, err)
		return tok
	}
	user := token("user-1", "user@example.com", "")
	admin := token("admin-1", "root@example.com", "admin")
	allowlisted := token("ops-1", "OPS@cleancut.app", "")

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		token      string
		header     map[string]string
		wantStatus int
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "balance without token", method: http.MethodGet, path: "/api/v1/credits", wantStatus: http.StatusUnauthorized},
		{name: "balance with token", method: http.MethodGet, path: "/api/v1/credits", token: user, wantStatus: http.StatusOK},
		{name: "usage with token", method: http.MethodGet, path: "/api/v1/credits/usage", token: user, wantStatus: http.StatusOK},
		{
			name:       "consume with token",
			method:     http.MethodPost,
			path:       "/api/v1/credits/consume",
			body:       `{"imageCount":2}`,
			token:      user,
			wantStatus: http.StatusOK,
		},
		{
			name:       "consume without token",
			method:     http.MethodPost,
			path:       "/api/v1/credits/consume",
			body:       `{"imageCount":2}`,
			wantStatus: http.StatusUnauthorized,
		},
		{name: "admin ledger as user", method: http.MethodGet, path: "/api/v1/admin/ledgers/u2", token: user, wantStatus: http.StatusForbidden},
		{name: "admin ledger as admin claim", method: http.MethodGet, path: "/api/v1/admin/ledgers/u2", token: admin, wantStatus: http.StatusOK},
		{name: "admin ledger as allowlisted email", method: http.MethodGet, path: "/api/v1/admin/ledgers/u2", token: allowlisted, wantStatus: http.StatusOK},
		{name: "admin ledger without token", method: http.MethodGet, path: "/api/v1/admin/ledgers/u2", wantStatus: http.StatusUnauthorized},
		{
			name:       "admin mutate as user",
			method:     http.MethodPost,
			path:       "/api/v1/admin/credits",
			body:       `{"userId":"u2","action":"add","amount":5}`,
			token:      user,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin mutate as admin",
			method:     http.MethodPost,
			path:       "/api/v1/admin/credits",
			body:       `{"userId":"u2","action":"add","amount":5}`,
			token:      admin,
			wantStatus: http.StatusOK,
		},
		{
			name:       "webhook without signature",
			method:     http.MethodPost,
			path:       "/api/v1/webhooks/paddle",
			body:       `{"event_type":"transaction.completed"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "webhook signed",
			method: http.MethodPost,
			path:   "/api/v1/webhooks/paddle",
			body:   `{"event_id":"evt_1","event_type":"address.created","data":{}}`,
			header: map[string]string{
				paddle.SignatureHeader: paddle.Sign(testWebhookSecret, time.Now(), []byte(`{"event_id":"evt_1","event_type":"address.created","data":{}}`)),
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestRoutes_ConsumeIsRateLimited(t *testing.T) {
	router, maker := newTestRouter(t, 1)
	tok, err := maker.GenerateToken("user-1", "user@example.com", "")
	require.NoError(t, err)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/consume", strings.NewReader(`{"imageCount":1}`))
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	// Баланс не ограничивается лимитером списаний.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
