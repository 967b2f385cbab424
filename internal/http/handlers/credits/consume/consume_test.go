package consume

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/cleancut/internal/http/middlewarectx"
	"github.com/magabrotheeeer/cleancut/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Consume(ctx context.Context, accountID string, imageCount int, quality bool) (*models.ConsumeResult, error) {
	args := m.Called(ctx, accountID, imageCount, quality)
	if res := args.Get(0); res != nil {
		return res.(*models.ConsumeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestConsumeHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		noIdentity     bool
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "fast mode",
			body: `{"imageCount":3,"isQuality":false}`,
			setupMock: func(m *MockService) {
				m.On("Consume", mock.Anything, "acc-1", 3, false).Return(&models.ConsumeResult{
					PlanID: models.PlanFree, CreditsRemaining: 27, Cost: 3, Mode: models.ModeFast,
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"ok":true,"planId":"free","creditsRemaining":27,"cost":3,"mode":"fast"}`,
		},
		{
			name: "quality mode on paid plan",
			body: `{"imageCount":3,"isQuality":true}`,
			setupMock: func(m *MockService) {
				m.On("Consume", mock.Anything, "acc-1", 3, true).Return(&models.ConsumeResult{
					PlanID: models.PlanProMonthly, CreditsRemaining: 994, Cost: 6, Mode: models.ModeQuality,
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"ok":true,"planId":"pro_monthly","creditsRemaining":994,"cost":6,"mode":"quality"}`,
		},
		{
			name: "insufficient credits",
			body: `{"imageCount":10}`,
			setupMock: func(m *MockService) {
				m.On("Consume", mock.Anything, "acc-1", 10, false).
					Return(nil, fmt.Errorf("services.Consume: %w", &models.InsufficientCreditsError{Required: 10, Available: 4})).Once()
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedBody: `{"ok":false,"error":"insufficient credits","code":"insufficient_credits",
				"creditsRemaining":4,"required":10}`,
		},
		{
			name:           "zero images",
			body:           `{"imageCount":0}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"ok":false,"error":"imageCount must be a positive integer","code":"invalid_argument"}`,
		},
		{
			name:           "negative images",
			body:           `{"imageCount":-1}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"ok":false,"error":"imageCount must be a positive integer","code":"invalid_argument"}`,
		},
		{
			name:           "fractional images",
			body:           `{"imageCount":1.5}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"ok":false,"error":"imageCount must be a positive integer","code":"invalid_argument"}`,
		},
		{
			name:           "missing image count",
			body:           `{"isQuality":true}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"ok":false,"error":"field ImageCount is a required field","code":"invalid_argument"}`,
		},
		{
			name:           "string image count",
			body:           `{"imageCount":"3"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"ok":false,"error":"invalid request body","code":"invalid_argument"}`,
		},
		{
			name:           "invalid json",
			body:           `{`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"ok":false,"error":"invalid request body","code":"invalid_argument"}`,
		},
		{
			name:           "no identity",
			body:           `{"imageCount":1}`,
			noIdentity:     true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"ok":false,"error":"unauthorized","code":"unauthorized"}`,
		},
		{
			name: "service error",
			body: `{"imageCount":1}`,
			setupMock: func(m *MockService) {
				m.On("Consume", mock.Anything, "acc-1", 1, false).Return(nil, errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"ok":false,"error":"could not consume credits","code":"internal"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/consume", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if !tt.noIdentity {
				req = req.WithContext(middlewarectx.WithIdentity(req.Context(), models.Identity{AccountID: "acc-1"}))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
