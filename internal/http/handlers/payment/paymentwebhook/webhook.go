// Package paymentwebhook принимает webhook-уведомления Paddle.
//
// Подпись проверяется по сырому телу до разбора JSON. Неподписанные или
// подделанные запросы отклоняются с 401 без изменений баланса.
package paymentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/cleancut/internal/http/response"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/paddle"
	"github.com/magabrotheeeer/cleancut/internal/services/payment"
)

// MaxBodyBytes предельный размер тела уведомления.
const MaxBodyBytes = 1 << 20

// Verifier проверяет заголовок подписи.
type Verifier interface {
	Verify(body []byte, header string) bool
}

// Service обрабатывает разобранное событие.
type Service interface {
	ProcessEvent(ctx context.Context, ev *paddle.Event) (payment.Outcome, error)
}

// Handler обрабатывает webhook-уведомления.
type Handler struct {
	log      *slog.Logger
	service  Service
	verifier Verifier
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, verifier Verifier) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		verifier: verifier,
	}
}

// ServeHTTP godoc
// @Summary Webhook Paddle
// @Description Принимает уведомления Paddle Billing, подписанные заголовком Paddle-Signature
// @Tags Webhooks
// @Accept  json
// @Produce  json
// @Param Paddle-Signature header string true "ts=<unix>;h1=<hex hmac>"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректное тело"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки"
// @Router /webhooks/paddle [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("webhook body too large")
			response.Fail(w, r, http.StatusRequestEntityTooLarge, response.CodeInvalidArgument, "request body too large")
			return
		}
		log.Error("failed to read webhook body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument, "failed to read body")
		return
	}

	if !h.verifier.Verify(body, r.Header.Get(paddle.SignatureHeader)) {
		log.Warn("invalid or missing webhook signature")
		response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "invalid signature")
		return
	}

	var ev paddle.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument, "invalid payload")
		return
	}

	outcome, err := h.service.ProcessEvent(r.Context(), &ev)
	if err != nil {
		log.Error("failed to process webhook event",
			slog.String("event_id", ev.EventID),
			slog.String("event_type", ev.EventType),
			sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "failed to process event")
		return
	}

	log.Info("webhook processed",
		slog.String("event_id", ev.EventID),
		slog.String("event_type", ev.EventType),
		slog.String("outcome", string(outcome)))
	render.JSON(w, r, response.OK())
}
