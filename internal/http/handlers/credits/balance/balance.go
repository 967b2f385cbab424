// Package balance реализует HTTP-обработчик получения баланса кредитов текущего пользователя.
//
// При первом обращении строка баланса создаётся на бесплатном плане.
package balance

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/cleancut/internal/http/middlewarectx"
	"github.com/magabrotheeeer/cleancut/internal/http/response"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/models"
)

// Service описывает интерфейс бизнес-логики баланса.
type Service interface {
	EnsureLedger(ctx context.Context, id models.Identity) (*models.Ledger, error)
}

// Response ответ с балансом.
type Response struct {
	OK                 bool          `json:"ok"`
	PlanID             models.PlanID `json:"planId"`
	CreditsRemaining   int64         `json:"creditsRemaining"`
	LastResetAt        *time.Time    `json:"lastResetAt"`
	SubscriptionStatus *string       `json:"subscriptionStatus"`
	Initialized        bool          `json:"initialized"`
}

// Handler обрабатывает запросы баланса.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Баланс кредитов
// @Description Возвращает план и остаток кредитов пользователя, создавая строку баланса при первом обращении
// @Tags Credits
// @Produce  json
// @Success 200 {object} Response
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /credits [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.credits.balance"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, ok := middlewarectx.IdentityFrom(r.Context())
	if !ok {
		log.Error("user identification missing")
		response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	l, err := h.service.EnsureLedger(r.Context(), id)
	if err != nil {
		log.Error("failed to load ledger", sl.Account(id.AccountID), sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "could not load credits")
		return
	}

	render.JSON(w, r, Response{
		OK:                 true,
		PlanID:             l.PlanID,
		CreditsRemaining:   l.CreditsRemaining,
		LastResetAt:        l.LastResetAt,
		SubscriptionStatus: l.SubscriptionStatus,
		Initialized:        l.Initialized,
	})
}
