// Package ledger реализует административный просмотр строки баланса аккаунта.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/cleancut/internal/http/response"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/models"
)

// Service описывает интерфейс чтения строки баланса.
type Service interface {
	FindLedger(ctx context.Context, accountID string) (*models.Ledger, error)
}

// Response строка баланса аккаунта.
type Response struct {
	OK     bool           `json:"ok"`
	Ledger *models.Ledger `json:"ledger"`
}

// Handler обрабатывает запросы администратора на чтение баланса.
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
// @Summary Баланс аккаунта
// @Description Возвращает строку баланса произвольного аккаунта
// @Tags Admin
// @Produce  json
// @Param userId path string true "Идентификатор аккаунта"
// @Success 200 {object} Response
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Нет прав администратора"
// @Failure 404 {object} response.ErrorResponse "Строка баланса не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/ledgers/{userId} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.ledger"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if accountID == "" {
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument, "userId is required")
		return
	}

	l, err := h.service.FindLedger(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, models.ErrLedgerNotFound) {
			response.Fail(w, r, http.StatusNotFound, response.CodeNotFound, "ledger not found")
			return
		}
		log.Error("failed to read ledger", sl.Account(accountID), sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "could not read ledger")
		return
	}

	render.JSON(w, r, Response{OK: true, Ledger: l})
}
