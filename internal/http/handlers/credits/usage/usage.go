// Package usage реализует HTTP-обработчик истории списаний текущего пользователя.
package usage

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/cleancut/internal/http/middlewarectx"
	"github.com/magabrotheeeer/cleancut/internal/http/response"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service описывает интерфейс бизнес-логики истории списаний.
type Service interface {
	ListUsage(ctx context.Context, accountID string, limit, offset int) ([]*models.UsageEvent, error)
}

// Response страница истории.
type Response struct {
	OK     bool                 `json:"ok"`
	Events []*models.UsageEvent `json:"events"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// Handler обрабатывает запросы истории списаний.
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
// @Summary История списаний
// @Description Возвращает списания пользователя, новые первыми
// @Tags Credits
// @Produce  json
// @Param limit query int false "Размер страницы (по умолчанию 20, максимум 100)"
// @Param offset query int false "Смещение"
// @Success 200 {object} Response
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /credits/usage [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.credits.usage"

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

	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil || limit <= 0 {
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxLimit)

	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument, "offset must be a non-negative integer")
		return
	}

	events, err := h.service.ListUsage(r.Context(), id.AccountID, limit, offset)
	if err != nil {
		log.Error("failed to list usage", sl.Account(id.AccountID), sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "could not list usage")
		return
	}
	if events == nil {
		events = []*models.UsageEvent{}
	}

	render.JSON(w, r, Response{OK: true, Events: events, Limit: limit, Offset: offset})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
