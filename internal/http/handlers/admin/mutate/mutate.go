// Package mutate реализует административное изменение баланса аккаунта.
//
// Поддерживаемые действия: add, deduct, set, set_plan. Устаревшие имена
// add_credits и set_credits принимаются как add и set.
package mutate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/cleancut/internal/http/middlewarectx"
	"github.com/magabrotheeeer/cleancut/internal/http/response"
	"github.com/magabrotheeeer/cleancut/internal/lib/numeric"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/models"
)

// Request тело запроса администратора.
type Request struct {
	UserID string   `json:"userId" validate:"required"`
	Action string   `json:"action" validate:"required"`
	Amount *float64 `json:"amount,omitempty"`
	PlanID *string  `json:"planId,omitempty"`
}

// Response состояние до и после изменения.
type Response struct {
	OK bool `json:"ok"`
	models.AdminResult
}

// Service описывает интерфейс административных изменений.
type Service interface {
	ApplyAdminAction(ctx context.Context, accountID string, m models.AdminMutation) (*models.AdminResult, error)
}

// Handler обрабатывает административные изменения баланса.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Изменить баланс аккаунта
// @Description add/deduct требуют amount > 0, set требует amount >= 0, set_plan требует planId и выдаёт полный объём плана
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Действие"
// @Success 200 {object} Response
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Нет прав администратора"
// @Failure 404 {object} response.ErrorResponse "Строка баланса не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/credits [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.mutate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	if admin, ok := middlewarectx.IdentityFrom(r.Context()); ok {
		log = log.With(slog.String("admin_id", admin.AccountID))
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument, "invalid request body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	m, msg := toMutation(req)
	if msg != "" {
		log.Warn("invalid admin action", slog.String("reason", msg))
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument, msg)
		return
	}

	res, err := h.service.ApplyAdminAction(r.Context(), req.UserID, m)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrLedgerNotFound):
			response.Fail(w, r, http.StatusNotFound, response.CodeNotFound, "ledger not found")
		case errors.Is(err, models.ErrInvalidArgument), errors.Is(err, models.ErrUnknownAction):
			log.Warn("admin action rejected", sl.Err(err))
			response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument, err.Error())
		default:
			log.Error("failed to apply admin action", sl.Account(req.UserID), sl.Err(err))
			response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "could not apply admin action")
		}
		return
	}

	render.JSON(w, r, Response{OK: true, AdminResult: *res})
}

// toMutation переводит запрос в доменную мутацию. Непустое msg описывает ошибку.
func toMutation(req Request) (models.AdminMutation, string) {
	action, ok := models.ParseAdminAction(strings.TrimSpace(req.Action))
	if !ok {
		return models.AdminMutation{}, "unknown action " + req.Action
	}
	m := models.AdminMutation{Action: action}

	if req.PlanID != nil {
		plan := models.PlanID(strings.TrimSpace(*req.PlanID))
		if !plan.Valid() {
			return models.AdminMutation{}, "unknown planId " + *req.PlanID
		}
		m.PlanID = &plan
	}

	if action == models.AdminSetPlan {
		if m.PlanID == nil {
			return models.AdminMutation{}, "planId is required for set_plan"
		}
		return m, ""
	}

	if req.Amount == nil {
		return models.AdminMutation{}, "amount is required"
	}
	amount, ok := numeric.WholeNumber(*req.Amount)
	if !ok {
		return models.AdminMutation{}, "amount must be an integer"
	}
	switch {
	case action == models.AdminSet && amount < 0:
		return models.AdminMutation{}, "amount must be >= 0 for set"
	case action != models.AdminSet && amount <= 0:
		return models.AdminMutation{}, "amount must be > 0"
	}
	m.Amount = amount
	return m, ""
}
