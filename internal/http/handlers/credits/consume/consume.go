// Package consume реализует HTTP-обработчик списания кредитов за обработку изображений.
//
// Handler проверяет запрос, вызывает атомарное списание и возвращает новый
// остаток. При нехватке кредитов отвечает 402 с требуемой суммой и остатком.
package consume

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/cleancut/internal/http/middlewarectx"
	"github.com/magabrotheeeer/cleancut/internal/http/response"
	"github.com/magabrotheeeer/cleancut/internal/lib/numeric"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/models"
)

// Request тело запроса на списание.
type Request struct {
	ImageCount *float64 `json:"imageCount" validate:"required"`
	IsQuality  bool     `json:"isQuality"`
}

// Response ответ при успешном списании.
type Response struct {
	OK               bool          `json:"ok"`
	PlanID           models.PlanID `json:"planId"`
	CreditsRemaining int64         `json:"creditsRemaining"`
	Cost             int64         `json:"cost"`
	Mode             models.Mode   `json:"mode"`
}

// InsufficientResponse ответ 402.
type InsufficientResponse struct {
	response.Response
	CreditsRemaining int64 `json:"creditsRemaining"`
	Required         int64 `json:"required"`
}

// Service описывает интерфейс бизнес-логики списания.
type Service interface {
	Consume(ctx context.Context, accountID string, imageCount int, quality bool) (*models.ConsumeResult, error)
}

// Handler обрабатывает запросы на списание.
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
// @Summary Списать кредиты
// @Description Атомарно списывает imageCount кредитов (×2 в режиме quality на платных планах)
// @Tags Credits
// @Accept  json
// @Produce  json
// @Param request body Request true "Количество изображений и режим"
// @Success 200 {object} Response
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 402 {object} InsufficientResponse "Недостаточно кредитов"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /credits/consume [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.credits.consume"

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
	log = log.With(sl.Account(id.AccountID))

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	count, ok := numeric.WholeNumber(*req.ImageCount)
	if !ok || count <= 0 {
		log.Warn("invalid image count", slog.Float64("image_count", *req.ImageCount))
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument,
			"imageCount must be a positive integer")
		return
	}

	res, err := h.service.Consume(r.Context(), id.AccountID, int(count), req.IsQuality)
	if err != nil {
		var insufficient *models.InsufficientCreditsError
		switch {
		case errors.As(err, &insufficient):
			log.Info("insufficient credits",
				slog.Int64("required", insufficient.Required),
				slog.Int64("available", insufficient.Available))
			render.Status(r, http.StatusPaymentRequired)
			render.JSON(w, r, InsufficientResponse{
				Response:         response.ErrorCode(response.CodeInsufficientCredits, "insufficient credits"),
				CreditsRemaining: insufficient.Available,
				Required:         insufficient.Required,
			})
		case errors.Is(err, models.ErrInvalidArgument):
			log.Warn("invalid consume request", sl.Err(err))
			response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidArgument, "imageCount must be a positive integer")
		default:
			log.Error("failed to consume credits", sl.Err(err))
			response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "could not consume credits")
		}
		return
	}

	log.Info("credits consumed",
		slog.Int64("cost", res.Cost),
		slog.String("mode", string(res.Mode)),
		slog.Int64("credits_remaining", res.CreditsRemaining))
	render.JSON(w, r, Response{
		OK:               true,
		PlanID:           res.PlanID,
		CreditsRemaining: res.CreditsRemaining,
		Cost:             res.Cost,
		Mode:             res.Mode,
	})
}
