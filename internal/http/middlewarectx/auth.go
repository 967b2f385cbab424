// Package middlewarectx содержит HTTP middleware: проверку bearer-токена,
// доступ только для администраторов и ограничение частоты запросов на аккаунт.
//
// JWTMiddleware проверяет токен в заголовке Authorization и в случае успеха
// кладёт models.Identity в контекст запроса. Иначе отвечает 401.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/cleancut/internal/http/response"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// IdentityKey ключ идентичности пользователя в контексте.
const IdentityKey Key = "identity"

// Service описывает интерфейс сервиса для валидации токена.
type Service interface {
	ValidateToken(ctx context.Context, token string) (*models.Identity, error)
}

// WithIdentity возвращает контекст с идентичностью пользователя.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFrom достаёт идентичность, положенную JWTMiddleware.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(models.Identity)
	if !ok || id.AccountID == "" {
		return models.Identity{}, false
	}
	return id, true
}

// JWTMiddleware возвращает HTTP middleware, который проверяет bearer-токен.
func JWTMiddleware(authService Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if tokenStr == "" {
				log.Warn("empty bearer token")
				response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "missing or invalid authorization header")
				return
			}

			id, err := authService.ValidateToken(r.Context(), tokenStr)
			if err != nil || id == nil || id.AccountID == "" {
				log.Warn("invalid or expired token", sl.Err(err))
				response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		})
	}
}
