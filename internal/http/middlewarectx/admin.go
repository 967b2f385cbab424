package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/cleancut/internal/http/response"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/models"
)

// AdminPolicy решает, является ли пользователь администратором.
type AdminPolicy interface {
	IsAdmin(id models.Identity) bool
}

// RequireAdmin пропускает только администраторов. Должен стоять после JWTMiddleware.
func RequireAdmin(policy AdminPolicy, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireAdmin"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			id, ok := IdentityFrom(r.Context())
			if !ok {
				log.Error("user identification missing")
				response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "user identification missing")
				return
			}
			if !policy.IsAdmin(id) {
				log.Warn("admin access denied", sl.Account(id.AccountID))
				response.Fail(w, r, http.StatusForbidden, response.CodeForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
