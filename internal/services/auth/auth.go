// Package services содержит проверку bearer-токенов и политику доступа администраторов.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/cleancut/internal/lib/jwt"
	"github.com/magabrotheeeer/cleancut/internal/models"
)

// AuthService проверяет токены провайдера авторизации и решает, кто администратор.
type AuthService struct {
	jwtMaker    jwt.Maker
	adminRole   string
	adminEmails map[string]struct{}
}

// NewAuthService создает новый экземпляр AuthService.
// adminEmails сравниваются без учёта регистра.
func NewAuthService(jwtMaker jwt.Maker, adminRole string, adminEmails []string) *AuthService {
	emails := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails[e] = struct{}{}
		}
	}
	return &AuthService{
		jwtMaker:    jwtMaker,
		adminRole:   adminRole,
		adminEmails: emails,
	}
}

// ValidateToken проверяет JWT и возвращает идентичность пользователя.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*models.Identity, error) {
	const op = "services.ValidateToken"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Identity{
		AccountID: claims.Subject,
		Email:     claims.Email,
		Role:      claims.AppMetadata.Role,
	}, nil
}

// IsAdmin истинно, если у пользователя есть claim роли администратора
// или его email входит в список администраторов.
func (s *AuthService) IsAdmin(id models.Identity) bool {
	if s.adminRole != "" && id.Role == s.adminRole {
		return true
	}
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return false
	}
	_, ok := s.adminEmails[email]
	return ok
}
