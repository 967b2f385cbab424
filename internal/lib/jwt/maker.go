// Package jwt реализует генерацию и парсинг JWT токенов провайдера авторизации.
//
// Токены подписываются HS256 общим секретом проекта. Subject токена:
// идентификатор аккаунта, email и app_metadata.role переносятся в Claims.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingSubject токен без subject не идентифицирует аккаунт.
var ErrMissingSubject = errors.New("token has no subject")

// AppMetadata серверные метаданные пользователя, которые он не может менять сам.
type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// Claims описывает пользовательские данные, хранящиеся в JWT.
type Claims struct {
	Email                string      `json:"email,omitempty"`
	Role                 string      `json:"role,omitempty"` // Роль postgrest, обычно "authenticated"
	AppMetadata          AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims             // ExpiresAt, IssuedAt, Subject и пр.
}

// Maker описывает интерфейс для генерации и парсинга токенов.
type Maker interface {
	GenerateToken(subject, email, appRole string) (string, error)
	ParseToken(tokenStr string) (*Claims, error)
}

// MakerImpl реализует Maker с использованием секретного ключа и TTL.
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни выпускаемых токенов.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

// GenerateToken создаёт подписанный токен. Используется в тестах и локальной разработке.
func (j *MakerImpl) GenerateToken(subject, email, appRole string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:       email,
		Role:        "authenticated",
		AppMetadata: AppMetadata{Role: appRole},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken проверяет подпись, алгоритм и срок действия токена и
// возвращает Claims. Токен без subject отклоняется.
func (j *MakerImpl) ParseToken(tokenStr string) (*Claims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingSubject)
	}
	return claims, nil
}
