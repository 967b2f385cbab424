package models

// Identity пользователь, извлечённый из bearer-токена провайдера авторизации.
type Identity struct {
	AccountID string
	Email     string
	// Role значение кастомного claim роли (app_metadata.role).
	Role string
}
