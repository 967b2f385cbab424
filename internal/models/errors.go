package models

import (
	"errors"
	"fmt"
)

var (
	// ErrLedgerNotFound строки баланса для аккаунта нет.
	ErrLedgerNotFound = errors.New("ledger not found")
	// ErrInsufficientCredits остатка не хватает на операцию.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidArgument некорректные входные данные.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownAction неизвестное административное действие.
	ErrUnknownAction = errors.New("unknown admin action")
)

// InsufficientCreditsError детализирует ErrInsufficientCredits.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// Is позволяет сравнивать через errors.Is(err, ErrInsufficientCredits).
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
