// Package models содержит доменные структуры сервиса кредитов:
// строку баланса аккаунта, события списания, идентичность пользователя
// и описание административных действий.
package models

import "time"

// PlanID идентификатор тарифного плана.
type PlanID string

const (
	// PlanFree бесплатный план, назначается по умолчанию.
	PlanFree PlanID = "free"
	// PlanProMonthly ежемесячная подписка.
	PlanProMonthly PlanID = "pro_monthly"
	// PlanLifetime разовая покупка.
	PlanLifetime PlanID = "lifetime"
)

// Valid сообщает, является ли план одним из известных.
func (p PlanID) Valid() bool {
	switch p {
	case PlanFree, PlanProMonthly, PlanLifetime:
		return true
	}
	return false
}

// Ledger представляет строку баланса кредитов аккаунта (одна на аккаунт).
// Initialized=false означает, что строки в хранилище ещё нет и
// значения нулевые, а не сохранённый баланс 0.
type Ledger struct {
	AccountID          string     `json:"accountId"`
	Email              string     `json:"email,omitempty"`
	PlanID             PlanID     `json:"planId"`
	CreditsRemaining   int64      `json:"creditsRemaining"`
	LastResetAt        *time.Time `json:"lastResetAt,omitempty"`
	SubscriptionStatus *string    `json:"subscriptionStatus,omitempty"`
	SubscriptionID     *string    `json:"subscriptionId,omitempty"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	Initialized        bool       `json:"initialized"`
}

// EmptyLedger возвращает нулевую строку для аккаунта без записи в хранилище.
func EmptyLedger(accountID string) *Ledger {
	return &Ledger{
		AccountID: accountID,
		PlanID:    PlanFree,
	}
}

// Balance снимок плана и остатка, используется в ответах админских действий.
type Balance struct {
	PlanID           PlanID `json:"planId"`
	CreditsRemaining int64  `json:"creditsRemaining"`
}

// Balance возвращает снимок текущего плана и остатка.
func (l *Ledger) Balance() Balance {
	return Balance{PlanID: l.PlanID, CreditsRemaining: l.CreditsRemaining}
}
