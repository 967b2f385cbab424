// Package paddle содержит типы webhook-уведомлений Paddle Billing
// и проверку их подписи.
package paddle

import (
	"strings"
	"time"
)

// Типы событий, которые обрабатывает сервис.
const (
	EventTransactionCompleted = "transaction.completed"
	// SubscriptionEventPrefix префикс событий жизненного цикла подписки
	// (subscription.created, subscription.updated, subscription.canceled и др.).
	SubscriptionEventPrefix = "subscription."
)

// SignatureHeader заголовок с подписью уведомления.
const SignatureHeader = "Paddle-Signature"

// Event уведомление Paddle. Форма Data зависит от EventType.
type Event struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	NotificationID string    `json:"notification_id"`
	Data           EventData `json:"data"`
}

// EventData общая часть объекта transaction/subscription.
type EventData struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	CustomerID     string         `json:"customer_id"`
	SubscriptionID *string        `json:"subscription_id"`
	CustomData     map[string]any `json:"custom_data"`
	Items          []Item         `json:"items"`
}

// Item позиция транзакции или подписки.
type Item struct {
	PriceID  string `json:"price_id"`
	Quantity int    `json:"quantity"`
	Price    *Price `json:"price"`
}

// Price цена позиции.
type Price struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
}

// accountKeys ключи custom_data, в которых checkout передаёт идентификатор аккаунта.
var accountKeys = []string{"user_id", "userId", "account_id"}

// AccountID возвращает идентификатор аккаунта из custom_data или пустую строку.
func (e *Event) AccountID() string {
	for _, k := range accountKeys {
		if v, ok := e.Data.CustomData[k].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// PriceID возвращает price id первой позиции, у которой он указан.
func (e *Event) PriceID() string {
	for _, it := range e.Data.Items {
		if it.Price != nil && it.Price.ID != "" {
			return it.Price.ID
		}
		if it.PriceID != "" {
			return it.PriceID
		}
	}
	return ""
}

// IsSubscriptionEvent сообщает, относится ли событие к жизненному циклу подписки.
func (e *Event) IsSubscriptionEvent() bool {
	return strings.HasPrefix(e.EventType, SubscriptionEventPrefix)
}

// SubscriptionRef возвращает id подписки: для subscription.* это id объекта,
// для транзакций поле subscription_id.
func (e *Event) SubscriptionRef() string {
	if e.IsSubscriptionEvent() {
		return e.Data.ID
	}
	if e.Data.SubscriptionID != nil {
		return *e.Data.SubscriptionID
	}
	return ""
}
