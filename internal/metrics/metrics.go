// Package metrics регистрирует счётчики prometheus сервиса кредитов.
// Все методы безопасно вызывать на nil *Metrics.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cleancut"

// Metrics набор счётчиков списаний, webhook-событий и админских действий.
type Metrics struct {
	consumeTotal  *prometheus.CounterVec
	creditsSpent  *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	adminActions  *prometheus.CounterVec
}

// New создаёт и регистрирует счётчики в reg (prometheus.DefaultRegisterer, если nil).
// Повторная регистрация переиспользует уже зарегистрированные коллекторы.
func New(reg prometheus.Registerer) (*Metrics, error) {
	const op = "metrics.New"
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		consumeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consume_total",
			Help:      "Consume requests by result.",
		}, []string{"result"}),
		creditsSpent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_spent_total",
			Help:      "Credits deducted by processing mode.",
		}, []string{"mode"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Paddle webhook events by type and outcome.",
		}, []string{"event_type", "outcome"}),
		adminActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_actions_total",
			Help:      "Applied admin ledger actions.",
		}, []string{"action"}),
	}

	var err error
	if m.consumeTotal, err = register(reg, m.consumeTotal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if m.creditsSpent, err = register(reg, m.creditsSpent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if m.webhookEvents, err = register(reg, m.webhookEvents); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if m.adminActions, err = register(reg, m.adminActions); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

// ConsumeResult результат списания для метки result.
type ConsumeResult string

const (
	ConsumeOK           ConsumeResult = "ok"
	ConsumeInsufficient ConsumeResult = "insufficient"
	ConsumeInvalid      ConsumeResult = "invalid"
	ConsumeError        ConsumeResult = "error"
)

// ObserveConsume учитывает одну попытку списания.
func (m *Metrics) ObserveConsume(result ConsumeResult) {
	if m == nil {
		return
	}
	m.consumeTotal.WithLabelValues(string(result)).Inc()
}

// AddCreditsSpent учитывает списанные кредиты.
func (m *Metrics) AddCreditsSpent(mode string, credits int64) {
	if m == nil || credits <= 0 {
		return
	}
	m.creditsSpent.WithLabelValues(mode).Add(float64(credits))
}

// Исходы обработки webhook-события.
const (
	WebhookGranted    = "granted"
	WebhookMirrored   = "mirrored"
	WebhookIgnored    = "ignored"
	WebhookDuplicate  = "duplicate"
	WebhookFailed     = "failed"
	WebhookNoAccount  = "no_account"
	WebhookUnresolved = "unresolved_price"
)

// ObserveWebhook учитывает обработанное webhook-событие.
func (m *Metrics) ObserveWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// ObserveAdminAction учитывает применённое админское действие.
func (m *Metrics) ObserveAdminAction(action string) {
	if m == nil {
		return
	}
	m.adminActions.WithLabelValues(action).Inc()
}
