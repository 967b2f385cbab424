// Package payment обрабатывает webhook-уведомления Paddle: выдачу кредитов
// после оплаты и зеркалирование статуса подписки.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/cleancut/internal/billing"
	"github.com/magabrotheeeer/cleancut/internal/cache"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/metrics"
	"github.com/magabrotheeeer/cleancut/internal/models"
	"github.com/magabrotheeeer/cleancut/internal/paddle"
)

// LedgerRepository методы хранилища, которые меняет webhook.
type LedgerRepository interface {
	SetPlanAndCredits(ctx context.Context, accountID string, plan models.PlanID, credits int64) error
	UpdateSubscription(ctx context.Context, accountID, status, subscriptionID string, defaultCredits int64) error
}

// PlanResolver отображает price id в план.
type PlanResolver interface {
	ResolvePlan(priceID string) (models.PlanID, bool)
}

// Cache хранит отметки обработанных событий и кэш баланса.
type Cache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Publisher публикует события о выдаче кредитов.
type Publisher interface {
	PublishGrant(ctx context.Context, msg models.CreditsGranted) error
}

// Outcome итог обработки одного события.
type Outcome string

const (
	OutcomeGranted    Outcome = metrics.WebhookGranted
	OutcomeMirrored   Outcome = metrics.WebhookMirrored
	OutcomeIgnored    Outcome = metrics.WebhookIgnored
	OutcomeDuplicate  Outcome = metrics.WebhookDuplicate
	OutcomeNoAccount  Outcome = metrics.WebhookNoAccount
	OutcomeUnresolved Outcome = metrics.WebhookUnresolved
)

// Service обрабатывает уведомления провайдера оплаты.
type Service struct {
	repo      LedgerRepository
	resolver  PlanResolver
	dedup     Cache
	publisher Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
	dedupTTL  time.Duration
}

// New создает сервис. dedup, publisher и m могут быть nil.
func New(log *slog.Logger, repo LedgerRepository, resolver PlanResolver, dedup Cache,
	publisher Publisher, m *metrics.Metrics, dedupTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		dedup:     dedup,
		publisher: publisher,
		metrics:   m,
		log:       log,
		dedupTTL:  dedupTTL,
	}
}

// ProcessEvent применяет событие к балансу. Каждая доставка обрабатывается
// независимо. События, которые нельзя сопоставить аккаунту или плану,
// подтверждаются без изменений, чтобы провайдер не повторял их бесконечно.
// Ошибка возвращается только при сбое хранилища: провайдер повторит доставку.
func (s *Service) ProcessEvent(ctx context.Context, ev *paddle.Event) (Outcome, error) {
	const op = "payment.ProcessEvent"

	log := s.log.With(
		slog.String("op", op),
		slog.String("event_id", ev.EventID),
		slog.String("event_type", ev.EventType),
	)

	if ev.EventType != paddle.EventTransactionCompleted && !ev.IsSubscriptionEvent() {
		log.Debug("event type ignored")
		return s.done(ev, OutcomeIgnored), nil
	}

	accountID := ev.AccountID()
	if accountID == "" {
		log.Warn("event has no account id in custom_data, ignored")
		return s.done(ev, OutcomeNoAccount), nil
	}
	log = log.With(sl.Account(accountID))

	if s.seen(ctx, log, ev.EventID) {
		log.Info("duplicate delivery acknowledged")
		return s.done(ev, OutcomeDuplicate), nil
	}

	var (
		outcome Outcome
		err     error
	)
	if ev.EventType == paddle.EventTransactionCompleted {
		outcome, err = s.grant(ctx, log, ev, accountID)
	} else {
		outcome, err = s.mirror(ctx, log, ev, accountID)
	}
	if err != nil {
		s.metrics.ObserveWebhook(ev.EventType, metrics.WebhookFailed)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if outcome == OutcomeGranted || outcome == OutcomeMirrored {
		s.remember(ctx, log, ev.EventID)
	}
	return s.done(ev, outcome), nil
}

func (s *Service) grant(ctx context.Context, log *slog.Logger, ev *paddle.Event, accountID string) (Outcome, error) {
	priceID := ev.PriceID()
	plan, ok := s.resolver.ResolvePlan(priceID)
	if !ok {
		log.Warn("price id does not map to a plan, ignored", slog.String("price_id", priceID))
		return OutcomeUnresolved, nil
	}

	credits := billing.CreditsForPlan(plan)
	if err := s.repo.SetPlanAndCredits(ctx, accountID, plan, credits); err != nil {
		return "", err
	}
	s.invalidateLedger(ctx, log, accountID)
	log.Info("credits granted", slog.String("plan_id", string(plan)), slog.Int64("credits", credits))

	if s.publisher != nil {
		occurred := ev.OccurredAt
		if occurred.IsZero() {
			occurred = time.Now().UTC()
		}
		err := s.publisher.PublishGrant(context.WithoutCancel(ctx), models.CreditsGranted{
			EventID:    ev.EventID,
			AccountID:  accountID,
			PlanID:     plan,
			Credits:    credits,
			PriceID:    priceID,
			OccurredAt: occurred,
		})
		if err != nil {
			log.Warn("failed to publish grant event", sl.Err(err))
		}
	}
	return OutcomeGranted, nil
}

func (s *Service) mirror(ctx context.Context, log *slog.Logger, ev *paddle.Event, accountID string) (Outcome, error) {
	err := s.repo.UpdateSubscription(ctx, accountID, ev.Data.Status, ev.SubscriptionRef(),
		billing.CreditsForPlan(models.PlanFree))
	if err != nil {
		return "", err
	}
	s.invalidateLedger(ctx, log, accountID)
	log.Info("subscription status mirrored", slog.String("status", ev.Data.Status))
	return OutcomeMirrored, nil
}

// seen сообщает, применено ли событие раньше. Недоступный redis не
// блокирует обработку: повторная выдача перезаписывает баланс тем же значением.
func (s *Service) seen(ctx context.Context, log *slog.Logger, eventID string) bool {
	if s.dedup == nil || eventID == "" {
		return false
	}
	ok, err := s.dedup.Seen(ctx, cache.WebhookKey(eventID))
	if err != nil {
		log.Warn("dedupe unavailable, processing anyway", sl.Err(err))
		return false
	}
	return ok
}

// remember отмечает событие только после записи в хранилище.
func (s *Service) remember(ctx context.Context, log *slog.Logger, eventID string) {
	if s.dedup == nil || eventID == "" {
		return
	}
	if err := s.dedup.Remember(context.WithoutCancel(ctx), cache.WebhookKey(eventID), s.dedupTTL); err != nil {
		log.Warn("failed to remember processed event", sl.Err(err))
	}
}

func (s *Service) invalidateLedger(ctx context.Context, log *slog.Logger, accountID string) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.Invalidate(context.WithoutCancel(ctx), cache.LedgerKey(accountID)); err != nil {
		log.Warn("failed to invalidate ledger cache", sl.Err(err))
	}
}

func (s *Service) done(ev *paddle.Event, outcome Outcome) Outcome {
	s.metrics.ObserveWebhook(ev.EventType, string(outcome))
	return outcome
}
