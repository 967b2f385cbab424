// Package services содержит бизнес-логику баланса кредитов: чтение и
// инициализацию строки баланса, атомарное списание и административные изменения.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/cleancut/internal/billing"
	"github.com/magabrotheeeer/cleancut/internal/cache"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/metrics"
	"github.com/magabrotheeeer/cleancut/internal/models"
)

// Repository определяет методы хранилища баланса.
type Repository interface {
	// GetLedger возвращает строку баланса или models.ErrLedgerNotFound.
	GetLedger(ctx context.Context, accountID string) (*models.Ledger, error)
	// InitLedger создаёт строку, если её нет; created сообщает о вставке.
	InitLedger(ctx context.Context, accountID, email string, credits int64) (bool, error)
	// MutateLedger применяет mutate к заблокированной строке.
	MutateLedger(ctx context.Context, accountID string, mutate func(l *models.Ledger) error) (prev, next *models.Ledger, err error)
	// Consume атомарно списывает стоимость обработки.
	Consume(ctx context.Context, accountID string, imageCount int, quality bool) (*models.Ledger, error)
	// SaveUsageEvent сохраняет запись о списании.
	SaveUsageEvent(ctx context.Context, ev *models.UsageEvent) error
	// ListUsageEvents возвращает записи о списаниях, новые первыми.
	ListUsageEvents(ctx context.Context, accountID string, limit, offset int) ([]*models.UsageEvent, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	// Generation и SetIfGeneration не дают положить в кэш строку,
	// прочитанную до параллельной записи.
	Generation(ctx context.Context, key string) (int64, error)
	SetIfGeneration(ctx context.Context, key string, value any, expiration time.Duration, gen int64) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Publisher публикует события о списаниях.
type Publisher interface {
	PublishUsage(ctx context.Context, msg models.UsageRecorded) error
}

// CreditService реализует операции над балансом кредитов.
type CreditService struct {
	repo      Repository
	cache     Cache
	publisher Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
	ledgerTTL time.Duration
	now       func() time.Time
}

// NewCreditService создает новый экземпляр CreditService.
// publisher и m могут быть nil.
func NewCreditService(repo Repository, cache Cache, publisher Publisher, m *metrics.Metrics,
	log *slog.Logger, ledgerTTL time.Duration) *CreditService {
	return &CreditService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		log:       log,
		ledgerTTL: ledgerTTL,
		now:       time.Now,
	}
}

// GetLedger возвращает строку баланса, читая через кэш. Для аккаунта без
// строки возвращается нулевая строка с Initialized=false, а не ошибка.
func (s *CreditService) GetLedger(ctx context.Context, accountID string) (*models.Ledger, error) {
	const op = "services.GetLedger"

	key := cache.LedgerKey(accountID)
	var cached models.Ledger
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read ledger from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	// Поколение читается до хранилища: инвалидация между чтением и
	// заполнением кэша отменит заполнение.
	gen, genErr := s.cache.Generation(ctx, key)
	if genErr != nil {
		s.log.Warn("failed to read ledger cache generation", slog.String("key", key), sl.Err(genErr))
	}

	l, err := s.repo.GetLedger(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrLedgerNotFound) {
			return models.EmptyLedger(accountID), nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if genErr == nil {
		stored, err := s.cache.SetIfGeneration(ctx, key, l, s.ledgerTTL, gen)
		if err != nil {
			s.log.Warn("failed to add ledger to cache", slog.String("key", key), sl.Err(err))
		} else if !stored {
			s.log.Debug("ledger changed while reading, cache fill skipped", slog.String("key", key))
		}
	}
	return l, nil
}

// FindLedger возвращает строку баланса из хранилища или models.ErrLedgerNotFound.
func (s *CreditService) FindLedger(ctx context.Context, accountID string) (*models.Ledger, error) {
	const op = "services.FindLedger"
	l, err := s.repo.GetLedger(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

// InitLedger создаёт строку на бесплатном плане, если её ещё нет.
func (s *CreditService) InitLedger(ctx context.Context, accountID, email string) (bool, error) {
	const op = "services.InitLedger"

	created, err := s.repo.InitLedger(ctx, accountID, email, billing.CreditsForPlan(models.PlanFree))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if created {
		s.log.Info("ledger initialized", sl.Account(accountID))
		s.invalidate(ctx, accountID)
	}
	return created, nil
}

// EnsureLedger инициализирует строку пользователя при первом обращении и возвращает её.
func (s *CreditService) EnsureLedger(ctx context.Context, id models.Identity) (*models.Ledger, error) {
	const op = "services.EnsureLedger"
	if _, err := s.InitLedger(ctx, id.AccountID, id.Email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.GetLedger(ctx, id.AccountID)
}

// Consume списывает стоимость обработки imageCount изображений.
// Аккаунт без строки инициализируется, и списание повторяется один раз.
// Запись в историю и публикация события не влияют на результат списания.
func (s *CreditService) Consume(ctx context.Context, accountID string, imageCount int, quality bool) (*models.ConsumeResult, error) {
	const op = "services.Consume"

	if imageCount <= 0 {
		s.metrics.ObserveConsume(metrics.ConsumeInvalid)
		return nil, fmt.Errorf("%s: imageCount must be positive: %w", op, models.ErrInvalidArgument)
	}

	l, err := s.repo.Consume(ctx, accountID, imageCount, quality)
	if errors.Is(err, models.ErrLedgerNotFound) {
		if _, initErr := s.InitLedger(ctx, accountID, ""); initErr != nil {
			s.metrics.ObserveConsume(metrics.ConsumeError)
			return nil, fmt.Errorf("%s: %w", op, initErr)
		}
		l, err = s.repo.Consume(ctx, accountID, imageCount, quality)
	}
	if err != nil {
		if errors.Is(err, models.ErrInsufficientCredits) {
			s.metrics.ObserveConsume(metrics.ConsumeInsufficient)
		} else {
			s.metrics.ObserveConsume(metrics.ConsumeError)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mode := billing.ModeFor(l.PlanID, quality)
	cost := billing.Cost(mode, imageCount)
	s.invalidate(ctx, accountID)
	s.metrics.ObserveConsume(metrics.ConsumeOK)
	s.metrics.AddCreditsSpent(string(mode), cost)

	s.recordUsage(ctx, &models.UsageEvent{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		PlanID:       l.PlanID,
		Mode:         mode,
		ImagesCount:  imageCount,
		CreditsSpent: cost,
		CreatedAt:    s.now().UTC(),
	}, l.CreditsRemaining)

	return &models.ConsumeResult{
		PlanID:           l.PlanID,
		CreditsRemaining: l.CreditsRemaining,
		Cost:             cost,
		Mode:             mode,
	}, nil
}

func (s *CreditService) recordUsage(ctx context.Context, ev *models.UsageEvent, remaining int64) {
	// Списание уже зафиксировано, отмена запроса не должна терять историю.
	ctx = context.WithoutCancel(ctx)

	if err := s.repo.SaveUsageEvent(ctx, ev); err != nil {
		s.log.Error("failed to save usage event", sl.Account(ev.AccountID), sl.Err(err))
	}
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishUsage(ctx, models.UsageRecorded{
		EventID:          ev.ID,
		AccountID:        ev.AccountID,
		PlanID:           ev.PlanID,
		Mode:             ev.Mode,
		ImagesCount:      ev.ImagesCount,
		CreditsSpent:     ev.CreditsSpent,
		CreditsRemaining: remaining,
		OccurredAt:       ev.CreatedAt,
	})
	if err != nil {
		s.log.Warn("failed to publish usage event", sl.Account(ev.AccountID), sl.Err(err))
	}
}

// ListUsage возвращает историю списаний аккаунта.
func (s *CreditService) ListUsage(ctx context.Context, accountID string, limit, offset int) ([]*models.UsageEvent, error) {
	const op = "services.ListUsage"
	if limit <= 0 || offset < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidArgument)
	}
	events, err := s.repo.ListUsageEvents(ctx, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

// ValidateAdminMutation проверяет действие и сумму:
// amount > 0 для add и deduct, amount >= 0 для set, для set_plan обязателен план.
func ValidateAdminMutation(m models.AdminMutation) error {
	if m.PlanID != nil && !m.PlanID.Valid() {
		return fmt.Errorf("unknown plan %q: %w", *m.PlanID, models.ErrInvalidArgument)
	}
	switch m.Action {
	case models.AdminAdd, models.AdminDeduct:
		if m.Amount <= 0 {
			return fmt.Errorf("amount must be positive for %s: %w", m.Action, models.ErrInvalidArgument)
		}
	case models.AdminSet:
		if m.Amount < 0 {
			return fmt.Errorf("amount must not be negative for set: %w", models.ErrInvalidArgument)
		}
	case models.AdminSetPlan:
		if m.PlanID == nil {
			return fmt.Errorf("planId is required for set_plan: %w", models.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%q: %w", m.Action, models.ErrUnknownAction)
	}
	return nil
}

// ApplyAdminAction применяет административное изменение к существующей строке
// и возвращает состояние до и после. Если строки нет, models.ErrLedgerNotFound.
func (s *CreditService) ApplyAdminAction(ctx context.Context, accountID string, m models.AdminMutation) (*models.AdminResult, error) {
	const op = "services.ApplyAdminAction"

	if err := ValidateAdminMutation(m); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	prev, next, err := s.repo.MutateLedger(ctx, accountID, func(l *models.Ledger) error {
		applyMutation(l, m, s.now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, accountID)
	s.metrics.ObserveAdminAction(string(m.Action))

	s.log.Info("admin action applied",
		sl.Account(accountID),
		slog.String("action", string(m.Action)),
		slog.Int64("amount", m.Amount),
		slog.Int64("previous", prev.CreditsRemaining),
		slog.Int64("next", next.CreditsRemaining),
	)

	return &models.AdminResult{
		AccountID: accountID,
		Previous:  prev.Balance(),
		Next:      next.Balance(),
	}, nil
}

func applyMutation(l *models.Ledger, m models.AdminMutation, now time.Time) {
	switch m.Action {
	case models.AdminAdd:
		l.CreditsRemaining += m.Amount
	case models.AdminDeduct:
		l.CreditsRemaining = max(0, l.CreditsRemaining-m.Amount)
	case models.AdminSet:
		l.CreditsRemaining = m.Amount
	case models.AdminSetPlan:
		l.PlanID = *m.PlanID
		l.CreditsRemaining = billing.CreditsForPlan(*m.PlanID)
		reset := now.UTC()
		l.LastResetAt = &reset
		return
	}
	if m.PlanID != nil {
		l.PlanID = *m.PlanID
	}
}

func (s *CreditService) invalidate(ctx context.Context, accountID string) {
	key := cache.LedgerKey(accountID)
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("failed to invalidate ledger cache", slog.String("key", key), sl.Err(err))
	}
}
