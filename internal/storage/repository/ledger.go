package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/cleancut/internal/models"
)

const ledgerColumns = `account_id, COALESCE(email, ''), plan_id, credits_remaining,
		last_reset_at, subscription_status, subscription_id, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(row rowScanner) (*models.Ledger, error) {
	var (
		l         models.Ledger
		plan      string
		lastReset sql.NullTime
		subStatus sql.NullString
		subID     sql.NullString
	)
	if err := row.Scan(&l.AccountID, &l.Email, &plan, &l.CreditsRemaining,
		&lastReset, &subStatus, &subID, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.PlanID = models.PlanID(plan)
	l.Initialized = true
	if lastReset.Valid {
		t := lastReset.Time
		l.LastResetAt = &t
	}
	if subStatus.Valid {
		v := subStatus.String
		l.SubscriptionStatus = &v
	}
	if subID.Valid {
		v := subID.String
		l.SubscriptionID = &v
	}
	return &l, nil
}

// GetLedger возвращает строку баланса аккаунта или models.ErrLedgerNotFound.
func (s *Storage) GetLedger(ctx context.Context, accountID string) (*models.Ledger, error) {
	const op = "storage.GetLedger"

	query := `SELECT ` + ledgerColumns + ` FROM credit_ledgers WHERE account_id = $1`
	l, err := scanLedger(s.DB.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrLedgerNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

// InitLedger создаёт строку на бесплатном плане, если её ещё нет.
// Существующая строка не перезаписывается; created сообщает, была ли вставка.
func (s *Storage) InitLedger(ctx context.Context, accountID, email string, credits int64) (bool, error) {
	const op = "storage.InitLedger"

	query := `INSERT INTO credit_ledgers (account_id, email, plan_id, credits_remaining)
			  VALUES ($1, NULLIF($2, ''), $3, $4)
			  ON CONFLICT (account_id) DO NOTHING`
	res, err := s.DB.ExecContext(ctx, query, accountID, email, string(models.PlanFree), credits)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// SetPlanAndCredits безусловно выставляет план и полный объём кредитов,
// last_reset_at = now(). Остаток не переносится. Строка создаётся, если её нет.
func (s *Storage) SetPlanAndCredits(ctx context.Context, accountID string, plan models.PlanID, credits int64) error {
	const op = "storage.SetPlanAndCredits"

	query := `INSERT INTO credit_ledgers (account_id, plan_id, credits_remaining, last_reset_at)
			  VALUES ($1, $2, $3, now())
			  ON CONFLICT (account_id) DO UPDATE
			  SET plan_id = EXCLUDED.plan_id,
			      credits_remaining = EXCLUDED.credits_remaining,
			      last_reset_at = now(),
			      updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query, accountID, string(plan), credits); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateSubscription перезаписывает только статус и id подписки.
// Если строки нет, она создаётся на бесплатном плане с defaultCredits.
func (s *Storage) UpdateSubscription(ctx context.Context, accountID, status, subscriptionID string, defaultCredits int64) error {
	const op = "storage.UpdateSubscription"

	query := `INSERT INTO credit_ledgers (account_id, plan_id, credits_remaining,
			      subscription_status, subscription_id)
			  VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
			  ON CONFLICT (account_id) DO UPDATE
			  SET subscription_status = EXCLUDED.subscription_status,
			      subscription_id = COALESCE(EXCLUDED.subscription_id, credit_ledgers.subscription_id),
			      updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query, accountID, string(models.PlanFree), defaultCredits,
		status, subscriptionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MutateLedger блокирует строку (SELECT ... FOR UPDATE), передаёт её копию в
// mutate и сохраняет результат в той же транзакции. Возвращает состояния
// до и после. Если строки нет, возвращается models.ErrLedgerNotFound.
func (s *Storage) MutateLedger(ctx context.Context, accountID string,
	mutate func(l *models.Ledger) error) (prev, next *models.Ledger, err error) {
	const op = "storage.MutateLedger"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `SELECT ` + ledgerColumns + ` FROM credit_ledgers WHERE account_id = $1 FOR UPDATE`
	prev, err = scanLedger(tx.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%s: %w", op, models.ErrLedgerNotFound)
		}
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	updated := *prev
	if err = mutate(&updated); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	update := `UPDATE credit_ledgers
			   SET plan_id = $2, credits_remaining = $3, last_reset_at = $4, updated_at = now()
			   WHERE account_id = $1
			   RETURNING ` + ledgerColumns
	next, err = scanLedger(tx.QueryRowContext(ctx, update, accountID,
		string(updated.PlanID), updated.CreditsRemaining, updated.LastResetAt))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return prev, next, nil
}

// consumeAttempts сколько раз UPDATE повторяется, если повторное чтение
// показало достаточный остаток.
const consumeAttempts = 3

// Consume атомарно списывает стоимость обработки imageCount изображений.
// Режим и стоимость вычисляются из плана в самой строке (quality только для
// платных планов, 2 кредита за изображение), проверка остатка и вычитание
// выполняются одним UPDATE. При нехватке возвращается
// *models.InsufficientCreditsError, остаток не меняется.
func (s *Storage) Consume(ctx context.Context, accountID string, imageCount int, quality bool) (*models.Ledger, error) {
	const op = "storage.Consume"

	query := `UPDATE credit_ledgers
			  SET credits_remaining = credits_remaining -
			          $2::bigint * (CASE WHEN $3::boolean AND plan_id <> 'free' THEN 2 ELSE 1 END),
			      updated_at = now()
			  WHERE account_id = $1
			    AND credits_remaining >=
			          $2::bigint * (CASE WHEN $3::boolean AND plan_id <> 'free' THEN 2 ELSE 1 END)
			  RETURNING ` + ledgerColumns

	for attempt := 0; attempt < consumeAttempts; attempt++ {
		l, err := scanLedger(s.DB.QueryRowContext(ctx, query, accountID, int64(imageCount), quality))
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		// Строки нет либо не хватило кредитов; различаем повторным чтением.
		current, err := s.GetLedger(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		required := int64(imageCount)
		if quality && current.PlanID != models.PlanFree {
			required *= 2
		}
		if current.CreditsRemaining < required {
			return nil, fmt.Errorf("%s: %w", op, &models.InsufficientCreditsError{
				Required:  required,
				Available: current.CreditsRemaining,
			})
		}
		// Между UPDATE и чтением баланс пополнили: списываем заново.
	}
	return nil, fmt.Errorf("%s: ledger %s changed concurrently", op, accountID)
}
