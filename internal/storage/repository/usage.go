package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/cleancut/internal/models"
)

// SaveUsageEvent добавляет запись о списании.
func (s *Storage) SaveUsageEvent(ctx context.Context, ev *models.UsageEvent) error {
	const op = "storage.SaveUsageEvent"

	query := `INSERT INTO usage_events (id, account_id, plan_id, mode, images_count, credits_spent, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.DB.ExecContext(ctx, query, ev.ID, ev.AccountID, string(ev.PlanID),
		string(ev.Mode), ev.ImagesCount, ev.CreditsSpent, ev.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListUsageEvents возвращает записи аккаунта, новые первыми, с пагинацией.
func (s *Storage) ListUsageEvents(ctx context.Context, accountID string, limit, offset int) ([]*models.UsageEvent, error) {
	const op = "storage.ListUsageEvents"

	query := `SELECT id, account_id, plan_id, mode, images_count, credits_spent, created_at
			  FROM usage_events
			  WHERE account_id = $1
			  ORDER BY created_at DESC, id
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.UsageEvent, 0, limit)
	for rows.Next() {
		var (
			ev         models.UsageEvent
			plan, mode string
		)
		if err := rows.Scan(&ev.ID, &ev.AccountID, &plan, &mode, &ev.ImagesCount,
			&ev.CreditsSpent, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ev.PlanID = models.PlanID(plan)
		ev.Mode = models.Mode(mode)
		result = append(result, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
