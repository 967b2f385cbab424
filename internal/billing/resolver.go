package billing

import (
	"strings"

	"github.com/magabrotheeeer/cleancut/internal/models"
)

// PriceResolver отображает price id провайдера оплаты в план.
// Таблица заполняется из конфигурации при старте и дальше не меняется.
type PriceResolver struct {
	prices map[string]models.PlanID
}

// NewPriceResolver создаёт резолвер по спискам price id для платных планов.
// Пустые значения пропускаются.
func NewPriceResolver(proMonthly, lifetime []string) *PriceResolver {
	prices := make(map[string]models.PlanID, len(proMonthly)+len(lifetime))
	for _, id := range proMonthly {
		if id = strings.TrimSpace(id); id != "" {
			prices[id] = models.PlanProMonthly
		}
	}
	for _, id := range lifetime {
		if id = strings.TrimSpace(id); id != "" {
			prices[id] = models.PlanLifetime
		}
	}
	return &PriceResolver{prices: prices}
}

// ResolvePlan возвращает план для price id. ok=false для нераспознанных id:
// вызывающий код должен проигнорировать событие, а не угадывать план.
func (r *PriceResolver) ResolvePlan(priceID string) (models.PlanID, bool) {
	plan, ok := r.prices[strings.TrimSpace(priceID)]
	return plan, ok
}
