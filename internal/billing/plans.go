// Package billing описывает тарифные планы: объём кредитов каждого плана,
// соответствие price id провайдера оплаты планам и правила расчёта стоимости.
package billing

import "github.com/magabrotheeeer/cleancut/internal/models"

// planCredits единственный источник объёма кредитов для планов.
var planCredits = map[models.PlanID]int64{
	models.PlanFree:       30,
	models.PlanProMonthly: 1000,
	models.PlanLifetime:   200,
}

// CreditsForPlan возвращает полный объём кредитов плана.
// Для неизвестного плана возвращается объём бесплатного.
func CreditsForPlan(plan models.PlanID) int64 {
	if c, ok := planCredits[plan]; ok {
		return c
	}
	return planCredits[models.PlanFree]
}

// ModeFor вычисляет фактический режим: quality доступен только на платных планах.
func ModeFor(plan models.PlanID, qualityRequested bool) models.Mode {
	if qualityRequested && plan != models.PlanFree {
		return models.ModeQuality
	}
	return models.ModeFast
}

// Cost стоимость обработки imageCount изображений в режиме mode.
func Cost(mode models.Mode, imageCount int) int64 {
	if mode == models.ModeQuality {
		return int64(imageCount) * 2
	}
	return int64(imageCount)
}
