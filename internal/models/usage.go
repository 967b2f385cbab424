package models

import "time"

// Mode режим обработки изображений.
type Mode string

const (
	// ModeFast быстрый режим, 1 кредит за изображение.
	ModeFast Mode = "fast"
	// ModeQuality качественный режим, 2 кредита за изображение.
	ModeQuality Mode = "quality"
)

// UsageEvent запись о списании кредитов. Неизменяема после записи,
// CreditsSpent = ImagesCount × (2 для quality, иначе 1).
type UsageEvent struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"accountId"`
	PlanID       PlanID    `json:"planId"`
	Mode         Mode      `json:"mode"`
	ImagesCount  int       `json:"imagesCount"`
	CreditsSpent int64     `json:"creditsSpent"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ConsumeResult результат успешного списания.
type ConsumeResult struct {
	PlanID           PlanID `json:"planId"`
	CreditsRemaining int64  `json:"creditsRemaining"`
	Cost             int64  `json:"cost"`
	Mode             Mode   `json:"mode"`
}
