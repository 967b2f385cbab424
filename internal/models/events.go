package models

import "time"

// UsageRecorded сообщение о зафиксированном списании.
type UsageRecorded struct {
	EventID          string    `json:"eventId"`
	AccountID        string    `json:"accountId"`
	PlanID           PlanID    `json:"planId"`
	Mode             Mode      `json:"mode"`
	ImagesCount      int       `json:"imagesCount"`
	CreditsSpent     int64     `json:"creditsSpent"`
	CreditsRemaining int64     `json:"creditsRemaining"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// CreditsGranted сообщение о выдаче кредитов после оплаты.
type CreditsGranted struct {
	EventID    string    `json:"eventId"`
	AccountID  string    `json:"accountId"`
	PlanID     PlanID    `json:"planId"`
	Credits    int64     `json:"credits"`
	PriceID    string    `json:"priceId"`
	OccurredAt time.Time `json:"occurredAt"`
}
