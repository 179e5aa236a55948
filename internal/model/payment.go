package model

import "time"

// PaymentStatus mirrors the billing authority's settlement states.
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentFailed PaymentStatus = "failed"
)

// Payment is one recorded billing event for a Firebase identity. A user has
// an active plan when at least one payment with status "paid" exists.
type Payment struct {
	ID          int64         `json:"id"`
	FirebaseUID string        `json:"firebase_uid"`
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`
	Reference   string        `json:"reference"`
	CreatedAt   time.Time     `json:"created_at"`
}
