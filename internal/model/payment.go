package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Charge statuses as tracked in the payments store.
const (
	ChargeStatusPending   = "pending"
	ChargeStatusCompleted = "completed"
	ChargeStatusFailed    = "failed"
	ChargeStatusExpired   = "expired"
)

// Charge represents a funding request created against the payment gateway.
type Charge struct {
	ID          string          `json:"id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	QRCode      string          `json:"qr_code"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Expired reports whether the charge is past its expiry and still pending.
func (c *Charge) Expired(now time.Time) bool {
	return c.Status == ChargeStatusPending && now.After(c.ExpiresAt)
}
