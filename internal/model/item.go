package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item represents a single sellable inventory code parsed from the catalog.
type Item struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype"`
	Code      string          `json:"code"`
	Available bool            `json:"available"`
	Price     decimal.Decimal `json:"price"`
	// Raw is the original catalog block, kept verbatim for display.
	Raw string `json:"raw"`
}

// Purchase is the snapshot of an item appended to a user's history.
type Purchase struct {
	Item
	UserID      int64           `json:"user_id"`
	PurchasedAt time.Time       `json:"purchased_at"`
	PricePaid   decimal.Decimal `json:"price_paid"`
}

// Snapshot copies an item into a purchase record.
func (i Item) Snapshot(userID int64, price decimal.Decimal, at time.Time) Purchase {
	return Purchase{
		Item:        i,
		UserID:      userID,
		PurchasedAt: at,
		PricePaid:   price,
	}
}
