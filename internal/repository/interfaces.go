package repository

import (
	"context"
	"errors"
	"time"

	"cardshop-bot/internal/model"

	"github.com/shopspring/decimal"
)

// ErrInsufficientBalance is returned by Debit when the account cannot cover
// the amount. The balance is left unchanged, never clamped.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrChargeNotFound is returned when a payment charge id is unknown.
var ErrChargeNotFound = errors.New("charge not found")

// LedgerRepository tracks per-user balances. Accounts are created lazily
// with a zero balance on first access.
type LedgerRepository interface {
	// Balance returns the user's balance, creating the account if needed.
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)

	// SetBalance overwrites the user's balance.
	SetBalance(ctx context.Context, userID int64, amount decimal.Decimal) error

	// Credit adds amount to the balance and returns the new balance.
	Credit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)

	// Debit subtracts amount from the balance and returns the new balance.
	// Fails with ErrInsufficientBalance without any state change.
	Debit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// HistoryRepository is the append-only per-user purchase log.
type HistoryRepository interface {
	// Append records a completed purchase.
	Append(ctx context.Context, p model.Purchase) error

	// ListByUser returns a user's purchases, newest first.
	ListByUser(ctx context.Context, userID int64) ([]model.Purchase, error)

	// FindCode returns the first purchase of a code across all users, or
	// nil when no one ever bought it.
	FindCode(ctx context.Context, code string) (*model.Purchase, error)

	// AllCodes returns every code present in any user's history, used to
	// derive the sold set on restart.
	AllCodes(ctx context.Context) ([]string, error)
}

// SoldCodeRepository is the global set of codes ever sold.
type SoldCodeRepository interface {
	// Add inserts a code into the sold set. Adding twice is a no-op.
	Add(ctx context.Context, code string) error

	// Contains reports whether the code was ever sold.
	Contains(ctx context.Context, code string) (bool, error)

	// List returns all sold codes in lexicographic order.
	List(ctx context.Context) ([]string, error)
}

// PaymentRepository stores funding charges created against the payment
// gateway and guards their status transitions.
type PaymentRepository interface {
	// SaveCharge persists a new charge.
	SaveCharge(ctx context.Context, c model.Charge) error

	// GetCharge returns a charge by id, or ErrChargeNotFound.
	GetCharge(ctx context.Context, id string) (*model.Charge, error)

	// MarkCompleted transitions a charge from pending to completed.
	// Returns true only for the transition that actually happened, so a
	// re-delivered confirmation for the same charge id credits once.
	MarkCompleted(ctx context.Context, id string) (bool, error)

	// MarkFailed transitions a charge from pending to failed.
	MarkFailed(ctx context.Context, id string) error

	// ExpirePending marks pending charges past their expiry and returns
	// how many were expired.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// Store bundles every repository backed by the same database.
type Store interface {
	LedgerRepository
	HistoryRepository
	SoldCodeRepository
	PaymentRepository

	// Close closes the underlying connection.
	Close() error
}
