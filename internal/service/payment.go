package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cardshop-bot/internal/gateway"
	"cardshop-bot/internal/model"
	"cardshop-bot/internal/repository"
	"cardshop-bot/pkg/uid"

	"github.com/shopspring/decimal"
)

// Funding amount bounds, in whole currency units.
var (
	minFundingAmount = decimal.NewFromInt(1)
	maxFundingAmount = decimal.NewFromInt(1000)
)

// Funding validation errors.
var (
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountTooSmall    = errors.New("amount below the minimum of 1.00")
	ErrAmountTooLarge    = errors.New("amount above the maximum of 1000.00")
)

// chargeExpiry matches the gateway's one-day PIX validity.
const chargeExpiry = 24 * time.Hour

// confirmation statuses delivered by the gateway webhook.
var (
	paidStatuses   = map[string]bool{"PAID": true, "APPROVED": true, "COMPLETED": true, "SUCCESS": true}
	failedStatuses = map[string]bool{"FAILED": true, "CANCELLED": true, "REJECTED": true}
)

// Payments creates funding charges and applies gateway confirmations to
// user balances.
type Payments struct {
	gateway    *gateway.Client
	pixKey     gateway.PixKey
	charges    repository.PaymentRepository
	ledger     repository.LedgerRepository
	webhookURL string
}

// NewPayments creates the payments service. The gateway client may be nil;
// funding then always uses the local PIX payload fallback.
func NewPayments(
	gw *gateway.Client,
	pixKey gateway.PixKey,
	charges repository.PaymentRepository,
	ledger repository.LedgerRepository,
	webhookURL string,
) *Payments {
	return &Payments{
		gateway:    gw,
		pixKey:     pixKey,
		charges:    charges,
		ledger:     ledger,
		webhookURL: webhookURL,
	}
}

// CreateFunding opens a PIX charge so the user can fund their balance.
// Gateway failure degrades to a locally built PIX payload; it is never
// retried and never credits anything by itself.
func (p *Payments) CreateFunding(ctx context.Context, userID int64, amount decimal.Decimal, description string) (*model.Charge, error) {
	if !amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}
	if amount.LessThan(minFundingAmount) {
		return nil, ErrAmountTooSmall
	}
	if amount.GreaterThan(maxFundingAmount) {
		return nil, ErrAmountTooLarge
	}
	if description == "" {
		description = "Recarga de Saldo"
	}

	now := time.Now()
	charge := &model.Charge{
		UserID:      userID,
		Amount:      amount,
		Description: description,
		Status:      model.ChargeStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(chargeExpiry),
	}

	if p.gateway != nil {
		cents := amount.Mul(decimal.NewFromInt(100)).IntPart()
		gwCharge, err := p.gateway.CreateCharge(ctx, cents, description, p.customerFor(userID), p.webhookURL)
		if err == nil {
			charge.ID = gwCharge.ID
			charge.QRCode = gwCharge.Pix.QRCode
		} else {
			log.Printf("[Payments] Gateway charge failed, using local PIX payload: %v", err)
		}
	}

	if charge.ID == "" {
		charge.ID = uid.New()
		charge.QRCode = p.pixKey.BuildPixPayload(amount, description, charge.ID)
	}

	if err := p.charges.SaveCharge(ctx, *charge); err != nil {
		log.Printf("[Payments] Failed to persist charge %s: %v", charge.ID, err)
	}
	return charge, nil
}

// customerFor fills the provider's required customer fields with
// placeholder contact data keyed to the user id.
func (p *Payments) customerFor(userID int64) gateway.Customer {
	return gateway.Customer{
		Name:  "Cliente",
		Email: fmt.Sprintf("user_%d@example.com", userID),
		Phone: "11999999999",
		Document: gateway.Document{
			Number: "00000000000",
			Type:   "cpf",
		},
	}
}

// Confirm applies a payment confirmation to the charge it references.
// Crediting is idempotent per charge id: only the transition from pending
// to completed credits the balance, so a re-delivered confirmation is a
// no-op.
func (p *Payments) Confirm(ctx context.Context, chargeID, status string) error {
	charge, err := p.charges.GetCharge(ctx, chargeID)
	if err != nil {
		return err
	}

	normalized := strings.ToUpper(strings.TrimSpace(status))
	switch {
	case paidStatuses[normalized]:
		completed, err := p.charges.MarkCompleted(ctx, chargeID)
		if err != nil {
			return err
		}
		if !completed {
			log.Printf("[Payments] Charge %s already processed, skipping credit", chargeID)
			return nil
		}
		balance, err := p.ledger.Credit(ctx, charge.UserID, charge.Amount)
		if err != nil {
			return err
		}
		log.Printf("[Payments] Credited %s to user %d, new balance %s", charge.Amount, charge.UserID, balance)
		return nil

	case failedStatuses[normalized]:
		log.Printf("[Payments] Charge %s failed with status %s", chargeID, status)
		return p.charges.MarkFailed(ctx, chargeID)

	default:
		log.Printf("[Payments] Charge %s: ignoring status %s", chargeID, status)
		return nil
	}
}
