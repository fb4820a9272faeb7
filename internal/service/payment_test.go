package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"cardshop-bot/internal/gateway"
	"cardshop-bot/internal/repository"
)

func newTestPayments(t *testing.T) (*Payments, *repository.SQLiteStore) {
	t.Helper()

	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pixKey := gateway.PixKey{Key: "loja@example.com", Receiver: "Loja", City: "SAO PAULO"}
	return NewPayments(nil, pixKey, store, store, ""), store
}

func TestCreateFundingBounds(t *testing.T) {
	payments, _ := newTestPayments(t)
	ctx := context.Background()

	cases := []struct {
		amount string
		want   error
	}{
		{"0", ErrAmountNotPositive},
		{"-5", ErrAmountNotPositive},
		{"0.50", ErrAmountTooSmall},
		{"1000.01", ErrAmountTooLarge},
	}
	for _, tc := range cases {
		_, err := payments.CreateFunding(ctx, 1, dec(tc.amount), "")
		if !errors.Is(err, tc.want) {
			t.Errorf("CreateFunding(%s) = %v, want %v", tc.amount, err, tc.want)
		}
	}

	// Boundary values are accepted.
	for _, amount := range []string{"1", "1000"} {
		if _, err := payments.CreateFunding(ctx, 1, dec(amount), ""); err != nil {
			t.Errorf("CreateFunding(%s) = %v, want nil", amount, err)
		}
	}
}

func TestCreateFundingLocalPayload(t *testing.T) {
	payments, store := newTestPayments(t)
	ctx := context.Background()

	charge, err := payments.CreateFunding(ctx, 7, dec("50"), "Recarga")
	if err != nil {
		t.Fatalf("CreateFunding: %v", err)
	}
	if charge.ID == "" {
		t.Error("charge must get a local id without a gateway")
	}
	if !strings.HasPrefix(charge.QRCode, "000201") {
		t.Errorf("expected an EMV PIX payload, got %q", charge.QRCode)
	}
	if charge.UserID != 7 || !charge.Amount.Equal(dec("50")) {
		t.Errorf("unexpected charge: %+v", charge)
	}

	// Charge is persisted as pending.
	saved, err := store.GetCharge(ctx, charge.ID)
	if err != nil {
		t.Fatalf("GetCharge: %v", err)
	}
	if saved.Status != "pending" {
		t.Errorf("saved status = %s, want pending", saved.Status)
	}
}

func TestConfirmCreditsOnce(t *testing.T) {
	payments, store := newTestPayments(t)
	ctx := context.Background()

	charge, err := payments.CreateFunding(ctx, 7, dec("50"), "")
	if err != nil {
		t.Fatalf("CreateFunding: %v", err)
	}

	if err := payments.Confirm(ctx, charge.ID, "PAID"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	bal, _ := store.Balance(ctx, 7)
	if !bal.Equal(dec("50")) {
		t.Fatalf("balance = %s, want 50", bal)
	}

	// A re-delivered confirmation for the same charge credits nothing.
	if err := payments.Confirm(ctx, charge.ID, "APPROVED"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	bal, _ = store.Balance(ctx, 7)
	if !bal.Equal(dec("50")) {
		t.Errorf("double confirmation credited again: balance = %s", bal)
	}
}

func TestConfirmStatusHandling(t *testing.T) {
	payments, store := newTestPayments(t)
	ctx := context.Background()

	charge, err := payments.CreateFunding(ctx, 7, dec("50"), "")
	if err != nil {
		t.Fatalf("CreateFunding: %v", err)
	}

	// Unrecognized status is ignored; the charge stays pending.
	if err := payments.Confirm(ctx, charge.ID, "PROCESSING"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	saved, _ := store.GetCharge(ctx, charge.ID)
	if saved.Status != "pending" {
		t.Errorf("status = %s, want pending", saved.Status)
	}

	// Failure status marks the charge and credits nothing.
	if err := payments.Confirm(ctx, charge.ID, "cancelled"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	saved, _ = store.GetCharge(ctx, charge.ID)
	if saved.Status != "failed" {
		t.Errorf("status = %s, want failed", saved.Status)
	}
	bal, _ := store.Balance(ctx, 7)
	if !bal.IsZero() {
		t.Errorf("failed charge must not credit, balance = %s", bal)
	}
}

func TestConfirmUnknownCharge(t *testing.T) {
	payments, _ := newTestPayments(t)

	err := payments.Confirm(context.Background(), "missing", "PAID")
	if !errors.Is(err, repository.ErrChargeNotFound) {
		t.Errorf("expected ErrChargeNotFound, got %v", err)
	}
}
