package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testCustomer = Customer{
	Name:  "Cliente",
	Email: "user_1@example.com",
	Phone: "11999999999",
	Document: Document{
		Number: "00000000000",
		Type:   "cpf",
	},
}

func TestCreateCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions" {
			t.Errorf("path = %s, want /transactions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Basic ") {
			t.Errorf("missing basic auth header, got %q", got)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req["amount"].(float64) != 5000 {
			t.Errorf("amount = %v, want 5000", req["amount"])
		}
		if req["paymentMethod"] != "pix" {
			t.Errorf("paymentMethod = %v, want pix", req["paymentMethod"])
		}
		if req["webhook"].(map[string]any)["url"] != "https://bot.example.com/webhook/payments" {
			t.Errorf("webhook = %v", req["webhook"])
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "ch_abc",
			"status": "waiting_payment",
			"pix": map[string]any{
				"qrcode": "000201qrpayload",
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	charge, err := client.CreateCharge(context.Background(), 5000, "Recarga", testCustomer,
		"https://bot.example.com/webhook/payments")
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if charge.ID != "ch_abc" || charge.Pix.QRCode != "000201qrpayload" {
		t.Errorf("unexpected charge: %+v", charge)
	}
}

func TestCreateChargeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid amount"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	_, err := client.CreateCharge(context.Background(), 0, "", testCustomer, "")
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}

	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if gwErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", gwErr.Status)
	}
}

func TestCreateChargeMissingPixData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "ch_abc", "status": "waiting_payment"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	if _, err := client.CreateCharge(context.Background(), 100, "", testCustomer, ""); err == nil {
		t.Fatal("expected error for response without pix data")
	}
}

func TestGetChargeStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/charges/ch_abc" {
			t.Errorf("path = %s, want /charges/ch_abc", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "PAID"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test")
	status, err := client.GetChargeStatus(context.Background(), "ch_abc")
	if err != nil {
		t.Fatalf("GetChargeStatus: %v", err)
	}
	if status != "PAID" {
		t.Errorf("status = %s, want PAID", status)
	}
}
