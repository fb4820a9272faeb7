package command

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardshop-bot/internal/catalog"
	"cardshop-bot/internal/gateway"
	"cardshop-bot/internal/repository"
	"cardshop-bot/internal/service"
	"cardshop-bot/internal/session"

	"github.com/shopspring/decimal"
)

const testCatalog = `codigo> AAA111BBB
tipo: Gold
subtipo: X
preço: 10,50
disponível: sim
---
codigo> BBB222CCC
tipo: Gold
subtipo: X
disponível: sim
---
`

const adminID int64 = 999

func newTestDispatcher(t *testing.T) (*Dispatcher, *repository.SQLiteStore) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.txt")
	if err := os.WriteFile(path, []byte(testCatalog), 0o644); err != nil {
		t.Fatalf("failed to write catalog fixture: %v", err)
	}

	cat := catalog.New(path)
	if err := cat.Load(); err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}

	store, err := repository.NewSQLiteStore(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sessions := session.NewMemoryStore(0)
	t.Cleanup(func() { sessions.Close() })

	shop := service.NewShop(cat, store, store, store, sessions)
	pixKey := gateway.PixKey{Key: "loja@example.com", Receiver: "Loja", City: "SAO PAULO"}
	payments := service.NewPayments(nil, pixKey, store, store, "")

	return NewDispatcher(shop, payments, store, store, []int64{adminID}), store
}

func TestBalanceCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	reply := d.Balance(ctx, Request{UserID: 1})
	if !strings.Contains(reply, "R$ 0,00") {
		t.Errorf("fresh account balance reply = %q", reply)
	}

	reply = d.Balance(ctx, Request{UserID: 1, Args: []string{"50"}})
	if !strings.Contains(reply, "R$ 50,00") {
		t.Errorf("set balance reply = %q", reply)
	}

	// Negative amounts clamp to zero.
	reply = d.Balance(ctx, Request{UserID: 1, Args: []string{"-10"}})
	if !strings.Contains(reply, "R$ 0,00") {
		t.Errorf("negative set reply = %q", reply)
	}

	reply = d.Balance(ctx, Request{UserID: 1, Args: []string{"abc"}})
	if !strings.Contains(reply, "Uso:") {
		t.Errorf("invalid amount reply = %q", reply)
	}
}

func TestSearchMasksCode(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	reply := d.SearchPrefix(ctx, Request{UserID: 1, ChatID: 10, Args: []string{"AAA"}})
	if !strings.Contains(reply, "AAA111***") {
		t.Errorf("search view must mask the code, got %q", reply)
	}
	if strings.Contains(reply, "AAA111BBB") {
		t.Errorf("full code must never appear in a search view: %q", reply)
	}
	if !strings.Contains(reply, "Visualizando 1 de 1") {
		t.Errorf("search view must show position, got %q", reply)
	}
}

func TestSearchNoResults(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	reply := d.SearchPrefix(ctx, Request{UserID: 1, ChatID: 10, Args: []string{"ZZZ"}})
	if !strings.Contains(reply, "Não há itens") {
		t.Errorf("no-result reply = %q", reply)
	}

	reply = d.SearchType(ctx, Request{UserID: 1, ChatID: 10, Args: []string{"Platinum"}})
	if !strings.Contains(reply, "Não há itens") {
		t.Errorf("no-result reply = %q", reply)
	}
}

func TestBuyRevealsCode(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	if err := store.SetBalance(ctx, 1, decimal.RequireFromString("100")); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	search := d.SearchType(ctx, Request{UserID: 1, ChatID: 10, Args: []string{"Gold"}})

	// Recover the session id from the rendered view.
	sessID := extractSessionID(t, search)

	reply := d.Buy(ctx, Request{UserID: 1, ChatID: 10}, sessID)
	if !strings.Contains(reply, "Compra realizada") {
		t.Fatalf("buy reply = %q", reply)
	}
	if !strings.Contains(reply, "AAA111BBB") {
		t.Errorf("purchase must reveal the full code, got %q", reply)
	}
	if !strings.Contains(reply, "R$ 89,50") {
		t.Errorf("purchase must show the new balance, got %q", reply)
	}
}

func TestBuyInsufficientBalance(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	search := d.SearchType(ctx, Request{UserID: 1, ChatID: 10, Args: []string{"Gold"}})
	sessID := extractSessionID(t, search)

	reply := d.Buy(ctx, Request{UserID: 1, ChatID: 10}, sessID)
	if !strings.Contains(reply, "Saldo insuficiente") {
		t.Errorf("expected insufficient balance reply, got %q", reply)
	}
}

func TestBuyExpiredSession(t *testing.T) {
	d, _ := newTestDispatcher(t)

	reply := d.Buy(context.Background(), Request{UserID: 1, ChatID: 10}, 424242)
	if !strings.Contains(reply, "Filtro expirado") {
		t.Errorf("expected expired-filter reply, got %q", reply)
	}
}

func TestSoldRequiresAdmin(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	reply := d.Sold(ctx, Request{UserID: 1})
	if !strings.Contains(reply, "administradores") {
		t.Errorf("non-admin must be rejected, got %q", reply)
	}

	if err := store.Add(ctx, "AAA111BBB"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	reply = d.Sold(ctx, Request{UserID: adminID})
	if !strings.Contains(reply, "AAA111BBB") {
		t.Errorf("admin sold report = %q", reply)
	}
}

func TestFundCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	reply := d.Fund(ctx, Request{UserID: 1, Args: []string{"0.50"}})
	if !strings.Contains(reply, "Valor mínimo") {
		t.Errorf("below-minimum reply = %q", reply)
	}

	reply = d.Fund(ctx, Request{UserID: 1, Args: []string{"2000"}})
	if !strings.Contains(reply, "Valor máximo") {
		t.Errorf("above-maximum reply = %q", reply)
	}

	reply = d.Fund(ctx, Request{UserID: 1, Args: []string{"50"}})
	if !strings.Contains(reply, "PIX gerado") || !strings.Contains(reply, "000201") {
		t.Errorf("funding reply = %q", reply)
	}
}

// extractSessionID pulls the id out of a "[sessão N]" marker in a view.
func extractSessionID(t *testing.T, view string) int64 {
	t.Helper()

	start := strings.Index(view, "[sessão ")
	if start < 0 {
		t.Fatalf("no session marker in view: %q", view)
	}
	rest := view[start+len("[sessão "):]
	end := strings.Index(rest, "]")
	if end < 0 {
		t.Fatalf("unterminated session marker in view: %q", view)
	}

	var id int64
	for _, r := range rest[:end] {
		if r < '0' || r > '9' {
			t.Fatalf("non-numeric session id in view: %q", rest[:end])
		}
		id = id*10 + int64(r-'0')
	}
	return id
}
