package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cardshop-bot/internal/catalog"
	"cardshop-bot/internal/repository"
	"cardshop-bot/internal/session"

	"github.com/shopspring/decimal"
)

const testCatalog = `codigo> AAA111
tipo: Gold
subtipo: X
preço: 10,50
disponível: sim
---
codigo> BBB222
tipo: Gold
subtipo: X
disponível: sim
---
codigo> CCC333
tipo: Silver
subtipo: Y
preço: 5
disponível: sim
---
`

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestShop wires a shop over a temp catalog file and a temp SQLite store.
func newTestShop(t *testing.T) (*Shop, *repository.SQLiteStore, string) {
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

	return NewShop(cat, store, store, store, sessions), store, path
}

func TestResolvePrice(t *testing.T) {
	shop, _, _ := newTestShop(t)

	it, ok := shop.Catalog().Find("AAA111")
	if !ok {
		t.Fatal("fixture item missing")
	}
	if !shop.ResolvePrice(it).Equal(dec("10.5")) {
		t.Errorf("item price must win: got %s", shop.ResolvePrice(it))
	}

	it, ok = shop.Catalog().Find("BBB222")
	if !ok {
		t.Fatal("fixture item missing")
	}
	// No own price: falls back to Gold's display price.
	if !shop.ResolvePrice(it).Equal(dec("10.5")) {
		t.Errorf("type price fallback failed: got %s", shop.ResolvePrice(it))
	}
}

func TestPurchaseHappyPath(t *testing.T) {
	shop, store, _ := newTestShop(t)
	ctx := context.Background()

	if err := store.SetBalance(ctx, 1, dec("100")); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	p, balance, err := shop.Purchase(ctx, 1, "AAA111")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if !balance.Equal(dec("89.5")) {
		t.Errorf("balance = %s, want 89.5", balance)
	}
	if p.Code != "AAA111" || !p.PricePaid.Equal(dec("10.5")) {
		t.Errorf("unexpected purchase: %+v", p)
	}

	// Item is gone from the catalog.
	if _, ok := shop.Catalog().Find("AAA111"); ok {
		t.Error("purchased item must be unavailable")
	}

	// History and sold set both carry the code.
	hist, err := store.ListByUser(ctx, 1)
	if err != nil || len(hist) != 1 || hist[0].Code != "AAA111" {
		t.Errorf("history = %+v, %v", hist, err)
	}
	sold, err := store.Contains(ctx, "AAA111")
	if err != nil || !sold {
		t.Errorf("sold set must contain purchased code: %v, %v", sold, err)
	}
}

func TestPurchaseInsufficientBalance(t *testing.T) {
	shop, store, _ := newTestShop(t)
	ctx := context.Background()

	if err := store.SetBalance(ctx, 1, dec("5")); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	_, _, err := shop.Purchase(ctx, 1, "AAA111")
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Nothing moved: balance, catalog, history, sold set all untouched.
	bal, _ := store.Balance(ctx, 1)
	if !bal.Equal(dec("5")) {
		t.Errorf("balance must be unchanged, got %s", bal)
	}
	if _, ok := shop.Catalog().Find("AAA111"); !ok {
		t.Error("item must remain available")
	}
	if hist, _ := store.ListByUser(ctx, 1); len(hist) != 0 {
		t.Errorf("no history entry expected, got %d", len(hist))
	}
	if sold, _ := store.Contains(ctx, "AAA111"); sold {
		t.Error("sold set must stay empty")
	}
}

func TestPurchaseUnknownCode(t *testing.T) {
	shop, store, _ := newTestShop(t)
	ctx := context.Background()

	if err := store.SetBalance(ctx, 1, dec("100")); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	_, _, err := shop.Purchase(ctx, 1, "NOPE999")
	if !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got %v", err)
	}
}

func TestReloadKeepsSoldCodes(t *testing.T) {
	shop, store, path := newTestShop(t)
	ctx := context.Background()

	if err := store.SetBalance(ctx, 1, dec("100")); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	if _, _, err := shop.Purchase(ctx, 1, "AAA111"); err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	// Simulate an external restore of the full catalog file.
	if err := os.WriteFile(path, []byte(testCatalog), 0o644); err != nil {
		t.Fatalf("failed to restore catalog: %v", err)
	}

	if err := shop.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if _, ok := shop.Catalog().Find("AAA111"); ok {
		t.Error("sold code must stay unavailable after reload")
	}
	if _, ok := shop.Catalog().Find("BBB222"); !ok {
		t.Error("unsold code must come back on reload")
	}
}

func TestBootstrapFoldsHistoryIntoSoldSet(t *testing.T) {
	shop, store, _ := newTestShop(t)
	ctx := context.Background()

	// A history entry without a matching sold-set row models a crash
	// between the history write and the sold-set write.
	it, _ := shop.Catalog().Find("AAA111")
	if err := store.Append(ctx, it.Snapshot(1, dec("10.5"), time.Now())); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := shop.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if sold, _ := store.Contains(ctx, "AAA111"); !sold {
		t.Error("bootstrap must derive the sold set from history")
	}
	if _, ok := shop.Catalog().Find("AAA111"); ok {
		t.Error("bootstrap must reconcile the catalog")
	}
}

func TestSearchSessions(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()

	sess, err := shop.SearchPrefix(ctx, 10, "AAA")
	if err != nil {
		t.Fatalf("SearchPrefix: %v", err)
	}
	if len(sess.Items) != 1 || sess.Items[0].Code != "AAA111" {
		t.Errorf("unexpected session items: %+v", sess.Items)
	}

	if _, err := shop.SearchPrefix(ctx, 10, "ZZZ"); !errors.Is(err, ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}

	sess, err = shop.SearchType(ctx, 10, "gold")
	if err != nil {
		t.Fatalf("SearchType: %v", err)
	}
	if len(sess.Items) != 2 {
		t.Errorf("expected 2 Gold items, got %d", len(sess.Items))
	}
}

func TestAdvanceWrapsCircularly(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()

	sess, err := shop.SearchType(ctx, 10, "gold")
	if err != nil {
		t.Fatalf("SearchType: %v", err)
	}

	sess, err = shop.Advance(ctx, 10, sess.ID, "next")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if sess.Cursor != 1 {
		t.Errorf("cursor = %d, want 1", sess.Cursor)
	}

	// next past the end wraps to the start.
	sess, err = shop.Advance(ctx, 10, sess.ID, "next")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if sess.Cursor != 0 {
		t.Errorf("cursor = %d, want wrap to 0", sess.Cursor)
	}

	// prev from the start wraps to the end.
	sess, err = shop.Advance(ctx, 10, sess.ID, "prev")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if sess.Cursor != 1 {
		t.Errorf("cursor = %d, want wrap to 1", sess.Cursor)
	}
}

func TestPurchaseFromSession(t *testing.T) {
	shop, store, _ := newTestShop(t)
	ctx := context.Background()

	if err := store.SetBalance(ctx, 1, dec("100")); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	sess, err := shop.SearchType(ctx, 10, "gold")
	if err != nil {
		t.Fatalf("SearchType: %v", err)
	}

	p, _, err := shop.PurchaseFromSession(ctx, 1, 10, sess.ID)
	if err != nil {
		t.Fatalf("PurchaseFromSession: %v", err)
	}
	if p.Code != sess.Items[0].Code {
		t.Errorf("bought %s, session cursor was on %s", p.Code, sess.Items[0].Code)
	}

	if _, _, err := shop.PurchaseFromSession(ctx, 1, 10, 424242); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSoldReportGrouping(t *testing.T) {
	shop, store, _ := newTestShop(t)
	ctx := context.Background()

	if err := store.SetBalance(ctx, 1, dec("100")); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	for _, code := range []string{"AAA111", "CCC333"} {
		if _, _, err := shop.Purchase(ctx, 1, code); err != nil {
			t.Fatalf("Purchase(%s): %v", code, err)
		}
	}
	// A sold code with no history entry lands in the unknown bucket.
	if err := store.Add(ctx, "GHOST1"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	groups, err := shop.SoldReport(ctx)
	if err != nil {
		t.Fatalf("SoldReport: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %+v", groups)
	}

	byKey := make(map[string][]string)
	for _, g := range groups {
		byKey[g.Key] = g.Codes
	}
	if codes := byKey["Gold/X"]; len(codes) != 1 || codes[0] != "AAA111" {
		t.Errorf("Gold/X = %v", codes)
	}
	if codes := byKey["Silver/Y"]; len(codes) != 1 || codes[0] != "CCC333" {
		t.Errorf("Silver/Y = %v", codes)
	}
	if codes := byKey["Desconhecido"]; len(codes) != 1 || codes[0] != "GHOST1" {
		t.Errorf("Desconhecido = %v", codes)
	}
}
