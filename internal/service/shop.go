package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"cardshop-bot/internal/catalog"
	"cardshop-bot/internal/model"
	"cardshop-bot/internal/repository"
	"cardshop-bot/internal/session"

	"github.com/shopspring/decimal"
)

// ErrItemUnavailable is returned when a purchase targets an unknown or
// already-sold code.
var ErrItemUnavailable = errors.New("item not available")

// ErrNoResults is returned when a search matches nothing.
var ErrNoResults = errors.New("no items match the search")

// Shop handles catalog browsing, search sessions and the purchase flow.
type Shop struct {
	catalog  *catalog.Catalog
	ledger   repository.LedgerRepository
	history  repository.HistoryRepository
	sold     repository.SoldCodeRepository
	sessions session.Store
}

// NewShop creates the shop service. All dependencies are required.
func NewShop(
	cat *catalog.Catalog,
	ledger repository.LedgerRepository,
	history repository.HistoryRepository,
	sold repository.SoldCodeRepository,
	sessions session.Store,
) *Shop {
	return &Shop{
		catalog:  cat,
		ledger:   ledger,
		history:  history,
		sold:     sold,
		sessions: sessions,
	}
}

// Catalog exposes the underlying catalog for read-only browsing.
func (s *Shop) Catalog() *catalog.Catalog {
	return s.catalog
}

// ResolvePrice returns the unit price for an item: its own price when set,
// otherwise the display price of its type, otherwise zero.
func (s *Shop) ResolvePrice(it model.Item) decimal.Decimal {
	if it.Price.IsPositive() {
		return it.Price
	}
	return s.catalog.TypePriceFor(it.Type)
}

// Purchase executes the full purchase protocol for a code:
// price resolution, balance check, debit, history append, sold-set
// write-ahead and finally the catalog mutation. The debit and history
// writes land before the catalog is touched, so a crash in between leaves
// a purchased-but-listed item that reconciliation repairs on next load.
func (s *Shop) Purchase(ctx context.Context, userID int64, code string) (*model.Purchase, decimal.Decimal, error) {
	it, ok := s.catalog.Find(code)
	if !ok {
		return nil, decimal.Zero, ErrItemUnavailable
	}

	price := s.ResolvePrice(it)

	balance, err := s.ledger.Debit(ctx, userID, price)
	if err != nil {
		return nil, decimal.Zero, err
	}

	p := it.Snapshot(userID, price, time.Now())
	if err := s.history.Append(ctx, p); err != nil {
		// In-memory state stays authoritative for this process lifetime.
		log.Printf("[Shop] Failed to persist purchase history for user %d: %v", userID, err)
	}

	// Sold-set write-ahead: persist the code before mutating the catalog,
	// so recovery always flows sold-set -> catalog, never the reverse.
	if err := s.sold.Add(ctx, code); err != nil {
		log.Printf("[Shop] Failed to persist sold code %s: %v", code, err)
	}

	s.catalog.MarkSold(code)

	return &p, balance, nil
}

// Reload re-parses the backing catalog file and re-applies the sold set,
// so externally restored blocks for sold codes stay unavailable.
func (s *Shop) Reload(ctx context.Context) error {
	if err := s.catalog.Load(); err != nil {
		return err
	}

	codes, err := s.sold.List(ctx)
	if err != nil {
		return err
	}
	s.catalog.Reconcile(codes)
	return nil
}

// Bootstrap reconciles catalog and sold set at process start: codes found
// in any user's purchase history are folded into the sold set, then the
// whole sold set is re-applied to the freshly loaded catalog.
func (s *Shop) Bootstrap(ctx context.Context) error {
	historyCodes, err := s.history.AllCodes(ctx)
	if err != nil {
		return err
	}
	for _, code := range historyCodes {
		if err := s.sold.Add(ctx, code); err != nil {
			return err
		}
	}

	codes, err := s.sold.List(ctx)
	if err != nil {
		return err
	}
	s.catalog.Reconcile(codes)
	return nil
}

// SearchPrefix creates a filter session over all available items whose
// code starts with prefix.
func (s *Shop) SearchPrefix(ctx context.Context, chatID int64, prefix string) (*session.FilterSession, error) {
	items := s.catalog.SearchPrefix(prefix)
	return s.createSession(ctx, chatID, "Itens iniciando com "+prefix, items)
}

// SearchType creates a filter session over available items of a type.
// Exact name matches win; substring matching is the fallback.
func (s *Shop) SearchType(ctx context.Context, chatID int64, query string) (*session.FilterSession, error) {
	items := s.catalog.SearchType(query)
	if len(items) == 0 {
		return nil, ErrNoResults
	}
	return s.createSession(ctx, chatID, "Itens do tipo "+items[0].Type, items)
}

func (s *Shop) createSession(ctx context.Context, chatID int64, title string, items []model.Item) (*session.FilterSession, error) {
	if len(items) == 0 {
		return nil, ErrNoResults
	}

	sess := &session.FilterSession{
		ID:        session.NewID(time.Now()),
		ChatID:    chatID,
		Title:     title,
		Items:     items,
		Cursor:    0,
		CreatedAt: time.Now(),
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Current returns a session with its cursor untouched.
func (s *Shop) Current(ctx context.Context, chatID, sessionID int64) (*session.FilterSession, error) {
	return s.sessions.Get(ctx, chatID, sessionID)
}

// Advance moves a session's cursor one step in the given direction,
// wrapping circularly at both ends.
func (s *Shop) Advance(ctx context.Context, chatID, sessionID int64, direction string) (*session.FilterSession, error) {
	sess, err := s.sessions.Get(ctx, chatID, sessionID)
	if err != nil {
		return nil, err
	}

	n := len(sess.Items)
	if direction == "next" {
		sess.Cursor = (sess.Cursor + 1) % n
	} else {
		sess.Cursor = (sess.Cursor - 1 + n) % n
	}

	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// PurchaseFromSession buys the item under a session's cursor.
func (s *Shop) PurchaseFromSession(ctx context.Context, userID, chatID, sessionID int64) (*model.Purchase, decimal.Decimal, error) {
	sess, err := s.sessions.Get(ctx, chatID, sessionID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	it := sess.Items[sess.Cursor]
	return s.Purchase(ctx, userID, it.Code)
}

// SoldGroup is one type/subtype bucket in the sold-codes report.
type SoldGroup struct {
	Key   string
	Codes []string
}

// SoldReport groups every sold code by the type/subtype recorded in
// purchase history. Codes with no history entry land in "Desconhecido".
func (s *Shop) SoldReport(ctx context.Context) ([]SoldGroup, error) {
	codes, err := s.sold.List(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]string)
	for _, code := range codes {
		key := "Desconhecido"
		if p, err := s.history.FindCode(ctx, code); err == nil && p != nil {
			key = p.Type + "/" + p.Subtype
		}
		groups[key] = append(groups[key], code)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]SoldGroup, len(keys))
	for i, k := range keys {
		sort.Strings(groups[k])
		out[i] = SoldGroup{Key: k, Codes: groups[k]}
	}
	return out, nil
}
