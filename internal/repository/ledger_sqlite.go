package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"cardshop-bot/internal/model"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the ledger database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS balances (
		user_id INTEGER PRIMARY KEY,
		balance TEXT NOT NULL DEFAULT '0'
	);
	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		code TEXT NOT NULL,
		type TEXT NOT NULL,
		subtype TEXT NOT NULL,
		price_paid TEXT NOT NULL,
		raw TEXT NOT NULL,
		purchased_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_purchases_user ON purchases(user_id);
	CREATE TABLE IF NOT EXISTS sold_codes (
		code TEXT PRIMARY KEY,
		sold_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		qr_code TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);
	`
	_, err := db.Exec(query)
	return err
}

// Balance returns the user's balance, creating the account lazily at zero.
func (s *SQLiteStore) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return balanceTx(ctx, s.db, userID)
}

// balanceTx reads (or lazily creates) a balance using any querier.
func balanceTx(ctx context.Context, q querier, userID int64) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT balance FROM balances WHERE user_id = ?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		if _, err := q.ExecContext(ctx, `INSERT INTO balances (user_id, balance) VALUES (?, '0')`, userID); err != nil {
			return decimal.Zero, fmt.Errorf("failed to create account: %w", err)
		}
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	bal, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance for user %d: %w", userID, err)
	}
	return bal, nil
}

// querier is the subset of *sql.DB / *sql.Tx used by shared helpers.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SetBalance overwrites the user's balance.
func (s *SQLiteStore) SetBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO balances (user_id, balance) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET balance = excluded.balance`
	if _, err := s.db.ExecContext(ctx, query, userID, amount.String()); err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// Credit adds amount to the user's balance.
func (s *SQLiteStore) Credit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.adjust(ctx, userID, amount)
}

// Debit subtracts amount, failing with ErrInsufficientBalance if the
// account cannot cover it.
func (s *SQLiteStore) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.adjust(ctx, userID, amount.Neg())
}

func (s *SQLiteStore) adjust(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	bal, err := balanceTx(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	next := bal.Add(delta)
	if next.IsNegative() {
		return bal, ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `UPDATE balances SET balance = ? WHERE user_id = ?`, next.String(), userID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return next, nil
}

// Append records a completed purchase in the user's history.
func (s *SQLiteStore) Append(ctx context.Context, p model.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO purchases (user_id, code, type, subtype, price_paid, raw, purchased_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		p.UserID, p.Code, p.Type, p.Subtype, p.PricePaid.String(), p.Raw, p.PurchasedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append purchase: %w", err)
	}
	return nil
}

// ListByUser returns a user's purchases, newest first.
func (s *SQLiteStore) ListByUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT code, type, subtype, price_paid, raw, purchased_at
		FROM purchases WHERE user_id = ? ORDER BY id DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var out []model.Purchase
	for rows.Next() {
		p := model.Purchase{UserID: userID}
		var price string
		if err := rows.Scan(&p.Code, &p.Type, &p.Subtype, &price, &p.Raw, &p.PurchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		if p.PricePaid, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("corrupt price in purchase history: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindCode returns the first purchase of a code across all users.
func (s *SQLiteStore) FindCode(ctx context.Context, code string) (*model.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT user_id, code, type, subtype, price_paid, raw, purchased_at
		FROM purchases WHERE code = ? ORDER BY id LIMIT 1`

	p := &model.Purchase{}
	var price string
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&p.UserID, &p.Code, &p.Type, &p.Subtype, &price, &p.Raw, &p.PurchasedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	if p.PricePaid, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("corrupt price in purchase history: %w", err)
	}
	return p, nil
}

// AllCodes returns every code present in any user's history.
func (s *SQLiteStore) AllCodes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT code FROM purchases`)
	if err != nil {
		return nil, fmt.Errorf("failed to list history codes: %w", err)
	}
	defer rows.Close()

	return scanCodes(rows)
}

// Add inserts a code into the sold set.
func (s *SQLiteStore) Add(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO sold_codes (code, sold_at) VALUES (?, ?) ON CONFLICT(code) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, code, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to add sold code: %w", err)
	}
	return nil
}

// Contains reports whether the code was ever sold.
func (s *SQLiteStore) Contains(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sold_codes WHERE code = ?`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check sold code: %w", err)
	}
	return n > 0, nil
}

// List returns all sold codes in lexicographic order.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT code FROM sold_codes ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sold codes: %w", err)
	}
	defer rows.Close()

	return scanCodes(rows)
}

// SaveCharge persists a new payment charge.
func (s *SQLiteStore) SaveCharge(ctx context.Context, c model.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payments (id, user_id, amount, description, status, qr_code, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			qr_code = excluded.qr_code`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.Amount.String(), c.Description, c.Status, c.QRCode,
		c.CreatedAt.UTC(), c.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save charge: %w", err)
	}
	return nil
}

// GetCharge returns a charge by id.
func (s *SQLiteStore) GetCharge(ctx context.Context, id string) (*model.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, amount, description, status, qr_code, created_at, expires_at
		FROM payments WHERE id = ?`

	c := &model.Charge{}
	var amount string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &amount, &c.Description, &c.Status, &c.QRCode, &c.CreatedAt, &c.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrChargeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get charge: %w", err)
	}
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt amount in charge %s: %w", id, err)
	}
	return c, nil
}

// MarkCompleted transitions a pending charge to completed. The guarded
// UPDATE makes re-delivered confirmations for the same id a no-op.
func (s *SQLiteStore) MarkCompleted(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ? AND status = ?`,
		model.ChargeStatusCompleted, id, model.ChargeStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to complete charge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkFailed transitions a pending charge to failed.
func (s *SQLiteStore) MarkFailed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ? AND status = ?`,
		model.ChargeStatusFailed, id, model.ChargeStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark charge failed: %w", err)
	}
	return nil
}

// ExpirePending marks pending charges past their expiry.
func (s *SQLiteStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE status = ? AND expires_at < ?`,
		model.ChargeStatusExpired, model.ChargeStatusPending, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire charges: %w", err)
	}
	expired, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		log.Printf("[SQLiteStore] Expired %d stale pending charges", expired)
	}
	return expired, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanCodes(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
