package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"cardshop-bot/internal/model"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// MySQLStore implements Store using MySQL, for deployments that share the
// ledger with an external dashboard.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects to MySQL with the given DSN.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("[MySQLStore] Initialized")
	return &MySQLStore{db: db}, nil
}

func createMySQLTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS balances (
			user_id BIGINT PRIMARY KEY,
			balance VARCHAR(32) NOT NULL DEFAULT '0'
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			user_id BIGINT NOT NULL,
			code VARCHAR(64) NOT NULL,
			type VARCHAR(128) NOT NULL,
			subtype VARCHAR(128) NOT NULL,
			price_paid VARCHAR(32) NOT NULL,
			raw TEXT NOT NULL,
			purchased_at DATETIME NOT NULL,
			INDEX idx_purchases_user (user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS sold_codes (
			code VARCHAR(64) PRIMARY KEY,
			sold_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR(64) PRIMARY KEY,
			user_id BIGINT NOT NULL,
			amount VARCHAR(32) NOT NULL,
			description VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			qr_code TEXT,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			INDEX idx_payments_status (status)
		)`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Balance returns the user's balance, creating the account lazily at zero.
func (s *MySQLStore) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return balanceTx(ctx, s.db, userID)
}

// SetBalance overwrites the user's balance.
func (s *MySQLStore) SetBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `
		INSERT INTO balances (user_id, balance) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE balance = VALUES(balance)`
	if _, err := s.db.ExecContext(ctx, query, userID, amount.String()); err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// Credit adds amount to the user's balance.
func (s *MySQLStore) Credit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.adjust(ctx, userID, amount)
}

// Debit subtracts amount, failing with ErrInsufficientBalance if the
// account cannot cover it.
func (s *MySQLStore) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.adjust(ctx, userID, amount.Neg())
}

func (s *MySQLStore) adjust(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
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
func (s *MySQLStore) Append(ctx context.Context, p model.Purchase) error {
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
func (s *MySQLStore) ListByUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
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
func (s *MySQLStore) FindCode(ctx context.Context, code string) (*model.Purchase, error) {
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
func (s *MySQLStore) AllCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT code FROM purchases`)
	if err != nil {
		return nil, fmt.Errorf("failed to list history codes: %w", err)
	}
	defer rows.Close()

	return scanCodes(rows)
}

// Add inserts a code into the sold set.
func (s *MySQLStore) Add(ctx context.Context, code string) error {
	query := `INSERT IGNORE INTO sold_codes (code, sold_at) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, code, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to add sold code: %w", err)
	}
	return nil
}

// Contains reports whether the code was ever sold.
func (s *MySQLStore) Contains(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sold_codes WHERE code = ?`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check sold code: %w", err)
	}
	return n > 0, nil
}

// List returns all sold codes in lexicographic order.
func (s *MySQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM sold_codes ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sold codes: %w", err)
	}
	defer rows.Close()

	return scanCodes(rows)
}

// SaveCharge persists a new payment charge.
func (s *MySQLStore) SaveCharge(ctx context.Context, c model.Charge) error {
	query := `
		INSERT INTO payments (id, user_id, amount, description, status, qr_code, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), qr_code = VALUES(qr_code)`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.Amount.String(), c.Description, c.Status, c.QRCode,
		c.CreatedAt.UTC(), c.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save charge: %w", err)
	}
	return nil
}

// GetCharge returns a charge by id.
func (s *MySQLStore) GetCharge(ctx context.Context, id string) (*model.Charge, error) {
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

// MarkCompleted transitions a pending charge to completed.
func (s *MySQLStore) MarkCompleted(ctx context.Context, id string) (bool, error) {
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
func (s *MySQLStore) MarkFailed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ? AND status = ?`,
		model.ChargeStatusFailed, id, model.ChargeStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark charge failed: %w", err)
	}
	return nil
}

// ExpirePending marks pending charges past their expiry.
func (s *MySQLStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE status = ? AND expires_at < ?`,
		model.ChargeStatusExpired, model.ChargeStatusPending, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire charges: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Ensure MySQLStore implements Store
var _ Store = (*MySQLStore)(nil)
