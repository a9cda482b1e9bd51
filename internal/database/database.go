package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Aman-20/Telegram-bot/internal/logger"
)

type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and makes sure the schema exists.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	logger.InfoMsg("Database connection established successfully")
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// initTables creates the accounts table if it doesn't exist
func (db *DB) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		chat_id TEXT PRIMARY KEY,
		approved_until TIMESTAMP WITH TIME ZONE,
		messages JSONB NOT NULL DEFAULT '[]',
		requests_today BIGINT NOT NULL DEFAULT 0,
		last_reset_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		tokens_used_today BIGINT NOT NULL DEFAULT 0,
		token_reset_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_approved_until ON accounts(approved_until);
	`

	if _, err := db.conn.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// GetAccount retrieves an account by chat ID. Returns (nil, nil) when the
// account does not exist.
func (db *DB) GetAccount(ctx context.Context, chatID string) (*Account, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
	SELECT chat_id, approved_until, messages, requests_today, last_reset_date,
	       tokens_used_today, token_reset_date, created_at, updated_at
	FROM accounts
	WHERE chat_id = $1
	`

	acct := &Account{}
	var approvedUntil sql.NullTime
	var rawMessages []byte

	err := db.conn.QueryRowContext(ctx, query, chatID).Scan(
		&acct.ChatID, &approvedUntil, &rawMessages,
		&acct.RequestsToday, &acct.LastResetDate,
		&acct.TokensUsedToday, &acct.TokenResetDate,
		&acct.CreatedAt, &acct.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil // Account not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if approvedUntil.Valid {
		acct.ApprovedUntil = &approvedUntil.Time
	}

	if err := json.Unmarshal(rawMessages, &acct.Messages); err != nil {
		logger.Warn("Failed to decode stored messages, starting empty", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		acct.Messages = nil
	}

	return acct, nil
}

// CreateAccount inserts a fresh account record. Safe to call when the account
// already exists; the existing row wins.
func (db *DB) CreateAccount(ctx context.Context, chatID string) (*Account, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
	INSERT INTO accounts (chat_id, messages, last_reset_date, token_reset_date)
	VALUES ($1, '[]', NOW(), NOW())
	ON CONFLICT (chat_id) DO NOTHING
	`

	if _, err := db.conn.ExecContext(ctx, query, chatID); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return db.GetAccount(ctx, chatID)
}

// SetApprovedUntil upserts the account and sets its approval expiry.
func (db *DB) SetApprovedUntil(ctx context.Context, chatID string, until time.Time) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	query := `
	INSERT INTO accounts (chat_id, approved_until)
	VALUES ($1, $2)
	ON CONFLICT (chat_id)
	DO UPDATE SET approved_until = EXCLUDED.approved_until, updated_at = NOW()
	`

	if _, err := db.conn.ExecContext(ctx, query, chatID, until); err != nil {
		return fmt.Errorf("failed to set approval: %w", err)
	}

	return nil
}

// ClearApproval removes the approval grant. A missing account is a no-op.
func (db *DB) ClearApproval(ctx context.Context, chatID string) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	query := `UPDATE accounts SET approved_until = NULL, updated_at = NOW() WHERE chat_id = $1`

	if _, err := db.conn.ExecContext(ctx, query, chatID); err != nil {
		return fmt.Errorf("failed to clear approval: %w", err)
	}

	return nil
}

// SaveMessages persists the account's conversation history.
func (db *DB) SaveMessages(ctx context.Context, chatID string, messages []Message) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	if messages == nil {
		messages = []Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	query := `UPDATE accounts SET messages = $2, updated_at = NOW() WHERE chat_id = $1`

	res, err := db.conn.ExecContext(ctx, query, chatID, data)
	if err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// UpdateDailyUsage writes the daily counters and their reset dates back.
func (db *DB) UpdateDailyUsage(ctx context.Context, acct *Account) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}

	query := `
	UPDATE accounts
	SET requests_today = $2, last_reset_date = $3,
	    tokens_used_today = $4, token_reset_date = $5,
	    updated_at = NOW()
	WHERE chat_id = $1
	`

	_, err := db.conn.ExecContext(ctx, query, acct.ChatID,
		acct.RequestsToday, acct.LastResetDate,
		acct.TokensUsedToday, acct.TokenResetDate)
	if err != nil {
		return fmt.Errorf("failed to update daily usage: %w", err)
	}

	return nil
}

// ListAccounts returns every known account, newest first.
func (db *DB) ListAccounts(ctx context.Context) ([]*Account, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
	SELECT chat_id, approved_until, messages, requests_today, last_reset_date,
	       tokens_used_today, token_reset_date, created_at, updated_at
	FROM accounts
	ORDER BY created_at DESC
	`

	return db.queryAccounts(ctx, query)
}

// ListApproved returns accounts whose approval extends past now.
func (db *DB) ListApproved(ctx context.Context, now time.Time) ([]*Account, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
	SELECT chat_id, approved_until, messages, requests_today, last_reset_date,
	       tokens_used_today, token_reset_date, created_at, updated_at
	FROM accounts
	WHERE approved_until > $1
	ORDER BY approved_until ASC
	`

	return db.queryAccounts(ctx, query, now)
}

func (db *DB) queryAccounts(ctx context.Context, query string, args ...interface{}) ([]*Account, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		acct := &Account{}
		var approvedUntil sql.NullTime
		var rawMessages []byte

		if err := rows.Scan(
			&acct.ChatID, &approvedUntil, &rawMessages,
			&acct.RequestsToday, &acct.LastResetDate,
			&acct.TokensUsedToday, &acct.TokenResetDate,
			&acct.CreatedAt, &acct.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}

		if approvedUntil.Valid {
			acct.ApprovedUntil = &approvedUntil.Time
		}
		if err := json.Unmarshal(rawMessages, &acct.Messages); err != nil {
			acct.Messages = nil
		}

		accounts = append(accounts, acct)
	}

	return accounts, rows.Err()
}
