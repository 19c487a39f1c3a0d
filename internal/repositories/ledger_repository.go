package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"prontoBack/internal/models"
)

// LedgerRepository owns the cross-entity purchase transaction: request quota
// and wallet balance change together or not at all.
type LedgerRepository struct {
	DB *sql.DB
}

// PurchaseAccess runs the whole purchase as one DB transaction. The request
// row is locked first, the wallet row second (always in that order), so
// concurrent purchases of the last slot serialize and exactly one succeeds.
// On any precondition failure the transaction rolls back and nothing changes.
func (r *LedgerRepository) PurchaseAccess(ctx context.Context, requestID, professionalID int, costCents int64, description string) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var quotes, maxQuotes int
	var expired bool
	err = tx.QueryRowContext(ctx, `
        SELECT quotes_received, max_quotes, is_expired FROM service_requests WHERE id = ? FOR UPDATE`,
		requestID).Scan(&quotes, &maxQuotes, &expired)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrRequestNotFound
	}
	if err != nil {
		return 0, err
	}
	if expired || quotes >= maxQuotes {
		return 0, models.ErrRequestUnavailable
	}

	// Unique (request_id, professional_id) key turns a repeat purchase into a
	// duplicate-key error instead of a second debit.
	_, err = tx.ExecContext(ctx, `
        INSERT INTO request_purchases (request_id, professional_id) VALUES (?, ?)`,
		requestID, professionalID)
	if isDuplicateKeyError(err) {
		return 0, models.ErrAlreadyPurchased
	}
	if err != nil {
		return 0, err
	}

	var walletID int
	var balance int64
	err = tx.QueryRowContext(ctx, `
        SELECT id, balance_cents FROM wallets WHERE user_id = ? FOR UPDATE`,
		professionalID).Scan(&walletID, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrWalletNotFound
	}
	if err != nil {
		return 0, err
	}
	if balance < costCents {
		return 0, models.ErrInsufficientFunds
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
        INSERT INTO wallet_transactions (id, wallet_id, type, amount_cents, description, request_id, status, completed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), walletID, models.TransactionDebit, costCents, description, requestID, models.TransactionCompleted, now)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, `
        UPDATE wallets SET balance_cents = balance_cents - ? WHERE id = ?`, costCents, walletID)
	if err != nil {
		return 0, err
	}

	quotes++
	_, err = tx.ExecContext(ctx, `
        UPDATE service_requests SET quotes_received = ?, is_expired = ? WHERE id = ?`,
		quotes, quotes >= maxQuotes, requestID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purchase: %w", err)
	}
	return maxQuotes - quotes, nil
}

// isDuplicateKeyError checks if the error corresponds to a MySQL/MariaDB
// unique key violation. This lets repositories translate replayed inserts into
// idempotency errors instead of generic failures.
func isDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
