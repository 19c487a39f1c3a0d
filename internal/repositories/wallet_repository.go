package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"prontoBack/internal/models"
)

type WalletRepository struct {
	DB *sql.DB
}

func (r *WalletRepository) CreateWallet(ctx context.Context, userID int) (models.Wallet, error) {
	res, err := r.DB.ExecContext(ctx, `
        INSERT INTO wallets (user_id, balance_cents, currency) VALUES (?, 0, 'EUR')`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Wallet{}, err
	}
	return models.Wallet{ID: int(id), UserID: userID, Currency: "EUR"}, nil
}

func (r *WalletRepository) GetWalletByUser(ctx context.Context, userID int) (models.Wallet, error) {
	var w models.Wallet
	err := r.DB.QueryRowContext(ctx, `
        SELECT id, user_id, balance_cents, currency, created_at FROM wallets WHERE user_id = ?`,
		userID).Scan(&w.ID, &w.UserID, &w.BalanceCents, &w.Currency, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{}, models.ErrWalletNotFound
	}
	return w, err
}

// Credit adds a completed credit transaction and bumps the balance in one
// transaction. When providerRef is set, the unique key on provider_ref makes a
// replayed credit fail with ErrDuplicatePayment and leaves the wallet alone.
func (r *WalletRepository) Credit(ctx context.Context, userID int, amountCents int64, description string, providerRef *string) (models.Transaction, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Transaction{}, err
	}
	defer tx.Rollback()

	var walletID int
	err = tx.QueryRowContext(ctx, `
        SELECT id FROM wallets WHERE user_id = ? FOR UPDATE`, userID).Scan(&walletID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, models.ErrWalletNotFound
	}
	if err != nil {
		return models.Transaction{}, err
	}

	now := time.Now()
	t := models.Transaction{
		ID:          uuid.NewString(),
		WalletID:    walletID,
		Type:        models.TransactionCredit,
		AmountCents: amountCents,
		Description: description,
		ProviderRef: providerRef,
		Status:      models.TransactionCompleted,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO wallet_transactions (id, wallet_id, type, amount_cents, description, provider_ref, status, completed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, walletID, t.Type, amountCents, description, providerRef, t.Status, now)
	if isDuplicateKeyError(err) {
		return models.Transaction{}, models.ErrDuplicatePayment
	}
	if err != nil {
		return models.Transaction{}, err
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE wallets SET balance_cents = balance_cents + ? WHERE id = ?`, amountCents, walletID)
	if err != nil {
		return models.Transaction{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

// CreatePendingRecharge records the intent before the provider confirms.
// Pending rows never touch the balance: the webhook settles them through
// ConfirmRecharge or MarkRechargeFailed using the same reference.
func (r *WalletRepository) CreatePendingRecharge(ctx context.Context, userID int, amountCents int64, providerRef string) (models.Transaction, error) {
	w, err := r.GetWalletByUser(ctx, userID)
	if err != nil {
		return models.Transaction{}, err
	}
	t := models.Transaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Type:        models.TransactionCredit,
		AmountCents: amountCents,
		Description: "Wallet recharge",
		ProviderRef: &providerRef,
		Status:      models.TransactionPending,
	}
	_, err = r.DB.ExecContext(ctx, `
        INSERT INTO wallet_transactions (id, wallet_id, type, amount_cents, description, provider_ref, status)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.WalletID, t.Type, t.AmountCents, t.Description, providerRef, t.Status)
	if err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

// ConfirmRecharge settles the pending recharge identified by its intent
// reference: the status flips to completed and the balance moves, in one
// transaction. A replayed confirmation finds the row already settled and gets
// ErrDuplicatePayment; an unknown reference gets ErrNoRecord.
func (r *WalletRepository) ConfirmRecharge(ctx context.Context, rechargeRef string) (models.Transaction, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Transaction{}, err
	}
	defer tx.Rollback()

	var t models.Transaction
	err = tx.QueryRowContext(ctx, `
        SELECT id, wallet_id, type, amount_cents, description, status, created_at
        FROM wallet_transactions WHERE provider_ref = ? FOR UPDATE`,
		rechargeRef).Scan(&t.ID, &t.WalletID, &t.Type, &t.AmountCents, &t.Description, &t.Status, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, models.ErrNoRecord
	}
	if err != nil {
		return models.Transaction{}, err
	}
	if t.Status != models.TransactionPending {
		return models.Transaction{}, models.ErrDuplicatePayment
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
        UPDATE wallet_transactions SET status = ?, completed_at = ? WHERE id = ?`,
		models.TransactionCompleted, now, t.ID)
	if err != nil {
		return models.Transaction{}, err
	}
	_, err = tx.ExecContext(ctx, `
        UPDATE wallets SET balance_cents = balance_cents + ? WHERE id = ?`, t.AmountCents, t.WalletID)
	if err != nil {
		return models.Transaction{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Transaction{}, err
	}
	t.Status = models.TransactionCompleted
	t.CompletedAt = &now
	t.ProviderRef = &rechargeRef
	return t, nil
}

// MarkRechargeFailed moves a pending recharge to failed. Completed rows are
// never downgraded.
func (r *WalletRepository) MarkRechargeFailed(ctx context.Context, providerRef string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE wallet_transactions SET status = ? WHERE provider_ref = ? AND status = ?`,
		models.TransactionFailed, providerRef, models.TransactionPending)
	return err
}

func (r *WalletRepository) TransactionsByWallet(ctx context.Context, walletID int) ([]models.Transaction, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, wallet_id, type, amount_cents, description, request_id, provider_ref, status, created_at, completed_at
        FROM wallet_transactions WHERE wallet_id = ? ORDER BY created_at DESC`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var reqID sql.NullInt64
		var ref sql.NullString
		var completed sql.NullTime
		err = rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.AmountCents, &t.Description, &reqID, &ref, &t.Status, &t.CreatedAt, &completed)
		if err != nil {
			return nil, err
		}
		if reqID.Valid {
			v := int(reqID.Int64)
			t.RequestID = &v
		}
		if ref.Valid {
			v := ref.String
			t.ProviderRef = &v
		}
		if completed.Valid {
			v := completed.Time
			t.CompletedAt = &v
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
