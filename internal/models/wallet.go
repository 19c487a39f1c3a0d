package models

import "time"

const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// Wallet holds a professional's prepaid balance in euro cents. The balance is
// always the sum of completed credits minus completed debits; pending and
// failed transactions never count.
type Wallet struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	BalanceCents int64     `json:"balance_cents"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
}

// Transaction is one wallet ledger entry. Amount is always positive, the
// direction lives in Type. Once created only the status may move, and only
// pending -> completed or pending -> failed.
type Transaction struct {
	ID          string     `json:"id"`
	WalletID    int        `json:"wallet_id"`
	Type        string     `json:"type"`
	AmountCents int64      `json:"amount_cents"`
	Description string     `json:"description"`
	RequestID   *int       `json:"request_id,omitempty"`
	// ProviderRef carries the payment provider's payment id for credits so a
	// replayed webhook cannot credit the same payment twice.
	ProviderRef *string    `json:"provider_ref,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
