package models

import "time"

// ServiceRequest is a client request professionals can buy contact access to.
// QuotesReceived always equals the number of rows in request_purchases for the
// request, and IsExpired flips to true exactly when the quota fills up. The
// transition is one-way: a full request never reopens.
type ServiceRequest struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	Category       string    `json:"category"`
	Description    string    `json:"description"`
	City           string    `json:"city"`
	Province       string    `json:"province"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	QuotesReceived int       `json:"quotes_received"`
	MaxQuotes      int       `json:"max_quotes"`
	IsExpired      bool      `json:"is_expired"`
	CreatedAt      time.Time `json:"created_at"`
}

// DefaultMaxQuotes is the number of professionals that may buy contact access
// to a single request.
const DefaultMaxQuotes = 4

// PurchaseResult reports the quota state after a successful purchase so the
// caller can tell whether it took the last available slot.
type PurchaseResult struct {
	RequestID      int   `json:"request_id"`
	CostCents      int64 `json:"cost_cents"`
	RemainingSlots int   `json:"remaining_slots"`
	LastSlot       bool  `json:"last_slot"`
}

// RequestDetail is a request together with its purchase state as seen by one
// professional.
type RequestDetail struct {
	Request          ServiceRequest `json:"request"`
	PurchasedBy      []int          `json:"purchased_by"`
	AlreadyPurchased bool           `json:"already_purchased"`
}

// Quote is a side-effect-free price preview for a request at a given distance.
type Quote struct {
	RequestID  int     `json:"request_id"`
	DistanceKm float64 `json:"distance_km"`
	CostCents  int64   `json:"cost_cents"`
	TierName   string  `json:"tier_name"`
}
