package services

import (
	"context"
	"fmt"

	"prontoBack/internal/leads/geo"
	"prontoBack/internal/leads/pricing"
	"prontoBack/internal/models"
)

// RequestStore is the request persistence surface the lead service needs.
type RequestStore interface {
	CreateRequest(ctx context.Context, req models.ServiceRequest) (models.ServiceRequest, error)
	GetRequestByID(ctx context.Context, id int) (models.ServiceRequest, error)
	AvailableRequests(ctx context.Context, category string) ([]models.ServiceRequest, error)
	HasPurchased(ctx context.Context, requestID, professionalID int) (bool, error)
	PurchasedBy(ctx context.Context, requestID int) ([]int, error)
}

// LedgerStore executes the atomic purchase: quota increment and wallet debit
// as one unit, or a typed error with no effects.
type LedgerStore interface {
	PurchaseAccess(ctx context.Context, requestID, professionalID int, costCents int64, description string) (remaining int, err error)
}

// WalletStore is the wallet persistence surface.
type WalletStore interface {
	GetWalletByUser(ctx context.Context, userID int) (models.Wallet, error)
	Credit(ctx context.Context, userID int, amountCents int64, description string, providerRef *string) (models.Transaction, error)
	CreatePendingRecharge(ctx context.Context, userID int, amountCents int64, providerRef string) (models.Transaction, error)
	TransactionsByWallet(ctx context.Context, walletID int) ([]models.Transaction, error)
}

// LeadService gates professional access to client requests: it prices a lead
// from distance, enforces the per-request quota and debits the wallet.
type LeadService struct {
	Requests RequestStore
	Ledger   LedgerStore
	Wallets  WalletStore

	Tiers            []pricing.Tier
	MinRechargeCents int64
	MaxRechargeCents int64
}

func (s *LeadService) CreateRequest(ctx context.Context, req models.ServiceRequest) (models.ServiceRequest, error) {
	// Requests are auto-approved; there is no review step.
	return s.Requests.CreateRequest(ctx, req)
}

func (s *LeadService) AvailableRequests(ctx context.Context, category string) ([]models.ServiceRequest, error) {
	return s.Requests.AvailableRequests(ctx, category)
}

func (s *LeadService) GetRequest(ctx context.Context, id int) (models.ServiceRequest, error) {
	return s.Requests.GetRequestByID(ctx, id)
}

// RequestDetail returns the request with its buyer list and whether the
// calling professional already holds contact access.
func (s *LeadService) RequestDetail(ctx context.Context, requestID, professionalID int) (models.RequestDetail, error) {
	req, err := s.Requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return models.RequestDetail{}, err
	}
	buyers, err := s.Requests.PurchasedBy(ctx, requestID)
	if err != nil {
		return models.RequestDetail{}, err
	}
	purchased, err := s.Requests.HasPurchased(ctx, requestID, professionalID)
	if err != nil {
		return models.RequestDetail{}, err
	}
	if buyers == nil {
		buyers = []int{}
	}
	return models.RequestDetail{Request: req, PurchasedBy: buyers, AlreadyPurchased: purchased}, nil
}

// Quote prices contact access for a professional at the given position.
// Side-effect free.
func (s *LeadService) Quote(ctx context.Context, requestID int, proLat, proLon float64) (models.Quote, error) {
	req, err := s.Requests.GetRequestByID(ctx, requestID)
	if err != nil {
		return models.Quote{}, err
	}
	distance := geo.HaversineKm(req.Latitude, req.Longitude, proLat, proLon)
	tier := pricing.TierFor(s.Tiers, distance)
	return models.Quote{
		RequestID:  requestID,
		DistanceKm: distance,
		CostCents:  tier.PriceCents,
		TierName:   tier.Name,
	}, nil
}

// PurchaseAccess buys contact access for the professional. Preconditions are
// checked in order inside one storage transaction: request open, not already
// purchased, balance sufficient. On failure nothing changes.
func (s *LeadService) PurchaseAccess(ctx context.Context, requestID, professionalID int, proLat, proLon float64) (models.PurchaseResult, error) {
	quote, err := s.Quote(ctx, requestID, proLat, proLon)
	if err != nil {
		return models.PurchaseResult{}, err
	}

	description := fmt.Sprintf("Contact access to request #%d (%s)", requestID, quote.TierName)
	remaining, err := s.Ledger.PurchaseAccess(ctx, requestID, professionalID, quote.CostCents, description)
	if err != nil {
		return models.PurchaseResult{}, err
	}

	return models.PurchaseResult{
		RequestID:      requestID,
		CostCents:      quote.CostCents,
		RemainingSlots: remaining,
		LastSlot:       remaining == 0,
	}, nil
}

// RechargeWallet applies a provider-confirmed top-up. It must only be called
// once the payment confirmation arrived; pending intents go through
// CreateRechargeIntent instead.
func (s *LeadService) RechargeWallet(ctx context.Context, userID int, amountCents int64, providerRef string) (models.Transaction, error) {
	if amountCents < s.MinRechargeCents || amountCents > s.MaxRechargeCents {
		return models.Transaction{}, models.ErrInvalidAmount
	}
	var ref *string
	if providerRef != "" {
		ref = &providerRef
	}
	return s.Wallets.Credit(ctx, userID, amountCents, "Wallet recharge", ref)
}

// CreateRechargeIntent records the recharge before the provider confirms it.
// The balance only moves when the webhook delivers the confirmation.
func (s *LeadService) CreateRechargeIntent(ctx context.Context, userID int, amountCents int64, providerRef string) (models.Transaction, error) {
	if amountCents < s.MinRechargeCents || amountCents > s.MaxRechargeCents {
		return models.Transaction{}, models.ErrInvalidAmount
	}
	return s.Wallets.CreatePendingRecharge(ctx, userID, amountCents, providerRef)
}

// WalletOverview returns the wallet with its transaction history.
func (s *LeadService) WalletOverview(ctx context.Context, userID int) (models.Wallet, []models.Transaction, error) {
	wallet, err := s.Wallets.GetWalletByUser(ctx, userID)
	if err != nil {
		return models.Wallet{}, nil, err
	}
	transactions, err := s.Wallets.TransactionsByWallet(ctx, wallet.ID)
	if err != nil {
		return models.Wallet{}, nil, err
	}
	return wallet, transactions, nil
}
