package services

import (
	"context"
	"sort"
	"sync"
	"testing"

	"prontoBack/internal/leads/pricing"
	"prontoBack/internal/models"
)

// fakeStore implements RequestStore, LedgerStore and WalletStore in memory
// with the same semantics as the SQL repositories: the purchase path is one
// locked check-then-mutate unit.
type fakeStore struct {
	mu           sync.Mutex
	nextID       int
	requests     map[int]*models.ServiceRequest
	purchases    map[int]map[int]bool
	wallets      map[int]*models.Wallet
	transactions []models.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:    1,
		requests:  make(map[int]*models.ServiceRequest),
		purchases: make(map[int]map[int]bool),
		wallets:   make(map[int]*models.Wallet),
	}
}

func (f *fakeStore) addRequest(lat, lon float64, maxQuotes int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.requests[id] = &models.ServiceRequest{ID: id, Latitude: lat, Longitude: lon, MaxQuotes: maxQuotes}
	f.purchases[id] = make(map[int]bool)
	return id
}

func (f *fakeStore) addWallet(userID int, balanceCents int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallets[userID] = &models.Wallet{ID: userID, UserID: userID, BalanceCents: balanceCents, Currency: "EUR"}
}

func (f *fakeStore) CreateRequest(_ context.Context, req models.ServiceRequest) (models.ServiceRequest, error) {
	req.ID = f.addRequest(req.Latitude, req.Longitude, req.MaxQuotes)
	return req, nil
}

func (f *fakeStore) GetRequestByID(_ context.Context, id int) (models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return models.ServiceRequest{}, models.ErrRequestNotFound
	}
	return *req, nil
}

func (f *fakeStore) AvailableRequests(_ context.Context, _ string) ([]models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ServiceRequest
	for _, req := range f.requests {
		if !req.IsExpired {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeStore) HasPurchased(_ context.Context, requestID, professionalID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.purchases[requestID][professionalID], nil
}

func (f *fakeStore) PurchasedBy(_ context.Context, requestID int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int
	for id := range f.purchases[requestID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (f *fakeStore) PurchaseAccess(_ context.Context, requestID, professionalID int, costCents int64, description string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.requests[requestID]
	if !ok {
		return 0, models.ErrRequestNotFound
	}
	if req.IsExpired || req.QuotesReceived >= req.MaxQuotes {
		return 0, models.ErrRequestUnavailable
	}
	if f.purchases[requestID][professionalID] {
		return 0, models.ErrAlreadyPurchased
	}
	wallet, ok := f.wallets[professionalID]
	if !ok {
		return 0, models.ErrWalletNotFound
	}
	if wallet.BalanceCents < costCents {
		return 0, models.ErrInsufficientFunds
	}

	f.purchases[requestID][professionalID] = true
	wallet.BalanceCents -= costCents
	f.transactions = append(f.transactions, models.Transaction{
		WalletID:    wallet.ID,
		Type:        models.TransactionDebit,
		AmountCents: costCents,
		Description: description,
		RequestID:   &requestID,
		Status:      models.TransactionCompleted,
	})
	req.QuotesReceived++
	if req.QuotesReceived >= req.MaxQuotes {
		req.IsExpired = true
	}
	return req.MaxQuotes - req.QuotesReceived, nil
}

func (f *fakeStore) GetWalletByUser(_ context.Context, userID int) (models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[userID]
	if !ok {
		return models.Wallet{}, models.ErrWalletNotFound
	}
	return *w, nil
}

func (f *fakeStore) Credit(_ context.Context, userID int, amountCents int64, description string, providerRef *string) (models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[userID]
	if !ok {
		return models.Transaction{}, models.ErrWalletNotFound
	}
	if providerRef != nil {
		for _, t := range f.transactions {
			if t.ProviderRef != nil && *t.ProviderRef == *providerRef && t.Status == models.TransactionCompleted {
				return models.Transaction{}, models.ErrDuplicatePayment
			}
		}
	}
	w.BalanceCents += amountCents
	t := models.Transaction{
		WalletID:    w.ID,
		Type:        models.TransactionCredit,
		AmountCents: amountCents,
		Description: description,
		ProviderRef: providerRef,
		Status:      models.TransactionCompleted,
	}
	f.transactions = append(f.transactions, t)
	return t, nil
}

func (f *fakeStore) CreatePendingRecharge(_ context.Context, userID int, amountCents int64, providerRef string) (models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[userID]
	if !ok {
		return models.Transaction{}, models.ErrWalletNotFound
	}
	t := models.Transaction{
		WalletID:    w.ID,
		Type:        models.TransactionCredit,
		AmountCents: amountCents,
		ProviderRef: &providerRef,
		Status:      models.TransactionPending,
	}
	f.transactions = append(f.transactions, t)
	return t, nil
}

func (f *fakeStore) ConfirmRecharge(_ context.Context, rechargeRef string) (models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.transactions {
		if t.ProviderRef == nil || *t.ProviderRef != rechargeRef {
			continue
		}
		if t.Status != models.TransactionPending {
			return models.Transaction{}, models.ErrDuplicatePayment
		}
		f.transactions[i].Status = models.TransactionCompleted
		// wallet ids mirror user ids in the fake
		f.wallets[t.WalletID].BalanceCents += t.AmountCents
		return f.transactions[i], nil
	}
	return models.Transaction{}, models.ErrNoRecord
}

func (f *fakeStore) MarkRechargeFailed(_ context.Context, providerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.transactions {
		if t.ProviderRef != nil && *t.ProviderRef == providerRef && t.Status == models.TransactionPending {
			f.transactions[i].Status = models.TransactionFailed
		}
	}
	return nil
}

func (f *fakeStore) TransactionsByWallet(_ context.Context, walletID int) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transaction
	for _, t := range f.transactions {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out, nil
}

func newLeadService(store *fakeStore) *LeadService {
	return &LeadService{
		Requests:         store,
		Ledger:           store,
		Wallets:          store,
		Tiers:            pricing.Default(),
		MinRechargeCents: 500,
		MaxRechargeCents: 50000,
	}
}

func TestPurchaseAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("fills the last slot and expires the request", func(t *testing.T) {
		store := newFakeStore()
		// Roughly 12 km north of the request origin, second tier (€8.50).
		reqID := store.addRequest(45.0, 9.0, 4)
		store.requests[reqID].QuotesReceived = 3
		store.addWallet(7, 2000)

		svc := newLeadService(store)
		result, err := svc.PurchaseAccess(ctx, reqID, 7, 45.108, 9.0)
		if err != nil {
			t.Fatalf("purchase failed: %v", err)
		}
		if result.CostCents != 850 {
			t.Fatalf("expected cost 850 got %d", result.CostCents)
		}
		if result.RemainingSlots != 0 || !result.LastSlot {
			t.Fatalf("expected last slot, got %+v", result)
		}
		if !store.requests[reqID].IsExpired {
			t.Fatal("request should be expired after last slot")
		}
		if got := store.wallets[7].BalanceCents; got != 1150 {
			t.Fatalf("expected balance 1150 got %d", got)
		}
		if len(store.transactions) != 1 || store.transactions[0].Type != models.TransactionDebit {
			t.Fatalf("expected one debit transaction, got %+v", store.transactions)
		}
	})

	t.Run("expired request rejects further buyers", func(t *testing.T) {
		store := newFakeStore()
		reqID := store.addRequest(45.0, 9.0, 1)
		store.addWallet(1, 5000)
		store.addWallet(2, 5000)

		svc := newLeadService(store)
		if _, err := svc.PurchaseAccess(ctx, reqID, 1, 45.0, 9.0); err != nil {
			t.Fatalf("first purchase failed: %v", err)
		}
		_, err := svc.PurchaseAccess(ctx, reqID, 2, 45.0, 9.0)
		if err != models.ErrRequestUnavailable {
			t.Fatalf("expected ErrRequestUnavailable got %v", err)
		}
		if got := store.wallets[2].BalanceCents; got != 5000 {
			t.Fatalf("failed purchase must not touch the wallet, balance %d", got)
		}
	})

	t.Run("repeat purchase is rejected without a second debit", func(t *testing.T) {
		store := newFakeStore()
		reqID := store.addRequest(45.0, 9.0, 4)
		store.addWallet(3, 5000)

		svc := newLeadService(store)
		if _, err := svc.PurchaseAccess(ctx, reqID, 3, 45.0, 9.0); err != nil {
			t.Fatalf("first purchase failed: %v", err)
		}
		_, err := svc.PurchaseAccess(ctx, reqID, 3, 45.0, 9.0)
		if err != models.ErrAlreadyPurchased {
			t.Fatalf("expected ErrAlreadyPurchased got %v", err)
		}
		if got := store.wallets[3].BalanceCents; got != 5000-600 {
			t.Fatalf("expected single debit, balance %d", got)
		}
		if store.requests[reqID].QuotesReceived != 1 {
			t.Fatalf("quota must not grow on repeat purchase")
		}
	})

	t.Run("insufficient balance leaves everything unchanged", func(t *testing.T) {
		store := newFakeStore()
		reqID := store.addRequest(45.0, 9.0, 4)
		store.addWallet(4, 500)

		svc := newLeadService(store)
		_, err := svc.PurchaseAccess(ctx, reqID, 4, 45.0, 9.0)
		if err != models.ErrInsufficientFunds {
			t.Fatalf("expected ErrInsufficientFunds got %v", err)
		}
		if store.requests[reqID].QuotesReceived != 0 {
			t.Fatal("quota must not change on failed purchase")
		}
		if len(store.transactions) != 0 {
			t.Fatal("no transaction may be recorded on failure")
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		store := newFakeStore()
		store.addWallet(5, 5000)
		svc := newLeadService(store)
		if _, err := svc.PurchaseAccess(ctx, 99, 5, 45.0, 9.0); err != models.ErrRequestNotFound {
			t.Fatalf("expected ErrRequestNotFound got %v", err)
		}
	})
}

func TestPurchaseLastSlotConcurrent(t *testing.T) {
	store := newFakeStore()
	reqID := store.addRequest(45.0, 9.0, 4)
	store.requests[reqID].QuotesReceived = 3
	store.addWallet(10, 5000)
	store.addWallet(11, 5000)
	svc := newLeadService(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pro := range []int{10, 11} {
		wg.Add(1)
		go func(i, pro int) {
			defer wg.Done()
			_, errs[i] = svc.PurchaseAccess(context.Background(), reqID, pro, 45.0, 9.0)
		}(i, pro)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else if err != models.ErrRequestUnavailable {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one winner for the last slot, got %d", successes)
	}
	if store.requests[reqID].QuotesReceived != 4 {
		t.Fatalf("quota overran: %d", store.requests[reqID].QuotesReceived)
	}
}

func TestRechargeWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("below minimum", func(t *testing.T) {
		store := newFakeStore()
		store.addWallet(1, 0)
		svc := newLeadService(store)
		if _, err := svc.RechargeWallet(ctx, 1, 300, "pi_1"); err != models.ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount got %v", err)
		}
		if store.wallets[1].BalanceCents != 0 {
			t.Fatal("wallet must stay unchanged")
		}
	})

	t.Run("above maximum", func(t *testing.T) {
		store := newFakeStore()
		store.addWallet(1, 0)
		svc := newLeadService(store)
		if _, err := svc.RechargeWallet(ctx, 1, 100000, "pi_2"); err != models.ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount got %v", err)
		}
	})

	t.Run("credits within bounds", func(t *testing.T) {
		store := newFakeStore()
		store.addWallet(1, 100)
		svc := newLeadService(store)
		if _, err := svc.RechargeWallet(ctx, 1, 2500, "pi_3"); err != nil {
			t.Fatalf("recharge failed: %v", err)
		}
		if got := store.wallets[1].BalanceCents; got != 2600 {
			t.Fatalf("expected balance 2600 got %d", got)
		}
	})
}

// Balance conservation: after any mix of successful credits and debits the
// balance equals completed credits minus completed debits.
func TestWalletBalanceConservation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addWallet(1, 0)
	svc := newLeadService(store)

	if _, err := svc.RechargeWallet(ctx, 1, 3000, "pi_a"); err != nil {
		t.Fatalf("recharge: %v", err)
	}
	if _, err := svc.RechargeWallet(ctx, 1, 1000, "pi_b"); err != nil {
		t.Fatalf("recharge: %v", err)
	}
	for i := 0; i < 3; i++ {
		reqID := store.addRequest(45.0, 9.0, 4)
		if _, err := svc.PurchaseAccess(ctx, reqID, 1, 45.0, 9.0); err != nil {
			t.Fatalf("purchase: %v", err)
		}
	}

	var credits, debits int64
	for _, tr := range store.transactions {
		if tr.Status != models.TransactionCompleted {
			continue
		}
		switch tr.Type {
		case models.TransactionCredit:
			credits += tr.AmountCents
		case models.TransactionDebit:
			debits += tr.AmountCents
		}
	}
	if got := store.wallets[1].BalanceCents; got != credits-debits {
		t.Fatalf("balance %d != credits %d - debits %d", got, credits, debits)
	}
}

func TestRequestDetail(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	reqID := store.addRequest(45.0, 9.0, 4)
	store.addWallet(7, 5000)
	svc := newLeadService(store)

	if _, err := svc.PurchaseAccess(ctx, reqID, 7, 45.0, 9.0); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	detail, err := svc.RequestDetail(ctx, reqID, 7)
	if err != nil {
		t.Fatalf("request detail: %v", err)
	}
	if !detail.AlreadyPurchased {
		t.Fatal("buyer should see already_purchased")
	}
	if len(detail.PurchasedBy) != 1 || detail.PurchasedBy[0] != 7 {
		t.Fatalf("unexpected buyer list %v", detail.PurchasedBy)
	}

	other, err := svc.RequestDetail(ctx, reqID, 8)
	if err != nil {
		t.Fatalf("request detail: %v", err)
	}
	if other.AlreadyPurchased {
		t.Fatal("non-buyer must not see already_purchased")
	}

	if _, err := svc.RequestDetail(ctx, 99, 7); err != models.ErrRequestNotFound {
		t.Fatalf("expected ErrRequestNotFound got %v", err)
	}
}

func TestQuoteMatchesTierTable(t *testing.T) {
	store := newFakeStore()
	reqID := store.addRequest(45.0, 9.0, 4)
	svc := newLeadService(store)

	quote, err := svc.Quote(context.Background(), reqID, 45.0, 9.0)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.CostCents != 600 || quote.TierName != "Zona locale" {
		t.Fatalf("unexpected quote %+v", quote)
	}
	if len(store.transactions) != 0 {
		t.Fatal("quote must be side-effect free")
	}
}
