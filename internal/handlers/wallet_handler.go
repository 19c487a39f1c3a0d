package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"prontoBack/internal/models"
	"prontoBack/internal/services"
)

type WalletHandler struct {
	Service *services.LeadService
}

func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int)
	if !ok {
		http.Error(w, "missing user context", http.StatusUnauthorized)
		return
	}

	wallet, transactions, err := h.Service.WalletOverview(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrWalletNotFound) {
			http.Error(w, "wallet not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Could not load wallet", http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"wallet":       wallet,
		"transactions": transactions,
	})
}

// CreateRecharge records a pending recharge intent. The wallet balance only
// moves when the provider confirms the payment on the webhook.
func (h *WalletHandler) CreateRecharge(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int)
	if !ok {
		http.Error(w, "missing user context", http.StatusUnauthorized)
		return
	}

	var input struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// The reference travels to the provider as payment metadata
	// (recharge_ref) and comes back on the webhook, which settles this exact
	// pending row.
	reference := "recharge_" + uuid.NewString()
	transaction, err := h.Service.CreateRechargeIntent(r.Context(), userID, input.AmountCents, reference)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidAmount):
			http.Error(w, "recharge amount out of bounds", http.StatusBadRequest)
		case errors.Is(err, models.ErrWalletNotFound):
			http.Error(w, "wallet not found", http.StatusNotFound)
		default:
			http.Error(w, "Could not create recharge", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(transaction)
}
