package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"prontoBack/internal/models"
	"prontoBack/internal/services"
)

// Request bodies larger than this are not webhook payloads.
const maxWebhookBody = 1 << 20

type StripeWebhookHandler struct {
	Stripe     *services.StripeService
	Dispatcher *services.WebhookDispatcher
}

// HandleWebhook implements the provider contract: 200 {"received":true} once
// the event is accepted, 400 for signature or payload problems, 405 for
// anything but POST, 500 for internal failures. Duplicates and unknown event
// types are acknowledged so the provider stops retrying.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "Method not allowed"})
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Missing Stripe signature"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Could not read payload"})
		return
	}

	event, err := h.Stripe.ConstructEvent(payload, signature)
	if err != nil {
		if errors.Is(err, models.ErrInvalidSignature) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid Stripe signature"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Malformed payload"})
		return
	}

	result := h.Dispatcher.Dispatch(r.Context(), event)
	if !result.Success {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": result.Message})
		return
	}

	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
