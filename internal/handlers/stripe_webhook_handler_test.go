package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prontoBack/internal/models"
	"prontoBack/internal/services"
)

type stubEvents struct{ seen map[string]bool }

func (s *stubEvents) MarkProcessed(_ context.Context, provider, eventID, _ string) error {
	key := provider + ":" + eventID
	if s.seen[key] {
		return models.ErrDuplicateEvent
	}
	s.seen[key] = true
	return nil
}

type stubWallets struct{ credited int64 }

func (s *stubWallets) Credit(_ context.Context, _ int, amountCents int64, _ string, _ *string) (models.Transaction, error) {
	s.credited += amountCents
	return models.Transaction{}, nil
}

func (s *stubWallets) ConfirmRecharge(context.Context, string) (models.Transaction, error) {
	return models.Transaction{}, models.ErrNoRecord
}

func (s *stubWallets) MarkRechargeFailed(context.Context, string) error { return nil }

type stubUsers struct{}

func (stubUsers) SetPremiumByCustomer(context.Context, string, bool) error { return nil }

func newWebhookHandler(t *testing.T, wallets *stubWallets) *StripeWebhookHandler {
	t.Helper()
	stripe, err := services.NewStripeService(services.StripeConfig{
		WebhookSecret: "whsec_test",
		Tolerance:     5 * time.Minute,
		Logger:        slog.Default(),
	})
	if err != nil {
		t.Fatalf("new stripe service: %v", err)
	}
	dispatcher := &services.WebhookDispatcher{
		Events:  &stubEvents{seen: map[string]bool{}},
		Wallets: wallets,
		Users:   stubUsers{},
		Logger:  slog.Default(),
	}
	return &StripeWebhookHandler{Stripe: stripe, Dispatcher: dispatcher}
}

func sign(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestHandleWebhook(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","amount":2500,"metadata":{"user_id":"7"}}}}`)

	t.Run("accepts a signed event", func(t *testing.T) {
		wallets := &stubWallets{}
		h := newWebhookHandler(t, wallets)

		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", sign(payload))
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
		}
		var body map[string]bool
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if !body["received"] {
			t.Fatalf("expected received=true, got %v", body)
		}
		if wallets.credited != 2500 {
			t.Fatalf("expected credit of 2500, got %d", wallets.credited)
		}
	})

	t.Run("rejects non-POST", func(t *testing.T) {
		h := newWebhookHandler(t, &stubWallets{})
		req := httptest.NewRequest(http.MethodGet, "/webhook/stripe", nil)
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405 got %d", rec.Code)
		}
	})

	t.Run("rejects missing signature without invoking handlers", func(t *testing.T) {
		wallets := &stubWallets{}
		h := newWebhookHandler(t, wallets)
		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["error"] != "Missing Stripe signature" {
			t.Fatalf("unexpected error %q", body["error"])
		}
		if wallets.credited != 0 {
			t.Fatal("no handler may run without a signature")
		}
	})

	t.Run("rejects bad signature", func(t *testing.T) {
		h := newWebhookHandler(t, &stubWallets{})
		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		bad := []byte(`{not json`)
		h := newWebhookHandler(t, &stubWallets{})
		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader(bad))
		req.Header.Set("Stripe-Signature", sign(bad))
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})
}
