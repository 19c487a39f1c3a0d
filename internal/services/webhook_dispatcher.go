package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"prontoBack/internal/models"
)

const webhookProvider = "stripe"

// ProcessedEventStore is the durable processed-event record.
type ProcessedEventStore interface {
	MarkProcessed(ctx context.Context, provider, eventID, eventType string) error
}

// EventCache short-circuits hot duplicate deliveries before the DB is hit.
// Seen and MarkSeen are separate on purpose: an event is only marked after its
// handlers succeed, so a failed delivery never poisons the cache.
type EventCache interface {
	Seen(ctx context.Context, provider, eventID string) (bool, error)
	MarkSeen(ctx context.Context, provider, eventID string) error
}

// WalletCreditor is the wallet mutation surface the dispatcher needs.
type WalletCreditor interface {
	Credit(ctx context.Context, userID int, amountCents int64, description string, providerRef *string) (models.Transaction, error)
	ConfirmRecharge(ctx context.Context, rechargeRef string) (models.Transaction, error)
	MarkRechargeFailed(ctx context.Context, providerRef string) error
}

// CustomerStore toggles subscription state on the local customer record.
type CustomerStore interface {
	SetPremiumByCustomer(ctx context.Context, customerID string, premium bool) error
}

// Notifier delivers user-facing notifications. Failures are logged, never
// propagated: notification problems must not fail a payment dispatch.
type Notifier interface {
	Notify(ctx context.Context, userID int, title, body string) error
}

// WebhookDispatcher routes verified provider events to their local effect.
// Delivery is at-least-once, so every effect is idempotent per event id.
type WebhookDispatcher struct {
	Events   ProcessedEventStore
	Cache    EventCache
	Wallets  WalletCreditor
	Users    CustomerStore
	Notifier Notifier
	Logger   *slog.Logger
}

// Dispatch processes one decoded event. Recognized-but-unprocessable types and
// duplicates are acknowledged so the provider stops retrying; only handler
// failures report success=false.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event models.WebhookEvent) (result models.DispatchResult) {
	defer func() {
		if rec := recover(); rec != nil {
			d.Logger.Error("webhook: handler panic", "event_id", event.ID, "type", event.Type, "panic", rec)
			result = models.DispatchResult{Success: false, Message: "Internal server error"}
		}
	}()

	if d.Cache != nil {
		seen, err := d.Cache.Seen(ctx, webhookProvider, event.ID)
		if err != nil {
			// Cache trouble is not a reason to drop the event; the DB record
			// below still guards correctness.
			d.Logger.Warn("webhook: event cache unavailable", "error", err)
		} else if seen {
			return models.DispatchResult{Success: true, Message: "event already processed"}
		}
	}

	// Handle first, record second. A transient handler failure must leave no
	// processed record, or the provider's retry would be acknowledged as a
	// duplicate with the work never done. Duplicate deliveries racing through
	// this window are stopped by the effect-level guards (the credit's
	// provider_ref key, absolute premium-flag writes).
	if err := d.handle(ctx, event); err != nil {
		d.Logger.Error("webhook: handle event", "event_id", event.ID, "type", event.Type, "error", err)
		return models.DispatchResult{Success: false, Message: "Internal server error"}
	}

	err := d.Events.MarkProcessed(ctx, webhookProvider, event.ID, string(event.Type))
	if errors.Is(err, models.ErrDuplicateEvent) {
		return models.DispatchResult{Success: true, Message: "event already processed"}
	}
	if err != nil {
		// Effects are applied but the record is not: fail so the provider
		// retries until the record lands. The retry re-runs idempotent
		// handlers, nothing is applied twice.
		d.Logger.Error("webhook: record event", "event_id", event.ID, "error", err)
		return models.DispatchResult{Success: false, Message: "Internal server error"}
	}

	if d.Cache != nil {
		if err := d.Cache.MarkSeen(ctx, webhookProvider, event.ID); err != nil {
			d.Logger.Warn("webhook: event cache unavailable", "error", err)
		}
	}
	return models.DispatchResult{Success: true, Message: "received"}
}

func (d *WebhookDispatcher) handle(ctx context.Context, event models.WebhookEvent) error {
	obj := event.Data.Object

	switch event.Type {
	case models.EventPaymentSucceeded:
		return d.creditWallet(ctx, event, "Wallet recharge")

	case models.EventPaymentFailed:
		// Pending rows are keyed by the intent reference from the metadata;
		// the payment id is the fallback for top-ups started elsewhere.
		ref := obj.Metadata["recharge_ref"]
		if ref == "" {
			ref = obj.ID
		}
		if ref != "" {
			if err := d.Wallets.MarkRechargeFailed(ctx, ref); err != nil {
				return fmt.Errorf("mark recharge failed: %w", err)
			}
		}
		d.notify(ctx, userIDFromMetadata(obj.Metadata), "Pagamento non riuscito", "La ricarica del portafoglio non è andata a buon fine.")
		return nil

	case models.EventSubscriptionCreated:
		return d.Users.SetPremiumByCustomer(ctx, obj.Customer, true)

	case models.EventSubscriptionDeleted:
		return d.Users.SetPremiumByCustomer(ctx, obj.Customer, false)

	case models.EventInvoicePaySucceeded:
		// Renewal confirmation keeps the premium flag in sync.
		return d.Users.SetPremiumByCustomer(ctx, obj.Customer, true)

	case models.EventInvoicePayFailed:
		d.notify(ctx, userIDFromMetadata(obj.Metadata), "Rinnovo non riuscito", "Il pagamento dell'abbonamento non è andato a buon fine.")
		return nil

	default:
		d.Logger.Info("webhook: unhandled event type", "event_id", event.ID, "type", event.Type)
		return nil
	}
}

func (d *WebhookDispatcher) creditWallet(ctx context.Context, event models.WebhookEvent, description string) error {
	obj := event.Data.Object
	userID := userIDFromMetadata(obj.Metadata)
	if userID == 0 {
		return fmt.Errorf("event %s has no user_id metadata", event.ID)
	}
	if obj.AmountCents <= 0 {
		return fmt.Errorf("event %s has non-positive amount %d", event.ID, obj.AmountCents)
	}

	if rechargeRef := obj.Metadata["recharge_ref"]; rechargeRef != "" {
		// The checkout flow echoes the intent reference back through the
		// provider metadata, so the confirmation settles that exact pending
		// row instead of inserting a second credit.
		_, err := d.Wallets.ConfirmRecharge(ctx, rechargeRef)
		switch {
		case errors.Is(err, models.ErrDuplicatePayment):
			d.Logger.Info("webhook: recharge already settled", "recharge_ref", rechargeRef)
			return nil
		case errors.Is(err, models.ErrNoRecord):
			// Unknown reference; fall through to a direct credit.
			d.Logger.Warn("webhook: no pending recharge for reference", "recharge_ref", rechargeRef)
		case err != nil:
			return fmt.Errorf("confirm recharge: %w", err)
		default:
			d.notify(ctx, userID, "Ricarica completata", fmt.Sprintf("Il tuo portafoglio è stato ricaricato di €%.2f.", float64(obj.AmountCents)/100))
			return nil
		}
	}

	ref := obj.ID
	_, err := d.Wallets.Credit(ctx, userID, obj.AmountCents, description, &ref)
	if errors.Is(err, models.ErrDuplicatePayment) {
		// Redelivery that slipped past the event record; the ledger itself
		// refuses the second credit.
		d.Logger.Info("webhook: payment already credited", "payment_id", obj.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	d.notify(ctx, userID, "Ricarica completata", fmt.Sprintf("Il tuo portafoglio è stato ricaricato di €%.2f.", float64(obj.AmountCents)/100))
	return nil
}

// notify is fail-soft: a notification error is logged and swallowed.
func (d *WebhookDispatcher) notify(ctx context.Context, userID int, title, body string) {
	if d.Notifier == nil || userID == 0 {
		return
	}
	if err := d.Notifier.Notify(ctx, userID, title, body); err != nil {
		d.Logger.Warn("webhook: notification failed", "user_id", userID, "error", err)
	}
}

func userIDFromMetadata(metadata map[string]string) int {
	raw, ok := metadata["user_id"]
	if !ok {
		return 0
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return id
}

// LogNotifier is the default Notifier: it records the notification instead of
// delivering it. Push delivery belongs to an external collaborator.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, userID int, title, body string) error {
	n.Logger.Info("notify", "user_id", userID, "title", title, "body", body)
	return nil
}

// RedisEventCache implements EventCache with a TTL key per event, so replayed
// deliveries within the window never reach the database.
type RedisEventCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func (c *RedisEventCache) Seen(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := c.RDB.Exists(ctx, eventCacheKey(provider, eventID)).Result()
	return n > 0, err
}

func (c *RedisEventCache) MarkSeen(ctx context.Context, provider, eventID string) error {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return c.RDB.Set(ctx, eventCacheKey(provider, eventID), 1, ttl).Err()
}

func eventCacheKey(provider, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", provider, eventID)
}
