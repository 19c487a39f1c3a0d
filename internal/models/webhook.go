package models

import (
	"encoding/json"
	"time"
)

// EventType is a closed enumeration of the provider webhook events the
// dispatcher understands. Anything else routes to the unknown branch.
type EventType string

const (
	EventPaymentSucceeded    EventType = "payment_intent.succeeded"
	EventPaymentFailed       EventType = "payment_intent.payment_failed"
	EventSubscriptionCreated EventType = "customer.subscription.created"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
	EventInvoicePaySucceeded EventType = "invoice.payment_succeeded"
	EventInvoicePayFailed    EventType = "invoice.payment_failed"
)

// WebhookEvent is a decoded provider notification. It is processed once per
// provider event id and never persisted beyond the dedup record.
type WebhookEvent struct {
	ID      string          `json:"id"`
	Type    EventType       `json:"type"`
	Created int64           `json:"created"`
	Data    WebhookData     `json:"data"`
	Raw     json.RawMessage `json:"-"`
}

type WebhookData struct {
	Object WebhookObject `json:"object"`
}

// WebhookObject carries the subset of provider payload fields the handlers
// read. AmountCents follows the provider convention of integer cents.
type WebhookObject struct {
	ID          string            `json:"id"`
	AmountCents int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Customer    string            `json:"customer"`
	Metadata    map[string]string `json:"metadata"`
}

// DispatchResult is what the dispatcher reports back to the webhook endpoint.
type DispatchResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ProcessedEvent records a provider event id that has been handled, keyed
// unique per provider so redelivery is a no-op.
type ProcessedEvent struct {
	Provider  string    `json:"provider"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	CreatedAt time.Time `json:"created_at"`
}
