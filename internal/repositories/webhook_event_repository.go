package repositories

import (
	"context"
	"database/sql"

	"prontoBack/internal/models"
)

// WebhookEventRepository is the durable record of processed provider events.
// The unique (provider, event_id) key is what makes at-least-once delivery
// safe: the second insert of the same event fails and the dispatcher skips it.
type WebhookEventRepository struct {
	DB *sql.DB
}

// MarkProcessed records the event id. Returns ErrDuplicateEvent when the event
// was already recorded by an earlier delivery.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, provider, eventID, eventType string) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO webhook_events (provider, event_id, event_type) VALUES (?, ?, ?)`,
		provider, eventID, eventType)
	if isDuplicateKeyError(err) {
		return models.ErrDuplicateEvent
	}
	return err
}
