package services

import (
	"context"
	"log/slog"

	"github.com/sindh/backend/internal/metrics"
	"github.com/sindh/backend/internal/models"
)

// Notifier hands a notification to the delivery pipeline.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// deliver is fire-and-forget: failures are logged and returned as warnings.
func deliver(ctx context.Context, notifier Notifier, logger *slog.Logger, list []models.Notification) []string {
	if notifier == nil {
		return nil
	}
	var warnings []string
	for _, n := range list {
		if err := notifier.Notify(ctx, n); err != nil {
			metrics.RecordNotification(false)
			logger.Warn("notification failed", "type", n.Type, "recipient_id", n.RecipientID, "error", err)
			warnings = append(warnings, "notification to "+n.RecipientID.String()+" failed: "+err.Error())
			continue
		}
		metrics.RecordNotification(true)
	}
	return warnings
}
