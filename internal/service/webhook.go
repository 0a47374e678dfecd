package service

import (
	"context"
	"log/slog"

	"github.com/replyreminder/replyreminder/internal/messenger"
	"github.com/replyreminder/replyreminder/internal/metrics"
)

// HandleWebhook processes one webhook delivery. A Get Started postback sends
// the login button to its sender; other events are only logged.
// Send failures are logged and do not fail the delivery.
func (s *ReminderService) HandleWebhook(ctx context.Context, payload *messenger.Payload) error {
	if payload.Object != messenger.ObjectPage {
		return notFoundError("unsupported object", nil)
	}

	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			s.handleEvent(ctx, event)
		}
	}
	return nil
}

func (s *ReminderService) handleEvent(ctx context.Context, event messenger.Event) {
	sender := event.Sender.ID

	switch {
	case event.Postback != nil:
		s.metrics.IncWebhookEvent(metrics.EventPostback)
		s.logger.Info("postback received",
			slog.String("sender", sender),
			slog.String("payload", event.Postback.Payload),
		)
		if !event.IsGetStarted() {
			return
		}
		if _, err := s.chat.SendLoginButton(ctx, sender); err != nil {
			s.logger.Error("failed to send login button",
				slog.String("sender", sender),
				slog.String("error", err.Error()),
			)
		}

	case event.Message != nil:
		s.metrics.IncWebhookEvent(metrics.EventMessage)
		s.logger.Info("message received", slog.String("sender", sender))

	default:
		s.metrics.IncWebhookEvent(metrics.EventOther)
		s.logger.Info("unrecognized messaging event", slog.String("sender", sender))
	}
}
