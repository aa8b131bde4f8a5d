package service

import (
	"context"
	"fmt"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

// notifier fans a completed write out to the event bus and the audit log.
// Both are best effort: failures are logged and never fail the operation.
type notifier struct {
	events domain.EventPublisher
	audit  domain.AuditSink
	logger *zerolog.Logger
}

func newNotifier(events domain.EventPublisher, audit domain.AuditSink, logger *zerolog.Logger) notifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return notifier{events: events, audit: audit, logger: logger}
}

func (n notifier) publish(eventType string, payload interface{}) {
	if n.events == nil {
		return
	}
	if err := n.events.PublishJSON(eventType, payload); err != nil {
		n.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func (n notifier) record(ctx context.Context, actor models.Actor, action string, format string, args ...interface{}) {
	if n.audit == nil {
		return
	}
	entry := &models.ActivityLog{
		UserID:    actor.UserID,
		Action:    action,
		Details:   fmt.Sprintf(format, args...),
		IPAddress: actor.IP,
	}
	if err := n.audit.Enqueue(ctx, entry); err != nil {
		n.logger.Warn().Err(err).Str("action", action).Msg("audit enqueue error")
	}
}
