package discord

import (
	"context"
	"log/slog"

	"github.com/eternisai/assignment-relay/internal/assignments"
	apperrors "github.com/eternisai/assignment-relay/internal/errors"
	"github.com/eternisai/assignment-relay/internal/logger"
)

// Transport is the part of the chat session the notifier needs.
type Transport interface {
	ResolveChannel(ctx context.Context, channelID string) (string, error)
	SendMessage(ctx context.Context, channelID, content string) error
}

// Notifier announces assignments in a single preconfigured channel.
type Notifier struct {
	transport Transport
	channelID string
	logger    *logger.Logger
}

// NewNotifier creates a notifier posting into channelID.
func NewNotifier(transport Transport, channelID string, logger *logger.Logger) *Notifier {
	return &Notifier{
		transport: transport,
		channelID: channelID,
		logger:    logger.WithComponent("discord_notifier"),
	}
}

// Notify renders a and sends it as one message. Failures to resolve the
// channel or to send are returned as *errors.DeliveryError. There is no retry.
func (n *Notifier) Notify(ctx context.Context, a assignments.Assignment) error {
	log := n.logger.WithContext(ctx)

	channelID, err := n.transport.ResolveChannel(ctx, n.channelID)
	if err != nil {
		return &apperrors.DeliveryError{AssignmentID: a.ID, Err: err}
	}

	if err := n.transport.SendMessage(ctx, channelID, RenderMessage(a)); err != nil {
		return &apperrors.DeliveryError{AssignmentID: a.ID, Err: err}
	}

	log.Info("📤 announced assignment",
		slog.String("title", a.Title),
		slog.String("channel_id", channelID))

	return nil
}
