// Package notify delivers operator alerts. The bot runs unattended, so
// anything that stops a path dead (an unrecoverable balance, repeated feed
// failures) has to reach a human through a channel they actually watch.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pmoerman/quadbot/internal/domain"
)

// Sender is one delivery channel for operator alerts.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs, e.g. "telegram".
	Name() string
}

// Notifier fans an alert out to every configured channel. A channel failing
// does not stop delivery to the others.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier creates a Notifier over the given channels. With no channels
// configured every alert is a no-op, which keeps call sites unconditional.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Alert delivers a titled message to all channels.
func (n *Notifier) Alert(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var failed []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			failed = append(failed, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.Debug("alert delivered",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(failed) > 0 {
		return fmt.Errorf("notify: %d channel(s) failed: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

// PathUnrecoverable alerts that a path needs manual intervention: funds may
// be stranded mid-route and the bot will not touch the path again.
func (n *Notifier) PathUnrecoverable(ctx context.Context, p *domain.Path) error {
	message := fmt.Sprintf(
		"Path %s on %s\nRoute: %s\nGain: %.2f%%\nFunds may be stranded mid-route; check balances and open orders.",
		p.ID, p.Exchange, p.Route(), p.Gain,
	)
	return n.Alert(ctx, "Path needs manual intervention", message)
}
