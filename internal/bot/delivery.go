package bot

import (
	"context"
	"fmt"
	"time"

	"telemux/internal/model"
)

const (
	// bufferDelay lets tmux take in the typed text before Enter is sent.
	bufferDelay = time.Second

	replyHint = `# Respond using: tg_agent "your response"`
)

// deliver types text followed by the reply hint into session and presses
// Enter. Any failing step fails the whole delivery; nothing is retried.
func (b *Bot) deliver(ctx context.Context, session, text string) error {
	steps := []struct {
		state model.DeliveryState
		run   func() error
	}{
		{model.StateSendingText, func() error {
			return b.tmux.SendText(ctx, session, text+"\n"+replyHint)
		}},
		{model.StateAwaitBuffer, func() error {
			b.sleep(bufferDelay)
			return nil
		}},
		{model.StateSendingEnter, func() error {
			return b.tmux.SendEnter(ctx, session)
		}},
	}

	for _, s := range steps {
		b.log.Debug("delivery step", "session", session, "state", s.state)
		if err := s.run(); err != nil {
			b.log.Error("delivery failed",
				"session", session,
				"step", s.state,
				"state", model.StateFailed,
				"error", err,
			)
			return fmt.Errorf("%s: %w", s.state, err)
		}
	}

	b.log.Info("message delivered", "session", session, "state", model.StateDelivered)
	return nil
}
