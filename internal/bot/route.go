package bot

import (
	"context"
	"errors"
	"slices"

	"telemux/internal/model"
	"telemux/internal/tmux"
)

// route resolves the target of msg and delivers it.
func (b *Bot) route(ctx context.Context, msg model.ParsedMessage) result {
	session := msg.TargetSession
	if session == "" {
		session = b.state.LastActiveSession
	}
	if session == "" {
		b.log.Info("no target session", "bypass", msg.Bypass)
		b.notify(ctx, msgNoActiveSession)
		return result{outcome: model.OutcomeNoActiveSession, bypass: msg.Bypass}
	}

	if outcome, ok := b.resolveSession(ctx, session); !ok {
		return result{outcome: outcome, session: session, bypass: msg.Bypass}
	}

	if msg.Bypass {
		b.log.Warn("sanitization disabled", "session", session)
	}
	if err := b.deliver(ctx, session, Sanitize(msg.Payload, msg.Bypass)); err != nil {
		b.notify(ctx, formatDeliveryFailed(session))
		return result{outcome: model.OutcomeDeliveryFailed, session: session, bypass: msg.Bypass, err: err}
	}

	b.state.LastActiveSession = session
	b.saveState()
	b.afterDelivery(ctx, session, msg.Bypass)

	return result{outcome: model.OutcomeDelivered, session: session, bypass: msg.Bypass}
}

// resolveSession checks session against the running tmux sessions. On a
// miss it notifies the operator and returns the terminal outcome.
func (b *Bot) resolveSession(ctx context.Context, session string) (model.Outcome, bool) {
	b.log.Debug("delivery step", "session", session, "state", model.StateResolving)

	sessions, err := b.tmux.ListSessions(ctx)
	if err != nil {
		if errors.Is(err, tmux.ErrNoSessions) {
			b.log.Info("no tmux server running", "error", err)
		} else {
			b.log.Warn("list tmux sessions", "error", err)
		}
		b.notify(ctx, msgNoSessions)
		return model.OutcomeNoSessions, false
	}
	if !slices.Contains(sessions, session) {
		b.log.Info("session not found", "session", session, "active", len(sessions))
		b.notify(ctx, formatSessionNotFound(session, len(sessions)))
		return model.OutcomeSessionNotFound, false
	}
	return "", true
}
