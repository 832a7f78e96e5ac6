package bot

import (
	"context"
	"strings"
	"time"

	"telemux/internal/model"
)

const (
	captureLines    = 100
	maxCaptureChars = 3800
	truncatedMarker = "\n\n[...truncated to last 3800 characters]"

	bypassSettle      = 2 * time.Second
	autoCaptureSettle = 5 * time.Second
)

// Truncate trims surrounding whitespace from raw pane output and keeps only
// the trailing maxCaptureChars runes, followed by a marker, when longer.
func Truncate(raw string) model.CaptureResult {
	out := strings.TrimSpace(raw)
	r := []rune(out)
	if len(r) <= maxCaptureChars {
		return model.CaptureResult{Text: out}
	}
	return model.CaptureResult{
		Text:      string(r[len(r)-maxCaptureChars:]) + truncatedMarker,
		Truncated: true,
	}
}

func (b *Bot) capture(ctx context.Context, session string) (model.CaptureResult, error) {
	raw, err := b.tmux.CapturePane(ctx, session, captureLines)
	if err != nil {
		return model.CaptureResult{}, err
	}
	res := Truncate(raw)
	if res.Truncated {
		b.log.Debug("capture truncated", "session", session)
	}
	return res, nil
}

// afterDelivery sends the post-delivery notification: captured output for
// bypass deliveries and auto-capture, a plain confirmation otherwise.
func (b *Bot) afterDelivery(ctx context.Context, session string, bypass bool) {
	switch {
	case bypass:
		b.log.Info("bypass mode, capturing output", "session", session)
		b.sleep(bypassSettle)
		res, err := b.capture(ctx, session)
		switch {
		case err != nil:
			b.log.Error("capture failed", "session", session, "error", err)
			b.notify(ctx, formatExecuted(session, "capture failed"))
		case res.Text == "":
			b.notify(ctx, formatExecuted(session, "no output"))
		default:
			b.notify(ctx, formatOutput(session, res))
		}

	case b.state.AutoCapture:
		b.log.Info("auto-capture enabled, waiting", "session", session, "delay", autoCaptureSettle)
		b.sleep(autoCaptureSettle)
		res, err := b.capture(ctx, session)
		if err != nil {
			b.log.Error("capture failed", "session", session, "error", err)
			b.notify(ctx, msgCaptureFailed)
			return
		}
		b.notify(ctx, formatCapture(session, res))

	default:
		b.notify(ctx, formatDelivered(session))
	}
}
