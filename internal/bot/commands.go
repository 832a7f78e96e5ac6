package bot

import (
	"context"
	"strings"
)

// Command is a control-plane instruction recognized before routing.
type Command int

const (
	CmdCapture Command = iota + 1
	CmdCaptureOn
	CmdCaptureOff
	CmdCaptureStatus
)

var commands = map[string]Command{
	"capture":        CmdCapture,
	"capture on":     CmdCaptureOn,
	"capture off":    CmdCaptureOff,
	"capture status": CmdCaptureStatus,
}

// ParseCommand recognizes text as a command, ignoring case and surrounding
// whitespace.
func ParseCommand(text string) (Command, bool) {
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(text))]
	return cmd, ok
}

func (b *Bot) handleCommand(ctx context.Context, cmd Command) {
	switch cmd {
	case CmdCapture:
		session := b.state.LastActiveSession
		if session == "" {
			b.notify(ctx, msgNoActiveSessionCapture)
			return
		}
		b.log.Info("capture requested", "session", session)
		res, err := b.capture(ctx, session)
		if err != nil {
			b.log.Error("capture failed", "session", session, "error", err)
			b.notify(ctx, msgCaptureFailed)
			return
		}
		b.notify(ctx, formatCapture(session, res))

	case CmdCaptureOn, CmdCaptureOff:
		b.state.AutoCapture = cmd == CmdCaptureOn
		b.saveState()
		b.log.Info("auto-capture changed", "enabled", b.state.AutoCapture)
		if b.state.AutoCapture {
			b.notify(ctx, msgAutoCaptureOn)
		} else {
			b.notify(ctx, msgAutoCaptureOff)
		}

	case CmdCaptureStatus:
		b.notify(ctx, formatAutoCaptureStatus(b.state.AutoCapture))
	}
}
