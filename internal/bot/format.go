package bot

import (
	"fmt"
	"html"

	"telemux/internal/model"
)

const (
	msgNoActiveSession        = "No active session. Reply with: session-name: message"
	msgNoActiveSessionCapture = "No active session. Send a message first."
	msgNoSessions             = "No tmux sessions are running"
	msgCaptureFailed          = "Capture failed"
	msgAutoCaptureOn          = "Auto-capture ON. Will capture after each message."
	msgAutoCaptureOff         = "Auto-capture OFF."
)

func formatSessionNotFound(session string, active int) string {
	return fmt.Sprintf("Session <b>%s</b> not found. %d active session(s).", html.EscapeString(session), active)
}

func formatDelivered(session string) string {
	return fmt.Sprintf("Message delivered to <b>%s</b>", html.EscapeString(session))
}

func formatDeliveryFailed(session string) string {
	return fmt.Sprintf("Failed to deliver message to <b>%s</b>", html.EscapeString(session))
}

// formatCapture renders an on-demand or auto capture.
func formatCapture(session string, res model.CaptureResult) string {
	return fmt.Sprintf("<b>%s:</b>\n<pre>%s</pre>", html.EscapeString(session), html.EscapeString(res.Text))
}

// formatOutput renders the output of a bypass command.
func formatOutput(session string, res model.CaptureResult) string {
	return fmt.Sprintf("<b>Output from %s:</b>\n<pre>%s</pre>", html.EscapeString(session), html.EscapeString(res.Text))
}

func formatExecuted(session, note string) string {
	return fmt.Sprintf("Command executed in <b>%s</b> (%s)", html.EscapeString(session), note)
}

func formatAutoCaptureStatus(on bool) string {
	if on {
		return "Auto-capture: ON"
	}
	return "Auto-capture: OFF"
}
