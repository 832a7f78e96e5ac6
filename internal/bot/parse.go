package bot

import (
	"regexp"
	"strings"

	"telemux/internal/model"
)

// sessionPrefix matches "name: rest". REST may span lines and contain colons.
var sessionPrefix = regexp.MustCompile(`(?s)^([\p{L}\p{N}_-]+):\s*(.+)$`)

// ParseMessage splits raw operator text into target session, payload and the
// bypass flag. Text without a session prefix is routed implicitly and keeps
// its full original form as the payload.
func ParseMessage(text string) model.ParsedMessage {
	var msg model.ParsedMessage
	if m := sessionPrefix.FindStringSubmatch(text); m != nil {
		msg.TargetSession = m[1]
		msg.Payload = m[2]
	} else {
		msg.Payload = text
	}

	if rest, ok := strings.CutPrefix(msg.Payload, "!"); ok {
		msg.Payload = rest
		msg.Bypass = true
	}
	return msg
}
