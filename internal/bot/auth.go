package bot

import (
	"telemux/internal/config"
	"telemux/internal/model"
)

// Authorize reports whether u comes from the configured chat and, when one
// is configured, the configured user.
func Authorize(cfg *config.Config, u model.Update) bool {
	return cfg.IsAuthorized(u.SenderChatID, u.SenderID)
}

func (b *Bot) authorize(u model.Update) bool {
	if Authorize(b.cfg, u) {
		return true
	}
	b.log.Warn("unauthorized message",
		"update_id", u.ID,
		"chat_id", u.SenderChatID,
		"user_id", u.SenderID,
		"expected_chat_id", b.cfg.ChatID,
	)
	return false
}
