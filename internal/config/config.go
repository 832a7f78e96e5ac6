// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	BotToken string
	// ChatID is the only chat allowed to drive the bot.
	ChatID string
	// UserID optionally narrows access to a single sender inside ChatID.
	UserID      string
	StateFile   string
	JournalPath string
	TmuxSocket  string
	LogLevel    string
	MetricsAddr string
}

// DefaultFile returns the path of the per-user config file.
func DefaultFile() string {
	return filepath.Join(homeDir(), ".telemux", "telegram_config")
}

// Load reads configuration from environment variables. If path names an
// existing file, its KEY=value (or export KEY=value) lines are loaded into
// the environment first; variables already set take precedence.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	token := os.Getenv("TELEMUX_TG_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEMUX_TG_BOT_TOKEN is required")
	}

	chatID := os.Getenv("TELEMUX_TG_CHAT_ID")
	if chatID == "" {
		return nil, fmt.Errorf("TELEMUX_TG_CHAT_ID is required")
	}
	if _, err := strconv.ParseInt(chatID, 10, 64); err != nil {
		return nil, fmt.Errorf("invalid TELEMUX_TG_CHAT_ID %q: %w", chatID, err)
	}

	userID := os.Getenv("TELEMUX_TG_USER_ID")
	if userID != "" {
		if _, err := strconv.ParseInt(userID, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid TELEMUX_TG_USER_ID %q: %w", userID, err)
		}
	}

	base := filepath.Join(homeDir(), ".telemux")

	return &Config{
		BotToken:    token,
		ChatID:      chatID,
		UserID:      userID,
		StateFile:   envOrDefault("TELEMUX_STATE_FILE", filepath.Join(base, "message_queue", "listener_state.json")),
		JournalPath: envOrDefault("TELEMUX_JOURNAL_PATH", filepath.Join(base, "journal.db")),
		TmuxSocket:  os.Getenv("TELEMUX_TMUX_SOCKET"),
		LogLevel:    envOrDefault("TELEMUX_LOG_LEVEL", "info"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}, nil
}

// ChatIDInt returns ChatID as the integer form the Telegram API expects.
// Load has already validated it.
func (c *Config) ChatIDInt() int64 {
	id, _ := strconv.ParseInt(c.ChatID, 10, 64)
	return id
}

// IsAuthorized reports whether a message from the given chat and sender may
// drive the bot. The chat must match; the sender is checked only when a
// user ID is configured.
func (c *Config) IsAuthorized(chatID, userID string) bool {
	if chatID != c.ChatID {
		return false
	}
	if c.UserID != "" && userID != c.UserID {
		return false
	}
	return true
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "."
}
