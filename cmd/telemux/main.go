package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"telemux/internal/bot"
	"telemux/internal/config"
	"telemux/internal/metrics"
	"telemux/internal/state"
	"telemux/internal/storage"
	"telemux/internal/telegram"
	"telemux/internal/tmux"
)

func main() {
	configPath := flag.String("config", envOrDefault("TELEMUX_CONFIG", config.DefaultFile()), "path to the dotenv config file")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: telemux [--config path]")
		fmt.Fprintln(os.Stderr, "")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("telemux failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go m.Serve(ctx, cfg.MetricsAddr, log)
	}

	journal := openJournal(cfg.JournalPath, log)
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	store := state.NewStore(cfg.StateFile)

	tg, err := telegram.New(ctx, cfg.BotToken, cfg.ChatIDInt(), log, m)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("stopped before connecting to telegram")
			return nil
		}
		return fmt.Errorf("create telegram client: %w", err)
	}

	b, err := bot.New(bot.Options{
		Config:   cfg,
		Poller:   tg,
		Notifier: tg,
		Tmux:     tmux.New(cfg.TmuxSocket),
		State:    store,
		Journal:  journal,
		Metrics:  m,
		Log:      log,
	})
	if err != nil {
		return fmt.Errorf("create bot with state file %s: %w", store.Path(), err)
	}

	log.Info("starting telemux", "chat_id", cfg.ChatID, "state_file", store.Path())

	b.Run(ctx)

	log.Info("telemux stopped")
	return nil
}

// openJournal returns nil when the journal cannot be opened; routing works
// without it.
func openJournal(path string, log *slog.Logger) storage.Journal {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		log.Error("create journal directory", "path", path, "error", err)
		return nil
	}
	j, err := storage.NewSQLite(path)
	if err != nil {
		log.Error("open journal", "path", path, "error", err)
		return nil
	}
	return j
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
