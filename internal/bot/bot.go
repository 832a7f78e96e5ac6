// Package bot routes operator messages from Telegram into tmux sessions and
// reports the results back.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"telemux/internal/config"
	"telemux/internal/metrics"
	"telemux/internal/model"
	"telemux/internal/storage"
	"telemux/internal/tmux"
)

// idleDelay is the pause after a poll that returned nothing.
const idleDelay = time.Second

// Poller fetches the next batch of updates at or after offset.
type Poller interface {
	Poll(ctx context.Context, offset int) []model.Update
}

// Notifier sends an HTML message to the operator chat.
type Notifier interface {
	Send(ctx context.Context, text string) bool
}

// StateStore loads and saves the listener state.
type StateStore interface {
	Load() (model.ListenerState, error)
	Save(st model.ListenerState) error
}

// Options carries the collaborators of a Bot.
type Options struct {
	Config   *config.Config
	Poller   Poller
	Notifier Notifier
	Tmux     tmux.Adapter
	State    StateStore
	// Journal is optional.
	Journal storage.Journal
	// Metrics is optional.
	Metrics *metrics.Metrics
	Log     *slog.Logger
	// Sleep replaces time.Sleep for the settle delays.
	Sleep func(time.Duration)
}

// Bot runs the poll, route, persist loop. It is not safe for concurrent
// use; Run processes updates one at a time.
type Bot struct {
	cfg      *config.Config
	poller   Poller
	notifier Notifier
	tmux     tmux.Adapter
	store    StateStore
	journal  storage.Journal
	metrics  *metrics.Metrics
	log      *slog.Logger
	sleep    func(time.Duration)

	state model.ListenerState
}

// New creates a Bot and loads the persisted state.
func New(opts Options) (*Bot, error) {
	st, err := opts.State.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Bot{
		cfg:      opts.Config,
		poller:   opts.Poller,
		notifier: opts.Notifier,
		tmux:     opts.Tmux,
		store:    opts.State,
		journal:  opts.Journal,
		metrics:  opts.Metrics,
		log:      opts.Log,
		sleep:    sleep,
		state:    st,
	}, nil
}

// State returns a copy of the current listener state.
func (b *Bot) State() model.ListenerState {
	return b.state
}

// Run polls and processes updates until ctx is cancelled. Cancellation is
// checked between updates, never during one.
func (b *Bot) Run(ctx context.Context) {
	b.log.Info("listening for messages", "offset", b.state.Offset)

	for ctx.Err() == nil {
		updates := b.poller.Poll(ctx, b.state.Offset)
		for _, u := range updates {
			b.process(ctx, u)
			if ctx.Err() != nil {
				return
			}
		}

		if len(updates) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleDelay):
			}
		}
	}
}

// result describes how one update ended.
type result struct {
	outcome model.Outcome
	session string
	bypass  bool
	err     error
}

// process runs the pipeline for u and then advances and saves the offset,
// whatever the outcome.
func (b *Bot) process(ctx context.Context, u model.Update) {
	ctx = context.WithoutCancel(ctx)

	res := b.handleUpdate(ctx, u)

	if next := u.ID + 1; next > b.state.Offset {
		b.state.Offset = next
	}
	b.saveState()
	b.record(ctx, u, res)
	b.metrics.Update(string(res.outcome))
}

func (b *Bot) handleUpdate(ctx context.Context, u model.Update) (res result) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("processing update panicked", "update_id", u.ID, "panic", r)
			res = result{outcome: model.OutcomeError, err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if !u.HasMessage {
		b.log.Debug("skipping update without message", "update_id", u.ID)
		return result{outcome: model.OutcomeIgnored}
	}

	b.log.Info("received message",
		"update_id", u.ID,
		"from", u.SenderName,
		"user_id", u.SenderID,
		"chat_id", u.SenderChatID,
		"text", preview(u.Text, 50),
	)

	if !b.authorize(u) {
		return result{outcome: model.OutcomeUnauthorized}
	}

	if cmd, ok := ParseCommand(u.Text); ok {
		b.handleCommand(ctx, cmd)
		return result{outcome: model.OutcomeCommand, session: b.state.LastActiveSession}
	}

	if u.Text == "" {
		b.log.Debug("skipping message without text", "update_id", u.ID)
		return result{outcome: model.OutcomeIgnored}
	}

	return b.route(ctx, ParseMessage(u.Text))
}

func (b *Bot) notify(ctx context.Context, text string) {
	if !b.notifier.Send(ctx, text) {
		b.log.Error("notify operator failed", "text", preview(text, 50))
	}
}

func (b *Bot) saveState() {
	if err := b.store.Save(b.state); err != nil {
		b.log.Error("save state", "error", err)
	}
}

func (b *Bot) record(ctx context.Context, u model.Update, res result) {
	if b.journal == nil {
		return
	}
	d := &model.Delivery{
		UpdateID: u.ID,
		ChatID:   u.SenderChatID,
		Session:  res.session,
		Outcome:  res.outcome,
		Bypass:   res.bypass,
	}
	if res.err != nil {
		d.Error = res.err.Error()
	}
	if err := b.journal.Record(ctx, d); err != nil {
		b.log.Error("record delivery", "update_id", u.ID, "error", err)
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
