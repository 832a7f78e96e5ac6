// Package tmuxtest provides a deterministic in-memory tmux.Adapter.
package tmuxtest

import (
	"context"
	"fmt"
	"sync"

	"telemux/internal/tmux"
)

// Call is one recorded adapter invocation.
type Call struct {
	Op      string
	Session string
	Text    string
}

// Operation names recorded in Call.Op.
const (
	OpList    = "list"
	OpText    = "text"
	OpEnter   = "enter"
	OpCapture = "capture"
)

// Fake implements tmux.Adapter over a fixed session list.
type Fake struct {
	mu sync.Mutex

	Sessions []string
	// NoServer makes ListSessions fail as if no tmux server were running.
	NoServer bool
	// Panes maps session name to the scrollback CapturePane returns.
	Panes map[string]string

	FailText    bool
	FailEnter   bool
	FailCapture bool

	calls []Call
}

var _ tmux.Adapter = (*Fake)(nil)

// New returns a Fake with the given running sessions.
func New(sessions ...string) *Fake {
	return &Fake{Sessions: sessions, Panes: map[string]string{}}
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// ListSessions implements tmux.Adapter.
func (f *Fake) ListSessions(_ context.Context) ([]string, error) {
	f.record(Call{Op: OpList})
	if f.NoServer {
		return nil, fmt.Errorf("%w: %w: no server running", tmux.ErrNoSessions, tmux.ErrCommand)
	}
	return append([]string(nil), f.Sessions...), nil
}

// SendText implements tmux.Adapter.
func (f *Fake) SendText(_ context.Context, session, text string) error {
	f.record(Call{Op: OpText, Session: session, Text: text})
	if f.FailText {
		return fmt.Errorf("%w: send-keys", tmux.ErrCommand)
	}
	return nil
}

// SendEnter implements tmux.Adapter.
func (f *Fake) SendEnter(_ context.Context, session string) error {
	f.record(Call{Op: OpEnter, Session: session})
	if f.FailEnter {
		return fmt.Errorf("%w: send-keys", tmux.ErrCommand)
	}
	return nil
}

// CapturePane implements tmux.Adapter.
func (f *Fake) CapturePane(_ context.Context, session string, _ int) (string, error) {
	f.record(Call{Op: OpCapture, Session: session})
	if f.FailCapture {
		return "", fmt.Errorf("%w: capture-pane", tmux.ErrCommand)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Panes[session], nil
}

// Calls returns a copy of every recorded invocation in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// KeyCalls returns only the SendText and SendEnter invocations.
func (f *Fake) KeyCalls() []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == OpText || c.Op == OpEnter {
			out = append(out, c)
		}
	}
	return out
}
