// Package tmux drives the user's tmux server: listing sessions, typing into
// them and reading their scrollback.
package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrCommand is returned when a tmux invocation exits non-zero or cannot be
// started.
var ErrCommand = errors.New("tmux command failed")

// ErrNoSessions is returned by ListSessions when no tmux server answers,
// which tmux reports the same way as having no sessions.
var ErrNoSessions = errors.New("no tmux sessions running")

// Adapter is the set of multiplexer operations the router depends on.
type Adapter interface {
	// ListSessions returns the names of running sessions. It fails with
	// ErrNoSessions when no server is reachable.
	ListSessions(ctx context.Context) ([]string, error)
	// SendText types text into the session literally, without pressing Enter.
	SendText(ctx context.Context, session, text string) error
	// SendEnter presses Enter in the session.
	SendEnter(ctx context.Context, session string) error
	// CapturePane returns the last lines of the session's scrollback.
	CapturePane(ctx context.Context, session string, lines int) (string, error)
}

// Runner executes a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec. TMUX is removed from the child
// environment so commands reach the user's server even when telemux itself
// runs inside tmux.
type ExecRunner struct{}

// Run executes name with args and returns stdout. A non-zero exit wraps
// ErrCommand and carries stderr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = withoutTMUX(os.Environ())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%w: %s %s: %s", ErrCommand, name, firstArg(args), msg)
	}
	return stdout.String(), nil
}

func withoutTMUX(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "TMUX=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func firstArg(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return ""
}

// Client is the production Adapter backed by the tmux binary.
type Client struct {
	runner Runner
	socket string
}

// New returns a Client. An empty socket targets the default server;
// otherwise commands use "tmux -L socket".
func New(socket string) *Client {
	return NewWithRunner(ExecRunner{}, socket)
}

// NewWithRunner returns a Client that runs tmux through r.
func NewWithRunner(r Runner, socket string) *Client {
	return &Client{runner: r, socket: socket}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	if c.socket != "" {
		args = append([]string{"-L", c.socket}, args...)
	}
	return c.runner.Run(ctx, "tmux", args...)
}

// ListSessions implements Adapter.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSessions, err)
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// SendText implements Adapter. The -l flag stops tmux from interpreting key
// names such as "Enter" or "C-c" inside the text.
func (c *Client) SendText(ctx context.Context, session, text string) error {
	_, err := c.run(ctx, "send-keys", "-t", exactTarget(session), "-l", text)
	return err
}

// SendEnter implements Adapter.
func (c *Client) SendEnter(ctx context.Context, session string) error {
	_, err := c.run(ctx, "send-keys", "-t", exactTarget(session), "C-m")
	return err
}

// CapturePane implements Adapter.
func (c *Client) CapturePane(ctx context.Context, session string, lines int) (string, error) {
	return c.run(ctx, "capture-pane", "-p", "-t", exactTarget(session), "-S", "-"+strconv.Itoa(lines))
}

// exactTarget addresses the active pane of the named session. The "="
// prefix disables prefix matching, which would let "build" reach a session
// named "build-old".
func exactTarget(session string) string {
	return "=" + session + ":"
}
