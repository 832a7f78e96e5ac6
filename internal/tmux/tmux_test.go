package tmux

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeRunner records commands instead of running them.
type fakeRunner struct {
	calls  [][]string
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.output, f.err
}

func TestListSessions(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		err     error
		want    []string
		wantErr bool
	}{
		{name: "several sessions", output: "build\nother\n", want: []string{"build", "other"}},
		{name: "blank lines skipped", output: "\nbuild\n\n", want: []string{"build"}},
		{name: "empty output", output: "", want: nil},
		{name: "no server", err: fmt.Errorf("%w: no server running", ErrCommand), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{output: tt.output, err: tt.err}
			got, err := NewWithRunner(r, "").ListSessions(context.Background())
			if tt.wantErr {
				if !errors.Is(err, ErrNoSessions) || !errors.Is(err, ErrCommand) {
					t.Fatalf("error = %v, want ErrNoSessions wrapping ErrCommand", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ListSessions: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ListSessions() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommandLines(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		socket string
		call   func(c *Client) error
		want   []string
	}{
		{
			name: "list sessions",
			call: func(c *Client) error { _, err := c.ListSessions(ctx); return err },
			want: []string{"tmux", "list-sessions", "-F", "#{session_name}"},
		},
		{
			name: "send text is literal",
			call: func(c *Client) error { return c.SendText(ctx, "build", "echo 'hi'; ls") },
			want: []string{"tmux", "send-keys", "-t", "=build:", "-l", "echo 'hi'; ls"},
		},
		{
			name: "send enter",
			call: func(c *Client) error { return c.SendEnter(ctx, "build") },
			want: []string{"tmux", "send-keys", "-t", "=build:", "C-m"},
		},
		{
			name: "capture pane",
			call: func(c *Client) error { _, err := c.CapturePane(ctx, "build", 100); return err },
			want: []string{"tmux", "capture-pane", "-p", "-t", "=build:", "-S", "-100"},
		},
		{
			name:   "custom socket",
			socket: "work",
			call:   func(c *Client) error { return c.SendEnter(ctx, "x") },
			want:   []string{"tmux", "-L", "work", "send-keys", "-t", "=x:", "C-m"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{}
			if err := tt.call(NewWithRunner(r, tt.socket)); err != nil {
				t.Fatalf("call: %v", err)
			}
			if len(r.calls) != 1 {
				t.Fatalf("expected 1 command, got %d", len(r.calls))
			}
			if diff := cmp.Diff(tt.want, r.calls[0]); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWithoutTMUX(t *testing.T) {
	env := []string{"HOME=/root", "TMUX=/tmp/tmux-0/default,1,0", "TMUX_PANE=%1"}
	got := withoutTMUX(env)
	want := []string{"HOME=/root", "TMUX_PANE=%1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("withoutTMUX() mismatch (-want +got):\n%s", diff)
	}
}

func TestExecRunnerFailure(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	if !errors.Is(err, ErrCommand) {
		t.Fatalf("error = %v, want ErrCommand", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q does not carry stderr", err)
	}
}

func TestExecRunnerSuccess(t *testing.T) {
	out, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "printf 'a\\nb'")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff("a\nb", out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}
