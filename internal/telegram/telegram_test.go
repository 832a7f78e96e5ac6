package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"syscall"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"

	"telemux/internal/metrics"
	"telemux/internal/model"
	"telemux/internal/retry"
)

// --- mocks ---

type mockAPI struct {
	mu sync.Mutex

	updates    [][]tgbotapi.Update
	updateErrs []error
	sendErrs   []error

	pollCalls []tgbotapi.UpdateConfig
	sent      []tgbotapi.MessageConfig
	sendCalls int
}

func (m *mockAPI) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.pollCalls)
	m.pollCalls = append(m.pollCalls, cfg)
	if i < len(m.updateErrs) && m.updateErrs[i] != nil {
		return nil, m.updateErrs[i]
	}
	if i < len(m.updates) {
		return m.updates[i], nil
	}
	return nil, nil
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.sendCalls
	m.sendCalls++
	if i < len(m.sendErrs) && m.sendErrs[i] != nil {
		return tgbotapi.Message{}, m.sendErrs[i]
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.sent = append(m.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// --- helpers ---

func newTestClient(api *mockAPI) *Client {
	c := newClient(api, 100, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.New())
	c.backoff = time.Millisecond
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func textUpdate(id int, chatID, fromID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			Text: text,
			From: &tgbotapi.User{ID: fromID, FirstName: "Op"},
			Chat: &tgbotapi.Chat{ID: chatID},
		},
	}
}

// --- tests ---

func TestPoll(t *testing.T) {
	ctx := context.Background()

	t.Run("converts updates and requests long poll", func(t *testing.T) {
		api := &mockAPI{updates: [][]tgbotapi.Update{{
			textUpdate(5, 100, 9, "build: go test"),
			{UpdateID: 6},
		}}}
		got := newTestClient(api).Poll(ctx, 5)

		want := []model.Update{
			{ID: 5, HasMessage: true, SenderID: "9", SenderChatID: "100", SenderName: "Op", Text: "build: go test"},
			{ID: 6},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Poll() mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(5, api.pollCalls[0].Offset); diff != "" {
			t.Errorf("offset (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(30, api.pollCalls[0].Timeout); diff != "" {
			t.Errorf("server wait (-want +got):\n%s", diff)
		}
	})

	t.Run("timeout retried then succeeds", func(t *testing.T) {
		api := &mockAPI{
			updateErrs: []error{&url.Error{Op: "Post", URL: "x", Err: timeoutErr{}}},
			updates:    [][]tgbotapi.Update{nil, {textUpdate(1, 100, 9, "hi")}},
		}
		got := newTestClient(api).Poll(ctx, 0)
		if diff := cmp.Diff(2, len(api.pollCalls)); diff != "" {
			t.Errorf("poll attempts (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(1, len(got)); diff != "" {
			t.Errorf("update count (-want +got):\n%s", diff)
		}
	})

	t.Run("exhausted retries return empty", func(t *testing.T) {
		connErr := &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
		api := &mockAPI{updateErrs: []error{connErr, connErr, connErr, connErr}}
		got := newTestClient(api).Poll(ctx, 0)
		if got != nil {
			t.Errorf("expected nil updates, got %v", got)
		}
		if diff := cmp.Diff(3, len(api.pollCalls)); diff != "" {
			t.Errorf("poll attempts (-want +got):\n%s", diff)
		}
	})

	t.Run("api rejection aborts immediately", func(t *testing.T) {
		api := &mockAPI{updateErrs: []error{&tgbotapi.Error{Code: 409, Message: "Conflict"}}}
		got := newTestClient(api).Poll(ctx, 0)
		if got != nil {
			t.Errorf("expected nil updates, got %v", got)
		}
		if diff := cmp.Diff(1, len(api.pollCalls)); diff != "" {
			t.Errorf("poll attempts (-want +got):\n%s", diff)
		}
	})
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("html message to configured chat", func(t *testing.T) {
		api := &mockAPI{}
		if !newTestClient(api).Send(ctx, "Message delivered to <b>build</b>") {
			t.Fatal("Send returned false")
		}
		if len(api.sent) != 1 {
			t.Fatalf("expected 1 message, got %d", len(api.sent))
		}
		msg := api.sent[0]
		if diff := cmp.Diff(int64(100), msg.ChatID); diff != "" {
			t.Errorf("chat id (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(tgbotapi.ModeHTML, msg.ParseMode); diff != "" {
			t.Errorf("parse mode (-want +got):\n%s", diff)
		}
		if !msg.DisableWebPagePreview {
			t.Error("expected link previews disabled")
		}
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		api := &mockAPI{sendErrs: []error{&tgbotapi.Error{Code: 502, Message: "Bad Gateway"}}}
		if !newTestClient(api).Send(ctx, "hi") {
			t.Fatal("Send returned false")
		}
		if diff := cmp.Diff(2, api.sendCalls); diff != "" {
			t.Errorf("send attempts (-want +got):\n%s", diff)
		}
	})

	t.Run("false after three failures", func(t *testing.T) {
		connErr := &url.Error{Op: "Post", URL: "x", Err: io.ErrUnexpectedEOF}
		api := &mockAPI{sendErrs: []error{connErr, connErr, connErr}}
		if newTestClient(api).Send(ctx, "hi") {
			t.Fatal("Send returned true")
		}
		if diff := cmp.Diff(3, api.sendCalls); diff != "" {
			t.Errorf("send attempts (-want +got):\n%s", diff)
		}
	})

	t.Run("bad request not retried", func(t *testing.T) {
		api := &mockAPI{sendErrs: []error{&tgbotapi.Error{Code: 400, Message: "can't parse entities"}}}
		if newTestClient(api).Send(ctx, "<b>") {
			t.Fatal("Send returned true")
		}
		if diff := cmp.Diff(1, api.sendCalls); diff != "" {
			t.Errorf("send attempts (-want +got):\n%s", diff)
		}
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Kind
	}{
		{name: "client timeout", err: &url.Error{Op: "Post", Err: timeoutErr{}}, want: retry.Timeout},
		{name: "connection refused", err: &url.Error{Op: "Post", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, want: retry.Connection},
		{name: "dns failure", err: &url.Error{Op: "Post", Err: &net.DNSError{Err: "no such host", Name: "api.telegram.org"}}, want: retry.Connection},
		{name: "connection reset", err: syscall.ECONNRESET, want: retry.Connection},
		{name: "unexpected eof", err: &url.Error{Op: "Post", Err: io.ErrUnexpectedEOF}, want: retry.Connection},
		{name: "other url error", err: &url.Error{Op: "Post", Err: errors.New("tls: handshake failure")}, want: retry.Transport},
		{name: "html error page", err: &json.SyntaxError{Offset: 1}, want: retry.Transport},
		{name: "rate limited", err: &tgbotapi.Error{Code: 429}, want: retry.Transport},
		{name: "server error", err: &tgbotapi.Error{Code: 500}, want: retry.Transport},
		{name: "unauthorized token", err: &tgbotapi.Error{Code: 401}, want: retry.Fatal},
		{name: "unknown", err: errors.New("boom"), want: retry.Fatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Classify(tt.err)); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	if diff := cmp.Diff("héllo", preview("héllo", 5)); diff != "" {
		t.Errorf("short (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("hé...", preview("héllo", 2)); diff != "" {
		t.Errorf("long (-want +got):\n%s", diff)
	}
}

func TestConnect(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	unreachable := &url.Error{Op: "Post", URL: "getMe", Err: &net.OpError{
		Op:  "dial",
		Err: &net.DNSError{Err: "no such host", Name: "api.telegram.org"},
	}}

	t.Run("network failures retried until reachable", func(t *testing.T) {
		calls := 0
		want := &tgbotapi.BotAPI{Self: tgbotapi.User{UserName: "telemux_bot"}}
		got, err := connect(context.Background(), log, metrics.New(), time.Millisecond, func() (*tgbotapi.BotAPI, error) {
			calls++
			if calls <= 5 {
				return nil, unreachable
			}
			return want, nil
		})
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		if got != want {
			t.Errorf("connect returned %p, want %p", got, want)
		}
		if diff := cmp.Diff(6, calls); diff != "" {
			t.Errorf("dial attempts (-want +got):\n%s", diff)
		}
	})

	t.Run("rejected token is fatal", func(t *testing.T) {
		calls := 0
		_, err := connect(context.Background(), log, metrics.New(), time.Millisecond, func() (*tgbotapi.BotAPI, error) {
			calls++
			return nil, &tgbotapi.Error{Code: 401, Message: "Unauthorized"}
		})
		var apiErr *tgbotapi.Error
		if !errors.As(err, &apiErr) || apiErr.Code != 401 {
			t.Fatalf("error = %v, want 401 api error", err)
		}
		if diff := cmp.Diff(1, calls); diff != "" {
			t.Errorf("dial attempts (-want +got):\n%s", diff)
		}
	})

	t.Run("cancel stops reconnecting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		calls := 0
		_, err := connect(ctx, log, metrics.New(), time.Millisecond, func() (*tgbotapi.BotAPI, error) {
			calls++
			if calls == 4 {
				cancel()
			}
			return nil, unreachable
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
		if calls != 4 {
			t.Errorf("dial attempts = %d, want 4", calls)
		}
	})
}

func TestHTTPClientOutlastsLongPoll(t *testing.T) {
	c := newHTTPClient()
	if c.Timeout <= longPollWait {
		t.Errorf("client timeout %v must exceed long poll wait %v", c.Timeout, longPollWait)
	}

	api := &mockAPI{}
	newTestClient(api).Poll(context.Background(), 0)
	if diff := cmp.Diff(int(longPollWait/time.Second), api.pollCalls[0].Timeout); diff != "" {
		t.Errorf("server wait (-want +got):\n%s", diff)
	}
}
