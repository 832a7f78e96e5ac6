// Package telegram wraps the Bot API calls the listener needs: long-polling
// for updates and sending HTML messages to the operator chat, both with
// bounded retries.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"telemux/internal/metrics"
	"telemux/internal/model"
	"telemux/internal/retry"
)

const (
	// longPollWait is how long Telegram holds getUpdates open.
	longPollWait = 30 * time.Second
	// clientTimeout must exceed longPollWait or every idle poll would be
	// cut off client-side.
	clientTimeout = 35 * time.Second
	// sendInterval keeps outbound traffic under Telegram's ~20 msg/s limit.
	sendInterval = 50 * time.Millisecond
)

type telegramAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client polls for updates and sends messages to one chat.
type Client struct {
	api     telegramAPI
	chatID  int64
	log     *slog.Logger
	metrics *metrics.Metrics
	limiter *rate.Limiter
	backoff time.Duration
}

// New connects to the Bot API with token and returns a Client that sends to
// chatID. Network failures while checking the token are retried until ctx
// is cancelled; only a token Telegram rejects is an error.
func New(ctx context.Context, token string, chatID int64, log *slog.Logger, m *metrics.Metrics) (*Client, error) {
	httpClient := newHTTPClient()
	api, err := connect(ctx, log, m, time.Second, func() (*tgbotapi.BotAPI, error) {
		return tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	})
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info("connected to telegram", "bot", api.Self.UserName)
	return newClient(api, chatID, log, m), nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: clientTimeout}
}

// connect calls dial, which verifies the token with getMe, in rounds of the
// default retry policy separated by a pause of four backoff steps. It stops
// on success, on a Fatal error, or when ctx is cancelled.
func connect(ctx context.Context, log *slog.Logger, m *metrics.Metrics, base time.Duration, dial func() (*tgbotapi.BotAPI, error)) (*tgbotapi.BotAPI, error) {
	p := retry.Default(Classify)
	p.Base = base
	p.OnRetry = func(k retry.Kind) { m.Retry("connect", k.String()) }

	for {
		var api *tgbotapi.BotAPI
		err := retry.Do(ctx, log, "connect", p, func(context.Context) error {
			var err error
			api, err = dial()
			return err
		})
		if err == nil {
			return api, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if Classify(err) == retry.Fatal {
			return nil, err
		}

		m.Failure("connect")
		log.Warn("telegram unreachable, waiting before reconnect", "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(4 * base):
		}
	}
}

func newClient(api telegramAPI, chatID int64, log *slog.Logger, m *metrics.Metrics) *Client {
	return &Client{
		api:     api,
		chatID:  chatID,
		log:     log,
		metrics: m,
		limiter: rate.NewLimiter(rate.Every(sendInterval), 1),
		backoff: time.Second,
	}
}

func (c *Client) policy(op string) retry.Policy {
	p := retry.Default(Classify)
	p.Base = c.backoff
	p.OnRetry = func(k retry.Kind) { c.metrics.Retry(op, k.String()) }
	return p
}

// Poll long-polls for updates starting at offset. It never fails: when every
// attempt errors, or the error is not worth retrying, it returns nil.
func (c *Client) Poll(ctx context.Context, offset int) []model.Update {
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = int(longPollWait / time.Second)

	var updates []tgbotapi.Update
	err := retry.Do(ctx, c.log, "get updates", c.policy("poll"), func(context.Context) error {
		var err error
		updates, err = c.api.GetUpdates(cfg)
		return err
	})
	if err != nil {
		c.metrics.Failure("poll")
		return nil
	}

	out := make([]model.Update, 0, len(updates))
	for _, u := range updates {
		out = append(out, convert(u))
	}
	return out
}

// Send delivers an HTML-formatted message to the configured chat. It
// reports whether Telegram accepted the message.
func (c *Client) Send(ctx context.Context, text string) bool {
	if err := c.limiter.Wait(ctx); err != nil {
		c.log.Warn("send message: rate limiter", "error", err)
		return false
	}

	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	err := retry.Do(ctx, c.log, "send message", c.policy("send"), func(context.Context) error {
		_, err := c.api.Send(msg)
		return err
	})
	if err != nil {
		c.metrics.Failure("send")
		return false
	}
	c.log.Info("sent message", "text", preview(text, 50))
	return true
}

// Classify sorts Bot API call failures for the retry policy.
func Classify(err error) retry.Kind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.Timeout
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return retry.Transport
		}
		return retry.Fatal
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return retry.Connection
	}

	var urlErr *url.Error
	var syntaxErr *json.SyntaxError
	if errors.As(err, &urlErr) || errors.As(err, &syntaxErr) {
		return retry.Transport
	}
	return retry.Fatal
}

func convert(u tgbotapi.Update) model.Update {
	out := model.Update{ID: u.UpdateID}
	msg := u.Message
	if msg == nil {
		return out
	}
	out.HasMessage = true
	out.Text = msg.Text
	if msg.From != nil {
		out.SenderID = strconv.FormatInt(msg.From.ID, 10)
		out.SenderName = msg.From.FirstName
	}
	if msg.Chat != nil {
		out.SenderChatID = strconv.FormatInt(msg.Chat.ID, 10)
	}
	return out
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
