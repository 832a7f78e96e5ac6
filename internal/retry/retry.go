// Package retry runs an operation with bounded exponential backoff, letting
// the caller decide which failures are worth another attempt.
package retry

import (
	"context"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Kind classifies a failed attempt.
type Kind int

// Failure kinds understood by Do.
const (
	// Fatal failures stop immediately without another attempt.
	Fatal Kind = iota
	// Timeout failures are retried and logged at debug level; a long-poll
	// that expires is expected traffic, not a problem.
	Timeout
	// Connection failures are retried and logged as warnings.
	Connection
	// Transport failures are retried and logged as warnings.
	Transport
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case Connection:
		return "connection"
	case Transport:
		return "transport"
	default:
		return "fatal"
	}
}

// Classifier maps an error to its Kind.
type Classifier func(error) Kind

// Policy describes how many attempts to make and how long to wait.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Base is the first backoff delay. Each later delay doubles.
	Base     time.Duration
	Classify Classifier
	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(kind Kind)
}

// Default is three attempts with 1s, 2s backoff.
func Default(classify Classifier) Policy {
	return Policy{Attempts: 3, Base: time.Second, Classify: classify}
}

// Do calls op until it succeeds, returns a Fatal error, or the attempts are
// used up. The last error is returned.
func Do(ctx context.Context, log *slog.Logger, name string, p Policy, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	backoff := goretry.WithMaxRetries(uint64(attempts-1), goretry.NewExponential(base))

	attempt := 0
	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}

		kind := Fatal
		if p.Classify != nil {
			kind = p.Classify(err)
		}
		if kind == Fatal {
			log.Error(name+" failed", "attempt", attempt, "error", err)
			return err
		}

		last := attempt >= attempts
		switch {
		case last:
			log.Error(name+" failed after retries", "attempts", attempts, "kind", kind.String(), "error", err)
		case kind == Timeout:
			log.Debug(name+" timed out", "attempt", attempt, "max", attempts)
		default:
			log.Warn(name+" failed", "attempt", attempt, "max", attempts, "kind", kind.String(), "error", err)
		}
		if !last && p.OnRetry != nil {
			p.OnRetry(kind)
		}
		return goretry.RetryableError(err)
	})
}
