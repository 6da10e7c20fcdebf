package consult

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/tribunal/cost"
	"github.com/hupe1980/tribunal/logging"
	"github.com/hupe1980/tribunal/model"
)

const (
	maxAttempts = 3
	baseBackoff = time.Second
)

// retryableFragments is the fixed retryable-error class: transient transport
// conditions, rate limiting and service unavailability. Matched
// case-insensitively against the error message.
var retryableFragments = []string{
	"connection reset",
	"econnreset",
	"timeout",
	"timed out",
	"hang up",
	"hung up",
	"rate limit",
	"too many requests",
	"429",
	"service unavailable",
	"503",
	"overloaded",
}

func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// caller is the provider call boundary: it wraps every model call with
// timing, ledger accounting and bounded retry. Backoff doubles from one
// second per attempt. Errors outside the retryable class, and exhaustion of
// retries, propagate immediately.
type caller struct {
	ledger *cost.Ledger
	logger logging.Logger
	// clog is the logger again when it is a *logging.ConsultLogger, so the
	// boundary can emit structured model-call records. Nil otherwise.
	clog *logging.ConsultLogger

	// backoffFn overrides the delay schedule. Nil means the default
	// doubling schedule starting at baseBackoff.
	backoffFn func(attempt int) time.Duration
}

// logModelCall records one attempt's outcome, preferring the structured
// model-call record when available.
func (c *caller) logModelCall(modelID string, tokens int, latency time.Duration, err error) {
	if c.clog != nil {
		c.clog.LogModelCall(modelID, tokens, latency, err == nil, err)
		return
	}
	if err != nil {
		c.logger.Error("model call failed", "model", modelID, "latency", latency, "error", err)
		return
	}
	c.logger.Debug("model call succeeded", "model", modelID, "latency", latency)
}

func (c *caller) backoff(attempt int) time.Duration {
	if c.backoffFn != nil {
		return c.backoffFn(attempt)
	}
	return baseBackoff * (1 << (attempt - 1))
}

// call performs up to maxAttempts generation attempts. Every attempt,
// successful or not, is recorded to the ledger with latency and token counts
// (zero if the provider reported no usage).
func (c *caller) call(ctx context.Context, m model.Model, req model.Request) (*model.Response, error) {
	modelID := m.Info().Name

	for attempt := 1; ; attempt++ {
		start := time.Now()
		resp, err := m.Generate(ctx, req)
		latency := time.Since(start)

		var usage model.TokenUsage
		if resp != nil && resp.Usage != nil {
			usage = *resp.Usage
		}
		c.ledger.Record(modelID, latency, usage, err)
		c.logModelCall(modelID, usage.Total(), latency, err)

		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) || attempt == maxAttempts {
			return nil, err
		}

		delay := c.backoff(attempt)
		c.logger.Warn("model call failed, retrying", "model", modelID, "attempt", attempt, "backoff", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
