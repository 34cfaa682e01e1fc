package qa

import (
	"context"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Wait before re-checking when the local limiter denies a call.
	limiterDeniedWait = 10 * time.Second
	// Backend rate-limit errors without a usable retry-after hint.
	defaultRetryAfter = 15 * time.Second
	// Flat pause before retrying a non-rate-limit failure.
	transientRetryWait = 2 * time.Second
)

var retryAfterRe = regexp.MustCompile(`try again in (\d+\.?\d*)s`)

// ResilientClient wraps a CompletionClient with the shared RateLimiter and
// bounded retries. It never panics past its boundary: callers get either
// real text or a coded error.
type ResilientClient struct {
	llm     CompletionClient
	limiter *RateLimiter
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ ModelCaller = (*ResilientClient)(nil)

func NewResilientClient(llm CompletionClient, limiter *RateLimiter) *ResilientClient {
	return &ResilientClient{
		llm:     llm,
		limiter: limiter,
		sleep:   sleepCtx,
	}
}

// Call issues one chat completion with up to maxRetries attempts.
// Local limiter denials wait without consuming budget. Backend rate-limit
// errors sleep the server-suggested duration plus 2s and also keep the
// budget intact while attempts remain; any other failure waits 2s and
// consumes one attempt.
func (c *ResilientClient) Call(ctx context.Context, messages []Message, maxRetries int) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	attempts := 0
	rateLimitWaits := 0
	var lastErr error

	for attempts < maxRetries {
		if !c.limiter.Allow() {
			log.Printf("model call budget reached, waiting %s", limiterDeniedWait)
			if err := c.sleep(ctx, limiterDeniedWait); err != nil {
				return "", WrapError(ERATELIMIT, err, "canceled while waiting for call budget")
			}
			continue
		}

		text, err := c.llm.Complete(ctx, messages)
		if err == nil {
			c.limiter.Record()
			return text, nil
		}
		lastErr = err

		if isRateLimitError(err) && rateLimitWaits < maxRetries {
			wait := retryAfter(err) + 2*time.Second
			rateLimitWaits++
			log.Printf("backend rate limit hit, waiting %s before retry", wait)
			if serr := c.sleep(ctx, wait); serr != nil {
				return "", WrapError(ERATELIMIT, serr, "canceled while backing off")
			}
			continue
		}

		attempts++
		log.Printf("model call attempt %d failed: %v", attempts, err)
		if attempts >= maxRetries {
			break
		}
		if serr := c.sleep(ctx, transientRetryWait); serr != nil {
			return "", WrapError(EUNAVAILABLE, serr, "canceled between retries")
		}
	}

	code := EUNAVAILABLE
	if isRateLimitError(lastErr) {
		code = ERATELIMIT
	}
	return "", WrapError(code, lastErr, "model call failed after %d attempts", maxRetries)
}

// isRateLimitError sniffs the error text; the backend reports throttling
// either as an HTTP 429 or with a rate_limit_exceeded code in the payload.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "rate_limit_exceeded") ||
		strings.Contains(s, "RESOURCE_EXHAUSTED") ||
		strings.Contains(s, "429")
}

// retryAfter extracts the "try again in Ns" hint from an error payload,
// falling back to defaultRetryAfter when absent or unparseable.
func retryAfter(err error) time.Duration {
	m := retryAfterRe.FindStringSubmatch(err.Error())
	if len(m) != 2 {
		return defaultRetryAfter
	}
	secs, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return defaultRetryAfter
	}
	return time.Duration(secs * float64(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
