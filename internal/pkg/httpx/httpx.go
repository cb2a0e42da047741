package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

// HTTPStatusCoder is implemented by the upstream client errors.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

// StatusOf returns the upstream HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}

func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

// RetryPolicy describes the backoff loop shared by the upstream clients.
type RetryPolicy struct {
	Name        string
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Attempt performs one upstream call. The response may be nil.
type Attempt func(ctx context.Context) (*http.Response, error)

// Do runs attempt until it succeeds, fails with a non-retryable error, or
// MaxRetries is exhausted. Sleeps honour Retry-After and are jittered.
func Do(ctx context.Context, log *logger.Logger, policy RetryPolicy, attempt Attempt) error {
	backoff := policy.BaseBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	maxBackoff := policy.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 10 * time.Second
	}
	for try := 0; try <= policy.MaxRetries; try++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) || try == policy.MaxRetries {
			return err
		}

		sleepFor := JitterSleep(RetryAfterDuration(resp, backoff, maxBackoff))
		if log != nil {
			log.Warn("Upstream request retrying",
				"upstream", policy.Name,
				"attempt", try+1,
				"max_retries", policy.MaxRetries,
				"sleep", sleepFor.String(),
				"error", err.Error(),
			)
		}

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return fmt.Errorf("%s: unreachable retry loop", policy.Name)
}
