package httpx

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return http.StatusText(int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "too_many_requests", err: statusErr(429), want: true},
		{name: "bad_gateway", err: statusErr(502), want: true},
		{name: "bad_request", err: statusErr(400), want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryableError(tc.err); got != tc.want {
				t.Fatalf("IsRetryableError(%v)=%v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, RetryPolicy{Name: "test", MaxRetries: 3, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		func(ctx context.Context) (*http.Response, error) {
			calls++
			if calls < 3 {
				return nil, statusErr(503)
			}
			return nil, nil
		})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, RetryPolicy{Name: "test", MaxRetries: 5, BaseBackoff: time.Millisecond},
		func(ctx context.Context) (*http.Response, error) {
			calls++
			return nil, statusErr(401)
		})
	if StatusOf(err) != 401 {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "30")
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected cap at 10s, got %s", got)
	}
	if got := RetryAfterDuration(nil, 2*time.Second, 0); got != 2*time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
}
