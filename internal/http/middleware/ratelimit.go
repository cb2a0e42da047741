package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mwanafrika/mwanafrika-backend/internal/http/response"
	"github.com/mwanafrika/mwanafrika-backend/internal/observability"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/ctxutil"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

// windowCounter counts hits in a fixed window keyed by caller.
type windowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

type RateLimiter struct {
	log     *logger.Logger
	counter windowCounter
	metrics *observability.Metrics
}

// NewRateLimiter uses Redis when rdb is non-nil and an in-process window
// counter otherwise.
func NewRateLimiter(log *logger.Logger, rdb *goredis.Client, metrics *observability.Metrics) *RateLimiter {
	rl := &RateLimiter{log: log.With("middleware", "RateLimiter"), metrics: metrics}
	if rdb != nil {
		rl.counter = &redisWindow{rdb: rdb}
	} else {
		rl.counter = newMemoryWindow(10000, time.Now)
	}
	return rl
}

// Limit allows limit requests per window for each caller: the authenticated
// user when known, the client IP otherwise.
func (rl *RateLimiter) Limit(scope string, limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", scope, callerKey(c))
		count, resetIn, err := rl.counter.Hit(c.Request.Context(), key, window)
		if err != nil {
			// Fail open.
			rl.log.Warn("rate limiter unavailable", "scope", scope, "error", err)
			c.Next()
			return
		}
		if count > int64(limit) {
			retryAfter := int(math.Ceil(resetIn.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			rl.metrics.IncRateLimited(scope)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.ErrorEnvelope{
				Error: response.APIError{
					Message:    "too many requests, slow down",
					Code:       "rate_limited",
					RetryAfter: retryAfter,
				},
			})
			return
		}
		c.Next()
	}
}

func callerKey(c *gin.Context) string {
	if uid := ctxutil.UserID(c.Request.Context()); uid != uuid.Nil {
		return "user:" + uid.String()
	}
	return "ip:" + c.ClientIP()
}

type redisWindow struct {
	rdb *goredis.Client
}

func (w *redisWindow) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := w.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := w.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}
	ttl, err := w.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// Key lost its expiry (e.g. a crash between INCR and EXPIRE).
		_ = w.rdb.Expire(ctx, key, window).Err()
		ttl = window
	}
	return count, ttl, nil
}

type memoryWindow struct {
	mu      sync.Mutex
	buckets *lru.Cache
	now     func() time.Time
}

type memoryBucket struct {
	count   int64
	resetAt time.Time
}

func newMemoryWindow(size int, now func() time.Time) *memoryWindow {
	cache, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &memoryWindow{buckets: cache, now: now}
}

func (w *memoryWindow) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	b, _ := w.buckets.Get(key)
	bucket, ok := b.(*memoryBucket)
	if !ok || !now.Before(bucket.resetAt) {
		bucket = &memoryBucket{resetAt: now.Add(window)}
		w.buckets.Add(key, bucket)
	}
	bucket.count++
	return bucket.count, bucket.resetAt.Sub(now), nil
}
