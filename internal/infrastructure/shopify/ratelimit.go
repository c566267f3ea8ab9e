package shopify

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// CallLimitHeader reports the leaky bucket usage as "used/max"
	CallLimitHeader = "X-Shopify-Shop-Api-Call-Limit"
	// RetryAfterHeader is sent with 429 responses, in seconds
	RetryAfterHeader = "Retry-After"
)

// CallBudgetStore counts API calls per shop in a window shared by every
// process talking to the same store.
type CallBudgetStore interface {
	// Increment records one call and returns the number of calls in the
	// current window and the time until the window resets
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// RateLimiterConfig configures the limiter
type RateLimiterConfig struct {
	// MaxCallsPerWindow is the shared call budget per shop
	MaxCallsPerWindow int64
	// Window is the length of the budget window
	Window time.Duration
	// CooldownThreshold is the used/max ratio that triggers a cooldown
	CooldownThreshold float64
	// Cooldown is the pause inserted before the next call after the threshold is crossed
	Cooldown time.Duration
	// DefaultRetryAfter is used when a 429 carries no Retry-After header
	DefaultRetryAfter time.Duration
	// MaxAcquireAttempts bounds how many times an exhausted budget is re-checked
	MaxAcquireAttempts int
}

// DefaultRateLimiterConfig returns the limits of a standard Shopify REST bucket
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxCallsPerWindow:  40,
		Window:             20 * time.Second,
		CooldownThreshold:  0.9,
		Cooldown:           time.Second,
		DefaultRetryAfter:  2 * time.Second,
		MaxAcquireAttempts: 3,
	}
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the default SleepFunc
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RateLimiter combines a shared proactive call budget with reactive backoff
// driven by response headers. It fails open: a broken budget store never
// blocks API calls.
type RateLimiter struct {
	store    CallBudgetStore
	config   RateLimiterConfig
	logger   *zap.Logger
	sleep    SleepFunc
	now      func() time.Time
	recorder RateLimitRecorder

	mu            sync.Mutex
	cooldownUntil map[string]time.Time
}

// RateLimitRecorder receives wait and throttle observations for metrics
type RateLimitRecorder interface {
	RecordRateLimitWait(ctx context.Context, shop string, d time.Duration)
	RecordThrottled(ctx context.Context, shop string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRateLimitWait(context.Context, string, time.Duration) {}
func (nopRecorder) RecordThrottled(context.Context, string)                    {}

// RateLimiterOption configures a RateLimiter
type RateLimiterOption func(*RateLimiter)

// WithSleep replaces the sleep function
func WithSleep(sleep SleepFunc) RateLimiterOption {
	return func(l *RateLimiter) {
		l.sleep = sleep
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) {
		l.now = now
	}
}

// WithRecorder reports waits and 429s to r
func WithRecorder(r RateLimitRecorder) RateLimiterOption {
	return func(l *RateLimiter) {
		if r != nil {
			l.recorder = r
		}
	}
}

// NewRateLimiter creates a limiter. A nil store disables the proactive budget.
func NewRateLimiter(store CallBudgetStore, config RateLimiterConfig, logger *zap.Logger, opts ...RateLimiterOption) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxAcquireAttempts <= 0 {
		config.MaxAcquireAttempts = 1
	}
	l := &RateLimiter{
		store:         store,
		config:        config,
		logger:        logger,
		sleep:         SleepContext,
		now:           time.Now,
		recorder:      nopRecorder{},
		cooldownUntil: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func budgetKey(shop string) string {
	return "shopify:ratelimit:" + strings.ToLower(shop)
}

// Acquire waits until a call to shop may be made. It returns an error only
// when ctx is cancelled while waiting.
func (l *RateLimiter) Acquire(ctx context.Context, shop string) error {
	l.mu.Lock()
	until, cooling := l.cooldownUntil[shop]
	delete(l.cooldownUntil, shop)
	l.mu.Unlock()

	if cooling {
		if wait := until.Sub(l.now()); wait > 0 {
			l.recorder.RecordRateLimitWait(ctx, shop, wait)
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	if l.store == nil {
		return nil
	}

	for attempt := 1; attempt <= l.config.MaxAcquireAttempts; attempt++ {
		count, resetIn, err := l.store.Increment(ctx, budgetKey(shop), l.config.Window)
		if err != nil {
			l.logger.Warn("Call budget store unavailable, proceeding without budget",
				zap.String("shop", shop),
				zap.Error(err),
			)
			return nil
		}
		if count <= l.config.MaxCallsPerWindow {
			return nil
		}

		wait := resetIn + time.Second
		l.logger.Info("Call budget exhausted, waiting for window reset",
			zap.String("shop", shop),
			zap.Int64("count", count),
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt),
		)
		l.recorder.RecordRateLimitWait(ctx, shop, wait)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}

	l.logger.Warn("Call budget still exhausted after waiting, proceeding",
		zap.String("shop", shop),
		zap.Int("attempts", l.config.MaxAcquireAttempts),
	)
	return nil
}

// Observe applies reactive backoff for a response. A near-full bucket arms a
// cooldown for the next call; a 429 sleeps for Retry-After before returning.
// The 429 itself is still reported to the caller by the client.
func (l *RateLimiter) Observe(ctx context.Context, shop string, resp *http.Response) error {
	if used, limit, ok := ParseCallLimit(resp.Header.Get(CallLimitHeader)); ok && limit > 0 {
		if float64(used) >= l.config.CooldownThreshold*float64(limit) {
			l.mu.Lock()
			l.cooldownUntil[shop] = l.now().Add(l.config.Cooldown)
			l.mu.Unlock()
		}
	}

	if resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	wait := ParseRetryAfter(resp.Header.Get(RetryAfterHeader), l.config.DefaultRetryAfter)
	l.logger.Warn("Rate limited by platform",
		zap.String("shop", shop),
		zap.Duration("retry_after", wait),
	)
	l.recorder.RecordThrottled(ctx, shop)
	l.recorder.RecordRateLimitWait(ctx, shop, wait)
	return l.sleep(ctx, wait)
}

// ParseCallLimit parses a "used/max" header value
func ParseCallLimit(value string) (used, limit int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(value), "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	u, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	m, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return u, m, true
}

// ParseRetryAfter parses a Retry-After value in seconds, falling back to def
func ParseRetryAfter(value string, def time.Duration) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs * float64(time.Second))
}
