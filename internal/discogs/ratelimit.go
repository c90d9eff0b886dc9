package discogs

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Quota headers sent with every Discogs response.
const (
	headerRateLimit = "X-Discogs-Ratelimit"
	headerRemaining = "X-Discogs-Ratelimit-Remaining"
)

// RateLimiter is the quota capability the [Client] consults around every
// governed call: Acquire before the request, OnResponse with the response
// headers after.
type RateLimiter interface {
	Acquire(ctx context.Context) error
	OnResponse(h http.Header)
}

// RateLimitState is the last quota window observed from response headers.
// The state is instance-local; concurrent clients each track their own.
type RateLimitState struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// QuotaGovernor implements [RateLimiter] from the provider's moving-window
// quota headers.
//
// Acquire proceeds immediately while more than `threshold` calls remain in
// the window, otherwise it sleeps one request's share of the window
// (ceil(window/limit)) to let the window roll before proceeding. It never
// blocks longer than that single slice per call.
type QuotaGovernor struct {
	mu        sync.Mutex
	limit     int
	remaining int
	window    time.Duration
	threshold int
	sleep     func(context.Context, time.Duration) error
}

// NewQuotaGovernor seeds a governor with the provider's documented defaults
// (60 requests per 60s window for authenticated clients).
func NewQuotaGovernor(limit int, window time.Duration) *QuotaGovernor {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &QuotaGovernor{
		limit:     limit,
		remaining: limit,
		window:    window,
		threshold: 5,
		sleep:     sleepContext,
	}
}

// Acquire blocks until the caller may issue the next request.
func (g *QuotaGovernor) Acquire(ctx context.Context) error {
	g.mu.Lock()
	remaining, limit := g.remaining, g.limit
	g.mu.Unlock()

	if remaining > g.threshold {
		return nil
	}

	return g.sleep(ctx, windowSlice(g.window, limit))
}

// OnResponse folds the response quota headers into the governor's state.
// Absent or malformed headers leave the previous state untouched.
func (g *QuotaGovernor) OnResponse(h http.Header) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if v := h.Get(headerRateLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			g.limit = n
		}
	}
	if v := h.Get(headerRemaining); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			g.remaining = n
		}
	}
}

// State returns the last observed quota window.
func (g *QuotaGovernor) State() RateLimitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return RateLimitState{Limit: g.limit, Remaining: g.remaining}
}

// windowSlice is one request's share of the quota window, rounded up to the
// next millisecond.
func windowSlice(window time.Duration, limit int) time.Duration {
	if limit <= 0 {
		limit = 1
	}
	ms := int64(window / time.Millisecond)
	per := (ms + int64(limit) - 1) / int64(limit)
	return time.Duration(per) * time.Millisecond
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
