package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

type window struct {
	count int
	until time.Time
}

// fixedWindow counts requests per key in windows of length per.
type fixedWindow struct {
	mu      sync.Mutex
	limit   int
	per     time.Duration
	windows map[string]*window
	swept   time.Time
}

// allow records one request for key and reports whether it fits the limit,
// plus the wait until the current window closes.
func (f *fixedWindow) allow(key string, now time.Time) (bool, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if now.Sub(f.swept) > f.per {
		for k, w := range f.windows {
			if now.After(w.until) {
				delete(f.windows, k)
			}
		}
		f.swept = now
	}

	w, ok := f.windows[key]
	if !ok || now.After(w.until) {
		w = &window{until: now.Add(f.per)}
		f.windows[key] = w
	}
	if w.count >= f.limit {
		return false, w.until.Sub(now)
	}
	w.count++
	return true, 0
}

// RateLimit allows limit requests per client IP within each window of per.
// A non-positive limit disables the check.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	fw := &fixedWindow{limit: limit, per: per, windows: make(map[string]*window)}
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := fw.allow(ClientIP(r), time.Now())
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
