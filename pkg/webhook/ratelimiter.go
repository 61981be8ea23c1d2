package webhook

import (
	"sync"
	"time"
)

// RateLimiter implements per-IP rate limiting with a sliding window
type RateLimiter struct {
	limits          map[string][]time.Time
	maxRequests     int
	window          time.Duration
	now             func() time.Time
	mu              sync.Mutex
	cleanupInterval time.Duration
	stopOnce        sync.Once
	stopCleanup     chan struct{}
}

// NewRateLimiter allows maxRequests per window for each IP
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limits:          make(map[string][]time.Time),
		maxRequests:     maxRequests,
		window:          window,
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go rl.startCleanup()

	return rl
}

// Allow records a request from ip. When the limit is exceeded it returns
// false and the time until the oldest request leaves the window.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	requests := rl.recent(rl.limits[ip], now)

	if len(requests) >= rl.maxRequests {
		rl.limits[ip] = requests
		return false, rl.window - now.Sub(requests[0])
	}

	rl.limits[ip] = append(requests, now)
	return true, 0
}

// recent drops requests older than the window. requests is sorted.
func (rl *RateLimiter) recent(requests []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(requests) && now.Sub(requests[i]) >= rl.window {
		i++
	}
	return requests[i:]
}

// startCleanup periodically removes idle IPs
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, requests := range rl.limits {
		if requests = rl.recent(requests, now); len(requests) == 0 {
			delete(rl.limits, ip)
		} else {
			rl.limits[ip] = requests
		}
	}
}

// tracked returns the number of IPs with requests in the window
func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}
