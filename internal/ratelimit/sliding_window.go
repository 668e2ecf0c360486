// Package ratelimit provides per-client sliding window rate limiting.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time // when the oldest counted request leaves the window
	RetryAfter int       // seconds; set only when not allowed
}

type bucket struct {
	mu         sync.Mutex
	timestamps []time.Time
	lastAccess time.Time
}

// SlidingWindow allows at most limit requests per identifier in any window.
type SlidingWindow struct {
	buckets sync.Map // identifier -> *bucket
	window  time.Duration
	limit   int
	now     func() time.Time

	stop    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
}

// NewSlidingWindow creates a limiter and starts its bucket cleanup loop.
// A non-positive cleanupInterval disables background cleanup.
func NewSlidingWindow(window time.Duration, limit int, cleanupInterval time.Duration) *SlidingWindow {
	sw := &SlidingWindow{
		window: window,
		limit:  limit,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	if cleanupInterval > 0 {
		sw.stopped.Add(1)
		go sw.cleanupLoop(cleanupInterval)
	}
	return sw
}

// Allow records a request for identifier if it fits in the window.
func (sw *SlidingWindow) Allow(identifier string) Decision {
	now := sw.now()

	v, _ := sw.buckets.LoadOrStore(identifier, &bucket{})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastAccess = now
	b.trim(now.Add(-sw.window))

	if len(b.timestamps) >= sw.limit {
		reset := now.Add(sw.window)
		if len(b.timestamps) > 0 {
			reset = b.timestamps[0].Add(sw.window)
		}
		retry := int(reset.Sub(now).Seconds())
		if retry <= 0 {
			retry = 1
		}
		return Decision{Allowed: false, Limit: sw.limit, Remaining: 0, Reset: reset, RetryAfter: retry}
	}

	b.timestamps = append(b.timestamps, now)
	return Decision{
		Allowed:   true,
		Limit:     sw.limit,
		Remaining: sw.limit - len(b.timestamps),
		Reset:     b.timestamps[0].Add(sw.window),
	}
}

// trim drops timestamps at or before cutoff.
func (b *bucket) trim(cutoff time.Time) {
	i := 0
	for i < len(b.timestamps) && !b.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.timestamps = append([]time.Time(nil), b.timestamps[i:]...)
	}
}

func (sw *SlidingWindow) cleanupLoop(interval time.Duration) {
	defer sw.stopped.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.cleanup()
		case <-sw.stop:
			return
		}
	}
}

// cleanup removes buckets idle for more than two windows.
func (sw *SlidingWindow) cleanup() int {
	cutoff := sw.now().Add(-2 * sw.window)
	removed := 0
	sw.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := b.lastAccess.Before(cutoff)
		b.mu.Unlock()
		if idle {
			sw.buckets.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (sw *SlidingWindow) Stop() {
	sw.once.Do(func() { close(sw.stop) })
	sw.stopped.Wait()
}

// Stats describes limiter state.
type Stats struct {
	ActiveBuckets   int           `json:"active_buckets"`
	TotalTimestamps int           `json:"total_timestamps"`
	Window          time.Duration `json:"window"`
	Limit           int           `json:"limit"`
}

// GetStats returns current statistics.
func (sw *SlidingWindow) GetStats() Stats {
	stats := Stats{Window: sw.window, Limit: sw.limit}
	sw.buckets.Range(func(_, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		stats.ActiveBuckets++
		stats.TotalTimestamps += len(b.timestamps)
		b.mu.Unlock()
		return true
	})
	return stats
}
