// Package ratelimit throttles dispatch per Slack sender. Each sender
// gets a token bucket that refills continuously; buckets that have
// been idle long enough to refill completely are swept away.
package ratelimit

import (
	"sync"
	"time"
)

// bucket is a single token bucket. Safe for concurrent use.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newBucket(maxTokens, refillRate float64) *bucket {
	return &bucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// refill credits tokens for elapsed time. Must be called with mu held.
func (b *bucket) refill() {
	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now
}

// take consumes one token, reporting whether one was available.
func (b *bucket) take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}
	return false
}

// full reports whether the bucket is back at capacity, meaning the
// sender has been quiet for at least a full refill cycle.
func (b *bucket) full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens >= b.maxTokens
}

// Config configures a SenderLimiter.
type Config struct {
	Burst       float64       // tokens available to an idle sender
	RefillRate  float64       // tokens credited per second
	SweepPeriod time.Duration // how often idle buckets are removed
}

// SenderLimiter tracks one token bucket per sender ID. Events from an
// unidentified sender are never throttled.
type SenderLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	cfg     Config
	stopCh  chan struct{}
}

// NewSenderLimiter creates a limiter and starts its sweep goroutine.
// Call Stop when the limiter is no longer needed.
func NewSenderLimiter(cfg Config) *SenderLimiter {
	l := &SenderLimiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow reports whether the sender may dispatch another event, consuming
// one token when it may. An empty sender ID always passes.
func (l *SenderLimiter) Allow(senderID string) bool {
	if senderID == "" {
		return true
	}

	l.mu.RLock()
	b, ok := l.buckets[senderID]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		b, ok = l.buckets[senderID]
		if !ok {
			b = newBucket(l.cfg.Burst, l.cfg.RefillRate)
			l.buckets[senderID] = b
		}
		l.mu.Unlock()
	}

	return b.take()
}

// activeSenders returns the number of senders currently tracked.
func (l *SenderLimiter) activeSenders() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

func (l *SenderLimiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.SweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep removes buckets whose senders have gone quiet.
func (l *SenderLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, b := range l.buckets {
		if b.full() {
			delete(l.buckets, id)
		}
	}
}

// Stop ends the sweep goroutine. Safe to call more than once.
func (l *SenderLimiter) Stop() {
	select {
	case <-l.stopCh:
	default:
		close(l.stopCh)
	}
}
