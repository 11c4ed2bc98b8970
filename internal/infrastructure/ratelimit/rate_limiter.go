package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a refilling token bucket.
type TokenBucket struct {
	tokens     int
	maxTokens  int
	refillRate int
	refillTime time.Duration
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewTokenBucket(maxTokens, refillRate int, refillTime time.Duration) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		refillTime: refillTime,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available, otherwise reports how long to
// wait for the next one.
func (tb *TokenBucket) Allow() (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()

	elapsed := now.Sub(tb.lastRefill)
	tokensToAdd := int(elapsed/tb.refillTime) * tb.refillRate

	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}

	nextRefill := tb.lastRefill.Add(tb.refillTime)
	return false, nextRefill.Sub(now)
}

func (tb *TokenBucket) Tokens() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return tb.tokens
}

// Limiter throttles client-initiated actions. The client runs for a single
// user, so buckets are keyed by action alone.
type Limiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.Mutex
}

func NewLimiter() *Limiter {
	return &Limiter{
		buckets: make(map[string]*TokenBucket),
	}
}

// Allow checks whether an action may proceed.
func (l *Limiter) Allow(action string) (bool, time.Duration) {
	l.mutex.Lock()
	bucket, exists := l.buckets[action]
	if !exists {
		switch action {
		case "send_message":
			// 10 messages per minute (1 token per 6 seconds)
			bucket = NewTokenBucket(10, 1, 6*time.Second)
		case "create_conversation":
			// 5 new conversations per hour
			bucket = NewTokenBucket(5, 1, 12*time.Minute)
		default:
			// 20 actions per minute
			bucket = NewTokenBucket(20, 1, 3*time.Second)
		}
		l.buckets[action] = bucket
	}
	l.mutex.Unlock()

	return bucket.Allow()
}
