// Package ratelimit tracks which imagery providers are currently throttling us.
// It never retries on its own; the operator re-runs an analysis after the cooldown.
package ratelimit

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// DefaultCooldowns are the suggested waits for the 1st, 2nd, ... consecutive throttle
var DefaultCooldowns = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
}

// Event represents a rate limit occurrence
type Event struct {
	Timestamp  time.Time `json:"timestamp" ts_type:"string"`
	Provider   string    `json:"provider"`
	StatusCode int       `json:"statusCode"`
	Count      int       `json:"count"` // consecutive throttled responses
	RetryAfter time.Time `json:"retryAfter" ts_type:"string"`
	Message    string    `json:"message"`
}

// Tracker records the current throttle state per provider
type Tracker struct {
	mu        sync.RWMutex
	limited   map[string]*Event
	cooldowns []time.Duration
	onChange  func(provider string, event *Event)
	now       func() time.Time
}

func NewTracker(cooldowns []time.Duration) *Tracker {
	if len(cooldowns) == 0 {
		cooldowns = DefaultCooldowns
	}
	return &Tracker{
		limited:   make(map[string]*Event),
		cooldowns: cooldowns,
		now:       time.Now,
	}
}

// OnChange sets the callback for throttle and recovery. event is nil on recovery.
func (t *Tracker) OnChange(fn func(provider string, event *Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// IsThrottleStatus reports status codes providers use for rate limiting.
// Google uses 403 for rate limits.
func IsThrottleStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusForbidden ||
		status == 509 // Bandwidth Limit Exceeded
}

// Observe records the status of one provider response and reports whether it was throttled.
// A nil tracker only classifies.
func (t *Tracker) Observe(provider string, status int) bool {
	throttled := IsThrottleStatus(status)
	if t == nil {
		return throttled
	}
	if !throttled {
		if status == http.StatusOK {
			t.clear(provider)
		}
		return false
	}
	t.record(provider, status)
	return true
}

func (t *Tracker) record(provider string, status int) {
	t.mu.Lock()
	count := 1
	if existing, ok := t.limited[provider]; ok {
		count = existing.Count + 1
	}
	idx := count - 1
	if idx >= len(t.cooldowns) {
		idx = len(t.cooldowns) - 1
	}
	now := t.now()
	event := &Event{
		Timestamp:  now,
		Provider:   provider,
		StatusCode: status,
		Count:      count,
		RetryAfter: now.Add(t.cooldowns[idx]),
	}
	event.Message = buildMessage(provider, status, t.cooldowns[idx])
	t.limited[provider] = event
	fn := t.onChange
	t.mu.Unlock()

	log.Printf("[RateLimit] %s rate limited (HTTP %d, %d in a row). Suggested retry after %s",
		provider, status, count, event.RetryAfter.Format(time.RFC3339))
	if fn != nil {
		copied := *event
		fn(provider, &copied)
	}
}

func (t *Tracker) clear(provider string) {
	t.mu.Lock()
	_, existed := t.limited[provider]
	delete(t.limited, provider)
	fn := t.onChange
	t.mu.Unlock()

	if existed {
		log.Printf("[RateLimit] %s rate limit cleared", provider)
		if fn != nil {
			fn(provider, nil)
		}
	}
}

// Reset forgets the throttle state of a provider, e.g. after the operator changed networks
func (t *Tracker) Reset(provider string) {
	t.clear(provider)
}

// IsRateLimited checks if a provider is currently rate limited
func (t *Tracker) IsRateLimited(provider string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, limited := t.limited[provider]
	return limited
}

// State returns a copy of the current event for a provider, or nil
func (t *Tracker) State(provider string) *Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if event, ok := t.limited[provider]; ok {
		copied := *event
		return &copied
	}
	return nil
}

func buildMessage(provider string, status int, wait time.Duration) string {
	return fmt.Sprintf("%s rate limit detected (HTTP %d). Wait about %d minutes before analysing again.",
		provider, status, int(wait.Minutes()))
}
