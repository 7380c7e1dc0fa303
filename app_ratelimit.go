package main

import (
	"helioscope/internal/ratelimit"
)

// Rate Limit Management Functions (Wails-exported)

// GetRateLimitStatus returns the current rate limit state for a provider
func (a *App) GetRateLimitStatus(provider string) *ratelimit.Event {
	return a.rateLimits.State(provider)
}

// IsRateLimited checks if a provider is currently rate limited
func (a *App) IsRateLimited(provider string) bool {
	return a.rateLimits.IsRateLimited(provider)
}

// ResetRateLimit forgets a provider's throttle state so the next analysis tries it again
func (a *App) ResetRateLimit(provider string) {
	a.rateLimits.Reset(provider)
}
