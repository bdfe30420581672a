package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether another request for key fits its window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LimitRule is n requests per window.
type LimitRule struct {
	Name   string
	Max    int
	Window time.Duration
}

// client represents one limited caller
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is an in-process token bucket per key.
type MemoryLimiter struct {
	mu      sync.Mutex
	rule    LimitRule
	clients map[string]*client
}

// NewMemoryLimiter refills rule.Max tokens evenly over rule.Window.
func NewMemoryLimiter(rule LimitRule) *MemoryLimiter {
	return &MemoryLimiter{
		rule:    rule,
		clients: make(map[string]*client),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	return m.getLimiter(key).Allow(), nil
}

// getLimiter returns the rate limiter for the given key
func (m *MemoryLimiter) getLimiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, exists := m.clients[key]
	if !exists {
		every := rate.Every(m.rule.Window / time.Duration(m.rule.Max))
		limiter := rate.NewLimiter(every, m.rule.Max)
		m.clients[key] = &client{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// Cleanup drops callers idle for longer than the window.
func (m *MemoryLimiter) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.clients {
		if time.Since(v.lastSeen) > m.rule.Window {
			delete(m.clients, k)
		}
	}
}

// Run calls Cleanup every minute until ctx is done.
func (m *MemoryLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
