// Package ratelimit bounds request volume in fixed windows. Counters
// live in the transactional store, not in process memory, so the limits
// hold across concurrent workers and restarts.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"dnsgate/internal/config"
)

// Counter scopes. The proxy scope is a tighter per-IP window for the
// forwarding endpoint on top of the general per-IP and global windows.
const (
	ScopeIP     = "ip"
	ScopeGlobal = "global"
	ScopeProxy  = "proxy"
)

const globalIdentity = "-"

const evictEvery = 5 * time.Minute

type CounterStore interface {
	IncrementCounter(scope, identity string, windowStart time.Time) (int64, error)
	DeleteCountersBefore(cutoff time.Time) error
}

type Limiter struct {
	store  CounterStore
	perIP  config.RateWindow
	global config.RateWindow
	proxy  config.RateWindow
	now    func() time.Time

	mu        sync.Mutex
	lastEvict time.Time
}

func NewLimiter(store CounterStore, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		store:  store,
		perIP:  cfg.PerIP,
		global: cfg.Global,
		proxy:  cfg.Proxy,
		now:    time.Now,
	}
}

// AllowProxy counts one proxy request against all three windows and
// returns the scope that was exceeded, or "" when the request may
// proceed. Counting happens before any credential work so floods are
// rejected on the cheapest path.
func (l *Limiter) AllowProxy(sourceIP string) (string, error) {
	now := l.now()

	checks := []struct {
		scope    string
		identity string
		window   config.RateWindow
	}{
		{ScopeGlobal, globalIdentity, l.global},
		{ScopeIP, sourceIP, l.perIP},
		{ScopeProxy, sourceIP, l.proxy},
	}

	exceeded := ""
	for _, c := range checks {
		if c.window.Limit <= 0 {
			continue
		}
		count, err := l.store.IncrementCounter(c.scope, c.identity, now.Truncate(c.window.Span()))
		if err != nil {
			return "", fmt.Errorf("rate counter %s: %w", c.scope, err)
		}
		// Keep counting the remaining scopes even after one trips, so a
		// flood on the proxy window still shows up in the global counter.
		if exceeded == "" && count > int64(c.window.Limit) {
			exceeded = c.scope
		}
	}

	l.maybeEvict(now)
	return exceeded, nil
}

// maybeEvict opportunistically drops buckets from rolled-over windows so
// the counter table never grows without bound.
func (l *Limiter) maybeEvict(now time.Time) {
	l.mu.Lock()
	due := now.Sub(l.lastEvict) >= evictEvery
	if due {
		l.lastEvict = now
	}
	l.mu.Unlock()
	if !due {
		return
	}

	span := l.perIP.Span()
	if l.global.Span() > span {
		span = l.global.Span()
	}
	if l.proxy.Span() > span {
		span = l.proxy.Span()
	}
	go func() {
		_ = l.store.DeleteCountersBefore(now.Add(-2 * span))
	}()
}
