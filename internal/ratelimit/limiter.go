// Package ratelimit implements the shared admission-control gate that every
// outbound platform request passes through.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerSecond is the target dispatch ceiling. Zero or negative
	// disables limiting entirely.
	RequestsPerSecond float64
	// JitterFactor scales the minimum inter-request interval by a random
	// factor in [1, 1+JitterFactor). Zero disables jitter.
	JitterFactor float64
}

// Stats is a point-in-time snapshot of limiter activity.
type Stats struct {
	Count             int
	RequestsPerSecond float64
	RateLimit         float64
	URLs              []string
	StartTime         time.Time
}

// Limiter serializes dispatch slots across all concurrent callers so that no
// two requests are issued closer together than the configured interval. A
// caller arriving after an idle period is never penalized: its slot collapses
// to now.
type Limiter struct {
	cfg Config

	mu        sync.Mutex
	next      time.Time
	count     int
	urls      []string
	startTime time.Time
	measured  float64
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg}
}

// Wait blocks until the caller's dispatch slot arrives, respecting the
// context. It cannot fail except by cancellation.
func (l *Limiter) Wait(ctx context.Context, url string) error {
	now := time.Now()

	l.mu.Lock()
	l.count++
	l.urls = append(l.urls, url)
	if l.cfg.RequestsPerSecond <= 0 {
		l.mu.Unlock()
		return nil
	}

	interval := time.Duration(float64(time.Second) / l.cfg.RequestsPerSecond)
	if l.cfg.JitterFactor > 0 {
		interval = time.Duration(float64(interval) * (1.0 + l.cfg.JitterFactor*rand.Float64()))
	}

	slot := now
	if l.next.After(now) {
		slot = l.next
	}
	l.next = slot.Add(interval)

	if l.startTime.IsZero() {
		l.startTime = now.Add(-interval)
		l.measured = l.cfg.RequestsPerSecond
	} else if elapsed := slot.Sub(l.startTime); elapsed > 0 {
		l.measured = float64(l.count) / elapsed.Seconds()
	}
	l.mu.Unlock()

	return sleepUntil(ctx, slot)
}

// sleepUntil suspends the caller until the wall clock reaches deadline or the
// context finishes.
func sleepUntil(ctx context.Context, deadline time.Time) error {
	delay := time.Until(deadline)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Snapshot returns the current stats.
func (l *Limiter) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	urls := make([]string, len(l.urls))
	copy(urls, l.urls)
	return Stats{
		Count:             l.count,
		RequestsPerSecond: l.measured,
		RateLimit:         l.cfg.RequestsPerSecond,
		URLs:              urls,
		StartTime:         l.startTime,
	}
}

// String renders the snapshot for the shutdown summary log.
func (s Stats) String() string {
	return fmt.Sprintf("count=%d measured_rps=%.2f rate_limit=%.2f urls=%d",
		s.Count, s.RequestsPerSecond, s.RateLimit, len(s.URLs))
}
