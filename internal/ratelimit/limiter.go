// Package ratelimit throttles public reservation requests.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	TenantCooldown time.Duration // Minimum time between reservations by the same tenant phone (default: 1m)
	MaxIPPerHour   int           // Max reservations per client IP per hour (default: 10, 0 disables)

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		TenantCooldown: time.Minute,
		MaxIPPerHour:   10,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

// ReservationLimiter is implemented by the in-memory and Redis backends.
type ReservationLimiter interface {
	// AcquireReservation counts an allowed attempt as it checks it. Call
	// ReleaseReservation when the reservation is then not stored.
	AcquireReservation(ctx context.Context, identifier, ip string) LimitResult
	ReleaseReservation(ctx context.Context, identifier, ip string)
	Close() error
}

// entry tracks request counts and timestamps.
type entry struct {
	count   int
	firstAt time.Time // First request in window
	lastAt  time.Time // Most recent request (for cooldown)
}

// Limiter is the in-memory backend, suitable for a single instance.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.RWMutex
	// Keyed by hash of identifier or IP
	byID map[string]*entry
	byIP map[string]*entry

	// Cleanup goroutine management
	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		byID:          make(map[string]*entry),
		byIP:          make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() error {
	l.cleanupCancel()
	l.cleanupWg.Wait()
	return nil
}

// AcquireReservation checks the limits and, when the request is allowed,
// counts it under the same lock so concurrent callers cannot overshoot.
func (l *Limiter) AcquireReservation(_ context.Context, identifier, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	idKey := hashKey("reserve:id:", NormalizeIdentifier(identifier))
	ipKey := hashKey("reserve:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	if identifier != "" {
		if e := l.byID[idKey]; e != nil {
			elapsed := now.Sub(e.lastAt)
			if elapsed < l.config.TenantCooldown {
				return LimitResult{
					Allowed:    false,
					RetryAfter: l.config.TenantCooldown - elapsed,
					Reason:     "cooldown",
				}
			}
		}
	}

	if l.config.MaxIPPerHour > 0 {
		if e := l.byIP[ipKey]; e != nil {
			if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.MaxIPPerHour {
				return LimitResult{
					Allowed:    false,
					RetryAfter: time.Hour - now.Sub(e.firstAt),
					Reason:     "ip_hourly_limit",
				}
			}
		}
	}

	if identifier != "" {
		record(l.byID, idKey, now)
	}
	record(l.byIP, ipKey, now)
	return LimitResult{Allowed: true}
}

// ReleaseReservation returns the quota taken by an allowed acquire whose
// reservation was not stored.
func (l *Limiter) ReleaseReservation(_ context.Context, identifier, ip string) {
	idKey := hashKey("reserve:id:", NormalizeIdentifier(identifier))
	ipKey := hashKey("reserve:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	// A second acquire for the same tenant is blocked by the cooldown, so
	// the entry still belongs to the caller.
	if identifier != "" {
		delete(l.byID, idKey)
	}
	if e := l.byIP[ipKey]; e != nil && e.count > 0 {
		e.count--
	}
}

func record(entries map[string]*entry, key string, now time.Time) {
	e := entries[key]
	if e == nil || now.Sub(e.firstAt) >= time.Hour {
		entries[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// NormalizeIdentifier strips formatting so "+62 812-3456" and "+628123456"
// share a bucket.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')':
			return -1
		}
		return r
	}, identifier)
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	maxAge := max(time.Hour, l.config.TenantCooldown)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.byID {
		if now.Sub(e.lastAt) > maxAge {
			delete(l.byID, k)
		}
	}
	for k, e := range l.byIP {
		if now.Sub(e.lastAt) > time.Hour {
			delete(l.byIP, k)
		}
	}
}

// GetClientIP extracts the client IP from a request.
// When trustProxy is true, uses the rightmost IP from X-Forwarded-For (added by your proxy).
// When trustProxy is false, ignores X-Forwarded-For entirely (prevents spoofing).
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// Use RIGHTMOST IP - this is the one your proxy added, not user-supplied
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			// All IPs are private, use the last one
			return strings.TrimSpace(parts[len(parts)-1])
		}

		// Check X-Real-IP (set by nginx)
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port (Unix socket or test request)
		return r.RemoteAddr
	}
	return ip
}

var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10", // Link-local
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

// isPrivateIP handles both IPv4 and IPv4-mapped IPv6 addresses.
func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// SanitizeIdentifier masks a phone number for logging.
func SanitizeIdentifier(identifier string) string {
	identifier = NormalizeIdentifier(identifier)
	if len(identifier) >= 4 {
		return "***" + identifier[len(identifier)-4:]
	}
	return "***"
}

// LogRateLimitExceeded logs a rate limit event with sanitized identifier.
func LogRateLimitExceeded(ctx context.Context, identifier, ip string, result LimitResult) {
	log.Ctx(ctx).Warn().
		Str("event", "rate_limit_exceeded").
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", result.Reason).
		Dur("retry_after", result.RetryAfter).
		Msg("Reservation rate limit exceeded")
}
