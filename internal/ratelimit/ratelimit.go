package ratelimit

import (
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/metrics"
)

// Limiter is a sliding-log request counter: it keeps the raw timestamps seen
// per client inside the trailing window and rejects once the pruned count
// reaches the maximum. Bursts across a window boundary are possible; that is
// the intended behaviour, not a token bucket.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	group   string
	message string
	now     func() time.Time
	clients map[string][]time.Time
}

func New(window time.Duration, max int, group, message string) *Limiter {
	return NewWithClock(window, max, group, message, time.Now)
}

func NewWithClock(window time.Duration, max int, group, message string, now func() time.Time) *Limiter {
	return &Limiter{
		window:  window,
		max:     max,
		group:   group,
		message: message,
		now:     now,
		clients: make(map[string][]time.Time),
	}
}

// Allow records a request for key unless the window is already full. On
// rejection it returns the retry-after hint (the window length).
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)

	// Prune every client on access; the table stays bounded under traffic but
	// not under idleness, which is acceptable at this throughput.
	for id, ts := range l.clients {
		kept := ts[:0]
		for _, t := range ts {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(l.clients, id)
		} else {
			l.clients[id] = kept
		}
	}

	recent := l.clients[key]
	if len(recent) >= l.max {
		return false, l.window
	}
	l.clients[key] = append(recent, l.now())
	return true, 0
}

// Handler adapts the limiter into fiber middleware keyed by client IP.
func (l *Limiter) Handler(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := clientIP(c)
		ok, retry := l.Allow(ip)
		if !ok {
			metrics.RateLimited.WithLabelValues(l.group).Inc()
			if log != nil {
				log.Warn("rate limit exceeded",
					zap.String("group", l.group),
					zap.String("ip", ip),
					zap.String("path", c.Path()))
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success":    false,
				"error":      l.message,
				"retryAfter": int(retry.Seconds()),
			})
		}
		return c.Next()
	}
}

func clientIP(c *fiber.Ctx) string {
	ip := c.IP()
	if ip == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
