package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// IPRateLimiter applies a per-IP token bucket. Stale buckets are swept in
// the background.
type IPRateLimiter struct {
	visitors sync.Map
	limit    rate.Limit
	burst    int
	log      *zap.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(perMinute int, log *zap.Logger) *IPRateLimiter {
	l := &IPRateLimiter{
		limit: rate.Limit(float64(perMinute) / 60.0),
		burst: 5,
		log:   log,
	}
	go l.sweep()
	return l
}

func (l *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	if v, ok := l.visitors.Load(ip); ok {
		vi := v.(*visitor)
		vi.lastSeen = time.Now()
		return vi.limiter
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.visitors.Store(ip, &visitor{limiter: lim, lastSeen: time.Now()})
	return lim
}

func (l *IPRateLimiter) sweep() {
	for {
		time.Sleep(time.Minute)
		cutoff := time.Now().Add(-5 * time.Minute)
		l.visitors.Range(func(k, v any) bool {
			if v.(*visitor).lastSeen.Before(cutoff) {
				l.visitors.Delete(k)
			}
			return true
		})
	}
}

func (l *IPRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		if !l.limiterFor(ip).Allow() {
			l.log.Warn("rate limit exceeded",
				zap.String("ip", ip), zap.String("path", c.Path()))
			return c.Status(fiber.StatusTooManyRequests).
				JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
