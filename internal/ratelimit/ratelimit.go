package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/playable-preview/internal/httpmw"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// warned is set on the first denial and cleared by eviction
	warned bool
}

// IPLimiter is a token bucket per client IP. Idle buckets are evicted after
// ttl by a goroutine that lives as long as the context passed to New.
type IPLimiter struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	atCapacity bool

	perSecond   rate.Limit
	burst       int
	ttl         time.Duration
	maxVisitors int

	message    string
	retryAfter time.Duration

	onCapacity    func()
	onFirstDenied func(ip string)
	onDenied      func(ip string)
}

type Option func(*IPLimiter)

// WithRate refills perSecond tokens each second into a bucket holding
// burst. WithRate(10, 50) admits 50 at once, then 10/s.
func WithRate(perSecond float64, burst int) Option {
	return func(l *IPLimiter) { l.perSecond, l.burst = rate.Limit(perSecond), burst }
}

// Per admits n requests per period with a burst of n. Per(5, 15*time.Minute)
// is five login attempts per quarter hour.
func Per(n int, period time.Duration) Option {
	return WithRate(float64(n)/period.Seconds(), n)
}

// WithTTL sets how long an idle IP keeps its bucket.
func WithTTL(d time.Duration) Option {
	return func(l *IPLimiter) { l.ttl = d }
}

// WithMaxVisitors bounds the number of tracked IPs; unseen IPs are denied
// while the map is full. 0 removes the bound.
func WithMaxVisitors(n int) Option {
	return func(l *IPLimiter) { l.maxVisitors = n }
}

// WithMessage sets the "error" text of the 429 body.
func WithMessage(msg string) Option {
	return func(l *IPLimiter) { l.message = msg }
}

func WithRetryAfter(d time.Duration) Option {
	return func(l *IPLimiter) { l.retryAfter = d }
}

// WithOnFirstDenied fires once per bucket lifetime, for logging.
func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.onFirstDenied = fn }
}

// WithOnDenied fires on every denial, for counting.
func WithOnDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.onDenied = fn }
}

// WithOnCapacity fires when the visitor map fills, and again only after
// eviction has made room.
func WithOnCapacity(fn func()) Option {
	return func(l *IPLimiter) { l.onCapacity = fn }
}

func New(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		visitors:    make(map[string]*visitor),
		perSecond:   10,
		burst:       30,
		ttl:         5 * time.Minute,
		maxVisitors: 100_000,
		message:     "too many requests",
		retryAfter:  30 * time.Second,
	}
	for _, o := range opts {
		o(l)
	}
	go l.evictLoop(ctx)
	return l
}

type verdict struct {
	allowed, first, capacity bool
}

// check decides under the lock; hooks run afterwards in allow.
func (l *IPLimiter) check(ip string, now time.Time) verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		if l.maxVisitors > 0 && len(l.visitors) >= l.maxVisitors {
			first := !l.atCapacity
			l.atCapacity = true
			return verdict{capacity: first}
		}
		v = &visitor{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	if v.limiter.AllowN(now, 1) {
		return verdict{allowed: true}
	}
	first := !v.warned
	v.warned = true
	return verdict{first: first}
}

func (l *IPLimiter) allow(ip string) bool {
	res := l.check(ip, time.Now())
	if res.allowed {
		return true
	}
	if res.capacity && l.onCapacity != nil {
		l.onCapacity()
	}
	if res.first && l.onFirstDenied != nil {
		l.onFirstDenied(ip)
	}
	if l.onDenied != nil {
		l.onDenied(ip)
	}
	return false
}

func (l *IPLimiter) evictLoop(ctx context.Context) {
	t := time.NewTicker(l.ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.evict(now)
		}
	}
}

func (l *IPLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, ip)
		}
	}
	if l.maxVisitors <= 0 || len(l.visitors) < l.maxVisitors {
		l.atCapacity = false
	}
}

// Middleware answers 429 with a JSON error once the client IP resolved by
// httpmw.ClientIP runs out of tokens. The body says nothing about the
// remaining budget.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	body, _ := json.Marshal(map[string]string{"error": l.message})
	retry := strconv.Itoa(int(l.retryAfter / time.Second))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.allow(httpmw.ClientIPFromContext(r.Context())) {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("Content-Type", "application/json; charset=utf-8")
		h.Set("Retry-After", retry)
		h.Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write(body)
	})
}
