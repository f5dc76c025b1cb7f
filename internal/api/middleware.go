package api

import (
	"net"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// LoggingMiddleware creates middleware for logging HTTP requests.
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Capture the status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Msg("API request")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

const defaultLimiterClients = 10000

// ClientLimiter keeps one token bucket per client. Least recently seen
// clients are forgotten once the table is full.
type ClientLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *lru.Cache[string, *rate.Limiter]
}

// NewClientLimiter creates a per-client limiter.
func NewClientLimiter(perSecond float64, burst, maxClients int) (*ClientLimiter, error) {
	if burst < 1 {
		burst = 1
	}
	if maxClients <= 0 {
		maxClients = defaultLimiterClients
	}

	buckets, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}

	return &ClientLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: buckets,
	}, nil
}

// Allow reports whether a request from client may proceed.
func (l *ClientLimiter) Allow(client string) bool {
	limiter, ok := l.buckets.Get(client)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		if existing, found, _ := l.buckets.PeekOrAdd(client, limiter); found {
			limiter = existing
		}
	}
	return limiter.Allow()
}

// RateLimitMiddleware creates middleware for rate limiting by client address.
func RateLimitMiddleware(limiter *ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				client = host
			}

			if !limiter.Allow(client) {
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
