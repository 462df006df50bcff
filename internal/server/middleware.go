// File: internal/server/middleware.go
package server

import (
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// apiKeyMiddleware rejects requests without a recognized X-API-Key header.
// An empty key list disables authentication.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.cfg.APIKeys) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get("X-API-Key")
		for _, key := range s.cfg.APIKeys {
			if key != "" && provided == key {
				next.ServeHTTP(w, r)
				return
			}
		}

		s.logger.Warn("Rejected request with missing or invalid API key.",
			zap.String("remote", r.RemoteAddr))
		s.respondError(w, http.StatusUnauthorized, "invalid or missing API key")
	})
}

// rateLimitMiddleware applies a per-client token bucket sized from the
// configured requests-per-minute budget. Zero disables limiting.
func (s *Server) rateLimitMiddleware() func(http.Handler) http.Handler {
	perMinute := s.cfg.RatePerMinute

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(clientIP string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if l, ok := limiters[clientIP]; ok {
			return l
		}
		l := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
		limiters[clientIP] = l
		return l
	}

	return func(next http.Handler) http.Handler {
		if perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				clientIP = host
			}

			if !limiterFor(clientIP).Allow() {
				s.logger.Warn("Rate limit exceeded.", zap.String("client", clientIP))
				s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
