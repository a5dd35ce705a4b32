package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/filmzi/filelink/shared/logger"
	"github.com/filmzi/filelink/shared/middleware/ratelimiter"
	"github.com/filmzi/filelink/shared/utils"
)

func RateLimit(rl *ratelimiter.ClientRateLimiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := getIdentity(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !rl.Allow(identity) {
				logger.Log.Debug("rate limit exceeded", "client", identity, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Rate limit exceeded, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetIP extracts the client IP from RemoteAddr.
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port
		ip = r.RemoteAddr
	}

	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}

	return ip, nil
}

// GetForwardedIP trusts the first X-Forwarded-For entry and falls back to
// RemoteAddr. Use it only behind a proxy that overwrites the header.
func GetForwardedIP(r *http.Request) (string, error) {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
		return ip, nil
	}
	return GetIP(r)
}
