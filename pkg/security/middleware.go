// Package security provides the HTTP middleware that wraps every hookcord route.
package security

import (
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/codeGROOVE-dev/hookcord/pkg/logger"
)

// Middleware applies request logging, panic recovery and security headers.
// When allow is non-nil, requests from addresses outside it get 403.
func Middleware(allow *IPAllowlist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := ClientIP(r)
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				if err := recover(); err != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					logger.Error(ctx, "panic recovered", nil, logger.Fields{
						"panic":      err,
						"ip":         ip,
						"path":       r.URL.Path,
						"request_id": middleware.GetReqID(ctx),
						"stack":      string(buf[:n]),
					})
					http.Error(wrapped, "internal server error", http.StatusInternalServerError)
				}

				fields := logger.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     wrapped.statusCode,
					"ip":         ip,
					"duration":   time.Since(start).String(),
					"request_id": middleware.GetReqID(ctx),
					"user_agent": r.UserAgent(),
				}
				if wrapped.statusCode >= http.StatusBadRequest {
					logger.Warn(ctx, "HTTP response error", fields)
				} else {
					logger.Info(ctx, "HTTP response", fields)
				}
			}()

			wrapped.Header().Set("X-Content-Type-Options", "nosniff")
			wrapped.Header().Set("X-Frame-Options", "DENY")
			wrapped.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			if allow != nil && !allow.Contains(ip) {
				http.Error(wrapped, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(wrapped, r)
		})
	}
}

// ClientIP extracts the client IP from the request.
// We only use RemoteAddr to avoid header spoofing.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might be just an IP without port
		return r.RemoteAddr
	}
	return ip
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter

	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}
