package api

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/metrics"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type contextKey string

const userContextKey contextKey = "user"

// userFrom returns the authenticated user stored by requireUser.
func userFrom(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(logger *zerolog.Logger) mux.MiddlewareFunc {
	base := logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			metrics.IncHTTP(route, http.StatusText(recorder.status))

			base.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

// rateLimitMiddleware keeps one token bucket per client. Authenticated
// clients are keyed by bearer token, anonymous ones by remote host.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit.RPS <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		lim := s.getLimiter(clientKey(r))
		if !lim.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (s *Server) getLimiter(key string) *rate.Limiter {
	if v, ok := s.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := s.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(s.cfg.RateLimit.RPS), burst)
	actual, loaded := s.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// requireUser resolves the bearer token and stores the user on the context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// requireRole additionally checks the authenticated user's role.
func (s *Server) requireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		if userFrom(r).Role != role {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	})
}

// requireAdminKey authenticates back-office calls with a static API key
// carried in the configured header.
func (s *Server) requireAdminKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(s.cfg.HeaderAPIKey))
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}

		name, ok := s.adminKeyName(key)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		admin := &models.User{ID: "admin:" + name, Name: name, Role: models.RoleAdmin}
		ctx := context.WithValue(r.Context(), userContextKey, admin)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) adminKeyName(candidate string) (string, bool) {
	for _, k := range s.cfg.AdminAPIKeys {
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(candidate)) == 1 {
			return k.Name, true
		}
	}
	return "", false
}
