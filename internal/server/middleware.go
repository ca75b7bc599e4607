package server

import (
	"cmp"
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/metrics"
)

// loggedPrefixes are the paths worth a log line. Static assets and the
// health probe are too chatty.
var loggedPrefixes = []string{"/api/", "/admin/", "/upload/"}

// trackingWriter remembers the status and body size of a response.
type trackingWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (tw *trackingWriter) WriteHeader(code int) {
	if tw.status == 0 {
		tw.status = code
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	if tw.status == 0 {
		tw.status = http.StatusOK
	}
	n, err := tw.ResponseWriter.Write(b)
	tw.bytes += n
	return n, err
}

func (tw *trackingWriter) Unwrap() http.ResponseWriter { return tw.ResponseWriter }

// withLogging logs booth API calls and records per-route latency. Server
// errors are logged at warn.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		tw := &trackingWriter{ResponseWriter: w}
		next.ServeHTTP(tw, r)
		took := time.Since(start)

		if !slices.ContainsFunc(loggedPrefixes, func(p string) bool { return strings.HasPrefix(r.URL.Path, p) }) {
			return
		}
		status := cmp.Or(tw.status, http.StatusOK)
		evt := log.Debug()
		if status >= http.StatusInternalServerError {
			evt = log.Warn()
		} else if r.Method != http.MethodGet {
			evt = log.Info()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", tw.bytes).
			Dur("took", took).
			Msg("Request served")

		route := cmp.Or(r.Pattern, "unmatched")
		metrics.New(metrics.Namespace).
			Dimension("Route", route).
			Duration("RequestLatencyMs", took).
			Count("RequestCount").
			Property("status", status).
			Flush()
	})
}

// withCORS allows the configured origin, plus localhost when origin is empty.
func withCORS(allowed string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		ok := origin != "" && (origin == allowed ||
			(allowed == "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:"))))
		if ok {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin checks the bearer token. With no token configured the admin
// routes are closed.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			httpError(w, http.StatusForbidden, "admin API disabled")
			return
		}
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			log.Warn().Str("path", r.URL.Path).Msg("Blocked admin request: missing or invalid token")
			httpError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}
