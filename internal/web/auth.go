package web

import (
	"crypto/subtle"
	"net/http"
)

// metricsAuthEnabled reports whether HTTP Basic Auth is configured for
// /metrics.
func (s *Server) metricsAuthEnabled() bool {
	if s.cfg == nil || s.cfg.Metrics.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	ba := s.cfg.Metrics.BasicAuth
	return ba.Username != "" && ba.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.Metrics.BasicAuth.Username
	password := s.cfg.Metrics.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="dozers", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
