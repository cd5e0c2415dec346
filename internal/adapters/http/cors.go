package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"strings"
)

// originPolicy holds the allowed CORS origins. Patterns are exact origins
// or "*.domain" wildcards, which match any subdomain but not the domain
// itself.
type originPolicy struct {
	exact    map[string]struct{}
	suffixes []string // ".domain" for every wildcard
}

func newOriginPolicy(patterns []string) originPolicy {
	p := originPolicy{exact: make(map[string]struct{}, len(patterns))}
	for _, pattern := range patterns {
		switch {
		case pattern == "":
		case strings.HasPrefix(pattern, "*."):
			p.suffixes = append(p.suffixes, pattern[1:])
		default:
			p.exact[pattern] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	host := extractHost(origin)
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

// corsMiddleware sets CORS headers for allowed origins and answers
// preflight requests.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); s.origins.allows(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")
			h.Set("Access-Control-Expose-Headers", "X-Render-Pass, X-Index-Generation")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractHost returns the host of an origin without scheme, port or path.
func extractHost(origin string) string {
	host := origin
	if _, rest, ok := strings.Cut(host, "://"); ok {
		host = rest
	}
	host, _, _ = strings.Cut(host, "/")
	host, _, _ = strings.Cut(host, ":")
	return host
}
