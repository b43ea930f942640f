// internal/middleware/security.go
//
// Security-header and HTTPS middleware.
//
// Security sets, on every response that has not set them itself:
//
//   • Content-Security-Policy   –  self-only; the intake page has no inline
//                                  script or third-party assets
//   • X-Frame-Options           –  click-jacking defence
//   • X-Content-Type-Options    –  MIME-sniffing defence
//   • Referrer-Policy           –  no-referrer, so patient URLs never leak
//   • Cache-Control             –  no-store, so form pages with patient data
//                                  are not kept by shared caches
//   • Strict-Transport-Security –  only on requests that arrived over TLS
//
// Headers are written before next.ServeHTTP; a handler may still override any
// of them.

package middleware

import (
	"net/http"
	"strings"
)

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		hsts  = "max-age=63072000; includeSubDomains"
		csp   = "default-src 'self'; object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'"
		refer = "no-referrer"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", csp)
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", refer)
		h.Set("Cache-Control", "no-store")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// ForceHTTPS issues a 308 to the HTTPS URL for plain-HTTP requests, except
// for localhost so development works without certificates.
func ForceHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" || isLocal(r.Host) {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, "https://"+r.Host+r.URL.RequestURI(), http.StatusPermanentRedirect)
	})
}

func isLocal(host string) bool {
	if i := strings.LastIndexByte(host, ':'); i != -1 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	return host == "localhost" || host == "127.0.0.1" || host == "[::1]"
}
