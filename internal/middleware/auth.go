package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/Lixing-Zhang/ebook-landing/internal/config"
)

// APIKeyHeader carries the operator key
const APIKeyHeader = "api_key"

// APIKeyAuth restricts the operator routes, GET /metrics and GET /api/discount/stats, to
// callers sending a configured key in the api_key header. Customer routes (offer, discount
// quotes, order sessions and submissions, showcase, sample) are mounted without it.
//
// A missing key answers 401, an unknown one 403.
func APIKeyAuth(cfg config.AuthConfig) func(next http.Handler) http.Handler {
	keys := make([][]byte, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		keys[i] = []byte(k)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			switch {
			case got == "":
				http.Error(w, "Unauthorized: API key required", http.StatusUnauthorized)
			case !knownKey(keys, []byte(got)):
				http.Error(w, "Forbidden: Invalid API key", http.StatusForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// knownKey compares got against every key in constant time
func knownKey(keys [][]byte, got []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(got, k)
	}
	return found == 1
}
