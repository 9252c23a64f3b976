package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// exemptPaths bypass authentication so probes and scrapers need no key.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// streamPaths also accept the key as an access_token query parameter,
// since browser EventSource cannot set headers.
var streamPaths = map[string]struct{}{
	"/warmup/progress": {},
}

// BearerAuthMiddleware checks "Authorization: Bearer <key>" against apiKeys.
// Empty apiKeys disables authentication.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, reason := bearerToken(r)
			if reason != "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, reason)
				return
			}
			if !validKey(keys, token) {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validKey compares against every key in constant time.
func validKey(keys [][]byte, token string) bool {
	t := []byte(token)
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, t)
	}
	return found == 1
}

// bearerToken extracts the token, or returns a client-facing reason it could not.
func bearerToken(r *http.Request) (token, reason string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		if _, ok := streamPaths[r.URL.Path]; ok {
			if t := r.URL.Query().Get("access_token"); t != "" {
				return t, ""
			}
		}
		return "", "missing authorization header"
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", "authorization header must use Bearer scheme"
	}
	return strings.TrimSpace(auth[len(bearerPrefix):]), ""
}
