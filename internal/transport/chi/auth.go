package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const codeUnauthorized = "unauthorized"

// exemptPaths are served without authentication.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware checks the Authorization header against the
// configured API keys. With no keys configured, auth is disabled.
func BearerAuthMiddleware(apiKeys []string, logger *zap.Logger) func(http.Handler) http.Handler {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "Missing or malformed Authorization header")
				return
			}
			if !keyMatches(keys, token) {
				logger.Warn("rejected request with invalid API key",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr))
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func keyMatches(keys map[string]struct{}, token string) bool {
	// Compare against every key to keep timing independent of a match.
	matched := false
	for k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(token)) == 1 {
			matched = true
		}
	}
	return matched
}
