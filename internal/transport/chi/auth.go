package chi

import (
	"net/http"
	"strings"

	"github.com/kailas-cloud/fastload/internal/domain/access"
)

// exemptPaths are routes that bypass authentication.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
	"/version": {},
}

// AccessMiddleware attaches the caller's access level to the request context.
// Anonymous callers get defaultLevel; a valid Bearer token grants
// access.Manual. A malformed or unknown token is rejected with 401. If tokens
// is empty, the Authorization header is ignored.
func AccessMiddleware(defaultLevel access.Level, tokens []string) func(http.Handler) http.Handler {
	validKeys := make(map[string]struct{}, len(tokens))
	for _, k := range tokens {
		if k != "" {
			validKeys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			anonymous := r.WithContext(access.WithLevel(r.Context(), defaultLevel))

			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, anonymous)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" || len(validKeys) == 0 {
				next.ServeHTTP(w, anonymous)
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					ErrorCodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			token := auth[len(bearerPrefix):]
			if _, ok := validKeys[token]; !ok {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(access.WithLevel(r.Context(), access.Manual)))
		})
	}
}
