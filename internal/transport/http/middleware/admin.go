package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminKeyHeader carries the operator key for client management routes.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey allows the request only when the X-Admin-Key header matches
// key. An empty key disables the guarded routes entirely.
func RequireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeJSONError(w, http.StatusForbidden, "admin api disabled")
				return
			}
			got := r.Header.Get(AdminKeyHeader)
			if got == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
