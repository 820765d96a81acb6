package admin

import (
	"crypto/subtle"
	"net/http"
)

// AdminKeyMiddleware requires the configured admin key in the X-Admin-Key
// header. The comparison is constant-time.
func (h *Handler) AdminKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-Admin-Key")
		if presented == "" {
			WriteErrorWithHint(w, http.StatusUnauthorized, ErrCodeInvalidCredentials,
				"Missing admin key",
				"Set the X-Admin-Key header to the configured ADMIN_API_KEY")
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.adminKey)) != 1 {
			WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
