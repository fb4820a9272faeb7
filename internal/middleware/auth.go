package middleware

import (
	"crypto/subtle"
	"net/http"

	"cardshop-bot/pkg/apierror"
)

// RequireLoginKey guards a route group with a shared key delivered in the
// X-Login-Key header. An empty configured key disables the whole group.
func RequireLoginKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, apierror.ServiceUnavailable("admin access not configured"))
				return
			}

			provided := r.Header.Get("X-Login-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				writeError(w, apierror.Unauthorized("invalid login key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
