package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/and161185/csm-transport/internal/utils"
)

// VerifyHashMiddleware rejects requests whose body is not signed with key. An empty key
// disables the check.
func VerifyHashMiddleware(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			hash := r.Header.Get(utils.HashHeader)
			if hash == "" {
				http.Error(w, "missing hash", http.StatusBadRequest)
				return
			}
			if !utils.VerifyHash(bodyBytes, key, hash) {
				http.Error(w, "invalid hash", http.StatusBadRequest)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
