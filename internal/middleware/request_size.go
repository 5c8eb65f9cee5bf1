package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/docker/go-units"
)

// RequestSizeLimitMiddleware rejects bodies over maxRequestSize bytes.
// A declared Content-Length over the limit is refused before the handler runs;
// chunked bodies are cut off by http.MaxBytesReader while the handler reads them.
func RequestSizeLimitMiddleware(maxRequestSize int64) func(http.Handler) http.Handler {
	message := "request body exceeds " + units.HumanSize(float64(maxRequestSize))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxRequestSize {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
				return
			}

			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}
