package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/viewspec/viewspec/pkg/common"
)

// DefaultMaxRequestSize caps request bodies at 10MB unless configured
// otherwise.
const DefaultMaxRequestSize = 10 << 20

// RequestSizeLimiter bounds request body size. Oversized bodies that
// declare their length are rejected before the handler runs; chunked
// bodies fail inside the handler's read via http.MaxBytesReader.
type RequestSizeLimiter struct {
	maxSize int64
}

// NewRequestSizeLimiter creates a limiter. maxSize is in bytes; zero or
// negative selects DefaultMaxRequestSize.
func NewRequestSizeLimiter(maxSize int64) *RequestSizeLimiter {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}
	return &RequestSizeLimiter{maxSize: maxSize}
}

func (rsl *RequestSizeLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > rsl.maxSize {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			json.NewEncoder(w).Encode(common.Response{
				Success: false,
				Error:   &common.APIError{Code: "request_too_large", Message: "request body exceeds limit"},
			})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, rsl.maxSize)
		next.ServeHTTP(w, r)
	})
}
