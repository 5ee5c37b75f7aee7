package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func readingHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestSizeLimiterAcceptsSmallBody(t *testing.T) {
	handler := NewRequestSizeLimiter(1024).Middleware(readingHandler())

	req := httptest.NewRequest("POST", "/api/posts", bytes.NewReader(make([]byte, 512)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestSizeLimiterRejectsDeclaredOversize(t *testing.T) {
	handler := NewRequestSizeLimiter(1024).Middleware(readingHandler())

	req := httptest.NewRequest("POST", "/api/posts", bytes.NewReader(make([]byte, 2048)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "request_too_large")
}

func TestRequestSizeLimiterCapsUndeclaredBody(t *testing.T) {
	handler := NewRequestSizeLimiter(1024).Middleware(readingHandler())

	// No Content-Length: the cap is enforced by the wrapped reader.
	req := httptest.NewRequest("POST", "/api/posts", io.NopCloser(bytes.NewReader(make([]byte, 2048))))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequestSizeLimiterDefault(t *testing.T) {
	limiter := NewRequestSizeLimiter(0)
	assert.EqualValues(t, DefaultMaxRequestSize, limiter.maxSize)

	handler := limiter.Middleware(readingHandler())
	req := httptest.NewRequest("POST", "/api/posts", bytes.NewReader(make([]byte, 1024)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
