package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/viewspec/viewspec/pkg/logger"
)

// RequestIDHeader carries the request id assigned to each request.
const RequestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogging assigns each request an id, echoes it on the response
// and logs method, path, status and duration.
func RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		logger.Info("%s %s -> %d (%s) request_id=%s",
			r.Method, r.URL.Path, rec.status, time.Since(start), requestID)
	})
}
