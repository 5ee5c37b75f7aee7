// Package middleware carries the HTTP middleware stack: panic recovery,
// request logging, per-client rate limiting and request size limits.
package middleware

import (
	"net/http"

	"github.com/viewspec/viewspec/pkg/logger"
)

const panicMiddlewareMethodName = "PanicMiddleware"

// PanicRecovery recovers panics from downstream handlers, logs them,
// reports them to the error tracker and answers with a 500.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rcv := recover(); rcv != nil {
				err := logger.HandlePanic(panicMiddlewareMethodName, rcv)
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
