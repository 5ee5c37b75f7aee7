// Package errortracking reports failures to an external tracker. The
// sentry provider is the real implementation; the no-op provider serves
// deployments that run without one.
package errortracking

import (
	"context"
	"sync"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityDebug   Severity = "debug"
)

// Provider defines the interface for error tracking providers
type Provider interface {
	// CaptureError captures an error with the given severity and additional context
	CaptureError(ctx context.Context, err error, severity Severity, extra map[string]interface{})

	// CaptureMessage captures a message with the given severity and additional context
	CaptureMessage(ctx context.Context, message string, severity Severity, extra map[string]interface{})

	// CapturePanic captures a panic with stack trace
	CapturePanic(ctx context.Context, recovered interface{}, stackTrace []byte, extra map[string]interface{})

	// Flush waits for all events to be sent (useful for graceful shutdown)
	Flush(timeout int) bool

	// Close closes the provider and releases resources
	Close() error
}

var (
	defaultMu       sync.RWMutex
	defaultProvider Provider = NewNoOpProvider()
)

// SetDefault installs the process-wide provider used by the package
// helpers below.
func SetDefault(p Provider) {
	if p == nil {
		p = NewNoOpProvider()
	}
	defaultMu.Lock()
	defaultProvider = p
	defaultMu.Unlock()
}

// Default returns the process-wide provider.
func Default() Provider {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultProvider
}

// CaptureError reports err at error severity through the default
// provider. Nil errors are ignored.
func CaptureError(err error) {
	if err == nil {
		return
	}
	Default().CaptureError(context.Background(), err, SeverityError, nil)
}

// NoOpProvider discards every event. Used when error tracking is
// disabled.
type NoOpProvider struct{}

// NewNoOpProvider creates a new NoOp provider
func NewNoOpProvider() *NoOpProvider {
	return &NoOpProvider{}
}

func (n *NoOpProvider) CaptureError(ctx context.Context, err error, severity Severity, extra map[string]interface{}) {
}

func (n *NoOpProvider) CaptureMessage(ctx context.Context, message string, severity Severity, extra map[string]interface{}) {
}

func (n *NoOpProvider) CapturePanic(ctx context.Context, recovered interface{}, stackTrace []byte, extra map[string]interface{}) {
}

// Flush does nothing and returns true
func (n *NoOpProvider) Flush(timeout int) bool {
	return true
}

// Close does nothing
func (n *NoOpProvider) Close() error {
	return nil
}
