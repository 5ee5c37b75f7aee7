package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

// The handler layer performs no retries: every error propagates upward
// immediately. Silent dropping is reserved for unknown requested field
// names, unknown filter parameters and unmatched write-payload keys.

// ConfigError reports an invalid handler or schema configuration. It is
// raised at construction time and is fatal: a process holding one must
// not start serving.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

// Configf builds a ConfigError.
func Configf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that no row matched the lookup predicate.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return e.Resource + " not found"
}

// UnprocessableError reports a write payload that decoded to nothing.
type UnprocessableError struct {
	Reason string
}

func (e *UnprocessableError) Error() string {
	return e.Reason
}

// InternalError reports a storage invariant violation: a success-shaped
// but empty result where a result was mandatory (insert without a key,
// update or delete affecting zero rows after the lookup succeeded).
// These are not user-correctable and surface as a generic server error.
type InternalError struct {
	Op     string
	Reason string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %s", e.Op, e.Reason)
}

// StorageErrorKind classifies translated storage failures.
type StorageErrorKind int

const (
	StorageUnknown StorageErrorKind = iota
	StorageConflict                 // unique constraint violation
	StorageInvalidReference         // foreign-key violation
	StorageInvalidValue             // check/not-null violation, value too long
	StorageUnavailable              // connection-level failure
)

// StorageError wraps a lower-level database error after categorization
// at the translation boundary.
type StorageError struct {
	Kind StorageErrorKind
	Err  error
}

func (e *StorageError) Error() string {
	return "storage error: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TranslateDBError is the translation boundary for write-path storage
// failures. Constraint violations and connection failures are
// categorized here, before they reach the caller; everything already
// part of the API taxonomy passes through untouched.
func TranslateDBError(err error) error {
	if err == nil {
		return nil
	}
	var nf *NotFoundError
	var up *UnprocessableError
	var ie *InternalError
	var se *StorageError
	if errors.As(err, &nf) || errors.As(err, &up) || errors.As(err, &ie) || errors.As(err, &se) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &StorageError{Kind: StorageUnavailable, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &StorageError{Kind: StorageConflict, Err: err}
		case "23503": // foreign_key_violation
			return &StorageError{Kind: StorageInvalidReference, Err: err}
		case "23502", "23514", "22001": // not_null, check, string_data_right_truncation
			return &StorageError{Kind: StorageInvalidValue, Err: err}
		}
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" { // connection exceptions
			return &StorageError{Kind: StorageUnavailable, Err: err}
		}
	}
	return &StorageError{Kind: StorageUnknown, Err: err}
}

// HTTPStatus maps an error from the taxonomy to the HTTP status the
// binding writes. Unknown errors map to 500.
func HTTPStatus(err error) int {
	var nf *NotFoundError
	var up *UnprocessableError
	var cfg *ConfigError
	var se *StorageError
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &up):
		return http.StatusUnprocessableEntity
	case errors.As(err, &cfg):
		return http.StatusInternalServerError
	case errors.As(err, &se):
		switch se.Kind {
		case StorageConflict:
			return http.StatusConflict
		case StorageInvalidReference, StorageInvalidValue:
			return http.StatusBadRequest
		case StorageUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode maps an error to the short machine-readable code used in the
// response envelope.
func ErrorCode(err error) string {
	var nf *NotFoundError
	var up *UnprocessableError
	var cfg *ConfigError
	var se *StorageError
	switch {
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &up):
		return "unprocessable"
	case errors.As(err, &cfg):
		return "invalid_configuration"
	case errors.As(err, &se):
		switch se.Kind {
		case StorageConflict:
			return "conflict"
		case StorageInvalidReference:
			return "invalid_reference"
		case StorageInvalidValue:
			return "invalid_value"
		case StorageUnavailable:
			return "storage_unavailable"
		default:
			return "storage_error"
		}
	default:
		return "internal_error"
	}
}
