package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateDBError(t *testing.T) {
	assert.Nil(t, TranslateDBError(nil))

	t.Run("no rows becomes not found", func(t *testing.T) {
		err := TranslateDBError(sql.ErrNoRows)
		assert.IsType(t, &NotFoundError{}, err)
	})

	t.Run("wrapped no rows", func(t *testing.T) {
		err := TranslateDBError(fmt.Errorf("scan: %w", sql.ErrNoRows))
		assert.IsType(t, &NotFoundError{}, err)
	})

	t.Run("taxonomy errors pass through", func(t *testing.T) {
		orig := &UnprocessableError{Reason: "x"}
		assert.Same(t, error(orig), TranslateDBError(orig))

		storage := &StorageError{Kind: StorageConflict, Err: errors.New("dup")}
		assert.Same(t, error(storage), TranslateDBError(storage))
	})

	t.Run("context errors map to unavailable", func(t *testing.T) {
		var se *StorageError
		require.ErrorAs(t, TranslateDBError(context.Canceled), &se)
		assert.Equal(t, StorageUnavailable, se.Kind)

		require.ErrorAs(t, TranslateDBError(context.DeadlineExceeded), &se)
		assert.Equal(t, StorageUnavailable, se.Kind)
	})

	t.Run("postgres error codes", func(t *testing.T) {
		tests := []struct {
			code string
			kind StorageErrorKind
		}{
			{"23505", StorageConflict},
			{"23503", StorageInvalidReference},
			{"23502", StorageInvalidValue},
			{"23514", StorageInvalidValue},
			{"22001", StorageInvalidValue},
			{"08006", StorageUnavailable},
			{"42703", StorageUnknown},
		}
		for _, tt := range tests {
			var se *StorageError
			err := TranslateDBError(&pgconn.PgError{Code: tt.code})
			require.ErrorAs(t, err, &se, "code %s", tt.code)
			assert.Equal(t, tt.kind, se.Kind, "code %s", tt.code)
		}
	})

	t.Run("anything else is unknown storage", func(t *testing.T) {
		var se *StorageError
		require.ErrorAs(t, TranslateDBError(errors.New("boom")), &se)
		assert.Equal(t, StorageUnknown, se.Kind)
	})
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&NotFoundError{}, http.StatusNotFound},
		{&UnprocessableError{Reason: "x"}, http.StatusUnprocessableEntity},
		{&ConfigError{Reason: "x"}, http.StatusInternalServerError},
		{&InternalError{Op: "create"}, http.StatusInternalServerError},
		{&StorageError{Kind: StorageConflict, Err: errors.New("x")}, http.StatusConflict},
		{&StorageError{Kind: StorageInvalidReference, Err: errors.New("x")}, http.StatusBadRequest},
		{&StorageError{Kind: StorageInvalidValue, Err: errors.New("x")}, http.StatusBadRequest},
		{&StorageError{Kind: StorageUnavailable, Err: errors.New("x")}, http.StatusServiceUnavailable},
		{&StorageError{Kind: StorageUnknown, Err: errors.New("x")}, http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "not_found", ErrorCode(&NotFoundError{}))
	assert.Equal(t, "unprocessable", ErrorCode(&UnprocessableError{}))
	assert.Equal(t, "invalid_configuration", ErrorCode(&ConfigError{}))
	assert.Equal(t, "conflict", ErrorCode(&StorageError{Kind: StorageConflict, Err: errors.New("x")}))
	assert.Equal(t, "invalid_reference", ErrorCode(&StorageError{Kind: StorageInvalidReference, Err: errors.New("x")}))
	assert.Equal(t, "internal_error", ErrorCode(errors.New("plain")))
}

func TestNotFoundErrorMessage(t *testing.T) {
	assert.Equal(t, "not found", (&NotFoundError{}).Error())
	assert.Equal(t, "posts not found", (&NotFoundError{Resource: "posts"}).Error())
}
