package common

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// Database abstracts the storage layer behind the viewspec handlers. The
// bun adapter under adapters/database is the default implementation; the
// interface keeps the core free of ORM types so tests can substitute
// their own.
type Database interface {
	NewSelect() SelectQuery
	NewInsert() InsertQuery
	NewUpdate() UpdateQuery
	NewDelete() DeleteQuery

	// Raw SQL execution
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Query(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// RunInTransaction runs fn with a Database bound to one transaction.
	RunInTransaction(ctx context.Context, fn func(Database) error) error

	// GetUnderlyingDB exposes the driver-level handle (*bun.DB for the
	// bun adapter) for features the abstraction does not cover.
	GetUnderlyingDB() interface{}

	// DriverName returns the canonical driver name: "postgres" or "sqlite".
	DriverName() string
}

// SelectQuery builds a SELECT statement.
type SelectQuery interface {
	Table(table string) SelectQuery
	Column(columns ...string) SelectQuery
	ColumnExpr(query string, args ...interface{}) SelectQuery
	Where(query string, args ...interface{}) SelectQuery
	Join(query string, args ...interface{}) SelectQuery
	LeftJoin(query string, args ...interface{}) SelectQuery
	Order(order string) SelectQuery
	Limit(n int) SelectQuery
	Offset(n int) SelectQuery

	// Scan executes the query into dest: *map[string]interface{} for a
	// single row or *[]map[string]interface{} for many.
	Scan(ctx context.Context, dest interface{}) error
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context) (bool, error)
}

// InsertQuery builds an INSERT statement.
type InsertQuery interface {
	Table(table string) InsertQuery
	Value(column string, value interface{}) InsertQuery
	Returning(columns ...string) InsertQuery

	Exec(ctx context.Context) (Result, error)
	// ExecReturning executes the insert and scans the RETURNING column
	// into dest, falling back to LastInsertId on drivers without
	// RETURNING support.
	ExecReturning(ctx context.Context, dest interface{}) error
}

// UpdateQuery builds an UPDATE statement.
type UpdateQuery interface {
	Table(table string) UpdateQuery
	Set(column string, value interface{}) UpdateQuery
	SetMap(values map[string]interface{}) UpdateQuery
	Where(query string, args ...interface{}) UpdateQuery

	Exec(ctx context.Context) (Result, error)
}

// DeleteQuery builds a DELETE statement.
type DeleteQuery interface {
	Table(table string) DeleteQuery
	Where(query string, args ...interface{}) DeleteQuery

	Exec(ctx context.Context) (Result, error)
}

// Result reports the outcome of a write.
type Result interface {
	RowsAffected() int64
	LastInsertId() (int64, error)
}

// RequestBody is the validated write payload handed to the body decoder.
// Fields returns the payload as a map with null values excluded; when
// includeUnset is true, keys absent from the request but carrying schema
// defaults are included (create semantics), otherwise only explicitly
// set keys are returned (update semantics). Read-only and primary-key
// exclusion is the decoder's job, not the body's.
type RequestBody interface {
	Fields(includeUnset bool) map[string]interface{}
}

// Router abstracts HTTP routing so handlers bind to mux, bunrouter or
// anything else implementing it.
type Router interface {
	HandleFunc(pattern string, handler HTTPHandlerFunc) RouteRegistration
	ServeHTTP(w ResponseWriter, r Request)
}

// RouteRegistration allows method chaining for route configuration.
type RouteRegistration interface {
	Methods(methods ...string) RouteRegistration
	PathPrefix(prefix string) RouteRegistration
}

// Request abstracts an incoming HTTP request.
type Request interface {
	Method() string
	URL() string
	Header(key string) string
	Body() ([]byte, error)
	PathParam(key string) string
	QueryParam(key string) string
	AllQueryParams() map[string]string
	UnderlyingRequest() *http.Request
}

// ResponseWriter abstracts the HTTP response.
type ResponseWriter interface {
	SetHeader(key, value string)
	WriteHeader(statusCode int)
	Write(data []byte) (int, error)
	WriteJSON(data interface{}) error
	UnderlyingResponseWriter() http.ResponseWriter
}

// HTTPHandlerFunc type for HTTP handlers.
type HTTPHandlerFunc func(ResponseWriter, Request)

// WrapHTTPRequest wraps standard http types into the common interfaces.
func WrapHTTPRequest(w http.ResponseWriter, r *http.Request) (ResponseWriter, Request) {
	return &StandardResponseWriter{w: w}, &StandardRequest{r: r}
}

// StandardResponseWriter adapts http.ResponseWriter.
type StandardResponseWriter struct {
	w      http.ResponseWriter
	status int
}

func (s *StandardResponseWriter) SetHeader(key, value string) {
	s.w.Header().Set(key, value)
}

func (s *StandardResponseWriter) WriteHeader(statusCode int) {
	s.status = statusCode
	s.w.WriteHeader(statusCode)
}

func (s *StandardResponseWriter) Write(data []byte) (int, error) {
	return s.w.Write(data)
}

func (s *StandardResponseWriter) WriteJSON(data interface{}) error {
	s.SetHeader("Content-Type", "application/json")
	return json.NewEncoder(s.w).Encode(data)
}

func (s *StandardResponseWriter) UnderlyingResponseWriter() http.ResponseWriter {
	return s.w
}

// StandardRequest adapts *http.Request.
type StandardRequest struct {
	r    *http.Request
	body []byte
}

func NewStandardRequest(r *http.Request) *StandardRequest {
	return &StandardRequest{r: r}
}

func (s *StandardRequest) Method() string {
	return s.r.Method
}

func (s *StandardRequest) URL() string {
	return s.r.URL.String()
}

func (s *StandardRequest) Header(key string) string {
	return s.r.Header.Get(key)
}

func (s *StandardRequest) Body() ([]byte, error) {
	if s.body != nil {
		return s.body, nil
	}
	if s.r.Body == nil {
		return nil, nil
	}
	defer s.r.Body.Close()
	body, err := io.ReadAll(s.r.Body)
	if err != nil {
		return nil, err
	}
	s.body = body
	return body, nil
}

func (s *StandardRequest) PathParam(key string) string {
	// Path params are the router's job; the router adapters pass them
	// through the params map instead.
	return ""
}

func (s *StandardRequest) QueryParam(key string) string {
	return s.r.URL.Query().Get(key)
}

func (s *StandardRequest) AllQueryParams() map[string]string {
	params := make(map[string]string)
	for key, values := range s.r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func (s *StandardRequest) UnderlyingRequest() *http.Request {
	return s.r
}
