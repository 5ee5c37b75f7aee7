package viewspec

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/viewspec/viewspec/pkg/common"
	"github.com/viewspec/viewspec/pkg/errortracking"
	"github.com/viewspec/viewspec/pkg/logger"
	"github.com/viewspec/viewspec/pkg/metrics"
	"github.com/viewspec/viewspec/pkg/schema"
	"github.com/viewspec/viewspec/pkg/schemaregistry"
)

// filterParamPrefix marks query parameters carrying equality filters,
// e.g. ?filter.status=published.
const filterParamPrefix = "filter."

// API routes requests for registered resources onto their handlers. One
// API instance serves any number of resources; registration happens at
// startup and is safe for concurrent request handling afterwards.
type API struct {
	mu       sync.RWMutex
	handlers map[string]*Handler

	db      common.Database
	metrics metrics.Provider
}

// APIOption configures an API.
type APIOption func(*API)

// WithMetrics records per-operation request metrics on the provider.
func WithMetrics(provider metrics.Provider) APIOption {
	return func(a *API) { a.metrics = provider }
}

// NewAPI creates an API serving resources from the given database.
func NewAPI(db common.Database, opts ...APIOption) *API {
	a := &API{
		handlers: make(map[string]*Handler),
		db:       db,
		metrics:  metrics.Noop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register builds a handler for the resource and mounts it under the
// entity name. Construction errors are fatal configuration problems.
func (a *API) Register(entity string, res *schema.Resource, opts ...Option) error {
	h, err := New(res, a.db, opts...)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.handlers[entity] = h
	a.mu.Unlock()
	logger.Info("registered resource %s (table %s)", entity, res.Table)
	return nil
}

// RegisterAll mounts every resource in the registry under its name.
func (a *API) RegisterAll(reg *schemaregistry.Registry, opts ...Option) error {
	for _, name := range reg.Names() {
		res, _ := reg.Get(name)
		if err := a.Register(name, res, opts...); err != nil {
			return err
		}
	}
	return nil
}

// HandlerFor returns the handler registered under the entity name.
func (a *API) HandlerFor(entity string) (*Handler, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h, ok := a.handlers[entity]
	return h, ok
}

// SetupRoutes mounts the API on a router under prefix, binding
// collection and item routes for every registered resource.
func (a *API) SetupRoutes(router common.Router, prefix string) {
	prefix = strings.TrimSuffix(prefix, "/")
	router.HandleFunc(prefix+"/{entity}", func(w common.ResponseWriter, r common.Request) {
		a.Handle(w, r, map[string]string{"entity": r.PathParam("entity")})
	}).Methods("GET", "POST")
	router.HandleFunc(prefix+"/{entity}/{id}", func(w common.ResponseWriter, r common.Request) {
		a.Handle(w, r, map[string]string{
			"entity": r.PathParam("entity"),
			"id":     r.PathParam("id"),
		})
	}).Methods("GET", "PUT", "PATCH", "DELETE")
}

// Handle dispatches one request. params carries the routing decisions:
// "entity" names the resource, "id" (optional) the lookup value.
func (a *API) Handle(w common.ResponseWriter, r common.Request, params map[string]string) {
	start := time.Now()
	entity := params["entity"]
	op := "unknown"
	status := http.StatusOK

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic serving %s %s: %v", r.Method(), entity, rec)
			logger.Error("%v", err)
			errortracking.CaptureError(err)
			status = http.StatusInternalServerError
			a.writeError(w, &common.InternalError{Op: op, Reason: "unexpected failure"})
		}
		a.metrics.RecordRequest(entity, op, status, time.Since(start))
	}()

	h, ok := a.HandlerFor(entity)
	if !ok {
		status = http.StatusNotFound
		a.writeError(w, &common.NotFoundError{Resource: entity})
		return
	}

	id, hasID := params["id"]

	var verb Verb
	switch {
	case r.Method() == http.MethodGet && hasID:
		verb, op = VerbRetrieve, "retrieve"
	case r.Method() == http.MethodGet:
		verb, op = VerbList, "list"
	case r.Method() == http.MethodPost:
		verb, op = VerbCreate, "create"
	case (r.Method() == http.MethodPatch || r.Method() == http.MethodPut) && hasID:
		verb, op = VerbUpdate, "update"
	case r.Method() == http.MethodDelete && hasID:
		verb, op = VerbDestroy, "destroy"
	default:
		status = http.StatusMethodNotAllowed
		w.WriteHeader(status)
		return
	}
	if !h.Allows(verb) {
		status = http.StatusMethodNotAllowed
		w.WriteHeader(status)
		return
	}

	ctx := r.UnderlyingRequest().Context()
	fields := parseFields(r.QueryParam("fields"))

	var (
		result interface{}
		meta   *common.Metadata
		err    error
	)
	switch verb {
	case VerbRetrieve:
		result, err = h.Retrieve(ctx, h.CoerceLookup(id), fields)
	case VerbList:
		filters := parseFilters(r.AllQueryParams())
		page := parsePagination(r)
		var cur *Cursor
		cur, err = h.List(ctx, filters, fields, page)
		if err == nil {
			entities := cur.Collect()
			result = entities
			meta = &common.Metadata{Total: int64(cur.Total()), Count: int64(len(entities))}
			if page.Limit != nil {
				meta.Limit = *page.Limit
			}
			if page.Offset != nil {
				meta.Offset = *page.Offset
			}
		}
	case VerbCreate, VerbUpdate:
		var raw []byte
		raw, err = r.Body()
		if err != nil {
			break
		}
		body := NewJSONBody(raw)
		if verb == VerbCreate {
			status = http.StatusCreated
			result, err = h.Create(ctx, body)
		} else {
			result, err = h.Update(ctx, h.CoerceLookup(id), body)
		}
	case VerbDestroy:
		err = h.Destroy(ctx, h.CoerceLookup(id))
		status = http.StatusNoContent
	}

	if err != nil {
		status = common.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Error("%s %s failed: %v", op, entity, err)
			errortracking.CaptureError(err)
		}
		a.writeError(w, err)
		return
	}

	if verb == VerbDestroy {
		w.WriteHeader(status)
		return
	}
	w.WriteHeader(status)
	if err := w.WriteJSON(common.Response{Success: true, Data: result, Metadata: meta}); err != nil {
		logger.Error("writing %s %s response: %v", op, entity, err)
	}
}

func (a *API) writeError(w common.ResponseWriter, err error) {
	w.WriteHeader(common.HTTPStatus(err))
	writeErr := w.WriteJSON(common.Response{
		Success: false,
		Error: &common.APIError{
			Code:    common.ErrorCode(err),
			Message: err.Error(),
		},
	})
	if writeErr != nil {
		logger.Error("writing error response: %v", writeErr)
	}
}

// CoerceLookup turns a raw path parameter into a typed lookup value.
// Integer-looking values become int64 when the handler accepts integer
// lookups, so type-driven routing sees the type the client meant.
func (h *Handler) CoerceLookup(raw string) interface{} {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		for _, t := range h.exec.pkTypes {
			if t == schema.TypeInt {
				return n
			}
		}
	}
	return raw
}

func parseFields(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

func parseFilters(params map[string]string) map[string]interface{} {
	var filters map[string]interface{}
	for key, value := range params {
		name, ok := strings.CutPrefix(key, filterParamPrefix)
		if !ok {
			continue
		}
		if filters == nil {
			filters = make(map[string]interface{})
		}
		filters[name] = value
	}
	return filters
}

func parsePagination(r common.Request) common.Pagination {
	var page common.Pagination
	if raw := r.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			page.Limit = &n
		}
	}
	if raw := r.QueryParam("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			page.Offset = &n
		}
	}
	return page
}
