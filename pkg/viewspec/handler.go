package viewspec

import (
	"context"

	"github.com/viewspec/viewspec/pkg/cache"
	"github.com/viewspec/viewspec/pkg/common"
	"github.com/viewspec/viewspec/pkg/schema"
)

// The capability interfaces below are what transports program against.
// A Handler implements all five; which ones a given endpoint actually
// exposes is decided by its configured verbs, not by subtyping.

// Retriever reads a single entity by lookup value.
type Retriever interface {
	Retrieve(ctx context.Context, pk interface{}, fields []string) (Entity, error)
}

// Lister reads a filtered, paginated page of entities.
type Lister interface {
	List(ctx context.Context, filters map[string]interface{}, fields []string, page common.Pagination) (*Cursor, error)
}

// Creator inserts a new entity from a validated payload.
type Creator interface {
	Create(ctx context.Context, body common.RequestBody) (Entity, error)
}

// Updater applies a partial payload to an existing entity.
type Updater interface {
	Update(ctx context.Context, pk interface{}, body common.RequestBody) (Entity, error)
}

// Destroyer deletes a single entity by lookup value.
type Destroyer interface {
	Destroy(ctx context.Context, pk interface{}) error
}

// Verb names one exposed operation.
type Verb string

const (
	VerbRetrieve Verb = "retrieve"
	VerbList     Verb = "list"
	VerbCreate   Verb = "create"
	VerbUpdate   Verb = "update"
	VerbDestroy  Verb = "destroy"
)

// AllVerbs is the default verb set for a new handler.
var AllVerbs = []Verb{VerbRetrieve, VerbList, VerbCreate, VerbUpdate, VerbDestroy}

// Handler serves one resource. It is built once at startup; every
// configuration problem surfaces as a ConfigError from New, never at
// request time.
type Handler struct {
	res   *schema.Resource
	exec  *executor
	verbs map[Verb]bool
}

// Option configures a Handler under construction.
type Option func(*options)

type options struct {
	verbs       []Verb
	secondary   string
	lookupTypes []schema.ColumnType
	relations   RelationStore
	cache       cache.Provider
}

// WithVerbs restricts the handler to the given operations.
func WithVerbs(verbs ...Verb) Option {
	return func(o *options) { o.verbs = verbs }
}

// WithSecondaryLookup routes lookup values whose runtime type differs
// from the primary key's declared type to the named unique field. It
// requires WithLookupTypes declaring at least one alternative type.
func WithSecondaryLookup(field string) Option {
	return func(o *options) { o.secondary = field }
}

// WithLookupTypes declares the accepted lookup value types. The first
// entry is the primary key's type; the rest route to the secondary
// lookup field.
func WithLookupTypes(types ...schema.ColumnType) Option {
	return func(o *options) { o.lookupTypes = types }
}

// WithRelationStore substitutes the many-to-many store.
func WithRelationStore(store RelationStore) Option {
	return func(o *options) { o.relations = store }
}

// WithCache enables list-total caching on the given provider.
func WithCache(provider cache.Provider) Option {
	return func(o *options) { o.cache = provider }
}

// New builds a Handler for the resource. The resource schema, the
// database handle and the lookup configuration are validated here;
// any violation is fatal.
func New(res *schema.Resource, db common.Database, opts ...Option) (*Handler, error) {
	if res == nil {
		return nil, common.Configf("viewspec: resource is nil")
	}
	if err := res.Validate(); err != nil {
		return nil, common.Configf("viewspec: %v", err)
	}
	if db == nil {
		return nil, common.Configf("viewspec: resource %s has no database", res.Name)
	}

	o := options{verbs: AllVerbs}
	for _, opt := range opts {
		opt(&o)
	}

	var secondary *schema.Field
	if o.secondary != "" {
		f, ok := res.Field(o.secondary)
		if !ok {
			return nil, common.Configf("viewspec: resource %s secondary lookup field %q does not exist", res.Name, o.secondary)
		}
		secondary = f
	}
	pkTypes := o.lookupTypes
	if len(pkTypes) == 0 {
		pkTypes = []schema.ColumnType{res.PK().Type}
	}
	if err := validateLookup(res, secondary, pkTypes); err != nil {
		return nil, err
	}

	relations := o.relations
	if relations == nil {
		relations = NewRelationStore(db)
	}

	verbs := make(map[Verb]bool, len(o.verbs))
	for _, v := range o.verbs {
		verbs[v] = true
	}

	return &Handler{
		res: res,
		exec: &executor{
			res:       res,
			db:        db,
			relations: relations,
			cache:     o.cache,
			secondary: secondary,
			pkTypes:   pkTypes,
		},
		verbs: verbs,
	}, nil
}

// Resource returns the schema this handler serves.
func (h *Handler) Resource() *schema.Resource {
	return h.res
}

// Allows reports whether the handler exposes the verb.
func (h *Handler) Allows(v Verb) bool {
	return h.verbs[v]
}

func (h *Handler) Retrieve(ctx context.Context, pk interface{}, fields []string) (Entity, error) {
	return h.exec.retrieve(ctx, pk, fields)
}

func (h *Handler) List(ctx context.Context, filters map[string]interface{}, fields []string, page common.Pagination) (*Cursor, error) {
	return h.exec.list(ctx, filters, fields, page)
}

func (h *Handler) Create(ctx context.Context, body common.RequestBody) (Entity, error) {
	return h.exec.create(ctx, body)
}

func (h *Handler) Update(ctx context.Context, pk interface{}, body common.RequestBody) (Entity, error) {
	return h.exec.update(ctx, pk, body)
}

func (h *Handler) Destroy(ctx context.Context, pk interface{}) error {
	return h.exec.destroy(ctx, pk)
}

var (
	_ Retriever = (*Handler)(nil)
	_ Lister    = (*Handler)(nil)
	_ Creator   = (*Handler)(nil)
	_ Updater   = (*Handler)(nil)
	_ Destroyer = (*Handler)(nil)
)
