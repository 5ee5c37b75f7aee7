package main

import (
	"context"
	"log"
	"os"

	"github.com/uptrace/bun"

	"github.com/viewspec/viewspec/pkg/cache"
	"github.com/viewspec/viewspec/pkg/common/adapters/database"
	"github.com/viewspec/viewspec/pkg/common/adapters/router"
	"github.com/viewspec/viewspec/pkg/config"
	"github.com/viewspec/viewspec/pkg/dbmanager"
	"github.com/viewspec/viewspec/pkg/errortracking"
	"github.com/viewspec/viewspec/pkg/logger"
	"github.com/viewspec/viewspec/pkg/metrics"
	"github.com/viewspec/viewspec/pkg/middleware"
	"github.com/viewspec/viewspec/pkg/schema"
	"github.com/viewspec/viewspec/pkg/schemaregistry"
	"github.com/viewspec/viewspec/pkg/server"
	"github.com/viewspec/viewspec/pkg/viewspec"
)

func main() {
	cfgMgr := config.NewManager()
	if err := cfgMgr.Load(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg, err := cfgMgr.GetConfig()
	if err != nil {
		log.Fatalf("Failed to get configuration: %v", err)
	}

	logger.Init(cfg.Logger.Dev)
	if cfg.Logger.Path != "" {
		logger.UpdateLoggerPath(cfg.Logger.Path, cfg.Logger.Dev)
	}
	logger.Info("Viewspec test server starting")

	tracker, err := errortracking.NewProviderFromConfig(cfg.ErrorTracking)
	if err != nil {
		logger.Error("Failed to initialize error tracking: %v", err)
		os.Exit(1)
	}
	errortracking.SetDefault(tracker)
	logger.InitErrorTracking(tracker)

	cacheProvider, err := cache.NewProviderFromConfig(cfg.Cache)
	if err != nil {
		logger.Error("Failed to initialize cache: %v", err)
		os.Exit(1)
	}
	cache.Initialize(cacheProvider)

	ctx := context.Background()
	bunDB, err := dbmanager.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to open database: %v", err)
		os.Exit(1)
	}

	db := database.NewBunAdapter(bunDB, cfg.Database.Driver)
	if cfg.Database.Debug {
		db.EnableQueryDebug()
	}

	if err := createSchema(ctx, bunDB); err != nil {
		logger.Error("Failed to create schema: %v", err)
		os.Exit(1)
	}

	categories, tags, articles := buildResources()

	registry := schemaregistry.NewRegistry()
	for name, res := range map[string]*schema.Resource{
		"categories": categories,
		"tags":       tags,
		"articles":   articles,
	} {
		if err := registry.Register(name, res); err != nil {
			logger.Error("Failed to register resource %s: %v", name, err)
			os.Exit(1)
		}
	}

	promProvider := metrics.NewPrometheusProvider(nil)
	metrics.SetProvider(promProvider)

	api := viewspec.NewAPI(db, viewspec.WithMetrics(promProvider))
	for _, name := range []string{"categories", "tags"} {
		res, _ := registry.Get(name)
		if err := api.Register(name, res, viewspec.WithCache(cacheProvider)); err != nil {
			logger.Error("Failed to mount resource %s: %v", name, err)
			os.Exit(1)
		}
	}
	// Articles resolve by numeric id or by slug.
	if err := api.Register("articles", articles,
		viewspec.WithCache(cacheProvider),
		viewspec.WithSecondaryLookup("slug"),
		viewspec.WithLookupTypes(schema.TypeInt, schema.TypeString),
	); err != nil {
		logger.Error("Failed to mount articles: %v", err)
		os.Exit(1)
	}

	muxAdapter := router.NewMuxAdapterDefault()
	api.SetupRoutes(muxAdapter, "/api")

	muxRouter := muxAdapter.GetMuxRouter()
	if cfg.Metrics.Enabled {
		muxRouter.Handle(cfg.Metrics.Path, promProvider.Handler())
	}

	rateLimiter := middleware.NewRateLimiter(100, 200)
	sizeLimiter := middleware.NewRequestSizeLimiter(0)

	handler := middleware.RequestLogging(
		middleware.PanicRecovery(
			rateLimiter.Middleware(
				sizeLimiter.Middleware(muxRouter))))

	srv := server.New(cfg.Server, handler)
	muxRouter.HandleFunc("/healthz", srv.HealthCheckHandler())
	muxRouter.HandleFunc("/readyz", srv.ReadinessHandler())

	server.RegisterShutdownCallback(func(ctx context.Context) error {
		return bunDB.Close()
	})
	server.RegisterShutdownCallback(func(ctx context.Context) error {
		return cache.Close()
	})
	server.RegisterShutdownCallback(func(ctx context.Context) error {
		return logger.CloseErrorTracking()
	})

	logger.Info("Listening on %s", srv.Addr())
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
}

// buildResources declares the demo schema: categories and tags as flat
// resources, articles with a category foreign key, a tags relation and
// a computed display_name.
func buildResources() (categories, tags, articles *schema.Resource) {
	categories = &schema.Resource{
		Name:       "category",
		Table:      "categories",
		PrimaryKey: "id",
		Fields: map[string]*schema.Field{
			"id":   {Name: "id", Column: "id", Type: schema.TypeInt, ReadOnly: true},
			"name": {Name: "name", Column: "name", Type: schema.TypeString, MaxLength: 100, ColumnMaxLength: 100},
			"slug": {Name: "slug", Column: "slug", Type: schema.TypeString, Unique: true, MaxLength: 100, ColumnMaxLength: 100},
		},
	}

	tags = &schema.Resource{
		Name:       "tag",
		Table:      "tags",
		PrimaryKey: "id",
		Fields: map[string]*schema.Field{
			"id":   {Name: "id", Column: "id", Type: schema.TypeInt, ReadOnly: true},
			"name": {Name: "name", Column: "name", Type: schema.TypeString, MaxLength: 50, ColumnMaxLength: 50},
		},
	}

	articles = &schema.Resource{
		Name:       "article",
		Table:      "articles",
		PrimaryKey: "id",
		Fields: map[string]*schema.Field{
			"id":        {Name: "id", Column: "id", Type: schema.TypeInt, ReadOnly: true},
			"title":     {Name: "title", Column: "title", Type: schema.TypeString, MaxLength: 200, ColumnMaxLength: 200},
			"slug":      {Name: "slug", Column: "slug", Type: schema.TypeString, Unique: true, MaxLength: 200, ColumnMaxLength: 200},
			"body":      {Name: "body", Column: "body", Type: schema.TypeString},
			"published": {Name: "published", Column: "published", Type: schema.TypeBool},
			"category":  {Name: "category", Column: "category_id", Kind: schema.KindForeignKey, Type: schema.TypeInt, Ref: categories},
		},
		Relations: map[string]*schema.Relation{
			"tags": {
				Name:         "tags",
				JoinTable:    "article_tags",
				SourceColumn: "article_id",
				TargetColumn: "tag_id",
				Ref:          tags,
			},
		},
		Props: map[string][]string{
			"display_name": {"title", "slug"},
		},
		DefaultFields: []string{"id", "title", "slug", "published", "category_id"},
	}
	return categories, tags, articles
}

// createSchema creates the demo tables. The default sqlite in-memory
// database starts empty on every run.
func createSchema(ctx context.Context, db *bun.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(100) NOT NULL,
			slug VARCHAR(100) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(50) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title VARCHAR(200) NOT NULL,
			slug VARCHAR(200) NOT NULL UNIQUE,
			body TEXT,
			published BOOLEAN NOT NULL DEFAULT 0,
			category_id INTEGER REFERENCES categories(id)
		)`,
		`CREATE TABLE IF NOT EXISTS article_tags (
			article_id INTEGER NOT NULL REFERENCES articles(id),
			tag_id INTEGER NOT NULL REFERENCES tags(id),
			PRIMARY KEY (article_id, tag_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
