package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"underwriting-backend/internal/archive"
	"underwriting-backend/internal/documents"
	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/llm/gemini"
	"underwriting-backend/internal/llm/openai"
	"underwriting-backend/internal/services/health"
	"underwriting-backend/internal/shared/config"
	"underwriting-backend/internal/shared/server"
	"underwriting-backend/internal/shared/server/middleware"
	"underwriting-backend/internal/shared/storage/db"
	"underwriting-backend/internal/shared/storage/object"
	gcsstore "underwriting-backend/internal/shared/storage/object/gcs"
	localstore "underwriting-backend/internal/shared/storage/object/local"
	miniostore "underwriting-backend/internal/shared/storage/object/minio"
	s3store "underwriting-backend/internal/shared/storage/object/s3"
	"underwriting-backend/internal/status"
	"underwriting-backend/internal/underwriting"
	"underwriting-backend/internal/uploads"
)

// App holds shared dependencies.
type App struct {
	Config              config.Config
	Router              *gin.Engine
	DB                  *sql.DB
	Dialect             db.Dialect
	Store               object.Store
	Models              *llm.Registry
	Hub                 *status.Hub
	Runs                underwriting.RunRepo
	Archive             *archive.Archiver
	DocumentsService    *documents.Service
	Orchestrator        *underwriting.Orchestrator
	UploadHandler       *uploads.Handler
	UnderwritingHandler *underwriting.Handler
}

// ClientFactories builds provider clients; tests replace them with stubs.
type ClientFactories map[string]llm.Constructor

// Build prepares shared dependencies and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	return BuildWith(ctx, cfg, nil)
}

// BuildWith is Build with provider constructors overridden by factories.
func BuildWith(ctx context.Context, cfg config.Config, factories ClientFactories) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.UploadDir) == "" {
		cfg.UploadDir = "uploads"
	}

	sqlDB, dialect, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}
	models, err := buildRegistry(cfg, factories)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Dialect: dialect,
		Store:   store,
		Models:  models,
		Hub:     status.NewHub(),
		Archive: archive.New(store),
	}
	if sqlDB != nil {
		app.Runs = &underwriting.SQLRunRepo{DB: sqlDB, Dialect: dialect}
	} else {
		app.Runs = underwriting.NewMemoryRunRepo()
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:              app.Config,
		Health:              health.NewService(pingerFor(sqlDB)),
		UploadHandler:       app.UploadHandler,
		UnderwritingHandler: app.UnderwritingHandler,
		StatusHandler:       &status.Handler{Hub: app.Hub},
		RateLimiter:         middleware.NewRateLimiter(nil),
	})
	return app, nil
}

// Close releases the database and any store that holds a client.
func (a *App) Close() error {
	var firstErr error
	if c, ok := a.Store.(io.Closer); ok {
		firstErr = c.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildServices(app *App) {
	cfg := app.Config
	uploadDir := uploads.Dir{Root: cfg.UploadDir}

	app.DocumentsService = &documents.Service{
		Models:      app.Models,
		Merger:      documents.Merger{Dir: cfg.UploadDir},
		Concurrency: cfg.ClassifyConcurrency,
	}
	app.Orchestrator = &underwriting.Orchestrator{
		Models:          app.Models,
		Uploads:         uploadDir,
		DefaultProvider: cfg.LLMProvider,
		Policy:          underwriting.ContinuityPolicy(cfg.ContinuityPolicy),
		StageTimeout:    cfg.StageTimeout,
		CreditTimeout:   cfg.CreditTimeout,
		Runs:            app.Runs,
		Archive:         app.Archive,
	}
	app.UploadHandler = &uploads.Handler{
		Dir:             uploadDir,
		Documents:       app.DocumentsService,
		Providers:       app.Models,
		DefaultProvider: cfg.LLMProvider,
		MaxBytes:        cfg.MaxUploadBytes,
		Archive:         app.Archive,
	}
	app.UnderwritingHandler = &underwriting.Handler{
		Orchestrator: app.Orchestrator,
		Status:       app.Hub,
		Runs:         app.Runs,
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, db.Dialect, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("bootstrap: DATABASE_URL empty; keeping run history in memory")
		return nil, "", nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, dialect, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err == nil {
		if err = db.RunMigrations(ctx, sqlDB, dialect); err != nil {
			sqlDB.Close()
			err = fmt.Errorf("run migrations: %w", err)
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database unavailable; keeping run history in memory: %v", err)
			return nil, "", nil
		}
		return nil, "", err
	}
	return sqlDB, dialect, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "local":
		return localstore.New(cfg.LocalStoreDir), nil
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, s3store.Options{
			Region:     cfg.AWSRegion,
			Bucket:     cfg.S3Bucket,
			Prefix:     cfg.S3Prefix,
			KMSKeyID:   cfg.SSEKMSKeyID,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			DisableSSE: cfg.S3DisableSSE,
		})
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
	case "gcs":
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=gcs requires GCS_BUCKET")
		}
		return gcsstore.New(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCSCredentialsFile)
	default:
		return nil, nil
	}
}

// buildRegistry registers every catalog provider this binary knows how to construct.
func buildRegistry(cfg config.Config, factories ClientFactories) (*llm.Registry, error) {
	builtin := ClientFactories{
		"openai": func(ctx context.Context, model string) (llm.Client, error) {
			return openai.NewClient(openai.Options{
				APIKey:  cfg.OpenAIAPIKey,
				BaseURL: cfg.OpenAIBaseURL,
				Model:   model,
				Timeout: cfg.OpenAITimeout,
			})
		},
		"gemini": func(ctx context.Context, model string) (llm.Client, error) {
			return gemini.NewClient(ctx, gemini.Options{
				ProjectID:       cfg.GeminiProjectID,
				Location:        cfg.GeminiLocation,
				CredentialsFile: cfg.GeminiCredentialsFile,
				Model:           model,
			})
		},
	}
	for name, ctor := range factories {
		builtin[name] = ctor
	}

	catalog := cfg.Providers
	if len(catalog.Providers) == 0 {
		catalog = config.DefaultProviderCatalog()
	}
	reg := llm.NewRegistry()
	for _, name := range catalog.Names() {
		ctor, ok := builtin[name]
		if !ok {
			log.Printf("bootstrap: provider %q has no client implementation; skipping", name)
			continue
		}
		models := catalog.Providers[name]
		reg.Register(name, llm.Models{Default: models.DefaultModel, Reasoning: models.ReasoningModel}, ctor)
	}
	if len(reg.Providers()) == 0 {
		return nil, fmt.Errorf("no usable providers in catalog")
	}
	if err := reg.Validate(cfg.LLMProvider); err != nil {
		return nil, fmt.Errorf("LLM_PROVIDER: %w", err)
	}
	return reg, nil
}

func pingerFor(sqlDB *sql.DB) health.Pinger {
	if sqlDB == nil {
		return nil
	}
	return sqlDB
}

func closeDB(sqlDB *sql.DB) {
	if sqlDB != nil {
		sqlDB.Close()
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
