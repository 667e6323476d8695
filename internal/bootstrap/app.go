package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"resume-builder/internal/documents"
	"resume-builder/internal/llm"
	"resume-builder/internal/llm/gemini"
	"resume-builder/internal/llm/openai"
	"resume-builder/internal/queue"
	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/server"
	"resume-builder/internal/shared/storage/db"
	"resume-builder/internal/shared/storage/object"
	localstore "resume-builder/internal/shared/storage/object/local"
	s3store "resume-builder/internal/shared/storage/object/s3"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/structured"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine

	DB    *sql.DB
	Gorm  *gorm.DB
	Store object.Store
	// Queue is nil when uploads are processed inline.
	Queue *queue.AMQPClient
	LLM   llm.Client

	StructuredService *structured.Service
	DocumentsService  *documents.Service

	closers []func() error
}

// Options adjusts Build for a specific process.
type Options struct {
	// DBOptions overrides the SQL pool sizing.
	DBOptions *db.Options
	// SkipQueue leaves App.Queue nil even when AMQP_URL is set.
	SkipQueue bool
}

// Build prepares shared dependencies and the HTTP router.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.Store) == "" {
		cfg.Store = "memory"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	app := &App{Config: cfg}
	if err := app.build(ctx, opts); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	store, err := buildStore(ctx, a.Config)
	if err != nil {
		return err
	}
	a.Store = store

	a.LLM, err = a.buildLLM(ctx)
	if err != nil {
		return err
	}

	recordRepo, docRepo, err := a.buildRepos(ctx, opts)
	if err != nil {
		return err
	}

	if strings.TrimSpace(a.Config.AMQPURL) != "" && !opts.SkipQueue {
		client, err := queue.DialAMQP(a.Config.AMQPURL, a.Config.AMQPQueue)
		if err != nil {
			return fmt.Errorf("dial amqp: %w", err)
		}
		a.Queue = client
		a.closers = append(a.closers, client.Close)
	}

	a.StructuredService = structured.NewService(recordRepo, a.LLM, structuredTuning(a.Config.Tuning))
	a.DocumentsService = &documents.Service{
		Store:           a.Store,
		Repo:            docRepo,
		Ingester:        a.StructuredService,
		StorageProvider: a.Config.ObjectStoreType,
	}
	if a.Queue != nil {
		a.DocumentsService.Queue = a.Queue
	}

	a.Router = server.NewRouter(server.RouterDeps{
		Config:            a.Config,
		DB:                a.DB,
		StructuredHandler: structured.NewHandler(a.StructuredService),
		DocumentHandler:   documents.NewHandler(a.DocumentsService),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          a.Config.Env,
		"store":        a.Config.Store,
		"object_store": a.Config.ObjectStoreType,
		"llm":          a.Config.LLMProvider,
		"queue":        a.Queue != nil,
	})
	return nil
}

func (a *App) buildRepos(ctx context.Context, opts Options) (structured.Repo, documents.Repo, error) {
	switch a.Config.Store {
	case "postgres":
		poolOpts := db.OptionsFromEnv(db.DefaultServerOptions())
		if opts.DBOptions != nil {
			poolOpts = *opts.DBOptions
		}
		sqlDB, err := db.Connect(ctx, a.Config.DatabaseURL, poolOpts)
		if err == nil {
			err = db.RunMigrations(ctx, sqlDB)
			if err != nil {
				sqlDB.Close()
			}
		}
		if err != nil {
			if !isDevLike(a.Config.Env) {
				return nil, nil, err
			}
			telemetry.Warn("bootstrap.db_fallback", map[string]any{"error": err.Error()})
			a.Config.Store = "memory"
			return structured.NewMemoryRepo(), documents.NewMemoryRepo(), nil
		}
		a.DB = sqlDB
		a.closers = append(a.closers, sqlDB.Close)
		return &structured.PGRepo{DB: sqlDB}, &documents.PGRepo{DB: sqlDB}, nil

	case "sqlite":
		gormDB, err := structured.OpenSQLite(a.Config.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		a.Gorm = gormDB
		a.closers = append(a.closers, func() error {
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		recordRepo, err := structured.NewGormRepoWithDB(gormDB)
		if err != nil {
			return nil, nil, err
		}
		docRepo, err := documents.NewGormRepo(gormDB)
		if err != nil {
			return nil, nil, err
		}
		return recordRepo, docRepo, nil

	default:
		return structured.NewMemoryRepo(), documents.NewMemoryRepo(), nil
	}
}

func (a *App) buildLLM(ctx context.Context) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch a.Config.LLMProvider {
	case "openai":
		client, err = openai.NewClient(a.Config.OpenAIAPIKey, a.Config.LLMModel)
	case "gemini":
		var gc *gemini.Client
		gc, err = gemini.NewClient(ctx, a.Config.GeminiAPIKey, a.Config.LLMModel)
		if err == nil {
			a.closers = append(a.closers, gc.Close)
			client = gc
		}
	default:
		return llm.PlaceholderClient{}, nil
	}
	if err != nil {
		if !isDevLike(a.Config.Env) {
			return nil, err
		}
		telemetry.Warn("bootstrap.llm_fallback", map[string]any{
			"provider": a.Config.LLMProvider,
			"error":    err.Error(),
		})
		a.Config.LLMProvider = "none"
		return llm.PlaceholderClient{}, nil
	}
	return llm.WithRetry(client), nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func structuredTuning(t config.Tuning) structured.Tuning {
	return structured.Tuning{
		Threshold:     t.SimilarityThreshold,
		MaxCandidates: t.MaxCandidates,
		MaxKeywords:   t.MaxKeywords,
		AITimeout:     t.AITimeout,
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

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
