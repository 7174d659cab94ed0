package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"tender-evaluator/internal/audit"
	"tender-evaluator/internal/exports"
	"tender-evaluator/internal/queue"
	"tender-evaluator/internal/services/health"
	"tender-evaluator/internal/sessions"
	"tender-evaluator/internal/shared/auth"
	"tender-evaluator/internal/shared/config"
	"tender-evaluator/internal/shared/metrics"
	"tender-evaluator/internal/shared/server"
	"tender-evaluator/internal/shared/server/middleware"
	"tender-evaluator/internal/shared/storage/db"
	"tender-evaluator/internal/shared/storage/object"
	localstore "tender-evaluator/internal/shared/storage/object/local"
	miniostore "tender-evaluator/internal/shared/storage/object/minio"
	s3store "tender-evaluator/internal/shared/storage/object/s3"
	"tender-evaluator/internal/tenderapi"
	"tender-evaluator/internal/uploads"
	"tender-evaluator/internal/workflow"
)

const (
	dbConnectAttempts = 5
	dbConnectBackoff  = 500 * time.Millisecond
	sessionPurgeEvery = 15 * time.Minute
)

// App holds shared dependencies and the wired router.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Queue    queue.Client
	Verifier *auth.Verifier
	Sessions *sessions.Service
	Registry *workflow.Registry
	Health   *health.Service
	Audit    audit.Repo
}

// Build prepares dependencies and wires routes. base bounds background OCR and
// evaluation jobs; cancelling it stops them.
func Build(base context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(base, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(base, cfg)
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.Env)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Verifier: verifier,
	}

	var sessionRepo sessions.Repo
	if sqlDB != nil {
		sessionRepo = &sessions.PGRepo{DB: sqlDB}
		app.Audit = &audit.PGRepo{DB: sqlDB}
	} else {
		sessionRepo = sessions.NewMemoryRepo()
		app.Audit = audit.NewMemoryRepo()
	}
	if app.Queue, err = buildQueue(base, cfg, app.Audit); err != nil {
		return nil, err
	}
	app.Sessions = &sessions.Service{
		Repo:     sessionRepo,
		Auth:     newClient(cfg, nil),
		Verifier: verifier,
		Check: func(ctx context.Context, token string) error {
			return newClient(cfg, tenderapi.StaticToken(token)).Verify(ctx)
		},
	}

	app.Registry = workflow.NewRegistry(base, cfg.SessionIdleTTL, app.controllerFactory())
	metrics.RegisterGauge("workflow_sessions_active", "Live per-user workflow controllers", func() float64 {
		return float64(app.Registry.Len())
	})

	var pinger health.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	app.Health = health.NewService(pinger, cfg.ObjectStoreType, app.Registry.Len)

	uploadHandler := uploads.NewHandler(func(token string) uploads.Uploader {
		return newClient(cfg, tenderapi.StaticToken(token))
	}, cfg.MaxUploadBytes)

	limiter := middleware.NewRateLimiter(nil)
	metrics.RegisterGauge("rate_limit_buckets", "Active rate limit buckets", func() float64 {
		return float64(limiter.Len())
	})

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		RateLimiter:     limiter,
		Verifier:        verifier,
		Sessions:        app.Sessions,
		Health:          app.Health,
		SessionHandler:  sessions.NewHandler(app.Sessions, app.Registry),
		WorkflowHandler: workflow.NewHandler(app.Registry),
		UploadHandler:   uploadHandler,
		AuditHandler:    audit.NewHandler(app.Audit),
	})
	return app, nil
}

// controllerFactory builds per-user controllers. Each controller gets its own
// client and archiver so exports download with that user's token.
func (a *App) controllerFactory() workflow.Factory {
	cfg := a.Config
	return func(userID string, token *tenderapi.MutableToken) *workflow.Controller {
		client := newClient(cfg, token)
		return workflow.NewController(workflow.Deps{
			API:      client,
			Archiver: &exports.Service{Downloader: client, Store: a.Store},
			Events:   a.Queue,
			UserID:   userID,
			Options:  WorkflowOptions(cfg),
		})
	}
}

// WorkflowOptions maps config onto controller tuning.
func WorkflowOptions(cfg config.Config) workflow.Options {
	return workflow.Options{
		PollInterval:    cfg.OCRPollInterval,
		MaxPollAttempts: cfg.OCRMaxPollAttempts,
		BatchPause:      cfg.OCRBatchPause,
		FanOut:          cfg.VendorFanOut,
	}
}

func newClient(cfg config.Config, src oauth2.TokenSource) *tenderapi.Client {
	return tenderapi.NewClient(cfg.TenderAPIBaseURL, src, cfg.TenderAPITimeout)
}

// RunSessionJanitor deletes expired sessions until ctx is done.
func (a *App) RunSessionJanitor(ctx context.Context) {
	ticker := time.NewTicker(sessionPurgeEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Sessions.PurgeExpired(ctx)
			if err != nil {
				log.Printf("session purge failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("purged %d expired sessions", n)
			}
		}
	}
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory session store")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFor(db.ProfileAPI)
	sqlDB, err := db.ConnectWithRetry(ctx, cfg.DatabaseURL, opts, dbConnectAttempts, dbConnectBackoff)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory session store: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, miniostore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildQueue publishes to SQS when configured; otherwise events are recorded
// straight into the audit repo.
func buildQueue(ctx context.Context, cfg config.Config, repo audit.Repo) (queue.Client, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		processor := &audit.Processor{Repo: repo}
		return &queue.Loopback{Handle: func(ctx context.Context, body string) error {
			_, _, err := processor.Handle(ctx, body)
			return err
		}}, nil
	}
	return queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
