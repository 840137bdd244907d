package daemon

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bryanwahyu/blobsense/internal/application/dispatch"
	"github.com/bryanwahyu/blobsense/internal/config"
	"github.com/bryanwahyu/blobsense/internal/domain/analysis"
	"github.com/bryanwahyu/blobsense/internal/domain/blobs"
	openaiNarrator "github.com/bryanwahyu/blobsense/internal/infra/ai/openai"
	"github.com/bryanwahyu/blobsense/internal/infra/cognitive"
	mysqlp "github.com/bryanwahyu/blobsense/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/blobsense/internal/infra/db/postgres"
	minioStore "github.com/bryanwahyu/blobsense/internal/infra/storage"
	"github.com/bryanwahyu/blobsense/internal/middleware"
)

// objectStore is what the commands need from the bucket.
type objectStore interface {
	blobs.Reader
	blobs.ResultSink
	Ping(ctx context.Context) error
	Listen(ctx context.Context, logger *slog.Logger, fn func(context.Context, blobs.Object)) error
}

// deps are the constructors of the external collaborators.
type deps struct {
	openStorage  func(ctx context.Context, cfg config.Storage) (objectStore, error)
	openDatabase func(ctx context.Context, cfg *config.Config) (*sql.DB, analysis.Repository, error)
}

func defaultDeps() deps {
	return deps{
		openStorage: func(ctx context.Context, cfg config.Storage) (objectStore, error) {
			s, err := minioStore.New(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		openDatabase: openDatabase,
	}
}

// openDatabase connects the configured driver. No driver means no persistence.
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, analysis.Repository, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		return db, mysqlp.NewAnalysisRepository(db), nil
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		return db, postgresp.NewAnalysisRepository(db), nil
	default:
		return nil, nil, nil
	}
}

// wired is everything a command runs on.
type wired struct {
	svc    *dispatch.Service
	store  objectStore
	checks map[string]middleware.HealthChecker
	close  func()
}

// wire builds the dispatcher from cfg. reg may be nil when metrics are not exported.
func (a *App) wire(ctx context.Context, reg prometheus.Registerer) (w *wired, err error) {
	cfg := a.cfg
	logger := slog.Default()

	store, err := a.deps.openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("minio init error: %w", err)
	}

	w = &wired{
		store:  store,
		checks: map[string]middleware.HealthChecker{"storage": middleware.CheckFunc(store.Ping)},
		close:  func() {},
	}

	db, repo, err := a.deps.openDatabase(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s connect error: %w", cfg.Database.Driver, err)
	}
	if db != nil {
		w.checks["database"] = &middleware.DatabaseHealthChecker{DB: db}
		w.close = func() { _ = db.Close() }
	}

	client := cognitive.NewClient(cfg.Cognitive.Timeout, cfg.Cognitive.RequestsPerMinute)
	svc := &dispatch.Service{
		Blobs:  store,
		Images: cognitive.NewVision(cfg.Vision, client),
		Texts:  cognitive.NewSentiment(cfg.Text, client),
		Repo:   repo,
		Sink:   store,
		Clock:  dispatch.SystemClock{},
		Logger: logger,
	}
	if cfg.OpenAI.APIKey != "" {
		svc.Narrator = openaiNarrator.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	}
	if !cfg.Vision.Configured() {
		logger.Warn("vision service is not configured, image objects will fail", "env", config.EnvVisionEndpoint)
	}
	if !cfg.Text.Configured() {
		logger.Warn("text analytics service is not configured, text objects will fail", "env", config.EnvTextEndpoint)
	}

	if reg != nil {
		m, err := dispatch.NewMetrics(reg)
		if err != nil {
			w.close()
			return nil, err
		}
		svc.Metrics = m
	}

	w.svc = svc
	return w, nil
}
