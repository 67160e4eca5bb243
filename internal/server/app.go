// Package server builds the scanner's dependency graph and runs the service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-scanner/internal/api"
	"github.com/JakeFAU/seo-scanner/internal/clock/system"
	"github.com/JakeFAU/seo-scanner/internal/config"
	"github.com/JakeFAU/seo-scanner/internal/dispatcher"
	"github.com/JakeFAU/seo-scanner/internal/embedding"
	"github.com/JakeFAU/seo-scanner/internal/extract"
	"github.com/JakeFAU/seo-scanner/internal/id/uuid"
	"github.com/JakeFAU/seo-scanner/internal/logging"
	"github.com/JakeFAU/seo-scanner/internal/metrics"
	memorypublisher "github.com/JakeFAU/seo-scanner/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/seo-scanner/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/seo-scanner/internal/queue/memory"
	"github.com/JakeFAU/seo-scanner/internal/relevance"
	"github.com/JakeFAU/seo-scanner/internal/render"
	"github.com/JakeFAU/seo-scanner/internal/rules"
	"github.com/JakeFAU/seo-scanner/internal/scanner"
	"github.com/JakeFAU/seo-scanner/internal/seo"
	"github.com/JakeFAU/seo-scanner/internal/sitegraph"
	gcsstorage "github.com/JakeFAU/seo-scanner/internal/storage/gcs"
	localstorage "github.com/JakeFAU/seo-scanner/internal/storage/local"
	memoryStorage "github.com/JakeFAU/seo-scanner/internal/storage/memory"
	pgstore "github.com/JakeFAU/seo-scanner/internal/storage/postgres"
	"github.com/JakeFAU/seo-scanner/internal/worker"
)

// localTopic names scan completions recorded by the in-memory publisher.
const localTopic = "seo-scans"

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	dispatch     *dispatcher.Dispatcher
	queue        *queueMemory.Queue
	renderer     *render.Chromedp
	scanner      *scanner.Scanner
	websiteStore seo.WebsiteStore
	pgStore      *pgstore.WebsiteStore
	publisher    *gcppublisher.Publisher
	storage      *storage.Client
	clock        seo.Clock
	ids          seo.IDGenerator
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()
	app := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    uuid.New(),
	}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("relevance_method", cfg.Relevance.Method),
	)

	var err error
	app.scanner, app.renderer, err = newScanner(cfg, app.clock, app.ids, logger)
	if err != nil {
		return nil, err
	}

	if err = setupDatabase(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	blobStore, err := setupStorage(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	app.queue = queueMemory.NewQueue(cfg.Queue.Capacity)
	app.dispatch = setupDispatcher(app, blobStore, publisher)

	var checks []api.ReadyCheck
	if app.pgStore != nil {
		checks = append(checks, app.pgStore.Ping)
	}
	app.apiServer = api.NewServer(
		app.websiteStore,
		app.dispatch,
		app.ids,
		app.clock,
		*cfg,
		logger.Named("api"),
		checks...,
	)
	return app, nil
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the dispatcher and the HTTP server and blocks until the context
// is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.Server.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("dispatcher did not stop before the shutdown deadline")
	}

	closeErr := a.Close()
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// ScanOnce scans siteURL synchronously, stores the result and returns the report.
func (a *App) ScanOnce(ctx context.Context, siteURL string) (seo.Report, error) {
	normalized, err := sitegraph.NormalizeURL(siteURL)
	if err != nil {
		return seo.Report{}, fmt.Errorf("invalid url: %w", err)
	}
	id, err := a.ids.NewID()
	if err != nil {
		return seo.Report{}, fmt.Errorf("generate website id: %w", err)
	}
	if timeout := a.cfg.Scan.ScanTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	site, err := a.scanner.ScanWebsite(ctx, id, normalized)
	if err != nil {
		return seo.Report{}, fmt.Errorf("scan website: %w", err)
	}
	if err := a.websiteStore.SaveWebsite(ctx, site); err != nil {
		return seo.Report{}, fmt.Errorf("save website: %w", err)
	}
	return seo.NewReport(site), nil
}

// Close gracefully shuts down the application.
func (a *App) Close() error {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.renderer != nil {
		if err := a.renderer.Close(); err != nil {
			a.logger.Warn("renderer close failed", zap.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}

func newScanner(
	cfg *config.Config,
	clock seo.Clock,
	ids seo.IDGenerator,
	logger *zap.Logger,
) (*scanner.Scanner, *render.Chromedp, error) {
	comparator, err := newComparator(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	method, err := relevance.ParseMethod(cfg.Relevance.Method)
	if err != nil {
		return nil, nil, fmt.Errorf("relevance method: %w", err)
	}
	agg, err := relevance.ParseAggregation(cfg.Relevance.Aggregation)
	if err != nil {
		return nil, nil, fmt.Errorf("relevance aggregation: %w", err)
	}

	extractor := extract.New()
	engine := rules.New(rules.Config{
		Thresholds: rules.Thresholds{
			TitleOptimalLength: cfg.Rules.TitleOptimalLength,
			TitleDelta:         cfg.Rules.TitleDelta,
			MetaMinLength:      cfg.Rules.MetaMinLength,
			MetaMaxLength:      cfg.Rules.MetaMaxLength,
			MetaIdealMaxLength: cfg.Rules.MetaIdealMaxLength,
			RelevanceLow:       cfg.Rules.RelevanceLow,
			RelevanceHigh:      cfg.Rules.RelevanceHigh,
			SemanticGreatCount: cfg.Rules.SemanticGreatCount,
		},
		Method:      method,
		Aggregation: agg,
	}, comparator, extractor, logger.Named("rules"))

	crawler := sitegraph.NewCrawler(sitegraph.Config{
		UserAgent:         cfg.Crawl.UserAgent,
		MaxDepth:          cfg.Crawl.MaxDepth,
		MaxPages:          cfg.Crawl.MaxPages,
		MaxInFlight:       cfg.Crawl.MaxInFlight,
		RequestsPerSecond: cfg.Crawl.RequestsPerSecond,
		RequestTimeout:    time.Duration(cfg.Crawl.RequestTimeoutSeconds) * time.Second,
		RespectRobots:     cfg.Crawl.RespectRobots,
	}, logger.Named("sitegraph"))

	renderer, err := render.NewChromedp(render.Config{
		Headless:     cfg.Render.Headless,
		Stealth:      cfg.Render.Stealth,
		UserAgent:    cfg.Render.UserAgent,
		MaxTabs:      cfg.Render.MaxTabs,
		WindowWidth:  cfg.Render.WindowWidth,
		WindowHeight: cfg.Render.WindowHeight,
		ExecPath:     cfg.Render.ExecPath,
	}, logger.Named("render"))
	if err != nil {
		return nil, nil, fmt.Errorf("renderer init failed: %w", err)
	}

	scroll := cfg.Scan.Scroll
	s := scanner.New(crawler, renderer, engine, extractor, clock, ids, scanner.Config{
		Keywords:           cfg.Scan.Keywords,
		MaxKeyPages:        cfg.Scan.MaxKeyPages,
		Workers:            cfg.Scan.Workers,
		PageTimeout:        cfg.Scan.PageTimeout(),
		ContentIdleTimeout: cfg.Scan.ContentIdleTimeout(),
		Scroll: scanner.ScrollConfig{
			Delay:       time.Duration(scroll.DelayMs) * time.Millisecond,
			Step:        scroll.Step,
			MaxAttempts: scroll.MaxAttempts,
			GrowAfter:   scroll.GrowAfter,
			StepGrowth:  scroll.StepGrowth,
			MaxStep:     scroll.MaxStep,
			Tolerance:   scroll.Tolerance,
		},
	}, logger.Named("scanner"))
	return s, renderer, nil
}

func newComparator(cfg *config.Config, logger *zap.Logger) (*relevance.Comparator, error) {
	opts := []relevance.Option{
		relevance.WithLogger(logger.Named("relevance")),
		relevance.WithSplitter(relevance.NewSplitter(cfg.Relevance.ChunkSize, cfg.Relevance.ChunkOverlap)),
		relevance.WithBackend(relevance.MethodTFIDF, relevance.NewTFIDF(relevance.TFIDFConfig{
			MaxFeatures: cfg.Relevance.MaxFeatures,
			MaxNGram:    cfg.Relevance.MaxNGram,
		})),
	}
	if cfg.Embeddings.BaseURL != "" {
		client, err := embedding.New(embedding.Config{
			BaseURL:   cfg.Embeddings.BaseURL,
			Model:     cfg.Embeddings.Model,
			BatchSize: cfg.Embeddings.BatchSize,
			Timeout:   time.Duration(cfg.Embeddings.TimeoutSeconds) * time.Second,
		}, logger.Named("embedding"))
		if err != nil {
			return nil, fmt.Errorf("embedding client init failed: %w", err)
		}
		opts = append(opts, relevance.WithBackend(relevance.MethodEmbeddings, relevance.NewEmbeddings(client)))
	}
	return relevance.NewComparator(opts...), nil
}

func setupDatabase(ctx context.Context, app *App) error {
	if app.cfg.Database.DSN == "" {
		app.logger.Warn("no DSN specified for database, using in-memory website store")
		app.websiteStore = memoryStorage.NewWebsiteStore()
		return nil
	}
	store, err := pgstore.NewWebsiteStore(ctx, pgstore.Config{
		DSN:             app.cfg.Database.DSN,
		MaxConns:        app.cfg.Database.MaxConns,
		MinConns:        app.cfg.Database.MinConns,
		MaxConnLifetime: time.Duration(app.cfg.Database.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("website store init failed: %w", err)
	}
	app.pgStore = store
	app.websiteStore = store
	if app.cfg.Database.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema failed: %w", err)
		}
	}
	app.logger.Info("postgres website store initialized")
	return nil
}

func setupStorage(ctx context.Context, app *App) (seo.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case config.StorageGCS:
		app.logger.Info("using GCS storage backend", zap.String("bucket", app.cfg.Storage.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{Bucket: app.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobStore, nil
	case config.StorageLocal:
		app.logger.Info("using local storage backend", zap.String("path", app.cfg.Storage.LocalDir))
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobStore, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memoryStorage.NewBlobStore(), nil
	}
}

func setupPublisher(ctx context.Context, app *App) (seo.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	pub, err := gcppublisher.New(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.publisher = pub
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return pub, nil
}

func setupDispatcher(app *App, blobStore seo.BlobStore, publisher seo.Publisher) *dispatcher.Dispatcher {
	topic := app.cfg.PubSub.TopicName
	if topic == "" {
		topic = localTopic
	}
	workerCfg := worker.Config{
		ReportPrefix: app.cfg.Storage.Prefix,
		ContentType:  app.cfg.Storage.ContentType,
		Topic:        topic,
		ScanTimeout:  app.cfg.Scan.ScanTimeout(),
	}
	app.logger.Info("worker config",
		zap.String("report_prefix", workerCfg.ReportPrefix),
		zap.String("topic", workerCfg.Topic),
		zap.Duration("scan_timeout", workerCfg.ScanTimeout),
	)

	workers := make([]*worker.Worker, 0, app.cfg.Queue.Workers)
	for i := 0; i < app.cfg.Queue.Workers; i++ {
		workers = append(workers, worker.New(
			app.queue,
			app.scanner,
			app.websiteStore,
			blobStore,
			publisher,
			app.clock,
			workerCfg,
			app.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	return dispatcher.New(app.queue, workers, app.logger.Named("dispatcher"))
}
