package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/vietddude/faultline/internal/api"
	"github.com/vietddude/faultline/internal/classify"
	"github.com/vietddude/faultline/internal/core/config"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/integration"
	redisclient "github.com/vietddude/faultline/internal/infra/redis"
	"github.com/vietddude/faultline/internal/infra/storage"
	"github.com/vietddude/faultline/internal/infra/storage/memory"
	"github.com/vietddude/faultline/internal/infra/storage/postgres"
	"github.com/vietddude/faultline/internal/jobs"
	"github.com/vietddude/faultline/internal/reporting"
)

// App is the main application struct that manages the service lifecycle.
type App struct {
	cfg         *config.AppConfig
	registry    *classify.Registry
	reporter    reporting.Reporter
	queue       storage.JobQueue
	finder      storage.RecordFinder
	dispatcher  *jobs.Dispatcher
	runner      *jobs.Runner
	server      *api.Server
	db          *postgres.DB
	redisClient *redisclient.Client
	grpcConns   map[string]*grpc.ClientConn
	log         *slog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewApp creates a new App instance with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{
		cfg:       cfg,
		registry:  classify.NewRegistry(cfg.ServiceDefs()...),
		grpcConns: make(map[string]*grpc.ClientConn),
		log:       slog.Default(),
	}

	// 1. Initialize Storage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := postgres.Migrate(db.DB.DB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		a.db = db
		a.finder = postgres.NewRecordRepo(db)
		a.log.Info("Using PostgreSQL record store")
	} else {
		store := memory.NewMemoryStorage()
		finder := memory.NewRecordFinder(store)
		finder.Seed(cfg.Records.Functions, cfg.Records.Workflows)
		a.finder = finder
		a.log.Info("Using memory record store",
			"functions", len(cfg.Records.Functions),
			"workflows", len(cfg.Records.Workflows),
		)
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			if cfg.Jobs.Backend == "redis" {
				a.close()
				return nil, fmt.Errorf("failed to init redis: %w", err)
			}
			a.log.Warn("Failed to connect to Redis, error stream disabled", "error", err)
		} else {
			a.redisClient = client
		}
	}

	// 2. Reporting
	reporters := reporting.Multi{
		reporting.NewLogReporter(a.log),
		reporting.NewMetricsReporter(),
	}
	if a.redisClient != nil && cfg.Redis.Stream != "" {
		reporters = append(reporters, reporting.NewStreamReporter(a.redisClient.Redis(), cfg.Redis.Stream, cfg.Redis.StreamMaxLen))
		a.log.Info("Streaming classified errors to Redis", "stream", cfg.Redis.Stream)
	}
	a.reporter = reporters

	// 3. Job queue
	switch cfg.Jobs.Backend {
	case "postgres":
		if a.db == nil {
			a.close()
			return nil, fmt.Errorf("%w: database.url is required for backend postgres", config.ErrMissingBackend)
		}
		a.queue = postgres.NewJobRepo(a.db)
	case "redis":
		a.queue = redisclient.NewJobQueue(a.redisClient)
	default:
		a.queue = memory.NewJobQueue(memory.NewMemoryStorage())
	}
	a.log.Info("Job queue ready", "backend", cfg.Jobs.Backend)

	// 4. Dispatcher and runner
	a.runner = jobs.NewRunner(cfg.Jobs, a.queue, a.reporter, a.log)
	a.dispatcher = jobs.NewDispatcher(cfg.Jobs, a.queue, a.finder, a.reporter, a.log)
	a.dispatcher.AttachRunner(a.runner)

	a.registerExecutor(domain.TaskGenerate, cfg.Jobs.GenerateService, cfg.Jobs.GeneratePath)
	a.registerExecutor(domain.WorkflowExecuteWorkflow, cfg.Jobs.WorkflowService, cfg.Jobs.WorkflowPath)

	if err := a.dialServices(); err != nil {
		a.close()
		return nil, err
	}

	// 5. HTTP surface
	a.server = api.NewServer(api.Deps{
		Registry:   a.registry,
		Dispatcher: a.dispatcher,
		Queue:      a.queue,
		Checks:     a.checks(),
		Log:        a.log,
	}, cfg.Server.Port)

	return a, nil
}

func (a *App) registerExecutor(jobName, service, path string) {
	if service == "" {
		a.log.Warn("No service configured, jobs will fail", "job", jobName)
		return
	}
	svc, _ := a.cfg.Service(service)
	classifier := a.registry.For(service)
	client := integration.NewHTTPClient(service, svc.Config, classifier, a.reporter)
	a.runner.Handle(jobName, jobs.NewExecutor(client, classifier, a.cfg.Retry, path).Handle)
	a.log.Debug("Registered job executor", "job", jobName, "service", service, "path", path)
}

func (a *App) dialServices() error {
	for _, svc := range a.cfg.Services {
		if svc.GRPCTarget == "" {
			continue
		}
		conn, err := integration.DialGRPC(svc.GRPCTarget, a.registry.For(svc.Name), a.reporter)
		if err != nil {
			return fmt.Errorf("failed to dial %s: %w", svc.Name, err)
		}
		a.grpcConns[svc.Name] = conn
		a.log.Info("gRPC client ready", "service", svc.Name, "target", svc.GRPCTarget)
	}
	return nil
}

// Conn returns the gRPC connection of a service configured with a
// grpc_target. Calls made through it are classified and reported.
func (a *App) Conn(service string) (*grpc.ClientConn, bool) {
	conn, ok := a.grpcConns[service]
	return conn, ok
}

func (a *App) checks() map[string]api.Check {
	checks := make(map[string]api.Check)
	if a.db != nil {
		checks["postgres"] = a.db.Health
	}
	if a.redisClient != nil {
		checks["redis"] = a.redisClient.Health
	}
	for name, conn := range a.grpcConns {
		checks["grpc:"+name] = integration.HealthCheck(conn)
	}
	return checks
}

// Registry returns the classifier registry.
func (a *App) Registry() *classify.Registry {
	return a.registry
}

// Dispatcher returns the record hook.
func (a *App) Dispatcher() *jobs.Dispatcher {
	return a.dispatcher
}

// Start starts the HTTP server, the job runner and background collectors.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	a.group = g

	g.Go(func() error {
		a.log.Info("HTTP server listening", "port", a.cfg.Server.Port)
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.runner.Run(gctx)
	})

	if a.db != nil {
		a.db.StartMetricsCollector(gctx)
	}
	return nil
}

// Stop stops the App.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping faultline...")

	err := a.server.Stop(ctx)
	if a.cancel != nil {
		a.cancel()
	}
	if a.group != nil {
		if gerr := a.group.Wait(); gerr != nil && err == nil {
			err = gerr
		}
	}
	a.close()
	return err
}

func (a *App) close() {
	for _, conn := range a.grpcConns {
		_ = conn.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
