package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/adapters/grpc/interceptor"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/adapters/repository/memory"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/adapters/repository/postgres"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/account"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/department"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/auditlog"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/config"
	pg "github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/db/postgres"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/logging"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/metrics"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// storage は選択されたドライバのリポジトリ群です。
type storage struct {
	employees   employee.Repository
	departments department.Repository
	accounts    account.Repository
	tx          employee.TransactionManager
	close       func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFiles(); err != nil {
		log.Fatalf("failed to load env files: %v", err)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := openStorage(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.close()

	authz, err := access.NewPolicyAuthorizer()
	if err != nil {
		return fmt.Errorf("initialize authorizer: %w", err)
	}
	auditor := auditlog.New(logger)

	if cfg.Auth.DefaultPassword == "" {
		logger.Warn("default password is not configured; employee creation will fail")
	}

	employeeSvc := employee.NewService(store.employees, store.accounts, store.departments, authz, nil, store.tx,
		employee.WithAuditor(auditor),
		employee.WithPasswordHasher(account.NewBcryptHasher(cfg.Auth.BcryptCost)),
		employee.WithDefaultPassword(cfg.Auth.DefaultPassword),
	)
	departmentSvc := department.NewService(store.departments, store.employees, store.accounts, authz, auditor, nil, store.tx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	grpcMetrics := metrics.NewCollectors(reg)

	grpcServer := server.New(cfg.Server.ListenAddr,
		server.Services{Employees: employeeSvc, Departments: departmentSvc},
		logger,
		grpc.ChainUnaryInterceptor(
			interceptor.SessionUnaryInterceptor(),
			interceptor.LoggingUnaryInterceptor(logger),
			interceptor.MetricsUnaryInterceptor(grpcMetrics),
		),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grpcServer.Run(gctx)
	})
	if cfg.Server.MetricsAddr != "" {
		metricsServer := metrics.NewServer(cfg.Server.MetricsAddr, reg, logger)
		g.Go(func() error {
			return metricsServer.Run(gctx)
		})
	}
	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &storage{
			employees:   store.Employees(),
			departments: store.Departments(),
			accounts:    store.Accounts(),
			tx:          store,
			close:       func() {},
		}, nil
	default:
		pool, err := pg.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initialize database pool: %w", err)
		}
		return postgresStorage(pool), nil
	}
}

func postgresStorage(pool *pgxpool.Pool) *storage {
	return &storage{
		employees:   postgres.NewEmployeeRepository(pool),
		departments: postgres.NewDepartmentRepository(pool),
		accounts:    postgres.NewAccountRepository(pool),
		tx:          pg.NewTransactionManager(pool),
		close:       pool.Close,
	}
}
