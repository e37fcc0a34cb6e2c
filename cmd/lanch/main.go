package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lanch-pos/lanch-pos/internal/app"
	"github.com/lanch-pos/lanch-pos/internal/audit"
	"github.com/lanch-pos/lanch-pos/internal/auth"
	"github.com/lanch-pos/lanch-pos/internal/cashdesk"
	"github.com/lanch-pos/lanch-pos/internal/catalog"
	"github.com/lanch-pos/lanch-pos/internal/employees"
	"github.com/lanch-pos/lanch-pos/internal/ledger"
	"github.com/lanch-pos/lanch-pos/internal/observability"
	"github.com/lanch-pos/lanch-pos/internal/orders"
	"github.com/lanch-pos/lanch-pos/internal/periods"
	"github.com/lanch-pos/lanch-pos/internal/platform/db"
	"github.com/lanch-pos/lanch-pos/internal/reports"
	"github.com/lanch-pos/lanch-pos/internal/sectors"
	"github.com/lanch-pos/lanch-pos/internal/shared"
	"github.com/lanch-pos/lanch-pos/internal/stock"
	"github.com/lanch-pos/lanch-pos/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := db.Migrate(cfg.PGDSN, migrations.FS); err != nil {
		logger.Error("apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGLockTimeout)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	revoked := auth.NewRevocationStore(redisClient)
	authService := auth.NewService(auth.NewRepository(pool), tokens, revoked, auditLogger, logger)
	if err := authService.Bootstrap(ctx); err != nil {
		logger.Error("bootstrap admin user", slog.Any("error", err))
		os.Exit(1)
	}
	authHandler := auth.NewHandler(logger, authService)

	sectorsRepo := sectors.NewRepository(pool)
	sectorsHandler := sectors.NewHandler(logger, sectorsRepo)

	employeesService := employees.NewService(employees.NewRepository(pool), auditLogger, cfg.MonthlyLimit())
	employeesHandler := employees.NewHandler(logger, employeesService)

	catalogRepo := catalog.NewRepository(pool)
	catalogHandler := catalog.NewHandler(logger, catalogRepo)

	stockService := stock.NewService(stock.NewRepository(pool), auditLogger)
	stockHandler := stock.NewHandler(logger, stockService)

	ledgerRepo := ledger.NewRepository(pool)
	periodsService := periods.NewService(periods.NewRepository(pool), ledgerRepo, auditLogger)
	periodsHandler := periods.NewHandler(logger, periodsService)

	ledgerService := ledger.NewService(ledgerRepo, periodsService)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	ordersService := orders.NewService(orders.NewRepository(pool), auditLogger, logger).WithMetrics(metrics)
	ordersHandler := orders.NewHandler(logger, ordersService, shared.NewIdempotencyStore(pool))

	reportsHandler := reports.NewHandler(logger, reports.NewRepository(pool))

	cashdeskService := cashdesk.NewService(cashdesk.NewRepository(pool), auditLogger)
	cashdeskHandler := cashdesk.NewHandler(logger, cashdeskService)

	auditHandler := audit.NewHandler(logger, audit.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Tokens:           tokens,
		Revoked:          revoked,
		AuthHandler:      authHandler,
		SectorsHandler:   sectorsHandler,
		EmployeesHandler: employeesHandler,
		CatalogHandler:   catalogHandler,
		StockHandler:     stockHandler,
		LedgerHandler:    ledgerHandler,
		OrdersHandler:    ordersHandler,
		PeriodsHandler:   periodsHandler,
		ReportsHandler:   reportsHandler,
		CashdeskHandler:  cashdeskHandler,
		AuditHandler:     auditHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
