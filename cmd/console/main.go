package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/po-console/cmd/console/cli"
	"github.com/odyssey-erp/po-console/internal/app"
	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/auth"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/balance"
	"github.com/odyssey-erp/po-console/internal/consumption"
	"github.com/odyssey-erp/po-console/internal/invoice"
	"github.com/odyssey-erp/po-console/internal/observability"
	"github.com/odyssey-erp/po-console/internal/organizations"
	"github.com/odyssey-erp/po-console/internal/platform/cache"
	"github.com/odyssey-erp/po-console/internal/platform/db"
	"github.com/odyssey-erp/po-console/internal/po"
	"github.com/odyssey-erp/po-console/internal/projects"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
	"github.com/odyssey-erp/po-console/internal/srn"
	"github.com/odyssey-erp/po-console/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(ctx, cfg, logger, os.Args[2:]))
	}

	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("console", slog.Any("error", err))
		os.Exit(1)
	}
}

func runJobs(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()
	err := jobsCLI.Run(ctx, args, func(format string, a ...any) {
		fmt.Fprintf(os.Stdout, format, a...)
	})
	if err != nil {
		logger.Error("jobs", slog.Any("error", err))
		return 1
	}
	return 0
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()
	if err := db.Migrate(ctx, dbpool); err != nil {
		return err
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	if err := reference.SetupMetrics(metrics.Registerer()); err != nil {
		logger.Warn("reference metrics", slog.Any("error", err))
	}

	sessionManager := shared.NewSessionManager(redisClient, "po_console_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	upstream := backend.NewClient(cfg.APIBaseURL, cfg.APITimeout)
	referenceService := reference.NewService(upstream, reference.NewCache(redisClient, cfg.ReferenceCacheTTL), logger)
	checker := balance.NewChecker(upstream, cfg.BalanceErrorTTL)
	attachmentService := attachments.NewService(upstream, auditLogger, logger)
	blobStore := attachments.NewBlobStore(redisClient, cfg.SessionTTL)

	authService := auth.NewService(auditLogger, logger)
	poService := po.NewService(referenceService, checker)
	consumptionService := consumption.NewService(upstream, referenceService, checker, attachmentService, idempotencyStore, auditLogger, logger)
	srnService := srn.NewService(upstream, referenceService, checker, attachmentService, idempotencyStore, auditLogger, logger)
	invoiceService := invoice.NewService(upstream, referenceService, blobStore, idempotencyStore, auditLogger, logger)
	projectsService := projects.NewService(upstream, referenceService, idempotencyStore, auditLogger, logger)
	organizationsService := organizations.NewService(referenceService, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		Metrics:              metrics,
		JobHandler:           jobs.NewHandler(inspector, logger),
		AuthHandler:          auth.NewHandler(logger, authService, sessionManager, csrfManager),
		POHandler:            po.NewHandler(logger, poService),
		ConsumptionHandler:   consumption.NewHandler(logger, consumptionService, referenceService),
		SRNHandler:           srn.NewHandler(logger, srnService, referenceService),
		InvoiceHandler:       invoice.NewHandler(logger, invoiceService, referenceService),
		ProjectsHandler:      projects.NewHandler(logger, projectsService),
		OrganizationsHandler: organizations.NewHandler(logger, organizationsService),
		AttachmentsHandler:   attachments.NewHandler(logger, attachmentService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("upstream", cfg.APIBaseURL))
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
	return nil
}
