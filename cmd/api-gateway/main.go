package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/fee-portal-api/api/swagger"
	"github.com/noah-isme/fee-portal-api/internal/handler"
	"github.com/noah-isme/fee-portal-api/internal/middleware"
	"github.com/noah-isme/fee-portal-api/internal/models"
	"github.com/noah-isme/fee-portal-api/internal/repository"
	"github.com/noah-isme/fee-portal-api/internal/service"
	"github.com/noah-isme/fee-portal-api/pkg/cache"
	"github.com/noah-isme/fee-portal-api/pkg/config"
	"github.com/noah-isme/fee-portal-api/pkg/database"
	"github.com/noah-isme/fee-portal-api/pkg/export"
	"github.com/noah-isme/fee-portal-api/pkg/jobs"
	"github.com/noah-isme/fee-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/fee-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fee-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/fee-portal-api/pkg/notify"
	"github.com/noah-isme/fee-portal-api/pkg/storage"
)

// @title Fee Portal API
// @version 1.0.0
// @description Fee management portal for students and administrators
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	receiptStore, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare receipt storage", "error", err)
	}
	receiptSigner := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)

	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	deadlineRepo := repository.NewDeadlineRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(adminRepo, studentRepo, adminRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "fee-portal-api",
		Audience:           []string{"fee-portal"},
	})
	feeSvc := service.NewFeeService(feeRepo, validate, logr)
	ledgerSvc := service.NewLedgerService(ledgerRepo, txnRepo, studentRepo, feeRepo, adminRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, ledgerSvc, cacheRepo, adminRepo, validate, logr, cfg.Cache.StudentListTTL)
	txnSvc := service.NewTransactionService(txnRepo, export.NewCSVExporter(), logr)
	dashboardSvc := service.NewDashboardService(studentRepo, ledgerRepo, txnRepo, cacheRepo, metricsSvc, logr, cfg.Cache.DashboardTTL)
	receiptSvc := service.NewReceiptService(txnRepo, studentRepo, export.NewReceiptRenderer("Fee Portal"), receiptStore, receiptSigner, logr)

	notifier := notify.NewLogNotifier(logr)
	var reminderQueue *jobs.Queue
	deadlineSvc := service.NewDeadlineService(deadlineRepo, ledgerRepo, txnRepo, notifier, queueRef(&reminderQueue), adminRepo, validate, logr)
	reminderQueue = jobs.NewQueue("fee-reminders", func(ctx context.Context, job jobs.Job) error {
		if err := deadlineSvc.HandleReminderJob(ctx, job); err != nil {
			return err
		}
		metricsSvc.ObserveReminder()
		return nil
	}, jobs.QueueConfig{
		Workers: cfg.Reminders.WorkerConcurrency,
		Logger:  logr,
	})
	reminderQueue.Start(ctx)
	defer reminderQueue.Stop()

	if cfg.Catalog.Seed {
		if err := feeSvc.Seed(ctx); err != nil {
			logr.Sugar().Warnw("fee catalog seed failed", "error", err)
		}
	}

	if cfg.Reminders.Enabled {
		go func() {
			ticker := time.NewTicker(cfg.Reminders.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := deadlineSvc.Sweep(ctx, cfg.Reminders.Lookahead); err != nil {
						logr.Sugar().Errorw("reminder sweep failed", "error", err)
					}
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	feeHandler := handler.NewFeeHandler(feeSvc, ledgerSvc)
	ledgerHandler := handler.NewLedgerHandler(ledgerSvc, receiptSvc, metricsSvc)
	txnHandler := handler.NewTransactionHandler(txnSvc)
	deadlineHandler := handler.NewDeadlineHandler(deadlineSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/student/login", authHandler.StudentLogin)
	auth.POST("/admin/login", authHandler.AdminLogin)
	auth.POST("/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	adminOnly := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	selfOrAdmin := middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), "SELF")

	students := authed.Group("/students")
	students.GET("", adminOnly, studentHandler.List)
	students.POST("", adminOnly, middleware.Audit(adminRepo, models.AuditActionStudentCreate, "students"), studentHandler.Create)
	students.POST("/bulk-delete", adminOnly, middleware.Audit(adminRepo, models.AuditActionStudentDelete, "students"), studentHandler.BulkDelete)
	students.GET("/:id", selfOrAdmin, studentHandler.Get)
	students.PUT("/:id", adminOnly, middleware.Audit(adminRepo, models.AuditActionStudentUpdate, "students"), studentHandler.Update)
	students.DELETE("/:id", adminOnly, middleware.Audit(adminRepo, models.AuditActionStudentDelete, "students"), studentHandler.Delete)

	students.GET("/:id/fees", selfOrAdmin, ledgerHandler.Ledger)
	students.POST("/:id/payments", selfOrAdmin, ledgerHandler.Pay)
	students.GET("/:id/receipts/:txn", selfOrAdmin, ledgerHandler.Receipt)
	students.GET("/:id/transactions", selfOrAdmin, txnHandler.ListForStudent)

	api.GET("/receipts/download", ledgerHandler.Download)

	fees := authed.Group("/fees")
	fees.GET("", feeHandler.List)
	fees.POST("", adminOnly, feeHandler.Create)
	fees.POST("/bulk-charge", adminOnly, middleware.Audit(adminRepo, models.AuditActionBulkCharge, "student_fees"), feeHandler.BulkCharge)
	fees.POST("/bulk-remove", adminOnly, middleware.Audit(adminRepo, models.AuditActionBulkRemove, "student_fees"), feeHandler.BulkRemove)

	transactions := authed.Group("/transactions", adminOnly)
	transactions.GET("", txnHandler.List)
	transactions.GET("/export", txnHandler.ExportCSV)

	deadlines := authed.Group("/deadlines")
	deadlines.GET("", deadlineHandler.List)
	deadlines.POST("", adminOnly, middleware.Audit(adminRepo, models.AuditActionDeadlineCreate, "fee_deadlines"), deadlineHandler.Create)
	deadlines.DELETE("/:id", adminOnly, middleware.Audit(adminRepo, models.AuditActionDeadlineDelete, "fee_deadlines"), deadlineHandler.Delete)
	deadlines.POST("/:id/notify", adminOnly, deadlineHandler.Notify)

	dashboard := authed.Group("/dashboard", adminOnly)
	dashboard.GET("/summary", dashboardHandler.Summary)
	dashboard.GET("/metrics", metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

// queueRef defers queue resolution so the deadline service and the queue
// handler can reference each other.
func queueRef(q **jobs.Queue) queueProxy {
	return queueProxy{q: q}
}

type queueProxy struct {
	q **jobs.Queue
}

func (p queueProxy) Enqueue(job jobs.Job) error {
	if p.q == nil || *p.q == nil {
		return fmt.Errorf("reminder queue not initialized")
	}
	return (*p.q).Enqueue(job)
}
