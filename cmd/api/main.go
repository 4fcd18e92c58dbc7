package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicegate/internal/audit"
	"voicegate/internal/auth"
	"voicegate/internal/callrecord"
	"voicegate/internal/config"
	"voicegate/internal/gateway"
	"voicegate/internal/httpapi"
	"voicegate/internal/reconcile"
	"voicegate/internal/registry"
	"voicegate/internal/voiceai"
	"voicegate/pkg/logger"
	"voicegate/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Vendor client is constructed once here and injected everywhere.
	vendor := voiceai.NewHTTPClient(voiceai.Config{
		BaseURL: cfg.Vendor.BaseURL,
		APIKey:  cfg.Vendor.APIKey,
		Timeout: cfg.Vendor.SessionStartTimeout,
	})

	auditSvc := audit.NewService(audit.NewRepository(db))
	records := callrecord.NewRepository(db)
	registrySvc := registry.NewService(registry.NewRepository(db), rdb, auditSvc, log)

	// One limiter instance shared by the gateway (acquire) and the
	// reconciler (release), so both sides count against the same slots.
	var limiter gateway.Limiter
	if cfg.Vendor.MaxCallsPerOrg > 0 {
		limiter = gateway.NewRedisLimiter(rdb, cfg.Vendor.MaxCallsPerOrg, 0)
	}

	gatewayHandler := gateway.NewHandler(registrySvc, vendor, records, limiter, log)
	reconcileHandler := reconcile.NewHandler(records, auditSvc, limiter, log)
	apiHandlers := httpapi.Handlers{
		Auth:     authManager,
		Registry: registrySvc,
		Records:  records,
		Vendor:   vendor,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:       cfg,
		db:        db,
		authMW:    auth.RequireAccessToken(authManager),
		gateway:   gatewayHandler,
		reconcile: reconcileHandler,
		api:       apiHandlers,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
