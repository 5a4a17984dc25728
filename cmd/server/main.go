package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"pmcatalog/internal/client/polymarket/clob"
	"pmcatalog/internal/client/polymarket/gamma"
	"pmcatalog/internal/config"
	cronrunner "pmcatalog/internal/cron"
	"pmcatalog/internal/db"
	"pmcatalog/internal/handler"
	"pmcatalog/internal/logger"
	gormrepository "pmcatalog/internal/repository/gorm"
	"pmcatalog/internal/service"

	_ "pmcatalog/docs"
)

func main() {
	cfgPath := os.Getenv("PM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer dbConn.Close()

	if err := dbConn.AutoMigrate(); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	gammaHTTP := &http.Client{Timeout: cfg.Gamma.Timeout}
	gammaClient := gamma.NewClient(gammaHTTP, cfg.Gamma.BaseURL)
	clobHTTP := &http.Client{Timeout: cfg.ClobREST.Timeout}
	clobClient := clob.NewClient(clobHTTP, cfg.ClobREST.BaseURL)
	store := gormrepository.New(dbConn.Gorm)

	syncService := &service.CatalogSyncService{
		Repo:   store,
		Gamma:  gammaClient,
		Logger: logger,
	}
	queryService := &service.CatalogQueryService{Repo: store, Clob: clobClient}
	bookStream := &service.BookStreamService{Repo: store, Logger: logger}
	syncOptions := syncOptionsFromConfig(cfg.CatalogSync)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	catalogHandler := &handler.CatalogHandler{
		Sync:        syncService,
		Query:       queryService,
		SyncOptions: syncOptions,
		Logger:      logger,
	}
	catalogHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		_, err = cronRunner.Add("catalog_sync", cfg.Cron.CatalogSync, func(ctx context.Context) {
			result, err := syncService.RunReconciliation(ctx, syncOptions)
			if err != nil {
				logger.Warn("cron catalog sync failed", zap.Error(err))
				return
			}
			if result.Skipped {
				return
			}
			logger.Info("cron catalog sync ok",
				zap.Int("pages", result.Pages),
				zap.Int("events", result.Events),
				zap.Int("markets", result.Markets),
				zap.Int("tags", result.Tags),
			)
		})
		if err != nil {
			logger.Warn("cron register catalog sync failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if cfg.BookStream.Enabled {
		go func() {
			err := bookStream.RunBookStream(ctx, service.BookStreamOptions{
				URL:             cfg.BookStream.URL,
				RefreshInterval: cfg.BookStream.RefreshInterval,
				MaxAssets:       cfg.BookStream.MaxAssets,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("book stream stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func syncOptionsFromConfig(cfg config.CatalogSyncConfig) service.SyncOptions {
	opts := service.SyncOptions{
		Sport:        cfg.Sport,
		PageLimit:    cfg.PageLimit,
		MaxPages:     cfg.MaxPages,
		Active:       parseBoolFilter(cfg.Active),
		Closed:       parseBoolFilter(cfg.Closed),
		UpcomingDays: cfg.UpcomingDays,
		StateKey:     cfg.StateKey,
	}
	if cfg.TagID > 0 {
		tagID := cfg.TagID
		opts.TagID = &tagID
	}
	return opts
}

func parseBoolFilter(value string) *bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	default:
		return nil
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
