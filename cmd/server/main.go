package main

import (
	"context"
	"errors"
	"fmt"
	"headless-cms/internal/api"
	"headless-cms/internal/assets"
	"headless-cms/internal/blocks"
	"headless-cms/internal/cache"
	"headless-cms/internal/config"
	"headless-cms/internal/data"
	"headless-cms/internal/embed"
	"headless-cms/internal/handler"
	"headless-cms/internal/logger"
	"headless-cms/internal/middleware"
	"headless-cms/internal/richtext"
	"headless-cms/internal/service"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

// cachePurgeInterval is how often expired embed cache entries are removed.
const cachePurgeInterval = time.Hour

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig()
	if err != nil {
		// Use fmt.Printf here because the logger is not yet initialized.
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Initialization ---
	log := logger.New(cfg.Log, os.Stdout)

	// --- Database Initialization and Migration ---
	if cfg.DB.AutoMigrate {
		log.Info("Applying database migrations...")
		if err := data.ApplyMigrations(cfg.DB); err != nil {
			log.Fatal(err, "Failed to apply migrations")
		}
		log.Info("Migrations applied successfully.")
	}

	log.Info("Connecting to the database...")
	db, err := data.NewDB(cfg.DB)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	log.Info("Database connection successful.")

	// --- Cache Initialization ---
	log.Info("Initializing SQLite cache...")
	embedCache, err := cache.New(cfg.Cache.FilePath)
	if err != nil {
		log.Fatal(err, "Failed to initialize cache")
	}
	defer embedCache.Close()
	log.Info("Cache initialized.")

	resolver, err := embed.NewResolver(cfg.Embed, embedCache, log.Component("embed"))
	if err != nil {
		log.Fatal(err, "Failed to initialize embed resolver")
	}

	// --- Dependency Injection and Handler Initialization ---
	// Initialize the application layers, injecting dependencies from top to bottom.
	pageRepository := data.NewSQLPageRepository(db)
	imageRepository := data.NewImageRepository(db)
	previewRepository := data.NewPreviewRepository(db)
	pageService := service.NewPageService(pageRepository, previewRepository, log)

	bodySerializer := blocks.NewSerializer(
		imageRepository,
		assets.NewPipeline(cfg.Site.MediaURL),
		resolver,
		richtext.NewRenderer(pageService),
		log.Component("blocks"),
		blocks.Config{Strict: cfg.API.StrictBlocks, EmbedMaxWidth: cfg.Embed.MaxWidth},
	)

	apiRouter := handler.NewAPIRouter(cfg.API.Prefix, middleware.Error(log))
	pagesURL := cfg.API.BaseURL + strings.TrimSuffix(apiRouter.Path(handler.PagesEndpoint), "/")
	pageSerializer := api.NewSerializer(bodySerializer, pageService, pagesURL, cfg.Site.BaseURL)

	if err := apiRouter.Register(handler.PagesEndpoint, handler.NewPageHandler(pageService, pageSerializer, cfg.API.LimitMax, log)); err != nil {
		log.Fatal(err, "Failed to register pages endpoint")
	}
	if err := apiRouter.Register(handler.PreviewEndpoint, handler.NewPreviewHandler(pageService, pageSerializer)); err != nil {
		log.Fatal(err, "Failed to register preview endpoint")
	}
	seoHandler := handler.NewSeoHandler(pageService, pageSerializer, cfg.API.BaseURL)

	// --- Router Setup ---
	// The router is the central hub that directs incoming requests to the correct handlers.
	router := handler.NewRouter(apiRouter, seoHandler)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go purgeCache(ctx, embedCache, log)

	// --- Server Initialization and Graceful Shutdown ---
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if cfg.Server.TLS.Enabled {
			log.Info(fmt.Sprintf("Starting HTTPS server on %s", server.Addr))
			if err := server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTPS server")
			}
		} else {
			log.Info(fmt.Sprintf("Starting HTTP server on %s", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTP server")
			}
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Warn("Shutting down server...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err, "Server forced to shutdown")
	}
	log.Info("Server exiting")
}

// purgeCache drops expired embed cache entries until ctx is done.
func purgeCache(ctx context.Context, c *cache.Cache, log logger.Logger) {
	ticker := time.NewTicker(cachePurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Purge(ctx)
			if err != nil {
				log.Error(err, "Failed to purge embed cache")
				continue
			}
			if n > 0 {
				log.Debug(fmt.Sprintf("Purged %d expired embed cache entries", n))
			}
		}
	}
}
