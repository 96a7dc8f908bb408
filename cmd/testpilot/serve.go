package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/kestrel-qa/testpilot/apitoken"
	"github.com/kestrel-qa/testpilot/cmd/testpilot/handlers"
	"github.com/kestrel-qa/testpilot/database"
	"github.com/kestrel-qa/testpilot/job"
	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/workflow"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and job workers",
	RunE:  runServer,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log := logger.NewLogrusLogger(cfg.Log.Level)
	log.Info(ctx, "starting server", map[string]interface{}{
		"version": Version,
		"commit":  Commit,
		"date":    BuildDate,
	})

	// Connect to database
	db, err := database.Connect(databaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer sqlDB.Close()

	log.Info(ctx, "database connected", map[string]interface{}{
		"driver":   cfg.Database.Driver,
		"host":     cfg.Database.Host,
		"database": cfg.Database.Database,
	})

	// Initialize stores
	jobStore := job.NewMySQLStore(db, log)
	tokenStore := apitoken.NewMySQLStore(db, log)

	// Initialize blob storage
	store, err := newBlobStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Initialize workflow orchestrator and worker pool
	orchestrator, err := newOrchestrator(cfg, store, log)
	if err != nil {
		return fmt.Errorf("failed to initialize workflow: %w", err)
	}

	workerPool := workflow.NewWorkerPool(cfg.Workflow.MaxConcurrentWorkers, jobStore, orchestrator, log)
	workerPool.Start(ctx)

	// Setup router
	router := mux.NewRouter()

	// Health check endpoint (public)
	router.HandleFunc("/health", handlers.HealthHandler).Methods("GET")

	// Protected API routes
	jobHandler := handlers.NewJobHandler(jobStore, workerPool, log)
	runHandler := handlers.NewRunHandler(store, log)
	tokenHandler := handlers.NewAPITokenHandler(tokenStore, log)
	authMiddleware := handlers.NewAuthMiddleware(tokenStore, log)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMiddleware.Handler)
	apiRouter.Use(handlers.WriteScopeMiddleware)

	apiRouter.HandleFunc("/jobs", jobHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/jobs", jobHandler.List).Methods("GET")
	apiRouter.HandleFunc("/jobs/{id}", jobHandler.GetByID).Methods("GET")

	apiRouter.HandleFunc("/runs/{id}/artifacts", runHandler.ListArtifacts).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}/artifacts/{name}", runHandler.GetArtifactURL).Methods("GET")

	apiRouter.HandleFunc("/tokens", tokenHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/tokens", tokenHandler.List).Methods("GET")
	apiRouter.HandleFunc("/tokens/{id}", tokenHandler.Revoke).Methods("DELETE")

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info(ctx, "server listening", map[string]interface{}{
			"address": addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down server", nil)

	// Stop workers before the HTTP server so in-flight jobs wind down
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info(ctx, "server stopped", nil)
	return nil
}
