package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clarvis-be/internal/bootstrap"
	"clarvis-be/internal/config"
	"clarvis-be/internal/model"
	"clarvis-be/internal/pkg/logger"
	"clarvis-be/internal/server"
	"clarvis-be/internal/tracer"
	"clarvis-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer sysLogger.Sync()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Otel, sysLogger)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database
	gormDB, err := database.Open(database.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.Connection})
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Panicf("AutoMigrate failed: %v", err)
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg, sysLogger)
	if err != nil {
		log.Panicf("Bootstrap failed: %v", err)
	}
	defer container.Close()

	// 5. Start Background Services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go container.WebSocketHub.Run(ctx)

	if container.EventListener != nil {
		if err := container.EventListener.Start(); err != nil {
			sysLogger.Warn("MAIN", "Event listener failed to start", map[string]interface{}{"error": err.Error()})
		}
	}

	go func() {
		if err := container.ConsumerService.Consume(ctx); err != nil && !errors.Is(err, context.Canceled) {
			sysLogger.Error("MAIN", "Consumer stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	// runs left behind by a previous process
	go func() {
		n, err := container.Engine.ResumeIncomplete(ctx, cfg.Workflow.ResumeLimit)
		if err != nil {
			sysLogger.Error("MAIN", "Failed to resume workflow runs", map[string]interface{}{"error": err.Error()})
			return
		}
		if n > 0 {
			sysLogger.Info("MAIN", "Resumed workflow runs", map[string]interface{}{"count": n})
		}
	}()

	// 6. Run Server
	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			sysLogger.Error("MAIN", "Server stopped", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	sysLogger.Info("MAIN", "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sysLogger.Warn("MAIN", "Server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	container.ConsumerService.Wait()
}
