package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moviesearch-client/internal/bootstrap"
	"moviesearch-client/internal/config"
	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/internal/server"
	"moviesearch-client/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Logger
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	// 3. Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer("moviesearch-relay", sysLogger)

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg, sysLogger)

	// 5. Start Background Services
	ctx, cancel := context.WithCancel(context.Background())
	go container.WebSocketHub.Run()
	go func() {
		sysLogger.Info("Main", "Background: Starting Recorder Service...", nil)
		if err := container.RecorderService.Consume(ctx); err != nil && ctx.Err() == nil {
			sysLogger.Error("Main", "Background Recorder Error", map[string]interface{}{"error": err.Error()})
		}
	}()

	// 6. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		sysLogger.Info("Main", "Shutting down relay", nil)
		container.WebSocketHub.Shutdown()
		if err := srv.Shutdown(); err != nil {
			sysLogger.Warn("Main", "Server shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// 7. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}

	cancel()
	container.Close()

	tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer tcancel()
	if err := shutdownTracer(tctx); err != nil {
		log.Printf("Tracer shutdown: %v", err)
	}
}
