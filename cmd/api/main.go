package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/schoolmaps/internal/adapters/http"
	natsadapter "github.com/samirrijal/schoolmaps/internal/adapters/nats"
	"github.com/samirrijal/schoolmaps/internal/app"
	"github.com/samirrijal/schoolmaps/internal/pkg/config"
	"github.com/samirrijal/schoolmaps/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("schoolmaps-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()
	a.WatchDBPool(ctx, 15*time.Second)

	// Raw NATS connection for the WebSocket relay; announcements only reach
	// NATS when it is the configured sink
	var natsConn *nats.Conn
	if cfg.Proximity.Sink == config.SinkNATS {
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
		} else {
			defer natsConn.Close()
		}
	}

	deps := &http.Dependencies{
		Points:    a.Points,
		Proximity: a.Proximity,
		NATS:      natsConn,
		Subjects:  natsadapter.Subjects{Prefix: cfg.NATS.SubjectPrefix},
		DB:        a.DB,
		Cache:     a.Cache,
	}
	if a.Publisher != nil {
		deps.Queue = a.Publisher
	}

	// Fiber
	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024,
		AppName:      "SchoolMaps API",
	})
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(fiberApp, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "points_source", cfg.Proximity.Source, "sink", cfg.Proximity.Sink)
		if err := fiberApp.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
