package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/schoolmaps/internal/app"
	"github.com/samirrijal/schoolmaps/internal/pkg/config"
	"github.com/samirrijal/schoolmaps/internal/pkg/logging"
	"github.com/samirrijal/schoolmaps/internal/workflows"
)

func main() {
	cfg, err := config.Load("schoolmaps-announcer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.AnnouncementWorkflow)
	w.RegisterActivity(&workflows.AnnouncementActivities{Proximity: a.Proximity})

	slog.Info("announcer worker started", "task_queue", cfg.Temporal.TaskQueue, "sink", cfg.Proximity.Sink)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
