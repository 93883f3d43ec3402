package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	natsadapter "github.com/samirrijal/schoolmaps/internal/adapters/nats"
	"github.com/samirrijal/schoolmaps/internal/app"
	"github.com/samirrijal/schoolmaps/internal/core/domain"
	"github.com/samirrijal/schoolmaps/internal/pkg/config"
	"github.com/samirrijal/schoolmaps/internal/pkg/logging"
	"github.com/samirrijal/schoolmaps/internal/workflows"
)

// The tracker consumes device readings from NATS. Each reading is handled
// in-process, or handed to the announcement workflow when --workflow is given.
func main() {
	cfg, err := config.Load("schoolmaps-tracker")
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

	handler := a.Proximity.HandleLocation
	useWorkflow := len(os.Args) > 1 && os.Args[1] == "--workflow"
	if useWorkflow {
		tc, err := client.Dial(client.Options{HostPort: cfg.Temporal.HostPort})
		if err != nil {
			log.Fatalf("temporal client: %v", err)
		}
		defer tc.Close()
		handler = startWorkflow(tc, cfg)
	}

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeLocations(ctx, func(ctx context.Context, update *domain.LocationUpdate) error {
		ann, err := handler(ctx, update)
		if errors.Is(err, domain.ErrInvalidLocation) || errors.Is(err, errNoReadingTime) {
			// acked: redelivery cannot fix the reading
			slog.Warn("rejecting location", "device", update.DeviceID, "error", err)
			return nil
		}
		if err != nil {
			slog.Warn("location handling failed", "device", update.DeviceID, "error", err)
			return err
		}
		if ann != nil {
			slog.Debug("announced", "device", update.DeviceID, "id", ann.ID)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("tracker started", "subject", natsadapter.Subjects{Prefix: cfg.NATS.SubjectPrefix}.LocationAll(), "workflow", useWorkflow)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down tracker", "signal", sig.String())
}

var errNoReadingTime = errors.New("reading has no timestamp")

// workflowStarter is the part of client.Client the tracker uses.
type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow any, args ...any) (client.WorkflowRun, error)
}

// workflowID names the run for one reading. Redeliveries carry the same
// device and reading time and therefore the same ID.
func workflowID(update *domain.LocationUpdate) (string, error) {
	if update.RecordedAt.IsZero() {
		return "", fmt.Errorf("%w: device %s", errNoReadingTime, update.DeviceID)
	}
	return "announce-" + update.DeviceID + "-" + update.RecordedAt.UTC().Format("20060102T150405.000000000"), nil
}

// startWorkflow returns a handler that starts one AnnouncementWorkflow per
// reading. A reading whose run already exists counts as handled.
func startWorkflow(tc workflowStarter, cfg *config.Config) func(context.Context, *domain.LocationUpdate) (*domain.Announcement, error) {
	return func(ctx context.Context, update *domain.LocationUpdate) (*domain.Announcement, error) {
		if !update.Location.InRange() {
			return nil, fmt.Errorf("%w: (%f, %f)", domain.ErrInvalidLocation, update.Location.Lat, update.Location.Lon)
		}
		id, err := workflowID(update)
		if err != nil {
			return nil, err
		}
		opts := client.StartWorkflowOptions{
			ID:                    id,
			TaskQueue:             cfg.Temporal.TaskQueue,
			WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		}
		input := workflows.AnnouncementInput{
			DeviceID:  update.DeviceID,
			Location:  update.Location,
			Threshold: cfg.Proximity.ThresholdMeters,
			Once:      cfg.Proximity.AnnounceOnce,
		}
		_, err = tc.ExecuteWorkflow(ctx, opts, workflows.AnnouncementWorkflow, input)
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			slog.Debug("workflow already started", "workflow_id", id)
			return nil, nil
		}
		return nil, err
	}
}
