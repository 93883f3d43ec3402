package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// AnnouncementInput is the input for the announcement workflow.
type AnnouncementInput struct {
	DeviceID  string
	Location  domain.GeoPoint
	Threshold float64 // 0 selects the configured default
	Once      bool    // apply the once-per-session latch
}

// AnnouncementResult summarises what the workflow did.
type AnnouncementResult struct {
	Suppressed     bool
	Announced      bool
	AnnouncementID string
	Text           string
	Alerts         int
}

// AnnouncementWorkflow evaluates a reading, delivers the announcement and
// records its alerts. Alerts are written only after delivery succeeds; a
// failed evaluation or delivery releases the session latch (saga
// compensation).
func AnnouncementWorkflow(ctx workflow.Context, input AnnouncementInput) (AnnouncementResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting announcement workflow", "device", input.DeviceID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var result AnnouncementResult

	// Step 1: session latch
	if input.Once {
		var acquired bool
		if err := workflow.ExecuteActivity(ctx, "AcquireSession", input.DeviceID).Get(ctx, &acquired); err != nil {
			return result, err
		}
		if !acquired {
			result.Suppressed = true
			return result, nil
		}
	}

	// Step 2: evaluate
	var alerts []domain.AlertRecord
	if err := workflow.ExecuteActivity(ctx, "EvaluateProximity", input.Location, input.Threshold).Get(ctx, &alerts); err != nil {
		logger.Warn("evaluation failed, compensating", "error", err)
		releaseSession(ctx, input)
		return result, err
	}
	result.Alerts = len(alerts)
	if len(alerts) == 0 {
		return result, nil
	}

	// Step 3: deliver
	var ann *domain.Announcement
	if err := workflow.ExecuteActivity(ctx, "DeliverAnnouncement", input.DeviceID, alerts).Get(ctx, &ann); err != nil {
		logger.Warn("announcement delivery failed, compensating", "error", err)
		releaseSession(ctx, input)
		return result, err
	}
	if ann == nil {
		return result, nil
	}
	result.Announced = true
	result.AnnouncementID = ann.ID
	result.Text = ann.Text

	// Step 4: record
	if err := workflow.ExecuteActivity(ctx, "RecordAlerts", input.DeviceID, input.Location, alerts).Get(ctx, nil); err != nil {
		logger.Warn("recording alerts failed", "error", err)
	}

	logger.Info("Announcement delivered", "id", ann.ID, "alerts", len(alerts))
	return result, nil
}

// releaseSession undoes step 1 when the latch was taken.
func releaseSession(ctx workflow.Context, input AnnouncementInput) {
	if !input.Once {
		return
	}
	if err := workflow.ExecuteActivity(ctx, "ReleaseSession", input.DeviceID).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("release session failed", "device", input.DeviceID, "error", err)
	}
}
