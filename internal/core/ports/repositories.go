package ports

import (
	"context"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// PointRepository persists points of interest.
type PointRepository interface {
	// List returns every point in insertion order.
	List(ctx context.Context) ([]domain.PointOfInterest, error)
	// ListWithin returns points inside any of the boxes, in insertion order.
	ListWithin(ctx context.Context, bounds []domain.Bounds) ([]domain.PointOfInterest, error)
	GetByName(ctx context.Context, name string) (*domain.PointOfInterest, error)
	Upsert(ctx context.Context, point *domain.PointOfInterest) error
	Delete(ctx context.Context, name string) error
}

// AlertRepository persists emitted alerts.
type AlertRepository interface {
	InsertBatch(ctx context.Context, events []domain.AlertEvent) error
	ListRecent(ctx context.Context, deviceID string, limit int) ([]domain.AlertEvent, error)
}
