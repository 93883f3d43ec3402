package http

import (
	"context"

	"github.com/nats-io/nats.go"
	natsadapter "github.com/samirrijal/schoolmaps/internal/adapters/nats"
	"github.com/samirrijal/schoolmaps/internal/adapters/postgres"
	"github.com/samirrijal/schoolmaps/internal/adapters/valkey"
	"github.com/samirrijal/schoolmaps/internal/core/domain"
	"github.com/samirrijal/schoolmaps/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Points    *usecases.PointService
	Proximity *usecases.ProximityService
	NATS      *nats.Conn
	Subjects  natsadapter.Subjects
	DB        *postgres.DB
	Cache     *valkey.Cache
	Queue     LocationQueue
}

// LocationQueue hands readings to the tracker instead of evaluating them in
// the request.
type LocationQueue interface {
	PublishLocation(ctx context.Context, update *domain.LocationUpdate) error
}
