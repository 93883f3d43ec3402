package ports

import (
	"context"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// Announcer hands a rendered announcement to a speech sink.
type Announcer interface {
	Announce(ctx context.Context, ann *domain.Announcement) error
}

// LocationSubscriber delivers location readings from devices.
type LocationSubscriber interface {
	SubscribeLocations(ctx context.Context, handler func(ctx context.Context, update *domain.LocationUpdate) error) error
}

// LocationStore keeps the latest reading per device.
type LocationStore interface {
	SaveLatest(ctx context.Context, update *domain.LocationUpdate) error
	Latest(ctx context.Context, deviceID string) (*domain.LocationUpdate, error)
}

// SessionLatch lets an action fire once per device session.
type SessionLatch interface {
	// Acquire returns true the first time it is called for deviceID
	// within the session TTL.
	Acquire(ctx context.Context, deviceID string) (bool, error)
	Release(ctx context.Context, deviceID string) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	SetNX(ctx context.Context, key string, value []byte, ttlSeconds int) (bool, error)
	Delete(ctx context.Context, key string) error
}
