package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// LocationStore implements ports.LocationStore. Each device's latest reading
// is a JSON value that expires after ttlSeconds.
type LocationStore struct {
	cache      *Cache
	ttlSeconds int
}

func NewLocationStore(cache *Cache, ttlSeconds int) *LocationStore {
	return &LocationStore{cache: cache, ttlSeconds: ttlSeconds}
}

func locationKey(deviceID string) string {
	return "location:" + deviceID
}

// SaveLatest overwrites the device's reading.
func (s *LocationStore) SaveLatest(ctx context.Context, update *domain.LocationUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, locationKey(update.DeviceID), data, s.ttlSeconds)
}

// Latest returns domain.ErrNoLocation when the device has no live reading.
func (s *LocationStore) Latest(ctx context.Context, deviceID string) (*domain.LocationUpdate, error) {
	data, err := s.cache.Get(ctx, locationKey(deviceID))
	if valkey.IsValkeyNil(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoLocation, deviceID)
	}
	if err != nil {
		return nil, err
	}
	var update domain.LocationUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("decode location %s: %w", deviceID, err)
	}
	return &update, nil
}
