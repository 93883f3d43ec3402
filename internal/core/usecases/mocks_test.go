package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// --- Mock PointRepository ---

type mockPointRepo struct {
	listFn       func(ctx context.Context) ([]domain.PointOfInterest, error)
	listWithinFn func(ctx context.Context, b []domain.Bounds) ([]domain.PointOfInterest, error)
	getByNameFn  func(ctx context.Context, name string) (*domain.PointOfInterest, error)
	upserted     []domain.PointOfInterest
	deleted      []string
}

func (m *mockPointRepo) List(ctx context.Context) ([]domain.PointOfInterest, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockPointRepo) ListWithin(ctx context.Context, b []domain.Bounds) ([]domain.PointOfInterest, error) {
	if m.listWithinFn != nil {
		return m.listWithinFn(ctx, b)
	}
	return nil, nil
}

func (m *mockPointRepo) GetByName(ctx context.Context, name string) (*domain.PointOfInterest, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(ctx, name)
	}
	return nil, domain.ErrPointNotFound
}

func (m *mockPointRepo) Upsert(ctx context.Context, p *domain.PointOfInterest) error {
	m.upserted = append(m.upserted, *p)
	return nil
}

func (m *mockPointRepo) Delete(ctx context.Context, name string) error {
	m.deleted = append(m.deleted, name)
	return nil
}

// --- Mock AlertRepository ---

type mockAlertRepo struct {
	inserted  []domain.AlertEvent
	insertErr error
}

func (m *mockAlertRepo) InsertBatch(ctx context.Context, events []domain.AlertEvent) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, events...)
	return nil
}

func (m *mockAlertRepo) ListRecent(ctx context.Context, deviceID string, limit int) ([]domain.AlertEvent, error) {
	var out []domain.AlertEvent
	for i := len(m.inserted) - 1; i >= 0 && len(out) < limit; i-- {
		if deviceID == "" || m.inserted[i].DeviceID == deviceID {
			out = append(out, m.inserted[i])
		}
	}
	return out, nil
}

// --- Mock LocationStore ---

type mockLocationStore struct {
	latest map[string]domain.LocationUpdate
}

func (m *mockLocationStore) SaveLatest(ctx context.Context, u *domain.LocationUpdate) error {
	if m.latest == nil {
		m.latest = make(map[string]domain.LocationUpdate)
	}
	m.latest[u.DeviceID] = *u
	return nil
}

func (m *mockLocationStore) Latest(ctx context.Context, deviceID string) (*domain.LocationUpdate, error) {
	u, ok := m.latest[deviceID]
	if !ok {
		return nil, domain.ErrNoLocation
	}
	return &u, nil
}

// --- Mock SessionLatch ---

type mockLatch struct {
	held       map[string]bool
	released   []string
	err        error
	releaseErr error
}

func (m *mockLatch) Acquire(ctx context.Context, deviceID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.held == nil {
		m.held = make(map[string]bool)
	}
	if m.held[deviceID] {
		return false, nil
	}
	m.held[deviceID] = true
	return true, nil
}

func (m *mockLatch) Release(ctx context.Context, deviceID string) error {
	m.released = append(m.released, deviceID)
	if m.releaseErr != nil {
		return m.releaseErr
	}
	delete(m.held, deviceID)
	return nil
}

// --- Mock Announcer ---

type mockAnnouncer struct {
	announced []domain.Announcement
	err       error
}

func (m *mockAnnouncer) Announce(ctx context.Context, ann *domain.Announcement) error {
	if m.err != nil {
		return m.err
	}
	m.announced = append(m.announced, *ann)
	return nil
}

// --- In-memory CacheService ---

var errCacheMiss = errors.New("cache miss")

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) SetNX(ctx context.Context, key string, value []byte, ttl int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
