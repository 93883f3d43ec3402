package valkey

import (
	"context"
	"strconv"
	"time"
)

// SessionLatch implements ports.SessionLatch with SET NX EX: the first
// Acquire for a device wins until the key expires or is released.
type SessionLatch struct {
	cache      *Cache
	ttlSeconds int
}

func NewSessionLatch(cache *Cache, ttlSeconds int) *SessionLatch {
	return &SessionLatch{cache: cache, ttlSeconds: ttlSeconds}
}

func sessionKey(deviceID string) string {
	return "session:" + deviceID
}

func (l *SessionLatch) Acquire(ctx context.Context, deviceID string) (bool, error) {
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	return l.cache.SetNX(ctx, sessionKey(deviceID), []byte(stamp), l.ttlSeconds)
}

func (l *SessionLatch) Release(ctx context.Context, deviceID string) error {
	return l.cache.Delete(ctx, sessionKey(deviceID))
}
