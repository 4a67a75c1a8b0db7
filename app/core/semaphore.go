package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var acquireScript = redis.NewScript(`
	local key = KEYS[1]
	local max_permits = tonumber(ARGV[1])
	local timeout = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')

	if current < max_permits then
		redis.call('INCR', key)
		redis.call('EXPIRE', key, timeout)
		return 1
	end
	return 0
`)

var releaseScript = redis.NewScript(`
	local key = KEYS[1]
	local current = tonumber(redis.call('GET', key) or '0')

	if current > 0 then
		redis.call('DECR', key)
		return 1
	end
	return 0
`)

// DistributedSemaphore is a counting semaphore stored in redis. The key
// expires after timeout so crashed holders cannot leak permits forever.
type DistributedSemaphore struct {
	redis      redis.UniversalClient
	key        string
	maxPermits int
	timeout    time.Duration
}

func NewDistributedSemaphore(redis redis.UniversalClient, key string, maxPermits int, timeout time.Duration) *DistributedSemaphore {
	return &DistributedSemaphore{
		redis:      redis,
		key:        key,
		maxPermits: maxPermits,
		timeout:    timeout,
	}
}

func (s *DistributedSemaphore) TryAcquire(ctx context.Context) bool {
	result, err := acquireScript.Run(ctx, s.redis, []string{s.key}, s.maxPermits, int(s.timeout.Seconds())).Int()
	if err != nil {
		return false
	}
	return result == 1
}

func (s *DistributedSemaphore) Release(ctx context.Context) {
	releaseScript.Run(ctx, s.redis, []string{s.key})
}

func (s *DistributedSemaphore) GetCurrent(ctx context.Context) int {
	result, err := s.redis.Get(ctx, s.key).Int()
	if err != nil {
		return 0
	}
	return result
}

// SemaphoreManager hands out the per-user production semaphores.
type SemaphoreManager struct {
	redis     redis.UniversalClient
	prefix    string
	maxVideos int
}

func NewSemaphoreManager(cli redis.UniversalClient, prefix string, maxVideos int) *SemaphoreManager {
	if maxVideos <= 0 {
		maxVideos = 2
	}
	return &SemaphoreManager{redis: cli, prefix: prefix, maxVideos: maxVideos}
}

// Videos caps concurrent background video productions of one user.
func (m *SemaphoreManager) Videos(userID string) *DistributedSemaphore {
	return NewDistributedSemaphore(m.redis, fmt.Sprintf("%s:semaphore:video:%s", m.prefix, userID), m.maxVideos, time.Hour)
}
