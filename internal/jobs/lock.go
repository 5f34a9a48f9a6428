package jobs

import (
	"context"
	"time"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const purgeLockKey = "purge:run-lock"

// releaseScript deletes the lease only while it still belongs to the given
// run. Compare and delete must be one atomic step: a lease that expired and
// was re-taken by another run must not be deleted from under it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock serializes purge runs across process instances with a SETNX
// lease. The TTL bounds how long a crashed holder can block the next run.
type RedisRunLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRunLock creates a new RedisRunLock
func NewRedisRunLock(client *redis.Client, ttl time.Duration) *RedisRunLock {
	return &RedisRunLock{client: client, ttl: ttl}
}

func (l *RedisRunLock) TryAcquire(ctx context.Context, runID string) (func(), error) {
	ok, err := l.client.SetNX(ctx, purgeLockKey, runID, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrPurgeRunning
	}

	release := func() {
		err := releaseScript.Run(context.Background(), l.client, []string{purgeLockKey}, runID).Err()
		if err != nil && err != redis.Nil {
			log := logger.WithRunID(runID)
			log.Warn().Err(err).Msg("purge lock release failed")
		}
	}
	return release, nil
}
