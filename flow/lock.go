package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mstgnz/payflow/apperr"
)

// maxQueueDepth bounds how many callers may be waiting on one intent's lock
// at once; the (maxQueueDepth+1)th caller fails fast with KindResourceBusy
// instead of queueing indefinitely, per the spec's per-intent advisory lock
// requirement.
const maxQueueDepth = 8

const lockTTL = 10 * time.Second

// IntentLock serializes concurrent operations against the same PaymentIntent
// using a Redis SET NX PX advisory lock, the same primitive
// token.Cache.getRemote/setRemote builds on but applied to mutual exclusion
// instead of caching.
type IntentLock struct {
	redis *redis.Client
	depth map[string]int
}

// NewIntentLock returns a lock manager backed by redisClient.
func NewIntentLock(redisClient *redis.Client) *IntentLock {
	return &IntentLock{redis: redisClient, depth: make(map[string]int)}
}

// Acquire blocks (with a short poll loop) until it holds the advisory lock
// for intentID, or returns KindResourceBusy once maxQueueDepth callers are
// already waiting. The returned release func must be deferred by the
// caller.
func (l *IntentLock) Acquire(ctx context.Context, intentID string) (release func(), err error) {
	if l.depth[intentID] >= maxQueueDepth {
		return nil, apperr.New(apperr.KindResourceBusy, "too many concurrent operations on this intent").With("intent_id", intentID)
	}
	l.depth[intentID]++
	defer func() { l.depth[intentID]-- }()

	key := lockKey(intentID)
	token := uuid.NewString()
	deadline := time.Now().Add(lockTTL * 3)

	for {
		ok, err := l.redis.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConnectorTransient, err, "intent lock backend unavailable").With("intent_id", intentID)
		}
		if ok {
			return func() { l.release(context.Background(), key, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, apperr.New(apperr.KindResourceBusy, "timed out waiting for intent lock").With("intent_id", intentID)
		}
		select {
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.KindTimeout, ctx.Err(), "context cancelled while waiting for intent lock")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// release deletes the lock key only if it still holds our token, so a lock
// whose TTL expired and was re-acquired by another caller is never deleted
// out from under them.
func (l *IntentLock) release(ctx context.Context, key, token string) {
	const script = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`
	l.redis.Eval(ctx, script, []string{key}, token)
}

func lockKey(intentID string) string {
	return fmt.Sprintf("payflow:lock:intent:%s", intentID)
}
