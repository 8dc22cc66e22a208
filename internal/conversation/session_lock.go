package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionBusy is returned when a session stays locked until the
// caller's context ends.
var ErrSessionBusy = errors.New("conversation: session is busy")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionLocker serializes requests for one session across processes.
type SessionLocker struct {
	redis *redis.Client
	ttl   time.Duration
	poll  time.Duration
}

func NewSessionLocker(client *redis.Client, ttl time.Duration) *SessionLocker {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SessionLocker{redis: client, ttl: ttl, poll: 50 * time.Millisecond}
}

// Lock blocks until the session is free or ctx ends. The returned func
// releases the lock only if this holder still owns it.
func (l *SessionLocker) Lock(ctx context.Context, sessionKey string) (func(), error) {
	key := lockKey(sessionKey)
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrSessionBusy
			}
			return nil, fmt.Errorf("conversation: acquire session lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrSessionBusy
		case <-ticker.C:
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.redis, []string{key}, token).Err()
	}, nil
}

func lockKey(sessionKey string) string {
	return fmt.Sprintf("conversation_lock:%s", sessionKey)
}
