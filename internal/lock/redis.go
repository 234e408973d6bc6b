package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// release and extend only touch the key while it still carries our token
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Redis is a lease lock shared by every process pointing at the same redis.
// The lease is renewed while held, so it only lapses if the holder dies.
type Redis struct {
	client *redis.Client
	prefix string
	lease  time.Duration
	poll   time.Duration
	log    *slog.Logger
}

func NewRedis(client *redis.Client, lease time.Duration, log *slog.Logger) *Redis {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	return &Redis{
		client: client,
		prefix: "mealplanner:lock:",
		lease:  lease,
		poll:   50 * time.Millisecond,
		log:    log,
	}
}

func (r *Redis) Backend() string { return "redis" }

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, k, token, r.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(k, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// release must not depend on the caller's (possibly cancelled) context
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := releaseScript.Run(rctx, r.client, []string{k}, token).Err(); err != nil {
				r.log.Error("lock release failed", "key", key, "err", err)
			}
		})
	}, nil
}

func (r *Redis) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	t := time.NewTicker(r.lease / 3)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			n, err := extendScript.Run(ctx, r.client, []string{key}, token, r.lease.Milliseconds()).Int()
			cancel()

			if err != nil {
				r.log.Warn("lock lease renewal failed", "key", key, "err", err)
				continue
			}
			if n == 0 {
				r.log.Error("lock lease lost", "key", key)
				return
			}
		}
	}
}
