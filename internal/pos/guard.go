package pos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CheckoutGuard serialises checkouts per owner. Acquire fails with
// ErrCheckoutInProgress while another checkout for the same owner runs.
type CheckoutGuard interface {
	Acquire(ctx context.Context, owner string) (release func(), err error)
}

// LocalGuard is an in-process CheckoutGuard.
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalGuard constructs a LocalGuard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]struct{})}
}

// Acquire implements CheckoutGuard.
func (g *LocalGuard) Acquire(_ context.Context, owner string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[owner]; busy {
		return nil, ErrCheckoutInProgress
	}
	g.held[owner] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, owner)
			g.mu.Unlock()
		})
	}, nil
}

const checkoutLockPrefix = "pos:checkout:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard holds checkout locks in Redis so that concurrent requests from
// the same session across server instances cannot submit twice.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard constructs a RedisGuard. ttl must outlive the backend timeout.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisGuard{client: client, ttl: ttl}
}

// Acquire implements CheckoutGuard.
func (g *RedisGuard) Acquire(ctx context.Context, owner string) (func(), error) {
	if owner == "" {
		return nil, errors.New("pos: checkout guard requires an owner")
	}
	key := checkoutLockPrefix + owner
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("pos: acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, ErrCheckoutInProgress
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// Released with a fresh context so a cancelled request still frees the lock.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err()
		})
	}, nil
}
