package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cartKeyPrefix = "pos:cart:"

// saveScript writes the cart only when the stored revision still matches the
// one the caller loaded. It returns the new revision, or -1 on a mismatch.
var saveScript = redis.NewScript(`
local current = tonumber(redis.call("HGET", KEYS[1], "rev") or "0")
if current ~= tonumber(ARGV[1]) then
	return -1
end
local bumped = current + 1
redis.call("HSET", KEYS[1], "rev", bumped, "cart", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return bumped
`)

// Store persists controller snapshots per session. Each save bumps a
// revision and is refused when the cart changed since it was loaded.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store. Snapshots expire after ttl of inactivity.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Load returns the stored snapshot and its revision. A missing cart is an
// empty snapshot at revision 0.
func (s *Store) Load(ctx context.Context, sessionID string) (Snapshot, int64, error) {
	empty := Snapshot{Phase: PhaseEmpty, Lines: []CartLine{}}
	if sessionID == "" {
		return empty, 0, nil
	}
	fields, err := s.client.HMGet(ctx, cartKeyPrefix+sessionID, "rev", "cart").Result()
	if err != nil {
		return empty, 0, fmt.Errorf("pos: load cart: %w", err)
	}
	var rev int64
	if raw, ok := fields[0].(string); ok {
		if rev, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return empty, 0, fmt.Errorf("pos: decode cart revision: %w", err)
		}
	}
	raw, ok := fields[1].(string)
	if !ok {
		return empty, rev, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return empty, rev, fmt.Errorf("pos: decode cart: %w", err)
	}
	return snap, rev, nil
}

// Save writes snap if the stored revision is still expected and returns the
// new revision. A mismatch yields ErrStaleCart.
func (s *Store) Save(ctx context.Context, sessionID string, expected int64, snap Snapshot) (int64, error) {
	if sessionID == "" {
		return 0, errors.New("pos: session id required")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return 0, err
	}
	next, err := saveScript.Run(ctx, s.client, []string{cartKeyPrefix + sessionID}, expected, raw, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("pos: save cart: %w", err)
	}
	if next < 0 {
		return 0, ErrStaleCart
	}
	return next, nil
}

// Delete discards the stored cart.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, cartKeyPrefix+sessionID).Err()
}
