package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 5 * time.Second

	// sequencePrefix namespaces the per-device counters.
	sequencePrefix = "radiogw:seq:"
)

// observeScript stores the new counter with a TTL and returns 1 when it
// differs from the stored one. GET and SET run atomically on the server so
// two gateways cannot both accept the same advertisement.
var observeScript = goredis.NewScript(`
local prev = redis.call('GET', KEYS[1])
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
if prev == ARGV[1] then
	return 0
end
return 1
`)

// Client wraps a go-redis client.
type Client struct {
	rdb *goredis.Client

	closed bool
	mu     sync.RWMutex
}

// Connect creates the client and verifies the server answers PING.
//
// Parameters:
//   - ctx: Context bounding the initial ping
//   - cfg: Redis section of config.yaml
//
// Returns:
//   - *Client: Connected client
//   - error: ErrDisabled when redis.enabled is false, ErrConnectionFailed
//     when the server cannot be reached
func Connect(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Client{rdb: rdb}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rdb == nil || c.closed {
		return nil
	}
	c.closed = true
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("closing redis: %w", err)
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.isOpen() {
		return ErrNotConnected
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// ObserveSequence records seq for key and reports whether it differs from
// the previously stored value. The first observation of a key is new. The
// stored value expires after ttl, after which the next observation is new
// again.
func (c *Client) ObserveSequence(ctx context.Context, key string, seq uint32, ttl time.Duration) (bool, error) {
	if !c.isOpen() {
		return false, ErrNotConnected
	}

	ms := ttl.Milliseconds()
	if ms <= 0 {
		ms = 1
	}

	fresh, err := observeScript.Run(ctx, c.rdb,
		[]string{sequencePrefix + key},
		strconv.FormatUint(uint64(seq), 10),
		ms,
	).Int()
	if err != nil {
		return false, fmt.Errorf("observing sequence for %s: %w", key, err)
	}
	return fresh == 1, nil
}

// ForgetSequence drops the stored counter for key.
func (c *Client) ForgetSequence(ctx context.Context, key string) error {
	if !c.isOpen() {
		return ErrNotConnected
	}
	if err := c.rdb.Del(ctx, sequencePrefix+key).Err(); err != nil {
		return fmt.Errorf("forgetting sequence for %s: %w", key, err)
	}
	return nil
}

func (c *Client) isOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rdb != nil && !c.closed
}
