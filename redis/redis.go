package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"swapnet/config"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"
)

var (
	// ErrConnection means the backend could not be reached or rejected the command
	ErrConnection = errors.New("redis backend error")
	// ErrCorrupt means a stored value could not be decoded
	ErrCorrupt = errors.New("corrupt stored value")
	// ErrInvalidKey is returned for empty keys and ids
	ErrInvalidKey = errors.New("invalid key")
)

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

// Client is the long-lived connection pool shared by the stores.
// All calls are independent; nothing here locks across calls.
type Client struct {
	pool   *redis.Pool
	decode bool
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func NewClient(cfg config.RedisConfig, logger *zap.Logger) *Client {
	opts := append(timeoutDialOptions(), redis.DialDatabase(cfg.DB))
	if cfg.Password != "" {
		opts = append(opts, redis.DialPassword(cfg.Password))
	}
	addr := cfg.Addr()

	pool := &redis.Pool{
		MaxIdle:     5,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr, opts...)
		},
	}
	return newClient(pool, cfg.DecodeResponses, logger)
}

func newClient(pool *redis.Pool, decode bool, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{pool: pool, decode: decode, logger: logger}
}

func (c *Client) do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		c.logger.Error("redis connection failed", zap.String("cmd", cmd), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, cmd, err)
	}
	defer conn.Close()

	reply, err := redis.DoContext(conn, ctx, cmd, args...)
	if err != nil {
		c.logger.Error("redis command failed", zap.String("cmd", cmd), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, cmd, err)
	}
	return reply, nil
}

// fetch returns found=false instead of an error for nil replies
func (c *Client) fetch(ctx context.Context, cmd string, args ...interface{}) ([]byte, bool, error) {
	value, err := redis.Bytes(c.do(ctx, cmd, args...))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if c.decode && !utf8.Valid(value) {
		return nil, false, fmt.Errorf("%w: %s reply is not valid UTF-8", ErrCorrupt, cmd)
	}
	return value, true, nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "PING")
	return err
}

// Close releases the pool. Calling it more than once is safe.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.pool.Close()
	})
	return c.closeErr
}
