package keydb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/status-im/promptctl/store"
)

// Ensure RedisKeyDbClient implements store.KeyDbClient
var _ store.KeyDbClient = (*RedisKeyDbClient)(nil)

// RedisKeyDbClient wraps redis.Client to implement KeyDbClient interface
type RedisKeyDbClient struct {
	client *redis.Client
	logger store.Logger
}

// ClientOption is a functional option for configuring RedisKeyDbClient
type ClientOption func(*RedisKeyDbClient)

// WithClientLogger sets the logger for RedisKeyDbClient
func WithClientLogger(logger store.Logger) ClientOption {
	return func(r *RedisKeyDbClient) {
		r.logger = logger
	}
}

// ParseOptions converts a redis:// URL and connection settings into redis.Options
func ParseOptions(cfg *store.KeyDBConfig) (*redis.Options, error) {
	cfg.ApplyDefaults()

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse KeyDB URL: %w", err)
	}
	if parsedURL.Scheme != "redis" && parsedURL.Scheme != "keydb" {
		return nil, fmt.Errorf("unsupported KeyDB URL scheme %q", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6379"
	}

	redisOpts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		DialTimeout:  cfg.Connection.ConnectTimeout,
		ReadTimeout:  cfg.Connection.ReadTimeout,
		WriteTimeout: cfg.Connection.SendTimeout,
		PoolSize:     cfg.Keepalive.PoolSize,
		IdleTimeout:  cfg.Keepalive.MaxIdleTimeout,
	}

	if parsedURL.User != nil {
		if password, ok := parsedURL.User.Password(); ok {
			redisOpts.Password = password
		}
	}

	if parsedURL.Path != "" && len(parsedURL.Path) > 1 {
		db, err := strconv.Atoi(parsedURL.Path[1:])
		if err != nil {
			return nil, fmt.Errorf("invalid KeyDB database %q: %w", parsedURL.Path[1:], err)
		}
		redisOpts.DB = db
	}

	return redisOpts, nil
}

// NewRedisKeyDbClient creates a new RedisKeyDbClient instance and verifies the connection
func NewRedisKeyDbClient(cfg *store.KeyDBConfig, opts ...ClientOption) (*RedisKeyDbClient, error) {
	redisOpts, err := ParseOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(redisOpts)

	r := &RedisKeyDbClient{
		client: client,
		logger: store.NoopLogger{},
	}

	for _, opt := range opts {
		opt(r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Connection.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to KeyDB at %s: %w", redisOpts.Addr, err)
	}

	r.logger.Debug("Connected to KeyDB",
		"address", redisOpts.Addr,
		"db", redisOpts.DB,
		"connect_timeout", cfg.Connection.ConnectTimeout)

	return r, nil
}

func (r *RedisKeyDbClient) Get(ctx context.Context, key string) *redis.StringCmd {
	return r.client.Get(ctx, key)
}

func (r *RedisKeyDbClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return r.client.Set(ctx, key, value, expiration)
}

func (r *RedisKeyDbClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return r.client.Del(ctx, keys...)
}

func (r *RedisKeyDbClient) Ping(ctx context.Context) *redis.StatusCmd {
	return r.client.Ping(ctx)
}

func (r *RedisKeyDbClient) Close() error {
	return r.client.Close()
}
