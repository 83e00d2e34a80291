package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/thaitax/internal/domain/tax"
	"github.com/redis/go-redis/v9"
)

const defaultSequenceKeyPrefix = "thaitax:whtc:seq:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisCertificateSequencer hands out certificate numbers with INCR so
// several engine instances share one counter per company, prefix and period.
// An increment is not undone when the issuing transaction rolls back, so
// numbering may skip.
type RedisCertificateSequencer struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisCertificateSequencer creates a sequencer on an existing client
func NewRedisCertificateSequencer(client redis.Cmdable, keyPrefix string) *RedisCertificateSequencer {
	if keyPrefix == "" {
		keyPrefix = defaultSequenceKeyPrefix
	}
	return &RedisCertificateSequencer{client: client, keyPrefix: keyPrefix}
}

var _ tax.CertificateSequencer = (*RedisCertificateSequencer)(nil)

// Next atomically increments the counter for key
func (s *RedisCertificateSequencer) Next(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, s.redisKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance certificate sequence %s: %w", key, err)
	}
	return n, nil
}

// Seed raises the counter for key to at least value. Used when moving a
// sequence from the database backend so Redis never reissues a number.
func (s *RedisCertificateSequencer) Seed(ctx context.Context, key string, value int64) error {
	const script = `local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if cur < tonumber(ARGV[1]) then redis.call('SET', KEYS[1], ARGV[1]) end
return 0`
	if err := s.client.Eval(ctx, script, []string{s.redisKey(key)}, value).Err(); err != nil {
		return fmt.Errorf("failed to seed certificate sequence %s: %w", key, err)
	}
	return nil
}

func (s *RedisCertificateSequencer) redisKey(key string) string {
	return s.keyPrefix + key
}
