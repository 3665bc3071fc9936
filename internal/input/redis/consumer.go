package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"logsentry/internal/logger"
)

// DefaultMaxRecordBytes bounds one log record popped from the list.
const DefaultMaxRecordBytes = 1 << 20

// Config configures the Redis consumer.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
	// MaxRecordBytes drops larger records. Zero means DefaultMaxRecordBytes.
	MaxRecordBytes int
}

// Consumer pops NDJSON log records from a Redis list.
type Consumer struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
	maxRecord    int
	dropped      atomic.Uint64
}

// NewConsumer creates a Redis consumer for list-based queues. Producers RPUSH
// one JSON record per element.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.MaxRecordBytes <= 0 {
		cfg.MaxRecordBytes = DefaultMaxRecordBytes
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Consumer{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
		maxRecord:    cfg.MaxRecordBytes,
	}, nil
}

// Name identifies the consumer as an event source.
func (c *Consumer) Name() string {
	return "redis:" + c.key
}

// Dropped returns how many records were discarded for exceeding the size limit.
func (c *Consumer) Dropped() uint64 {
	return c.dropped.Load()
}

// Pop pops one record from the list. A nil payload with a nil error means
// the block timeout elapsed or the record was dropped.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.record(res), nil
}

// record extracts the payload from a BLPOP reply of [key, value].
func (c *Consumer) record(res []string) []byte {
	if len(res) < 2 || res[1] == "" {
		return nil
	}
	if len(res[1]) > c.maxRecord {
		n := c.dropped.Add(1)
		logger.Warnf("Dropping %d-byte record from %s (limit %d, dropped %d)", len(res[1]), res[0], c.maxRecord, n)
		return nil
	}
	return []byte(res[1])
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}
