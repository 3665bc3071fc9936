package alertredis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"logsentry/pkg/models"
)

// Config configures Redis access for alert persistence.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL bounds how long an alert document is kept. Zero keeps it forever.
	TTL time.Duration
}

// Writer stores alerts in Redis:
//
//	<prefix>:alert:<id>   JSON document
//	<prefix>:index        sorted set of ids scored by creation time
//	<prefix>:rule_counts  hash of alert counts per rule id
type Writer struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewWriter constructs a Redis-backed alert writer.
func NewWriter(cfg Config) (*Writer, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "logsentry"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis alert store: %w", err)
	}

	return &Writer{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix), ttl: cfg.TTL}, nil
}

// WriteAlerts stores a batch in one pipeline. Rewriting an id replaces the document.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	ctx := context.Background()
	pipe := w.client.Pipeline()

	for _, alert := range alerts {
		if alert == nil || alert.ID == "" {
			continue
		}
		doc, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("marshal alert %s: %w", alert.ID, err)
		}
		pipe.Set(ctx, w.alertKey(alert.ID), doc, w.ttl)
		pipe.ZAdd(ctx, w.indexKey(), redis.Z{Score: float64(alert.CreatedAt.Unix()), Member: alert.ID})
		pipe.HIncrBy(ctx, w.ruleCountsKey(), ruleOf(alert), 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update alert redis keys: %w", err)
	}
	return nil
}

// Close closes Redis resources.
func (w *Writer) Close() error {
	if w == nil || w.client == nil {
		return nil
	}
	return w.client.Close()
}

func (w *Writer) alertKey(id string) string {
	return w.prefix + ":alert:" + id
}

func (w *Writer) indexKey() string {
	return w.prefix + ":index"
}

func (w *Writer) ruleCountsKey() string {
	return w.prefix + ":rule_counts"
}

func ruleOf(alert *models.Alert) string {
	if alert.RuleID != "" {
		return alert.RuleID
	}
	if i := strings.IndexByte(alert.ID, ':'); i > 0 {
		return alert.ID[:i]
	}
	return "unknown"
}
