package historize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the target Redis-compatible key/value store,
// grounded on yatesdr-warlogix/valkey.Publisher's config fields.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	Factory        string
	KeyTTL         time.Duration
	PublishChanges bool
}

// redisMessage is the JSON value stored per key and published per change.
type redisMessage struct {
	Factory   string    `json:"factory"`
	PLC       string    `json:"plc"`
	Tag       string    `json:"tag"`
	Value     any       `json:"value"`
	Type      string    `json:"type,omitempty"`
	Writable  bool      `json:"writable"`
	Timestamp time.Time `json:"timestamp"`
}

// RedisSink writes each Record to a `factory:plc:tags:tag` key and
// optionally fans it out over Pub/Sub, grounded on
// yatesdr-warlogix/valkey.Publisher.Publish.
type RedisSink struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisSink dials addr and verifies connectivity with a Ping before
// returning, matching yatesdr-warlogix/valkey.Publisher.Start.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("historize: connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisSink{cfg: cfg, client: client}, nil
}

func joinKey(segments ...string) string {
	return strings.Join(segments, ":")
}

// Publish sets the record's key and, if configured, publishes it to both a
// per-PLC and an all-changes channel.
func (s *RedisSink) Publish(ctx context.Context, rec Record) error {
	key := joinKey(s.cfg.Factory, rec.PLC, "tags", rec.Tag)
	msg := redisMessage{
		Factory: s.cfg.Factory, PLC: rec.PLC, Tag: rec.Tag,
		Value: rec.Value, Type: rec.Type, Writable: rec.Writable, Timestamp: rec.Timestamp,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("historize: marshal redis record: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.cfg.KeyTTL).Err(); err != nil {
		return fmt.Errorf("historize: redis SET %s: %w", key, err)
	}
	if s.cfg.PublishChanges {
		s.client.Publish(ctx, joinKey(s.cfg.Factory, rec.PLC, "changes"), data)
		s.client.Publish(ctx, joinKey(s.cfg.Factory, "_all", "changes"), data)
	}
	return nil
}

// Close closes the underlying client connection pool.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
