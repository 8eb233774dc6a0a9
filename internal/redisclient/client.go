package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/next_order_seq.lua
var nextOrderSeqScript string

// sequence keys outlive their day so late writers near midnight still count up
const sequenceTTL = 48 * time.Hour

type Client struct {
	rdb       *redis.Client
	seqScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:       rdb,
		seqScript: redis.NewScript(nextOrderSeqScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// NextOrderSequence atomically increments the order counter for day (YYYYMMDD)
func (c *Client) NextOrderSequence(ctx context.Context, day string) (int64, error) {
	result, err := c.seqScript.Run(ctx, c.rdb, []string{sequenceKey(day)}, int(sequenceTTL.Seconds())).Result()
	if err != nil {
		return 0, fmt.Errorf("order sequence script failed: %w", err)
	}

	n, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type %T", result)
	}
	return n, nil
}

// StashCart stores the client cart snapshot for a pending payment reference
func (c *Client) StashCart(ctx context.Context, kind models.GatewayKind, reference string, snapshot *cart.Snapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}
	return c.rdb.Set(ctx, cartKey(kind, reference), payload, ttl).Err()
}

// LoadCart returns the stashed snapshot, or nil when none exists
func (c *Client) LoadCart(ctx context.Context, kind models.GatewayKind, reference string) (*cart.Snapshot, error) {
	payload, err := c.rdb.Get(ctx, cartKey(kind, reference)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snapshot cart.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart snapshot: %w", err)
	}
	return &snapshot, nil
}

func sequenceKey(day string) string {
	return fmt.Sprintf("order-seq:%s", day)
}

func cartKey(kind models.GatewayKind, reference string) string {
	return fmt.Sprintf("cart:%s:%s", kind, reference)
}
