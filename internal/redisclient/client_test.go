package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires Redis (set TEST_REDIS_ADDR)")
	}
	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "order-seq:20260101", sequenceKey("20260101"))
	assert.Equal(t, "cart:card_intent:pi_1", cartKey(models.GatewayCardIntent, "pi_1"))
}

func TestLuaScriptEmbedded(t *testing.T) {
	assert.Contains(t, nextOrderSeqScript, "INCR")
	assert.Contains(t, nextOrderSeqScript, "EXPIRE")
}

func TestNextOrderSequence(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	day := "test-" + uuid.New().String()

	first, err := c.NextOrderSequence(ctx, day)
	require.NoError(t, err)
	second, err := c.NextOrderSequence(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)

	ttl, err := c.GetClient().TTL(ctx, sequenceKey(day)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestStashAndLoadCart(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	ref := "pi_" + uuid.New().String()

	missing, err := c.LoadCart(ctx, models.GatewayCardIntent, ref)
	require.NoError(t, err)
	assert.Nil(t, missing)

	snapshot := &cart.Snapshot{Items: []cart.Item{
		{ProductID: "cpu1", Name: "CPU X", Quantity: 1, UnitPrice: decimal.RequireFromString("199.99")},
	}}
	require.NoError(t, c.StashCart(ctx, models.GatewayCardIntent, ref, snapshot, time.Minute))

	loaded, err := c.LoadCart(ctx, models.GatewayCardIntent, ref)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(19999), loaded.TotalMinor())
}
