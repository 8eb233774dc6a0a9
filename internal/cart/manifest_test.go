package cart

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeManifestCompactEntry(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`[{"id":"cpu1","n":"CPU X","p":199.99}]`))

	items, err := DecodeManifest(map[string]string{MetadataKey: encoded})
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "cpu1", items[0].ProductID)
	assert.Equal(t, "CPU X", items[0].Name)
	assert.Equal(t, 1, items[0].Quantity)
	assert.True(t, decimal.RequireFromString("199.99").Equal(items[0].UnitPrice))
	assert.Equal(t, int64(19999), TotalMinor(items))
}

func TestDecodeManifestMissing(t *testing.T) {
	_, err := DecodeManifest(map[string]string{"order_ref": "x"})
	assert.ErrorIs(t, err, ErrNoManifest)

	_, err = DecodeManifest(nil)
	assert.ErrorIs(t, err, ErrNoManifest)
}

func TestDecodeManifestMalformed(t *testing.T) {
	_, err := DecodeManifest(map[string]string{MetadataKey: "%%%not-base64"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoManifest)

	bad := base64.StdEncoding.EncodeToString([]byte(`{"id":1}`))
	_, err = DecodeManifest(map[string]string{MetadataKey: bad})
	assert.Error(t, err)
}

func TestManifestRoundTripWithChunks(t *testing.T) {
	var items models.LineItems
	for i := 0; i < 40; i++ {
		items = append(items, models.LineItem{
			ProductID: fmt.Sprintf("part-%d", i),
			Name:      "Component " + strings.Repeat("x", 10),
			Quantity:  1 + i%3,
			UnitPrice: decimal.RequireFromString("12.50"),
		})
	}

	meta, err := EncodeManifest(items)
	require.NoError(t, err)
	require.Contains(t, meta, ChunksKey)
	assert.NotContains(t, meta, MetadataKey)
	for k, v := range meta {
		if k != ChunksKey {
			assert.LessOrEqual(t, len(v), MaxChunkLen)
		}
	}

	decoded, err := DecodeManifest(meta)
	require.NoError(t, err)
	require.Len(t, decoded, len(items))
	assert.Equal(t, items[7].ProductID, decoded[7].ProductID)
	assert.Equal(t, items[7].Quantity, decoded[7].Quantity)
	assert.Equal(t, TotalMinor(items), TotalMinor(decoded))
}

func TestDecodeManifestMissingChunk(t *testing.T) {
	_, err := DecodeManifest(map[string]string{ChunksKey: "2", "cart_0": "abc"})
	assert.Error(t, err)
}

func TestSnapshotLineItems(t *testing.T) {
	s := &Snapshot{Items: []Item{
		{ProductID: "gpu", Name: "GPU", Quantity: 0, UnitPrice: decimal.RequireFromString("500")},
		{ProductID: "fan", Name: "Fan", Quantity: 3, UnitPrice: decimal.RequireFromString("9.99")},
	}}

	items := s.LineItems()
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, int64(52997), s.TotalMinor())

	var empty *Snapshot
	assert.True(t, empty.Empty())
	assert.Nil(t, empty.LineItems())
}
