package cart

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"

	"github.com/shopspring/decimal"
)

// Provider metadata keys for the embedded manifest
const (
	MetadataKey   = "cart"
	ChunksKey     = "cart_chunks"
	MaxChunkLen   = 500
	chunkKeyFmt   = "cart_%d"
	maxChunkCount = 50
)

// ErrNoManifest is returned when metadata carries no cart manifest
var ErrNoManifest = errors.New("no cart manifest in metadata")

type manifestEntry struct {
	ID    string      `json:"id"`
	Name  string      `json:"n"`
	Price json.Number `json:"p"`
	Qty   int         `json:"q,omitempty"`
}

// EncodeManifest produces the provider metadata entries for items, splitting
// the base64 payload into numbered chunks when it exceeds MaxChunkLen.
func EncodeManifest(items models.LineItems) (map[string]string, error) {
	entries := make([]manifestEntry, 0, len(items))
	for _, it := range items {
		e := manifestEntry{
			ID:    it.ProductID,
			Name:  it.Name,
			Price: json.Number(it.UnitPrice.String()),
		}
		if it.Quantity > 1 {
			e.Qty = it.Quantity
		}
		entries = append(entries, e)
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	if len(encoded) <= MaxChunkLen {
		return map[string]string{MetadataKey: encoded}, nil
	}

	meta := make(map[string]string)
	n := 0
	for start := 0; start < len(encoded); start += MaxChunkLen {
		end := start + MaxChunkLen
		if end > len(encoded) {
			end = len(encoded)
		}
		meta[fmt.Sprintf(chunkKeyFmt, n)] = encoded[start:end]
		n++
	}
	meta[ChunksKey] = strconv.Itoa(n)
	return meta, nil
}

// DecodeManifest reads the manifest embedded in provider metadata
func DecodeManifest(meta map[string]string) (models.LineItems, error) {
	encoded, err := joinChunks(meta)
	if err != nil {
		return nil, err
	}

	raw, err := decodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	var entries []manifestEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNoManifest
	}

	items := make(models.LineItems, 0, len(entries))
	for i, e := range entries {
		price, err := decimal.NewFromString(e.Price.String())
		if err != nil {
			return nil, fmt.Errorf("invalid price for manifest entry %d: %w", i, err)
		}
		qty := e.Qty
		if qty < 1 {
			qty = 1
		}
		items = append(items, models.LineItem{
			ProductID: e.ID,
			Name:      e.Name,
			Quantity:  qty,
			UnitPrice: price,
		})
	}
	return items, nil
}

func joinChunks(meta map[string]string) (string, error) {
	if v := meta[MetadataKey]; v != "" {
		return v, nil
	}

	rawCount, ok := meta[ChunksKey]
	if !ok {
		return "", ErrNoManifest
	}
	n, err := strconv.Atoi(rawCount)
	if err != nil || n < 1 || n > maxChunkCount {
		return "", fmt.Errorf("invalid manifest chunk count %q", rawCount)
	}

	var joined string
	for i := 0; i < n; i++ {
		part, ok := meta[fmt.Sprintf(chunkKeyFmt, i)]
		if !ok {
			return "", fmt.Errorf("manifest chunk %d of %d missing", i, n)
		}
		joined += part
	}
	return joined, nil
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(s); err == nil {
			return raw, nil
		}
	}
	return nil, errors.New("not valid base64")
}
