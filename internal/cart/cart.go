// Package cart holds the client-side cart snapshot and the compact cart
// manifest that checkout embeds into provider metadata.
package cart

import (
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"

	"github.com/shopspring/decimal"
)

// Item is one cart line as the browser saw it at checkout
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Snapshot is the cart state captured at checkout time
type Snapshot struct {
	Items           []Item          `json:"items"`
	ShippingAddress *models.Address `json:"shipping_address,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	CapturedAt      time.Time       `json:"captured_at,omitempty"`
}

// Empty reports whether the snapshot carries no purchasable items
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Items) == 0
}

// LineItems converts the snapshot into order line items
func (s *Snapshot) LineItems() models.LineItems {
	if s.Empty() {
		return nil
	}
	items := make(models.LineItems, 0, len(s.Items))
	for _, it := range s.Items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, models.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  qty,
			UnitPrice: it.UnitPrice,
		})
	}
	return items
}

// TotalMinor sums the snapshot in minor units
func (s *Snapshot) TotalMinor() int64 {
	return TotalMinor(s.LineItems())
}

// TotalMinor sums line items in minor units
func TotalMinor(items models.LineItems) int64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return models.MinorUnits(total)
}
