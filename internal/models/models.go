package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayKind identifies the payment integration a confirmation came from
type GatewayKind string

const (
	GatewayCardSession  GatewayKind = "card_session"
	GatewayCardIntent   GatewayKind = "card_intent"
	GatewayWallet       GatewayKind = "wallet"
	GatewayBankTransfer GatewayKind = "bank_transfer"
)

// GatewayKinds lists every supported gateway in extraction priority order
var GatewayKinds = []GatewayKind{
	GatewayCardSession,
	GatewayCardIntent,
	GatewayWallet,
	GatewayBankTransfer,
}

// Valid reports whether k is a known gateway
func (k GatewayKind) Valid() bool {
	switch k {
	case GatewayCardSession, GatewayCardIntent, GatewayWallet, GatewayBankTransfer:
		return true
	}
	return false
}

// ParseGatewayKind converts a raw string into a GatewayKind
func ParseGatewayKind(raw string) (GatewayKind, error) {
	k := GatewayKind(raw)
	if !k.Valid() {
		return "", fmt.Errorf("unknown gateway kind %q", raw)
	}
	return k, nil
}

// PaymentStatus is the normalized provider-side payment state
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// IdempotencyKey uniquely identifies one real-world transaction
type IdempotencyKey struct {
	Gateway   GatewayKind
	Reference string
}

func (k IdempotencyKey) String() string {
	return string(k.Gateway) + ":" + k.Reference
}

// PaymentConfirmation is the gateway-independent result of checking a payment
type PaymentConfirmation struct {
	GatewayKind        GatewayKind       `json:"gateway_kind"`
	ProviderReference  string            `json:"provider_reference"`
	SecondaryReference string            `json:"secondary_reference,omitempty"`
	AmountMinor        int64             `json:"amount_minor"`
	Currency           string            `json:"currency"`
	CustomerEmail      string            `json:"customer_email,omitempty"`
	CustomerID         string            `json:"customer_id,omitempty"`
	Status             PaymentStatus     `json:"status"`
	ShippingAddress    *Address          `json:"shipping_address,omitempty"`
	RawMetadata        map[string]string `json:"raw_metadata,omitempty"`
}

// Key returns the idempotency key for order creation
func (c *PaymentConfirmation) Key() IdempotencyKey {
	return IdempotencyKey{Gateway: c.GatewayKind, Reference: c.ProviderReference}
}

// Order statuses
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

// OrderStatusFor maps a payment status onto the status a new order starts in
func OrderStatusFor(s PaymentStatus) OrderStatus {
	if s == PaymentStatusPaid {
		return OrderStatusPaid
	}
	return OrderStatusPendingPayment
}

// Address is a structured shipping address
type Address struct {
	Name     string `json:"name,omitempty"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	County   string `json:"county,omitempty"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
	Phone    string `json:"phone,omitempty"`
}

// Value stores the address as JSONB
func (a Address) Value() (driver.Value, error) {
	return jsonValue(a)
}

// Scan reads a JSONB address
func (a *Address) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// LineItem is one purchased product line
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineItems is stored as a JSONB array on the order document
type LineItems []LineItem

func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return jsonValue(l)
}

func (l *LineItems) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// Order represents a canonical, reconciled customer order
type Order struct {
	ID                 string      `db:"id" json:"id"`
	OrderNumber        string      `db:"order_number" json:"order_number"`
	GatewayKind        GatewayKind `db:"gateway_kind" json:"gateway_kind"`
	ProviderReference  string      `db:"provider_reference" json:"provider_reference"`
	SecondaryReference string      `db:"secondary_reference" json:"secondary_reference,omitempty"`
	Status             OrderStatus `db:"status" json:"status"`
	CustomerID         string      `db:"customer_id" json:"customer_id"`
	CustomerEmail      string      `db:"customer_email" json:"customer_email,omitempty"`
	LineItems          LineItems   `db:"line_items" json:"line_items"`
	ShippingAddress    *Address    `db:"shipping_address" json:"shipping_address,omitempty"`
	TotalMinor         int64       `db:"total_minor" json:"total_minor"`
	Currency           string      `db:"currency" json:"currency"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

// Key returns the idempotency key the order was created under
func (o *Order) Key() IdempotencyKey {
	return IdempotencyKey{Gateway: o.GatewayKind, Reference: o.ProviderReference}
}

// Recipient roles for notifications
type RecipientRole string

const (
	RecipientCustomer RecipientRole = "customer"
	RecipientBusiness RecipientRole = "business"
)

// NotificationJob tracks delivery of one email for one order
type NotificationJob struct {
	OrderID       string        `json:"order_id"`
	RecipientRole RecipientRole `json:"recipient_role"`
	Recipient     string        `json:"recipient"`
	Template      string        `json:"template"`
	Attempt       int           `json:"attempt"`
	LastError     string        `json:"last_error,omitempty"`
}

// jsonValue encodes v as a JSON string; lib/pq would send []byte as bytea
func jsonValue(v interface{}) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
