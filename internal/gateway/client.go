package gateway

import (
	"context"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
)

// CheckoutSession is the provider view of a hosted card checkout
type CheckoutSession struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	PaymentIntent string            `json:"payment_intent"`
	Shipping      *models.Address   `json:"shipping,omitempty"`
	Metadata      map[string]string `json:"metadata"`
}

// PaymentIntent is the provider view of an embedded card payment
type PaymentIntent struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	ReceiptEmail    string            `json:"receipt_email"`
	CheckoutSession string            `json:"checkout_session,omitempty"`
	Shipping        *models.Address   `json:"shipping,omitempty"`
	Metadata        map[string]string `json:"metadata"`
}

// WalletOrder is the provider view of a digital-wallet order
type WalletOrder struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	CaptureID  string          `json:"capture_id"`
	Amount     int64           `json:"amount"`
	Currency   string          `json:"currency"`
	PayerEmail string          `json:"payer_email"`
	Shipping   *models.Address `json:"shipping,omitempty"`
	CustomID   string          `json:"custom_id,omitempty"`
}

// CardClient looks up card payments
type CardClient interface {
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
}

// WalletClient captures and reads wallet orders
type WalletClient interface {
	CaptureOrder(ctx context.Context, id string) (*WalletOrder, error)
	GetOrder(ctx context.Context, id string) (*WalletOrder, error)
}

// BankTransferSource reads orders placed as awaiting bank transfer
type BankTransferSource interface {
	FindByIdempotencyKey(ctx context.Context, key models.IdempotencyKey) (*models.Order, error)
}
