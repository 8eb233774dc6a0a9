package gateway

import (
	"context"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
)

// BankTransfer synthesizes a confirmation without calling any provider. The
// payment stays pending until an administrator marks the order paid.
func (n *Normalizer) BankTransfer(ctx context.Context, reference string, snapshot *cart.Snapshot) (*models.PaymentConfirmation, error) {
	kind := models.GatewayBankTransfer
	key := models.IdempotencyKey{Gateway: kind, Reference: reference}

	existing, err := call(ctx, n, "gateway.bank_transfer.lookup", n.cfg.LookupTimeout,
		func(ctx context.Context) (*models.Order, error) {
			return n.bank.FindByIdempotencyKey(ctx, key)
		})
	if err != nil {
		return nil, &Error{Kind: ErrProviderUnavailable, Gateway: kind, Reference: reference, Err: err}
	}

	if existing != nil {
		return confirmationFromBankOrder(existing), nil
	}

	if snapshot.Empty() {
		return nil, &Error{Kind: ErrNotFound, Gateway: kind, Reference: reference, Detail: "no awaiting transfer and no cart snapshot"}
	}

	return &models.PaymentConfirmation{
		GatewayKind:       kind,
		ProviderReference: reference,
		AmountMinor:       snapshot.TotalMinor(),
		Currency:          normalizeCurrency(snapshot.Currency, n.cfg.DefaultCurrency),
		CustomerEmail:     snapshot.CustomerEmail,
		Status:            models.PaymentStatusPending,
		ShippingAddress:   snapshot.ShippingAddress,
	}, nil
}

func confirmationFromBankOrder(o *models.Order) *models.PaymentConfirmation {
	status := models.PaymentStatusPending
	switch o.Status {
	case models.OrderStatusPaid, models.OrderStatusProcessing, models.OrderStatusCompleted:
		status = models.PaymentStatusPaid
	}
	return &models.PaymentConfirmation{
		GatewayKind:       models.GatewayBankTransfer,
		ProviderReference: o.ProviderReference,
		AmountMinor:       o.TotalMinor,
		Currency:          o.Currency,
		CustomerEmail:     o.CustomerEmail,
		Status:            status,
		ShippingAddress:   o.ShippingAddress,
	}
}
