package gateway

import (
	"context"
	"errors"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"

	"go.uber.org/zap"
)

const walletCompleted = "COMPLETED"

// Wallet captures a wallet order. Capturing an already-captured order reads
// the existing capture instead of failing, so reloading the return page is safe.
func (n *Normalizer) Wallet(ctx context.Context, orderID string) (*models.PaymentConfirmation, error) {
	kind := models.GatewayWallet

	order, err := call(ctx, n, "gateway.wallet.capture", n.cfg.CaptureTimeout,
		func(ctx context.Context) (*WalletOrder, error) {
			return n.wallet.CaptureOrder(ctx, orderID)
		})
	if errors.Is(err, ErrAlreadyCaptured) {
		n.logger.Info("Wallet order already captured, reading existing capture",
			zap.String("reference", orderID))
		order, err = call(ctx, n, "gateway.wallet.lookup", n.cfg.LookupTimeout,
			func(ctx context.Context) (*WalletOrder, error) {
				return n.wallet.GetOrder(ctx, orderID)
			})
	}
	if err != nil {
		return nil, classifyProviderError(kind, orderID, err)
	}

	return confirmationFromWallet(order, orderID, n.cfg.DefaultCurrency)
}

func confirmationFromWallet(o *WalletOrder, orderID, defaultCurrency string) (*models.PaymentConfirmation, error) {
	kind := models.GatewayWallet
	if o.Status != walletCompleted {
		return nil, notPaid(kind, orderID, "status="+o.Status)
	}

	ref := o.ID
	if ref == "" {
		ref = orderID
	}

	var meta map[string]string
	if o.CustomID != "" {
		meta = map[string]string{"custom_id": o.CustomID}
	}

	return &models.PaymentConfirmation{
		GatewayKind:        kind,
		ProviderReference:  ref,
		SecondaryReference: o.CaptureID,
		AmountMinor:        o.Amount,
		Currency:           normalizeCurrency(o.Currency, defaultCurrency),
		CustomerEmail:      o.PayerEmail,
		Status:             models.PaymentStatusPaid,
		ShippingAddress:    o.Shipping,
		RawMetadata:        meta,
	}, nil
}
