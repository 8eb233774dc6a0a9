package gateway

import (
	"context"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
)

const sessionMetadataKey = "checkout_session_id"

// CardIntent confirms an embedded card payment intent
func (n *Normalizer) CardIntent(ctx context.Context, intentID string, snapshot *cart.Snapshot) (*models.PaymentConfirmation, error) {
	kind := models.GatewayCardIntent

	intent, err := call(ctx, n, "gateway.card_intent.lookup", n.cfg.LookupTimeout,
		func(ctx context.Context) (*PaymentIntent, error) {
			return n.card.GetPaymentIntent(ctx, intentID)
		})
	if err != nil {
		return nil, classifyProviderError(kind, intentID, err)
	}

	conf, err := confirmationFromIntent(intent, intentID, n.cfg.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	if snapshot.Empty() {
		n.warnOnBadManifest(kind, intentID, conf.RawMetadata)
	}
	return conf, nil
}

func confirmationFromIntent(pi *PaymentIntent, intentID, defaultCurrency string) (*models.PaymentConfirmation, error) {
	kind := models.GatewayCardIntent
	if pi.Status != "succeeded" {
		return nil, notPaid(kind, intentID, "status="+pi.Status)
	}

	ref := pi.ID
	if ref == "" {
		ref = intentID
	}
	secondary := pi.CheckoutSession
	if secondary == "" {
		secondary = pi.Metadata[sessionMetadataKey]
	}
	email := pi.ReceiptEmail
	if email == "" {
		email = pi.Metadata["customer_email"]
	}

	return &models.PaymentConfirmation{
		GatewayKind:        kind,
		ProviderReference:  ref,
		SecondaryReference: secondary,
		AmountMinor:        pi.Amount,
		Currency:           normalizeCurrency(pi.Currency, defaultCurrency),
		CustomerEmail:      email,
		Status:             models.PaymentStatusPaid,
		ShippingAddress:    pi.Shipping,
		RawMetadata:        copyMetadata(pi.Metadata),
	}, nil
}
