package gateway

import (
	"context"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
)

// CardSession confirms a hosted checkout session
func (n *Normalizer) CardSession(ctx context.Context, sessionID string) (*models.PaymentConfirmation, error) {
	kind := models.GatewayCardSession

	session, err := call(ctx, n, "gateway.card_session.lookup", n.cfg.LookupTimeout,
		func(ctx context.Context) (*CheckoutSession, error) {
			return n.card.GetCheckoutSession(ctx, sessionID)
		})
	if err != nil {
		return nil, classifyProviderError(kind, sessionID, err)
	}

	return confirmationFromSession(session, sessionID, n.cfg.DefaultCurrency)
}

func confirmationFromSession(s *CheckoutSession, sessionID, defaultCurrency string) (*models.PaymentConfirmation, error) {
	kind := models.GatewayCardSession
	if s.Status != "complete" || s.PaymentStatus != "paid" {
		return nil, notPaid(kind, sessionID, "status="+s.Status+" payment_status="+s.PaymentStatus)
	}

	ref := s.ID
	if ref == "" {
		ref = sessionID
	}

	return &models.PaymentConfirmation{
		GatewayKind:        kind,
		ProviderReference:  ref,
		SecondaryReference: s.PaymentIntent,
		AmountMinor:        s.AmountTotal,
		Currency:           normalizeCurrency(s.Currency, defaultCurrency),
		CustomerEmail:      s.CustomerEmail,
		Status:             models.PaymentStatusPaid,
		ShippingAddress:    s.Shipping,
		RawMetadata:        copyMetadata(s.Metadata),
	}, nil
}
