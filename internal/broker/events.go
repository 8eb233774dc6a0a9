package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderReconciled publishes OrderReconciled event keyed by order number
func (ep *EventPublisher) PublishOrderReconciled(ctx context.Context, event *models.OrderReconciledEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderNumber)
	return ep.producer.PublishEvent(ctx, key, event)
}

// DecodeConfirmation parses a webhook confirmation message
func DecodeConfirmation(value []byte) (*models.PaymentConfirmation, error) {
	var conf models.PaymentConfirmation
	if err := json.Unmarshal(value, &conf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment confirmation: %w", err)
	}
	if !conf.GatewayKind.Valid() {
		return nil, fmt.Errorf("unknown gateway kind %q", conf.GatewayKind)
	}
	if conf.ProviderReference == "" {
		return nil, fmt.Errorf("payment confirmation without provider reference")
	}
	return &conf, nil
}
