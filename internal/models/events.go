package models

import "time"

// Event types
const (
	EventTypeOrderReconciled = "ORDER_RECONCILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderReconciledEvent published when a reconciliation inserted a new order
type OrderReconciledEvent struct {
	BaseEvent
	OrderID           string      `json:"order_id"`
	OrderNumber       string      `json:"order_number"`
	GatewayKind       GatewayKind `json:"gateway_kind"`
	ProviderReference string      `json:"provider_reference"`
	Status            OrderStatus `json:"status"`
	TotalMinor        int64       `json:"total_minor"`
	Currency          string      `json:"currency"`
	ItemCount         int         `json:"item_count"`
}
