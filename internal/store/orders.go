package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"

	"github.com/lib/pq"
)

const (
	uniqueViolation       = "23505"
	idempotencyConstraint = "orders_idempotency_key"
	orderNumberConstraint = "orders_order_number_key"
	orderColumns          = `id, order_number, gateway_kind, provider_reference, secondary_reference, status,
		customer_id, customer_email, line_items, shipping_address, total_minor, currency, created_at, updated_at`
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNumberTaken = errors.New("order number already taken")
)

// InsertResult reports whether InsertIfAbsent created the order or found the winner
type InsertResult struct {
	Created bool
	Order   *models.Order
}

// InsertIfAbsent inserts order unless one already exists for its idempotency key.
// The unique constraint on (gateway_kind, provider_reference) decides the race
// between concurrent writers; the loser gets the winning row back.
func (s *Store) InsertIfAbsent(ctx context.Context, order *models.Order) (*InsertResult, error) {
	query := `
		INSERT INTO orders (order_number, gateway_kind, provider_reference, secondary_reference, status,
			customer_id, customer_email, line_items, shipping_address, total_minor, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT ON CONSTRAINT orders_idempotency_key DO NOTHING
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, order, query,
		order.OrderNumber, order.GatewayKind, order.ProviderReference, order.SecondaryReference, order.Status,
		order.CustomerID, order.CustomerEmail, order.LineItems, order.ShippingAddress, order.TotalMinor, order.Currency)
	if err == nil {
		return &InsertResult{Created: true, Order: order}, nil
	}

	if isUniqueViolation(err, orderNumberConstraint) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNumberTaken, order.OrderNumber)
	}

	// No row returned: another writer holds the key. The same applies when a
	// driver reports the violation instead of honouring ON CONFLICT.
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err, idempotencyConstraint) {
		existing, findErr := s.FindByIdempotencyKey(ctx, order.Key())
		if findErr != nil {
			return nil, fmt.Errorf("failed to read winning order: %w", findErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("order %s conflicted but could not be read back", order.Key())
		}
		return &InsertResult{Created: false, Order: existing}, nil
	}

	return nil, fmt.Errorf("failed to insert order: %w", err)
}

// FindByIdempotencyKey retrieves an order by (gateway_kind, provider_reference).
// Returns nil, nil when no order exists.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key models.IdempotencyKey) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE gateway_kind = $1 AND provider_reference = $2",
		key.Gateway, key.Reference)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindBySecondaryKey retrieves the oldest order that references ref under
// either identifier column. Returns nil, nil when none matches.
func (s *Store) FindBySecondaryKey(ctx context.Context, ref string) (*models.Order, error) {
	if ref == "" {
		return nil, nil
	}
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE secondary_reference = $1 OR provider_reference = $1 ORDER BY created_at LIMIT 1",
		ref)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber retrieves an order by its human-readable number
func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE order_number = $1", number)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, number)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByCustomerID retrieves orders for a customer, newest first
func (s *Store) GetOrdersByCustomerID(ctx context.Context, customerID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
