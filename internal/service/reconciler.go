package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/retry"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/store"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrReconciliationFailed means payment was confirmed but no order could be persisted
var ErrReconciliationFailed = errors.New("payment succeeded, order pending manual reconciliation")

const (
	maxOrderNumberAttempts = 3
	customBuildProductID   = "custom-build"
)

// OrderStore is the persistence the reconciler needs
type OrderStore interface {
	FindByIdempotencyKey(ctx context.Context, key models.IdempotencyKey) (*models.Order, error)
	FindBySecondaryKey(ctx context.Context, ref string) (*models.Order, error)
	InsertIfAbsent(ctx context.Context, order *models.Order) (*store.InsertResult, error)
}

// OrderNumberer allocates order numbers
type OrderNumberer interface {
	Next(ctx context.Context) string
}

// EventPublisher publishes reconciliation events
type EventPublisher interface {
	PublishOrderReconciled(ctx context.Context, event *models.OrderReconciledEvent) error
}

// ReconcilerConfig holds reconciler settings
type ReconcilerConfig struct {
	DefaultItemName string
}

// ReconciliationResult is the canonical order plus whether this call inserted it
type ReconciliationResult struct {
	Order   *models.Order
	Created bool
}

// Reconciler turns a payment confirmation into exactly one order
type Reconciler struct {
	store   OrderStore
	numbers OrderNumberer
	events  EventPublisher
	exec    *retry.Executor
	cfg     ReconcilerConfig
	logger  *zap.Logger
}

// NewReconciler creates a new order reconciler; events may be nil
func NewReconciler(store OrderStore, numbers OrderNumberer, events EventPublisher, exec *retry.Executor, cfg ReconcilerConfig) *Reconciler {
	if cfg.DefaultItemName == "" {
		cfg.DefaultItemName = "Custom PC Build"
	}
	return &Reconciler{
		store:   store,
		numbers: numbers,
		events:  events,
		exec:    exec,
		cfg:     cfg,
		logger:  util.GetLogger(),
	}
}

// Reconcile finds or creates the order for conf. Losing an insert race is
// not an error: the winning order is returned with Created false.
func (r *Reconciler) Reconcile(ctx context.Context, conf *models.PaymentConfirmation, snapshot *cart.Snapshot) (*ReconciliationResult, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	if conf == nil || conf.ProviderReference == "" || !conf.GatewayKind.Valid() {
		return nil, fmt.Errorf("invalid payment confirmation")
	}
	key := conf.Key()

	existing, err := r.find(ctx, "store.find_by_key", func(ctx context.Context) (*models.Order, error) {
		return r.store.FindByIdempotencyKey(ctx, key)
	})
	if err != nil {
		return nil, r.fail("lookup", key, err)
	}
	if existing != nil {
		r.logger.Info("Order already reconciled",
			zap.String("key", key.String()),
			zap.String("order_number", existing.OrderNumber))
		util.OrdersReconciledTotal.WithLabelValues(string(conf.GatewayKind), "existing").Inc()
		return &ReconciliationResult{Order: existing, Created: false}, nil
	}

	for _, ref := range secondaryRefs(conf) {
		ref := ref
		existing, err = r.find(ctx, "store.find_by_secondary", func(ctx context.Context) (*models.Order, error) {
			return r.store.FindBySecondaryKey(ctx, ref)
		})
		if err != nil {
			return nil, r.fail("lookup", key, err)
		}
		if existing != nil {
			r.logger.Info("Order found by secondary reference",
				zap.String("key", key.String()),
				zap.String("secondary_reference", ref),
				zap.String("order_number", existing.OrderNumber))
			util.OrdersReconciledTotal.WithLabelValues(string(conf.GatewayKind), "existing").Inc()
			return &ReconciliationResult{Order: existing, Created: false}, nil
		}
	}

	order := r.buildOrder(conf, snapshot)

	var res *store.InsertResult
	for attempt := 1; ; attempt++ {
		order.OrderNumber = r.numbers.Next(ctx)
		res, err = retry.Do(ctx, r.exec, "store.insert_if_absent", retry.DefaultClassifier,
			func(ctx context.Context) (*store.InsertResult, error) {
				return r.store.InsertIfAbsent(ctx, order)
			})
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrOrderNumberTaken) && attempt < maxOrderNumberAttempts {
			r.logger.Warn("Order number collision, regenerating",
				zap.String("order_number", order.OrderNumber),
				zap.Int("attempt", attempt))
			continue
		}
		return nil, r.fail("insert", key, err)
	}

	if !res.Created && res.Order.OrderNumber == order.OrderNumber {
		// An earlier attempt committed but its reply was lost; the row is ours.
		r.logger.Warn("Insert retry found own order",
			zap.String("key", key.String()),
			zap.String("order_number", order.OrderNumber))
		res = &store.InsertResult{Created: true, Order: res.Order}
	}

	if !res.Created {
		r.logger.Info("Lost reconciliation race, using winning order",
			zap.String("key", key.String()),
			zap.String("order_number", res.Order.OrderNumber))
		util.OrdersReconciledTotal.WithLabelValues(string(conf.GatewayKind), "conflict").Inc()
		return &ReconciliationResult{Order: res.Order, Created: false}, nil
	}

	r.logger.Info("Order created",
		zap.String("key", key.String()),
		zap.String("order_id", res.Order.ID),
		zap.String("order_number", res.Order.OrderNumber),
		zap.String("status", string(res.Order.Status)))
	util.OrdersReconciledTotal.WithLabelValues(string(conf.GatewayKind), "created").Inc()

	r.publish(ctx, res.Order)

	return &ReconciliationResult{Order: res.Order, Created: true}, nil
}

func (r *Reconciler) find(ctx context.Context, operation string, fn func(ctx context.Context) (*models.Order, error)) (*models.Order, error) {
	return retry.Do(ctx, r.exec, operation, retry.DefaultClassifier, fn)
}

func (r *Reconciler) fail(reason string, key models.IdempotencyKey, err error) error {
	util.ReconcileFailuresTotal.WithLabelValues(reason).Inc()
	r.logger.Error("Reconciliation failed",
		zap.String("key", key.String()),
		zap.String("reason", reason),
		zap.Error(err))
	return fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
}

// buildOrder assembles a new order. Line items come from the live snapshot,
// then the metadata manifest, then a single item priced at the confirmed total.
func (r *Reconciler) buildOrder(conf *models.PaymentConfirmation, snapshot *cart.Snapshot) *models.Order {
	items := r.lineItems(conf, snapshot)

	if got := cart.TotalMinor(items); got != conf.AmountMinor {
		r.logger.Warn("Cart total differs from confirmed amount",
			zap.String("key", conf.Key().String()),
			zap.Int64("cart_total", got),
			zap.Int64("confirmed_total", conf.AmountMinor))
	}

	email := conf.CustomerEmail
	address := conf.ShippingAddress
	if snapshot != nil {
		if email == "" {
			email = snapshot.CustomerEmail
		}
		if snapshot.ShippingAddress != nil {
			address = snapshot.ShippingAddress
		}
	}

	return &models.Order{
		GatewayKind:        conf.GatewayKind,
		ProviderReference:  conf.ProviderReference,
		SecondaryReference: conf.SecondaryReference,
		Status:             models.OrderStatusFor(conf.Status),
		CustomerID:         customerID(conf),
		CustomerEmail:      email,
		LineItems:          items,
		ShippingAddress:    address,
		TotalMinor:         conf.AmountMinor,
		Currency:           conf.Currency,
	}
}

func (r *Reconciler) lineItems(conf *models.PaymentConfirmation, snapshot *cart.Snapshot) models.LineItems {
	if !snapshot.Empty() {
		return snapshot.LineItems()
	}

	items, err := cart.DecodeManifest(conf.RawMetadata)
	if err == nil && len(items) > 0 {
		return items
	}
	if err != nil && !errors.Is(err, cart.ErrNoManifest) {
		r.logger.Warn("Ignoring unreadable cart manifest",
			zap.String("key", conf.Key().String()),
			zap.Error(err))
	}

	return models.LineItems{{
		ProductID: customBuildProductID,
		Name:      r.cfg.DefaultItemName,
		Quantity:  1,
		UnitPrice: models.MajorUnits(conf.AmountMinor),
	}}
}

func (r *Reconciler) publish(ctx context.Context, order *models.Order) {
	if r.events == nil {
		return
	}
	event := &models.OrderReconciledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderReconciled,
			Timestamp: time.Now(),
		},
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		GatewayKind:       order.GatewayKind,
		ProviderReference: order.ProviderReference,
		Status:            order.Status,
		TotalMinor:        order.TotalMinor,
		Currency:          order.Currency,
		ItemCount:         len(order.LineItems),
	}
	if err := r.events.PublishOrderReconciled(ctx, event); err != nil {
		r.logger.Error("Failed to publish OrderReconciled event",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
	}
}

// secondaryRefs lists the identifiers another path may have stored the same
// card payment under. Wallet and bank references have no counterpart.
func secondaryRefs(conf *models.PaymentConfirmation) []string {
	if conf.GatewayKind != models.GatewayCardSession && conf.GatewayKind != models.GatewayCardIntent {
		return nil
	}
	refs := []string{conf.ProviderReference}
	if conf.SecondaryReference != "" && conf.SecondaryReference != conf.ProviderReference {
		refs = append(refs, conf.SecondaryReference)
	}
	return refs
}

// GuestPrefix marks orders placed without a signed-in customer.
const GuestPrefix = "guest_"

// IsGuest reports whether an order's customer id was synthesised for a guest.
func IsGuest(customerID string) bool {
	return strings.HasPrefix(customerID, GuestPrefix)
}

func customerID(conf *models.PaymentConfirmation) string {
	if conf.CustomerID != "" {
		return conf.CustomerID
	}
	if id := conf.RawMetadata["user_id"]; id != "" {
		return id
	}
	return GuestPrefix + conf.ProviderReference
}
