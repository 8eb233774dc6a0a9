package service

import (
	"context"
	"errors"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/gateway"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/notify"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is a front door pipeline state
type State string

const (
	StateIdle        State = "idle"
	StateExtracting  State = "extracting"
	StateNormalizing State = "normalizing"
	StateReconciling State = "reconciling"
	StateNotifying   State = "notifying"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Reason explains a Failed result
type Reason string

const (
	ReasonNoPaymentReference         Reason = "NoPaymentReference"
	ReasonNotPaid                    Reason = "NotPaid"
	ReasonNotFound                   Reason = "NotFound"
	ReasonProviderUnavailable        Reason = "ProviderUnavailable"
	ReasonOrderPendingReconciliation Reason = "OrderPendingReconciliation"
)

var reasonMessages = map[Reason]string{
	ReasonNoPaymentReference:         "No payment reference was supplied.",
	ReasonNotPaid:                    "Your payment was not completed. You have not been charged.",
	ReasonNotFound:                   "We could not find this payment. If you were charged, please contact support.",
	ReasonProviderUnavailable:        "We could not confirm your payment right now. If you were charged you will receive a confirmation email shortly, otherwise please contact support.",
	ReasonOrderPendingReconciliation: "Your payment was received but we could not finalise your order automatically. Our team will confirm it by email shortly.",
}

// referenceParams lists the return URL parameters that carry each gateway's reference
var referenceParams = map[models.GatewayKind][]string{
	models.GatewayCardSession:  {"session_id"},
	models.GatewayCardIntent:   {"payment_intent", "payment_intent_id"},
	models.GatewayWallet:       {"token"},
	models.GatewayBankTransfer: {"bank_ref"},
}

// Normalizer confirms a payment with its gateway
type Normalizer interface {
	Normalize(ctx context.Context, kind models.GatewayKind, reference string, snapshot *cart.Snapshot) (*models.PaymentConfirmation, error)
}

// Notifier sends order notifications
type Notifier interface {
	Dispatch(ctx context.Context, order *models.Order) notify.DispatchResult
}

// CartStash returns a cart stashed at checkout time
type CartStash interface {
	LoadCart(ctx context.Context, kind models.GatewayKind, reference string) (*cart.Snapshot, error)
}

// Request is one browser return to the confirmation page
type Request struct {
	Gateway    models.GatewayKind
	Params     map[string]string
	Cart       *cart.Snapshot
	CustomerID string
}

// Totals is the display total for an order
type Totals struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Display     string `json:"display"`
}

// LineItemView is a read-only line item for the browser
type LineItemView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Display   string          `json:"display"`
}

// Result is the terminal outcome of one front door run
type Result struct {
	OK              bool               `json:"ok"`
	State           State              `json:"state"`
	Reason          Reason             `json:"reason,omitempty"`
	Error           string             `json:"error,omitempty"`
	Gateway         models.GatewayKind `json:"gateway,omitempty"`
	Reference       string             `json:"reference,omitempty"`
	OrderNumber     string             `json:"order_number,omitempty"`
	OrderStatus     models.OrderStatus `json:"order_status,omitempty"`
	Totals          *Totals            `json:"totals,omitempty"`
	ShippingAddress *models.Address    `json:"shipping_address,omitempty"`
	LineItems       []LineItemView     `json:"line_items,omitempty"`
	Created         bool               `json:"created"`

	Transitions   []State                `json:"-"`
	Notifications *notify.DispatchResult `json:"-"`
}

// FrontDoor runs the customer-visible confirmation pipeline
type FrontDoor struct {
	normalizer Normalizer
	reconciler *Reconciler
	notifier   Notifier
	carts      CartStash
	logger     *zap.Logger
}

// NewFrontDoor creates a new front door; notifier and carts may be nil
func NewFrontDoor(normalizer Normalizer, reconciler *Reconciler, notifier Notifier, carts CartStash) *FrontDoor {
	return &FrontDoor{
		normalizer: normalizer,
		reconciler: reconciler,
		notifier:   notifier,
		carts:      carts,
		logger:     util.GetLogger(),
	}
}

// Run drives one invocation to Done or Failed. Once started the pipeline is
// detached from caller cancellation so store writes and sends complete.
func (f *FrontDoor) Run(ctx context.Context, req Request) *Result {
	ctx = context.WithoutCancel(ctx)
	ctx, span := util.StartSpan(ctx, "FrontDoor.Run")
	defer span.End()

	res := &Result{State: StateIdle, Transitions: []State{StateIdle}}

	f.enter(res, StateExtracting)
	kind, ref, ok := ExtractReference(req.Gateway, req.Params)
	if !ok {
		return f.fail(res, ReasonNoPaymentReference, nil)
	}
	res.Gateway = kind
	res.Reference = ref

	snapshot := f.snapshot(ctx, kind, ref, req.Cart)

	f.enter(res, StateNormalizing)
	conf, err := f.normalizer.Normalize(ctx, kind, ref, snapshot)
	if err != nil {
		return f.fail(res, reasonFor(err), err)
	}
	if req.CustomerID != "" {
		conf.CustomerID = req.CustomerID
	}

	f.enter(res, StateReconciling)
	rec, err := f.reconciler.Reconcile(ctx, conf, snapshot)
	if err != nil {
		return f.fail(res, ReasonOrderPendingReconciliation, err)
	}

	f.enter(res, StateNotifying)
	if f.notifier != nil {
		dispatched := f.notifier.Dispatch(ctx, rec.Order)
		res.Notifications = &dispatched
	}

	f.enter(res, StateDone)
	project(res, rec)
	util.FrontDoorResultsTotal.WithLabelValues(string(StateDone), "").Inc()
	f.logger.Info("Checkout confirmed",
		zap.String("gateway", string(kind)),
		zap.String("reference", ref),
		zap.String("order_number", res.OrderNumber),
		zap.Bool("created", res.Created))
	return res
}

// ExtractReference finds the payment reference in return URL params. With no
// gateway given, the first gateway whose parameter is present wins.
func ExtractReference(kind models.GatewayKind, params map[string]string) (models.GatewayKind, string, bool) {
	if kind != "" {
		if !kind.Valid() {
			return "", "", false
		}
		if ref := firstParam(params, referenceParams[kind]); ref != "" {
			return kind, ref, true
		}
		if ref := params["reference"]; ref != "" {
			return kind, ref, true
		}
		return "", "", false
	}

	for _, k := range models.GatewayKinds {
		if ref := firstParam(params, referenceParams[k]); ref != "" {
			return k, ref, true
		}
	}
	return "", "", false
}

func firstParam(params map[string]string, names []string) string {
	for _, name := range names {
		if v := params[name]; v != "" {
			return v
		}
	}
	return ""
}

// snapshot prefers the cart sent with the request, then one stashed at checkout
func (f *FrontDoor) snapshot(ctx context.Context, kind models.GatewayKind, ref string, sent *cart.Snapshot) *cart.Snapshot {
	if !sent.Empty() {
		return sent
	}
	if f.carts == nil {
		return nil
	}
	stashed, err := f.carts.LoadCart(ctx, kind, ref)
	if err != nil {
		f.logger.Warn("Failed to load stashed cart",
			zap.String("gateway", string(kind)),
			zap.String("reference", ref),
			zap.Error(err))
		return nil
	}
	return stashed
}

func (f *FrontDoor) enter(res *Result, state State) {
	res.State = state
	res.Transitions = append(res.Transitions, state)
}

func (f *FrontDoor) fail(res *Result, reason Reason, err error) *Result {
	f.enter(res, StateFailed)
	res.OK = false
	res.Reason = reason
	res.Error = reasonMessages[reason]

	util.FrontDoorResultsTotal.WithLabelValues(string(StateFailed), string(reason)).Inc()
	f.logger.Warn("Checkout confirmation failed",
		zap.String("gateway", string(res.Gateway)),
		zap.String("reference", res.Reference),
		zap.String("reason", string(reason)),
		zap.Error(err))
	return res
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, gateway.ErrNotPaid):
		return ReasonNotPaid
	case errors.Is(err, gateway.ErrNotFound):
		return ReasonNotFound
	default:
		return ReasonProviderUnavailable
	}
}

func project(res *Result, rec *ReconciliationResult) {
	order := rec.Order
	res.OK = true
	res.Created = rec.Created
	res.OrderNumber = order.OrderNumber
	res.OrderStatus = order.Status
	res.ShippingAddress = order.ShippingAddress
	res.Totals = &Totals{
		AmountMinor: order.TotalMinor,
		Currency:    order.Currency,
		Display:     models.FormatMinor(order.TotalMinor, order.Currency),
	}
	res.LineItems = LineItemViews(order)
}

// LineItemViews projects an order's line items for display
func LineItemViews(order *models.Order) []LineItemView {
	views := make([]LineItemView, 0, len(order.LineItems))
	for _, it := range order.LineItems {
		views = append(views, LineItemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Display:   models.FormatMinor(models.MinorUnits(it.UnitPrice), order.Currency),
		})
	}
	return views
}
