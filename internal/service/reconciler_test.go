package service

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(s OrderStore, events EventPublisher) *Reconciler {
	return NewReconciler(s, &seqNumbers{}, events, noSleepExecutor(), ReconcilerConfig{})
}

func paidSession(ref string) *models.PaymentConfirmation {
	return &models.PaymentConfirmation{
		GatewayKind:        models.GatewayCardSession,
		ProviderReference:  ref,
		SecondaryReference: "pi_" + ref,
		AmountMinor:        149999,
		Currency:           "GBP",
		CustomerEmail:      "buyer@example.com",
		Status:             models.PaymentStatusPaid,
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	s := &memStore{}
	events := &recordingPublisher{}
	r := newTestReconciler(s, events)
	conf := paidSession("cs_1")

	first, err := r.Reconcile(context.Background(), conf, nil)
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), conf, nil)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, s.count())
	assert.Len(t, events.events, 1)
	assert.Equal(t, models.EventTypeOrderReconciled, events.events[0].EventType)
}

func TestReconcileConcurrentWritersCreateOneOrder(t *testing.T) {
	s := &memStore{latency: 20 * time.Millisecond}
	r := newTestReconciler(s, nil)
	conf := paidSession("cs_race")

	var wg sync.WaitGroup
	results := make([]*ReconciliationResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := *conf
			results[i], errs[i] = r.Reconcile(context.Background(), &c, nil)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, results[0].Created, results[1].Created)
	assert.Equal(t, results[0].Order.ID, results[1].Order.ID)
	assert.Equal(t, 1, s.count())
}

func TestReconcileInsertWithLostReplyCountsAsCreated(t *testing.T) {
	s := &memStore{lostReplies: 1}
	events := &recordingPublisher{}
	r := newTestReconciler(s, events)

	res, err := r.Reconcile(context.Background(), paidSession("cs_lost"), nil)
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, 2, s.inserts)
	assert.Equal(t, 1, s.count())
	require.Len(t, events.events, 1)
	assert.Equal(t, res.Order.OrderNumber, events.events[0].OrderNumber)
}

func TestReconcileFindsOrderBySecondaryReference(t *testing.T) {
	s := &memStore{}
	r := newTestReconciler(s, nil)

	// Webhook wrote the order under the payment intent
	webhook := &models.PaymentConfirmation{
		GatewayKind:        models.GatewayCardIntent,
		ProviderReference:  "pi_cs_2",
		SecondaryReference: "cs_2",
		AmountMinor:        149999,
		Currency:           "GBP",
		Status:             models.PaymentStatusPaid,
	}
	first, err := r.Reconcile(context.Background(), webhook, nil)
	require.NoError(t, err)
	require.True(t, first.Created)

	// Browser returns with the checkout session
	second, err := r.Reconcile(context.Background(), paidSession("cs_2"), nil)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, s.count())
}

func TestReconcileFallbackItem(t *testing.T) {
	r := newTestReconciler(&memStore{}, nil)

	res, err := r.Reconcile(context.Background(), paidSession("cs_3"), nil)
	require.NoError(t, err)

	require.Len(t, res.Order.LineItems, 1)
	item := res.Order.LineItems[0]
	assert.Equal(t, "Custom PC Build", item.Name)
	assert.Equal(t, 1, item.Quantity)
	assert.True(t, decimal.RequireFromString("1499.99").Equal(item.UnitPrice))
	assert.Equal(t, int64(149999), res.Order.TotalMinor)
}

func TestReconcileDecodesManifest(t *testing.T) {
	r := newTestReconciler(&memStore{}, nil)
	manifest := base64.StdEncoding.EncodeToString([]byte(`[{"id":"cpu1","n":"CPU X","p":199.99}]`))
	conf := &models.PaymentConfirmation{
		GatewayKind:       models.GatewayCardIntent,
		ProviderReference: "pi_manifest",
		AmountMinor:       19999,
		Currency:          "GBP",
		Status:            models.PaymentStatusPaid,
		RawMetadata:       map[string]string{cart.MetadataKey: manifest},
	}

	res, err := r.Reconcile(context.Background(), conf, nil)
	require.NoError(t, err)

	require.Len(t, res.Order.LineItems, 1)
	item := res.Order.LineItems[0]
	assert.Equal(t, "CPU X", item.Name)
	assert.Equal(t, 1, item.Quantity)
	assert.True(t, decimal.RequireFromString("199.99").Equal(item.UnitPrice))
	assert.Equal(t, int64(19999), res.Order.TotalMinor)
}

func TestReconcilePrefersSnapshot(t *testing.T) {
	r := newTestReconciler(&memStore{}, nil)
	snapshot := &cart.Snapshot{
		Items: []cart.Item{
			{ProductID: "gpu", Name: "GPU Y", Quantity: 2, UnitPrice: decimal.RequireFromString("500.00")},
			{ProductID: "case", Name: "Case Z", Quantity: 1, UnitPrice: decimal.RequireFromString("499.99")},
		},
		ShippingAddress: &models.Address{Name: "Ada", Line1: "1 Loop Rd", City: "Leeds", Postcode: "LS1 1AA", Country: "GB"},
	}
	conf := paidSession("cs_snap")
	conf.RawMetadata = map[string]string{cart.MetadataKey: "ignored"}

	res, err := r.Reconcile(context.Background(), conf, snapshot)
	require.NoError(t, err)

	assert.Len(t, res.Order.LineItems, 2)
	assert.Equal(t, "Ada", res.Order.ShippingAddress.Name)
	assert.Equal(t, "guest_cs_snap", res.Order.CustomerID)
	assert.Equal(t, models.OrderStatusPaid, res.Order.Status)
}

func TestReconcileCustomerID(t *testing.T) {
	r := newTestReconciler(&memStore{}, nil)

	conf := paidSession("cs_user")
	conf.RawMetadata = map[string]string{"user_id": "user_42"}
	res, err := r.Reconcile(context.Background(), conf, nil)
	require.NoError(t, err)
	assert.Equal(t, "user_42", res.Order.CustomerID)

	conf = paidSession("cs_auth")
	conf.CustomerID = "user_7"
	res, err = r.Reconcile(context.Background(), conf, nil)
	require.NoError(t, err)
	assert.Equal(t, "user_7", res.Order.CustomerID)
}

func TestReconcileBankTransferStaysPending(t *testing.T) {
	r := newTestReconciler(&memStore{}, nil)
	conf := &models.PaymentConfirmation{
		GatewayKind:       models.GatewayBankTransfer,
		ProviderReference: "BT-1001",
		AmountMinor:       5000,
		Currency:          "GBP",
		Status:            models.PaymentStatusPending,
	}

	res, err := r.Reconcile(context.Background(), conf, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPendingPayment, res.Order.Status)
}

func TestReconcileRegeneratesTakenOrderNumber(t *testing.T) {
	s := &memStore{}
	numbers := &fixedNumbers{numbers: []string{"VPC-20261018-0001", "VPC-20261018-0001", "VPC-20261018-0002"}}
	r := NewReconciler(s, numbers, nil, noSleepExecutor(), ReconcilerConfig{})

	_, err := r.Reconcile(context.Background(), paidSession("cs_a"), nil)
	require.NoError(t, err)
	res, err := r.Reconcile(context.Background(), paidSession("cs_b"), nil)
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, "VPC-20261018-0002", res.Order.OrderNumber)
	assert.Equal(t, 3, numbers.calls)
}

func TestReconcileStoreFailure(t *testing.T) {
	s := &memStore{insertErr: errors.New("disk full")}
	r := newTestReconciler(s, nil)

	_, err := r.Reconcile(context.Background(), paidSession("cs_fail"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReconciliationFailed)
	assert.Equal(t, 1, s.inserts)
}

func TestReconcilePublishFailureIsIgnored(t *testing.T) {
	events := &recordingPublisher{err: errors.New("broker down")}
	r := newTestReconciler(&memStore{}, events)

	res, err := r.Reconcile(context.Background(), paidSession("cs_pub"), nil)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Len(t, events.events, 1)
}

func TestReconcileRejectsInvalidConfirmation(t *testing.T) {
	r := newTestReconciler(&memStore{}, nil)

	_, err := r.Reconcile(context.Background(), &models.PaymentConfirmation{GatewayKind: "cash"}, nil)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrOrderNumberTaken))
}

type stubSequence struct {
	n   int64
	err error
}

func (s stubSequence) NextOrderSequence(ctx context.Context, day string) (int64, error) {
	return s.n, s.err
}

func TestOrderNumberGenerator(t *testing.T) {
	g := NewOrderNumberGenerator(stubSequence{n: 42}, "VPC")
	g.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	assert.Equal(t, "VPC-20261018-0042", g.Next(context.Background()))

	g = NewOrderNumberGenerator(stubSequence{err: errors.New("redis down")}, "VPC")
	g.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	assert.Regexp(t, `^VPC-20261018-\d{4}$`, g.Next(context.Background()))

	g = NewOrderNumberGenerator(nil, "")
	assert.Regexp(t, `^VPC-\d{8}-\d{4}$`, g.Next(context.Background()))
}
