package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/notify"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/retry"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/store"

	"github.com/google/uuid"
)

// memStore enforces the idempotency key and order number uniqueness the
// Postgres constraints provide.
type memStore struct {
	mu        sync.Mutex
	orders    []models.Order
	latency   time.Duration
	insertErr error
	inserts   int

	// lostReplies commits the next n inserts but reports a transient error
	lostReplies int
}

func (m *memStore) wait() {
	if m.latency > 0 {
		time.Sleep(m.latency)
	}
}

func (m *memStore) FindByIdempotencyKey(ctx context.Context, key models.IdempotencyKey) (*models.Order, error) {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Key() == key {
			o := o
			return &o, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindBySecondaryKey(ctx context.Context, ref string) (*models.Order, error) {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.SecondaryReference == ref || o.ProviderReference == ref {
			o := o
			return &o, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertIfAbsent(ctx context.Context, order *models.Order) (*store.InsertResult, error) {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	for _, o := range m.orders {
		if o.Key() == order.Key() {
			o := o
			return &store.InsertResult{Created: false, Order: &o}, nil
		}
		if o.OrderNumber == order.OrderNumber {
			return nil, fmt.Errorf("%w: %s", store.ErrOrderNumberTaken, order.OrderNumber)
		}
	}
	order.ID = uuid.New().String()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.orders = append(m.orders, *order)
	if m.lostReplies > 0 {
		m.lostReplies--
		return nil, retry.Transient(errors.New("connection reset by peer"))
	}
	created := *order
	return &store.InsertResult{Created: true, Order: &created}, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type seqNumbers struct {
	mu sync.Mutex
	n  int
}

func (s *seqNumbers) Next(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("VPC-20261018-%04d", s.n)
}

type fixedNumbers struct {
	numbers []string
	calls   int
}

func (f *fixedNumbers) Next(ctx context.Context) string {
	n := f.numbers[f.calls%len(f.numbers)]
	f.calls++
	return n
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.OrderReconciledEvent
	err    error
}

func (p *recordingPublisher) PublishOrderReconciled(ctx context.Context, event *models.OrderReconciledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type fakeNormalizer struct {
	conf  *models.PaymentConfirmation
	err   error
	calls int
	kind  models.GatewayKind
	ref   string
}

func (f *fakeNormalizer) Normalize(ctx context.Context, kind models.GatewayKind, reference string, snapshot *cart.Snapshot) (*models.PaymentConfirmation, error) {
	f.calls++
	f.kind = kind
	f.ref = reference
	if f.err != nil {
		return nil, f.err
	}
	c := *f.conf
	return &c, nil
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  map[string]int
	tries map[string]int
	fail  map[string]error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: map[string]int{}, tries: map[string]int{}, fail: map[string]error{}}
}

func (f *fakeMailer) Send(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tries[msg.To]++
	if err := f.fail[msg.To]; err != nil {
		return err
	}
	f.sent[msg.To]++
	return nil
}

type fakeStash struct {
	carts map[string]*cart.Snapshot
	err   error
}

func (f *fakeStash) LoadCart(ctx context.Context, kind models.GatewayKind, reference string) (*cart.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.carts[string(kind)+":"+reference], nil
}

func noSleepExecutor() *retry.Executor {
	return retry.NewExecutor(retry.DefaultPolicy(),
		retry.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
}

var errSMTPDown = retry.Transient(errors.New("421 service not available"))
