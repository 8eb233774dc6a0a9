package notify

import (
	"context"
	"errors"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/retry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMailer struct {
	fail     map[string]error
	tries    map[string]int
	messages []Message
}

func (s *stubMailer) Send(ctx context.Context, msg Message) error {
	if s.tries == nil {
		s.tries = map[string]int{}
	}
	s.tries[msg.To]++
	if err := s.fail[msg.To]; err != nil {
		return err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func testOrder(status models.OrderStatus) *models.Order {
	return &models.Order{
		ID:                "0b6f6c1e-0000-4000-8000-000000000001",
		OrderNumber:       "VPC-20261018-0007",
		GatewayKind:       models.GatewayCardSession,
		ProviderReference: "cs_test",
		Status:            status,
		CustomerID:        "guest_cs_test",
		CustomerEmail:     "buyer@example.com",
		LineItems: models.LineItems{
			{ProductID: "cpu1", Name: "CPU X", Quantity: 1, UnitPrice: decimal.RequireFromString("199.99")},
		},
		ShippingAddress: &models.Address{Name: "Ada Lovelace", Line1: "1 Loop Rd", City: "Leeds", Postcode: "LS1 1AA", Country: "GB"},
		TotalMinor:      19999,
		Currency:        "GBP",
	}
}

func newTestDispatcher(t *testing.T, mailer Mailer) *Dispatcher {
	renderer, err := NewRenderer(BankDetails{AccountName: "Vortex PCs Ltd", SortCode: "00-00-00", AccountNumber: "12345678"})
	require.NoError(t, err)
	exec := retry.NewExecutor(retry.DefaultPolicy(),
		retry.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
	return NewDispatcher(mailer, renderer, exec, "orders@vortexpcs.test")
}

func TestTemplateFor(t *testing.T) {
	assert.Equal(t, TemplateCustomerConfirmation, TemplateFor(models.RecipientCustomer, models.OrderStatusPaid))
	assert.Equal(t, TemplateCustomerAwaitingTransfer, TemplateFor(models.RecipientCustomer, models.OrderStatusPendingPayment))
	assert.Equal(t, TemplateBusinessNewOrder, TemplateFor(models.RecipientBusiness, models.OrderStatusProcessing))
	assert.Equal(t, TemplateBusinessAwaitingTransfer, TemplateFor(models.RecipientBusiness, models.OrderStatusPendingPayment))
}

func TestRenderConfirmation(t *testing.T) {
	renderer, err := NewRenderer(BankDetails{})
	require.NoError(t, err)

	subject, body, err := renderer.Render(TemplateCustomerConfirmation, testOrder(models.OrderStatusPaid))
	require.NoError(t, err)

	assert.Equal(t, "Order VPC-20261018-0007 confirmed", subject)
	assert.Contains(t, body, "Ada Lovelace")
	assert.Contains(t, body, "CPU X")
	assert.Contains(t, body, "£199.99")
}

func TestRenderAwaitingTransferIncludesBankDetails(t *testing.T) {
	renderer, err := NewRenderer(BankDetails{AccountName: "Vortex PCs Ltd", SortCode: "00-00-00", AccountNumber: "12345678"})
	require.NoError(t, err)

	order := testOrder(models.OrderStatusPendingPayment)
	order.ShippingAddress = nil
	_, body, err := renderer.Render(TemplateCustomerAwaitingTransfer, order)
	require.NoError(t, err)

	assert.Contains(t, body, "12345678")
	assert.Contains(t, body, "cs_test")
	assert.Contains(t, body, "Hi there")
}

func TestRenderUnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer(BankDetails{})
	require.NoError(t, err)

	_, _, err = renderer.Render("refund_issued", testOrder(models.OrderStatusPaid))
	assert.Error(t, err)
}

func TestDispatchSendsBoth(t *testing.T) {
	mailer := &stubMailer{}
	d := newTestDispatcher(t, mailer)

	res := d.Dispatch(context.Background(), testOrder(models.OrderStatusPaid))

	assert.Equal(t, StatusSent, res.Customer.Status)
	assert.Equal(t, StatusSent, res.Business.Status)
	assert.Equal(t, 1, res.Customer.Job.Attempt)
	require.Len(t, mailer.messages, 2)
	assert.Equal(t, "buyer@example.com", mailer.messages[0].To)
	assert.Equal(t, "New order VPC-20261018-0007", mailer.messages[1].Subject)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	mailer := &stubMailer{fail: map[string]error{
		"buyer@example.com": &textproto.Error{Code: 550, Msg: "mailbox unavailable"},
	}}
	d := newTestDispatcher(t, mailer)
	order := testOrder(models.OrderStatusPaid)

	res := d.Dispatch(context.Background(), order)

	assert.Equal(t, StatusFailed, res.Customer.Status)
	assert.Equal(t, 1, mailer.tries["buyer@example.com"])
	assert.Contains(t, res.Customer.Job.LastError, "mailbox unavailable")
	assert.Equal(t, StatusSent, res.Business.Status)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestDispatchRetriesTemporaryFailures(t *testing.T) {
	mailer := &stubMailer{fail: map[string]error{
		"orders@vortexpcs.test": &textproto.Error{Code: 451, Msg: "try again later"},
	}}
	d := newTestDispatcher(t, mailer)

	res := d.Dispatch(context.Background(), testOrder(models.OrderStatusPendingPayment))

	assert.Equal(t, StatusSent, res.Customer.Status)
	assert.Equal(t, TemplateCustomerAwaitingTransfer, res.Customer.Job.Template)
	assert.Equal(t, StatusFailed, res.Business.Status)
	assert.Equal(t, 3, res.Business.Job.Attempt)
	assert.ErrorIs(t, res.Business.Err, retry.ErrExhausted)
}

func TestDispatchSkipsMissingRecipient(t *testing.T) {
	mailer := &stubMailer{}
	d := newTestDispatcher(t, mailer)
	order := testOrder(models.OrderStatusPaid)
	order.CustomerEmail = ""

	res := d.Dispatch(context.Background(), order)

	assert.Equal(t, StatusSkipped, res.Customer.Status)
	assert.Equal(t, StatusSent, res.Business.Status)
	assert.Len(t, mailer.messages, 1)
}

func TestClassifySMTP(t *testing.T) {
	assert.Equal(t, retry.Retryable, ClassifySMTP(&textproto.Error{Code: 421, Msg: "busy"}))
	assert.Equal(t, retry.Fatal, ClassifySMTP(&textproto.Error{Code: 554, Msg: "rejected"}))
	assert.Equal(t, retry.Fatal, ClassifySMTP(errors.New("bad address")))
	assert.Equal(t, retry.Retryable, ClassifySMTP(context.DeadlineExceeded))
}

func TestBuildMessageHeaders(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", From: "shop@example.com", FromName: "Vortex PCs"})
	raw := string(m.build(Message{To: "buyer@example.com", Subject: "Order VPC-1 confirmed", HTML: "<p>hi</p>"}))

	assert.True(t, strings.HasPrefix(raw, "From: Vortex PCs <shop@example.com>\r\n"))
	assert.Contains(t, raw, "To: buyer@example.com\r\n")
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>hi</p>"))
	assert.Equal(t, 587, m.cfg.Port)
}
