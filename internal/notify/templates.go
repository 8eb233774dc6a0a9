package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names
const (
	TemplateCustomerConfirmation     = "customer_confirmation"
	TemplateCustomerAwaitingTransfer = "customer_awaiting_transfer"
	TemplateBusinessNewOrder         = "business_new_order"
	TemplateBusinessAwaitingTransfer = "business_awaiting_transfer"
)

var subjects = map[string]string{
	TemplateCustomerConfirmation:     "Order %s confirmed",
	TemplateCustomerAwaitingTransfer: "Order %s - awaiting bank transfer",
	TemplateBusinessNewOrder:         "New order %s",
	TemplateBusinessAwaitingTransfer: "Bank transfer pending: %s",
}

// BankDetails are shown to customers paying by bank transfer
type BankDetails struct {
	AccountName   string
	SortCode      string
	AccountNumber string
}

// TemplateFor picks the template for a recipient from the order's status
func TemplateFor(role models.RecipientRole, status models.OrderStatus) string {
	awaiting := status == models.OrderStatusPendingPayment
	switch {
	case role == models.RecipientCustomer && awaiting:
		return TemplateCustomerAwaitingTransfer
	case role == models.RecipientCustomer:
		return TemplateCustomerConfirmation
	case awaiting:
		return TemplateBusinessAwaitingTransfer
	default:
		return TemplateBusinessNewOrder
	}
}

type itemView struct {
	Name      string
	Quantity  int
	UnitPrice string
}

type emailData struct {
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	CustomerID    string
	Gateway       models.GatewayKind
	Reference     string
	Total         string
	Items         []itemView
	Address       *models.Address
	Bank          BankDetails
}

// Renderer renders notification emails
type Renderer struct {
	tmpl *template.Template
	bank BankDetails
}

// NewRenderer parses the embedded templates
func NewRenderer(bank BankDetails) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, bank: bank}, nil
}

// Render produces the subject and HTML body for a template
func (r *Renderer) Render(name string, order *models.Order) (subject, body string, err error) {
	format, ok := subjects[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name+".html", r.data(order)); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return fmt.Sprintf(format, order.OrderNumber), buf.String(), nil
}

func (r *Renderer) data(order *models.Order) emailData {
	items := make([]itemView, 0, len(order.LineItems))
	for _, it := range order.LineItems {
		items = append(items, itemView{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: models.FormatMinor(models.MinorUnits(it.UnitPrice), order.Currency),
		})
	}

	name := "there"
	if order.ShippingAddress != nil && order.ShippingAddress.Name != "" {
		name = order.ShippingAddress.Name
	}

	return emailData{
		OrderNumber:   order.OrderNumber,
		CustomerName:  name,
		CustomerEmail: order.CustomerEmail,
		CustomerID:    order.CustomerID,
		Gateway:       order.GatewayKind,
		Reference:     order.ProviderReference,
		Total:         models.FormatMinor(order.TotalMinor, order.Currency),
		Items:         items,
		Address:       order.ShippingAddress,
		Bank:          r.bank,
	}
}
