package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/service"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/store"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// userHeader carries the authenticated user id set by the upstream auth proxy
const userHeader = "X-User-ID"

// FrontDoor runs the confirmation pipeline
type FrontDoor interface {
	Run(ctx context.Context, req service.Request) *service.Result
}

// OrderReader reads stored orders
type OrderReader interface {
	GetOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	GetOrdersByCustomerID(ctx context.Context, customerID string) ([]models.Order, error)
}

// CartStasher keeps checkout carts until the payment returns
type CartStasher interface {
	StashCart(ctx context.Context, kind models.GatewayKind, reference string, snapshot *cart.Snapshot, ttl time.Duration) error
}

// Pinger is a readiness dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	frontDoor FrontDoor
	orders    OrderReader
	carts     CartStasher
	cartTTL   time.Duration
	checks    map[string]Pinger
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler; carts may be nil and checks are pinged by /ready
func NewHandler(frontDoor FrontDoor, orders OrderReader, carts CartStasher, cartTTL time.Duration, checks map[string]Pinger) *Handler {
	return &Handler{
		frontDoor: frontDoor,
		orders:    orders,
		carts:     carts,
		cartTTL:   cartTTL,
		checks:    checks,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/checkout/reconcile", h.reconcile)
		v1.POST("/checkout/reconcile", h.reconcile)
		v1.PUT("/checkout/carts/:gateway/:reference", h.stashCart)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:number", h.getOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"dependencies": deps,
		"time":         time.Now().Unix(),
	})
}

type reconcileRequest struct {
	Cart       *cart.Snapshot `json:"cart"`
	CustomerID string         `json:"customer_id"`
}

// reconcile handles the browser return from a payment gateway
func (h *Handler) reconcile(c *gin.Context) {
	var body reconcileRequest
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"ok":      false,
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	params := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	// The body may only restate the authenticated caller, never name another customer.
	customerID := c.GetHeader(userHeader)
	if body.CustomerID != "" && body.CustomerID != customerID {
		c.JSON(http.StatusForbidden, gin.H{
			"ok":    false,
			"error": "customer_id does not match the authenticated user",
		})
		return
	}

	res := h.frontDoor.Run(c.Request.Context(), service.Request{
		Gateway:    models.GatewayKind(c.Query("gateway")),
		Params:     params,
		Cart:       body.Cart,
		CustomerID: customerID,
	})

	c.JSON(statusFor(res), res)
}

// statusFor maps a front door result onto an HTTP status
func statusFor(res *service.Result) int {
	if res.State == service.StateDone {
		return http.StatusOK
	}
	switch res.Reason {
	case service.ReasonNoPaymentReference:
		return http.StatusBadRequest
	case service.ReasonNotPaid:
		return http.StatusPaymentRequired
	case service.ReasonNotFound:
		return http.StatusNotFound
	case service.ReasonOrderPendingReconciliation:
		return http.StatusAccepted
	default:
		return http.StatusServiceUnavailable
	}
}

// stashCart stores the cart a checkout was started with
func (h *Handler) stashCart(c *gin.Context) {
	if h.carts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cart stash unavailable"})
		return
	}

	kind, err := models.ParseGatewayKind(c.Param("gateway"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reference := c.Param("reference")

	var snapshot cart.Snapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid cart",
			"details": err.Error(),
		})
		return
	}
	if snapshot.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart has no items"})
		return
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now().UTC()
	}

	if err := h.carts.StashCart(c.Request.Context(), kind, reference, &snapshot, h.cartTTL); err != nil {
		h.logger.Error("Failed to stash cart",
			zap.String("gateway", string(kind)),
			zap.String("reference", reference),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to store cart"})
		return
	}

	c.Status(http.StatusNoContent)
}

type orderView struct {
	OrderNumber     string                 `json:"order_number"`
	Status          models.OrderStatus     `json:"status"`
	Gateway         models.GatewayKind     `json:"gateway"`
	Totals          service.Totals         `json:"totals"`
	ShippingAddress *models.Address        `json:"shipping_address,omitempty"`
	LineItems       []service.LineItemView `json:"line_items"`
	CreatedAt       time.Time              `json:"created_at"`
}

func newOrderView(o *models.Order) orderView {
	return orderView{
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Gateway:     o.GatewayKind,
		Totals: service.Totals{
			AmountMinor: o.TotalMinor,
			Currency:    o.Currency,
			Display:     models.FormatMinor(o.TotalMinor, o.Currency),
		},
		ShippingAddress: o.ShippingAddress,
		LineItems:       service.LineItemViews(o),
		CreatedAt:       o.CreatedAt,
	}
}

// getOrder handles get order by number. Callers that cannot see the order
// get the same 404 as for a missing one.
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrderByNumber(c.Request.Context(), c.Param("number"))
	if errors.Is(err, store.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load order", zap.String("number", c.Param("number")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
		return
	}

	if !canView(order, c.GetHeader(userHeader), c.Query("reference")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, newOrderView(order))
}

// canView allows the owning customer, or for guest orders anyone holding the
// payment reference.
func canView(order *models.Order, userID, reference string) bool {
	if userID != "" && userID == order.CustomerID {
		return true
	}
	if service.IsGuest(order.CustomerID) && reference != "" {
		return subtle.ConstantTimeCompare([]byte(reference), []byte(order.ProviderReference)) == 1
	}
	return false
}

// listOrders lists the authenticated customer's orders
func (h *Handler) listOrders(c *gin.Context) {
	customerID := c.GetHeader(userHeader)
	if customerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	orders, err := h.orders.GetOrdersByCustomerID(c.Request.Context(), customerID)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.String("customer_id", customerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}

	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, newOrderView(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
