// Package httppresentation exposes the engine over a thin JSON API. It
// decodes requests, forwards the caller identity, and maps fault kinds to
// HTTP statuses; all rules live in the application layer.
package httppresentation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	appOrder "github.com/zenshop/orderengine/internal/application/order"
	appPayment "github.com/zenshop/orderengine/internal/application/payment"
	appShipment "github.com/zenshop/orderengine/internal/application/shipment"
	"github.com/zenshop/orderengine/internal/domain/catalog"
	domainOrder "github.com/zenshop/orderengine/internal/domain/order"
	"github.com/zenshop/orderengine/internal/observability"
)

type Handler struct {
	orders    *appOrder.Service
	payments  *appPayment.Service
	shipments *appShipment.Service
	catalog   catalog.Repository
	tel       observability.Observability
}

func NewHandler(orders *appOrder.Service, payments *appPayment.Service, shipments *appShipment.Service, cat catalog.Repository, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		orders:    orders,
		payments:  payments,
		shipments: shipments,
		catalog:   cat,
		tel:       tel,
	}
}

// Router builds the gin engine with observability and identity middleware.
func (h *Handler) Router(gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), ObservabilityMiddleware(h.tel), IdentityMiddleware())

	r.GET("/health", h.health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/products", h.listProducts)
	r.GET("/products/:id", h.getProduct)

	r.POST("/orders", h.createOrder)
	r.GET("/orders", h.listOrders)
	r.GET("/orders/:id", h.getOrder)
	r.POST("/orders/:id/cancel", h.cancelOrder)
	r.POST("/orders/:id/status", h.transitionOrder)
	r.GET("/orders/:id/shipments", h.listOrderShipments)

	r.POST("/payments", h.createPayment)
	r.GET("/payments", h.listPayments)
	r.GET("/payments/:id", h.getPayment)
	r.POST("/payments/:id/apply", h.applyPayment)
	r.POST("/payments/:id/complete", h.completePayment)
	r.POST("/payments/:id/fail", h.failPayment)

	r.POST("/shipments", h.createShipment)
	r.GET("/shipments/:id", h.getShipment)
	r.POST("/shipments/:id/ship", h.shipShipment)
	r.POST("/shipments/:id/deliver", h.deliverShipment)
	r.GET("/shipments/track/:number", h.trackShipment)

	return r
}

func (h *Handler) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// --- catalog ---

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getProduct(c *gin.Context) {
	p, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

// --- orders ---

type createOrderRequest struct {
	Items []struct {
		ProductID string `json:"product_id" binding:"required"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	items := make([]appOrder.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, appOrder.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	o, err := h.orders.CreateOrder(c.Request.Context(), callerFrom(c), items)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.List(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *Handler) cancelOrder(c *gin.Context) {
	o, err := h.orders.CancelOrder(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

type transitionOrderRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) transitionOrder(c *gin.Context) {
	var req transitionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	o, err := h.orders.TransitionStatus(c.Request.Context(), callerFrom(c), c.Param("id"), domainOrder.Status(req.Status))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrderShipments(c *gin.Context) {
	shipments, err := h.shipments.ListByOrder(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]shipmentResponse, 0, len(shipments))
	for _, sh := range shipments {
		out = append(out, toShipmentResponse(sh))
	}
	c.JSON(http.StatusOK, out)
}

// --- payments ---

type createPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Method string          `json:"method" binding:"required"`
}

func (h *Handler) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	p, err := h.payments.Create(c.Request.Context(), req.Amount, req.Method)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPaymentResponse(p))
}

func (h *Handler) listPayments(c *gin.Context) {
	infos, err := h.payments.List(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]paymentInfoResponse, 0, len(infos))
	for _, inf := range infos {
		out = append(out, toPaymentInfoResponse(inf))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getPayment(c *gin.Context) {
	inf, err := h.payments.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentInfoResponse(inf))
}

type applyPaymentRequest struct {
	OrderIDs []string          `json:"order_ids" binding:"required"`
	Amounts  []decimal.Decimal `json:"amounts"`
}

func (h *Handler) applyPayment(c *gin.Context) {
	var req applyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	inf, err := h.payments.Apply(c.Request.Context(), callerFrom(c), appPayment.ApplyInput{
		PaymentID: c.Param("id"),
		OrderIDs:  req.OrderIDs,
		Amounts:   req.Amounts,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentInfoResponse(inf))
}

func (h *Handler) completePayment(c *gin.Context) {
	inf, err := h.payments.Complete(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentInfoResponse(inf))
}

func (h *Handler) failPayment(c *gin.Context) {
	inf, err := h.payments.Fail(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentInfoResponse(inf))
}

// --- shipments ---

type createShipmentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (h *Handler) createShipment(c *gin.Context) {
	var req createShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	sh, err := h.shipments.Create(c.Request.Context(), callerFrom(c), req.OrderID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toShipmentResponse(sh))
}

func (h *Handler) getShipment(c *gin.Context) {
	sh, err := h.shipments.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toShipmentResponse(sh))
}

func (h *Handler) shipShipment(c *gin.Context) {
	sh, err := h.shipments.Ship(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toShipmentResponse(sh))
}

func (h *Handler) deliverShipment(c *gin.Context) {
	sh, err := h.shipments.Deliver(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toShipmentResponse(sh))
}

func (h *Handler) trackShipment(c *gin.Context) {
	sh, err := h.shipments.Track(c.Request.Context(), callerFrom(c), c.Param("number"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toShipmentResponse(sh))
}
