package httppresentation

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zenshop/orderengine/internal/domain/catalog"
	"github.com/zenshop/orderengine/internal/domain/fault"
	domainOrder "github.com/zenshop/orderengine/internal/domain/order"
	appPayment "github.com/zenshop/orderengine/internal/application/payment"
	domainPayment "github.com/zenshop/orderengine/internal/domain/payment"
	domainShipment "github.com/zenshop/orderengine/internal/domain/shipment"
)

func writeError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// writeDomainError maps the fault kind to a transport status. Unclassified
// errors stay opaque 500s.
func writeDomainError(c *gin.Context, err error) {
	switch fault.KindOf(err) {
	case fault.KindValidation:
		writeError(c, http.StatusBadRequest, err)
	case fault.KindNotFound:
		writeError(c, http.StatusNotFound, err)
	case fault.KindConflict:
		writeError(c, http.StatusConflict, err)
	case fault.KindPermission:
		writeError(c, http.StatusForbidden, err)
	default:
		writeError(c, http.StatusInternalServerError, err)
	}
}

// Money renders as a fixed two-decimal string on the wire.

type productResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Stock  int    `json:"stock"`
	Active bool   `json:"active"`
}

func toProductResponse(p *catalog.Product) productResponse {
	return productResponse{
		ID:     p.ID,
		Name:   p.Name,
		Price:  p.Price.StringFixed(2),
		Stock:  p.Stock,
		Active: p.Active,
	}
}

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Status    string              `json:"status"`
	Total     string              `json:"total"`
	Items     []orderItemResponse `json:"items"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Subtotal:  it.Subtotal().StringFixed(2),
		})
	}
	return orderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    string(o.Status),
		Total:     o.Total.StringFixed(2),
		Items:     items,
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
		UpdatedAt: o.UpdatedAt.Format(time.RFC3339),
	}
}

type paymentResponse struct {
	ID        string `json:"id"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func toPaymentResponse(p *domainPayment.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		Amount:    p.Amount.StringFixed(2),
		Method:    string(p.Method),
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

type applicationResponse struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

type paymentInfoResponse struct {
	paymentResponse
	Applications []applicationResponse `json:"applications"`
	Applied      string                `json:"applied"`
	Remaining    string                `json:"remaining"`
}

func toPaymentInfoResponse(inf *appPayment.Info) paymentInfoResponse {
	apps := make([]applicationResponse, 0, len(inf.Applications))
	for _, app := range inf.Applications {
		apps = append(apps, applicationResponse{
			ID:        app.ID,
			OrderID:   app.OrderID,
			PaymentID: app.PaymentID,
			Amount:    app.Amount.StringFixed(2),
			CreatedAt: app.CreatedAt.Format(time.RFC3339),
		})
	}
	return paymentInfoResponse{
		paymentResponse: toPaymentResponse(inf.Payment),
		Applications:    apps,
		Applied:         inf.Applied.StringFixed(2),
		Remaining:       inf.Remaining.StringFixed(2),
	}
}

type shipmentResponse struct {
	ID             string  `json:"id"`
	OrderID        string  `json:"order_id"`
	Status         string  `json:"status"`
	TrackingNumber string  `json:"tracking_number,omitempty"`
	ShippedAt      *string `json:"shipped_at,omitempty"`
	DeliveredAt    *string `json:"delivered_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func toShipmentResponse(s *domainShipment.Shipment) shipmentResponse {
	resp := shipmentResponse{
		ID:             s.ID,
		OrderID:        s.OrderID,
		Status:         string(s.Status),
		TrackingNumber: s.TrackingNumber,
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
	}
	if s.ShippedAt != nil {
		v := s.ShippedAt.Format(time.RFC3339)
		resp.ShippedAt = &v
	}
	if s.DeliveredAt != nil {
		v := s.DeliveredAt.Format(time.RFC3339)
		resp.DeliveredAt = &v
	}
	return resp
}
