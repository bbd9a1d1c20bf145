package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/service"
)

// shippingRequest either references a saved address or carries a new one.
type shippingRequest struct {
	AddressID  *int64 `json:"addressId"`
	Line1      string `json:"address_line1"`
	Line2      string `json:"address_line2"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

func (r *shippingRequest) toService() service.ShippingRequest {
	if r.AddressID != nil {
		return service.ShippingRequest{AddressID: r.AddressID}
	}
	return service.ShippingRequest{Address: &models.ShippingAddress{
		Line1:      r.Line1,
		Line2:      r.Line2,
		City:       r.City,
		Province:   r.Province,
		PostalCode: r.PostalCode,
		Country:    r.Country,
		IsDefault:  r.IsDefault,
	}}
}

type paymentRequest struct {
	PaymentMethod     string `json:"paymentMethod"`
	ShippingAddressID *int64 `json:"shippingAddressId"`
}

type confirmRequest struct {
	OrderID string `json:"orderId"`
}

// SetShipping handles POST /checkout/shipping
func (h *Handlers) SetShipping(c *gin.Context) {
	var req shippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	addr, err := h.checkoutService.SetShipping(c.Request.Context(), middleware.UserID(c), req.toService())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"shippingAddressId": addr.ID,
		"address":           addr,
	})
}

// SetPayment handles POST /checkout/payment
func (h *Handlers) SetPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	outcome, err := h.checkoutService.SetPayment(c.Request.Context(), middleware.UserID(c), service.PaymentRequest{
		Method:            req.PaymentMethod,
		ShippingAddressID: req.ShippingAddressID,
	})
	if err != nil {
		if outcome != nil && errors.KindOf(err) == errors.KindPaymentDeclined {
			status, body := errorBody(err)
			body["orderId"] = outcome.OrderID
			body["paymentId"] = outcome.PaymentID
			body["status"] = outcome.Status
			c.JSON(status, body)
			return
		}
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Confirm handles POST /checkout/confirm
func (h *Handlers) Confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, err)
		return
	}

	order, err := h.checkoutService.Confirm(c.Request.Context(), middleware.UserID(c), req.OrderID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId": order.ID,
		"status":  order.Status,
		"total":   order.Total,
		"items":   order.Items,
	})
}

// GetSession handles GET /checkout/session
func (h *Handlers) GetSession(c *gin.Context) {
	view, err := h.checkoutService.GetSession(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if view.ShippingAddresses == nil {
		view.ShippingAddresses = []*models.ShippingAddress{}
	}
	c.JSON(http.StatusOK, view)
}
