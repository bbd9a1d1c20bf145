package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
)

// ListAddresses handles GET /api/v1/addresses
func (h *Handlers) ListAddresses(c *gin.Context) {
	addrs, err := h.addressService.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if addrs == nil {
		addrs = []*models.ShippingAddress{}
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addrs})
}

// CreateAddress handles POST /api/v1/addresses
func (h *Handlers) CreateAddress(c *gin.Context) {
	var req models.ShippingAddress
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	addr, err := h.addressService.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addr)
}

// UpdateAddress handles PATCH /api/v1/addresses/:id
func (h *Handlers) UpdateAddress(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.handleError(c, err)
		return
	}

	var patch map[string]string
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.badRequest(c, err)
		return
	}

	addr, err := h.addressService.Update(c.Request.Context(), middleware.UserID(c), id, patch)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, addr)
}

// SetDefaultAddress handles POST /api/v1/addresses/:id/default
func (h *Handlers) SetDefaultAddress(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.handleError(c, err)
		return
	}

	addr, err := h.addressService.SetDefault(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, addr)
}
