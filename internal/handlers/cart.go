package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/middleware"
)

type addCartItemRequest struct {
	BookID   int64 `json:"bookId" binding:"required"`
	Quantity int   `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// GetCart handles GET /api/v1/cart
func (h *Handlers) GetCart(c *gin.Context) {
	cart, err := h.cartService.GetCart(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// AddCartItem handles POST /api/v1/cart/items
func (h *Handlers) AddCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	item, err := h.cartService.AddItem(c.Request.Context(), middleware.UserID(c), req.BookID, req.Quantity)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// SetCartItemQuantity handles PUT /api/v1/cart/items/:bookId
func (h *Handlers) SetCartItemQuantity(c *gin.Context) {
	bookID, err := parseIDParam(c, "bookId")
	if err != nil {
		h.handleError(c, err)
		return
	}

	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if req.Quantity == nil {
		h.handleError(c, errors.NewValidationError("quantity", "quantity is required"))
		return
	}

	item, err := h.cartService.SetItemQuantity(c.Request.Context(), middleware.UserID(c), bookID, *req.Quantity)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, gin.H{"removed": true})
		return
	}
	c.JSON(http.StatusOK, item)
}

// RemoveCartItem handles DELETE /api/v1/cart/items/:bookId
func (h *Handlers) RemoveCartItem(c *gin.Context) {
	bookID, err := parseIDParam(c, "bookId")
	if err != nil {
		h.handleError(c, err)
		return
	}

	if err := h.cartService.RemoveItem(c.Request.Context(), middleware.UserID(c), bookID); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// ClearCart handles DELETE /api/v1/cart
func (h *Handlers) ClearCart(c *gin.Context) {
	removed, err := h.cartService.Clear(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
