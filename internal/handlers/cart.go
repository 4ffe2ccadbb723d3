package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

// GetCart handles GET /api/v1/cart
func (h *Handlers) GetCart(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	cart, err := h.carts.Get(c.Request.Context(), actor.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// AddCartItem handles POST /api/v1/cart/items
func (h *Handlers) AddCartItem(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	var req models.CartItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	cart, err := h.carts.AddItem(c.Request.Context(), actor.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// UpdateCartItem handles PUT /api/v1/cart/items
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	var req models.CartItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	cart, err := h.carts.UpdateQuantity(c.Request.Context(), actor.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// RemoveCartItem handles DELETE /api/v1/cart/items/:productId
func (h *Handlers) RemoveCartItem(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(c.Request.Context(), actor.UserID, c.Param("productId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// ClearCart handles DELETE /api/v1/cart
func (h *Handlers) ClearCart(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	if err := h.carts.Clear(c.Request.Context(), actor.UserID); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
