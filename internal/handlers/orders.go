package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

// Checkout handles POST /api/v1/orders/checkout
func (h *Handlers) Checkout(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	var req models.CheckoutRequest
	if !h.bindJSON(c, &req) {
		return
	}

	order, err := h.orders.Checkout(c.Request.Context(), actor, req.SelectedProductIDs)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ListMyOrders handles GET /api/v1/orders/mine
func (h *Handlers) ListMyOrders(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	limit, offset, err := pagingFromQuery(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	page, err := h.orders.ListMyOrders(c.Request.Context(), actor, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetOrder handles GET /api/v1/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func (h *Handlers) CancelOrder(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /api/v1/orders. Optional filters: status, userId.
func (h *Handlers) ListOrders(c *gin.Context) {
	limit, offset, err := pagingFromQuery(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	filter := &models.OrderListFilter{
		UserID: c.Query("userId"),
		Limit:  limit,
		Offset: offset,
	}
	if s := c.Query("status"); s != "" {
		status := models.OrderStatus(s)
		filter.Status = &status
	}

	page, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ConfirmOrder handles PUT /api/v1/orders/:id/confirm
func (h *Handlers) ConfirmOrder(c *gin.Context) {
	order, err := h.orders.ConfirmOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id/status
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// DeleteOrder handles DELETE /api/v1/orders/:id
func (h *Handlers) DeleteOrder(c *gin.Context) {
	if err := h.orders.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pagingFromQuery(c *gin.Context) (limit, offset int, err error) {
	if limit, err = intQuery(c, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = intQuery(c, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
