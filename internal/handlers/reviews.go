package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

// ListReviews handles GET /api/v1/products/:id/reviews
func (h *Handlers) ListReviews(c *gin.Context) {
	reviews, err := h.reviews.ListReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// AddReview handles POST /api/v1/products/:id/reviews
func (h *Handlers) AddReview(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	var req models.ReviewInput
	if !h.bindJSON(c, &req) {
		return
	}

	review, err := h.reviews.AddReview(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// UpdateReview handles PUT /api/v1/products/:id/reviews
func (h *Handlers) UpdateReview(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	var req models.ReviewInput
	if !h.bindJSON(c, &req) {
		return
	}

	review, err := h.reviews.UpdateReview(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// DeleteReview handles DELETE /api/v1/products/:id/reviews
func (h *Handlers) DeleteReview(c *gin.Context) {
	actor, ok := h.currentActor(c)
	if !ok {
		return
	}

	if err := h.reviews.DeleteReview(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
