package handlers

import (
	"github.com/arenaworks/peerview/internal/middleware"
	"github.com/arenaworks/peerview/internal/services"
	"github.com/arenaworks/peerview/pkg/response"
	"github.com/gin-gonic/gin"
)

type ReviewItemHandler struct {
	reviews *services.ReviewService
}

func NewReviewItemHandler(reviews *services.ReviewService) *ReviewItemHandler {
	return &ReviewItemHandler{reviews: reviews}
}

// Update updates a review item's answers
// PATCH /api/review-items/:id
func (h *ReviewItemHandler) Update(c *gin.Context) {
	var req services.UpdateReviewItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.reviews.UpdateItem(c.Request.Context(), middleware.GetActor(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, item)
}

// Delete removes a review item and recomputes the review scores
// DELETE /api/review-items/:id
func (h *ReviewItemHandler) Delete(c *gin.Context) {
	if err := h.reviews.DeleteItem(c.Request.Context(), middleware.GetActor(c), c.Param("id"), c.Query("reviewId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// CreateComments appends comments to a review item
// POST /api/review-items/:id/comments
func (h *ReviewItemHandler) CreateComments(c *gin.Context) {
	var req services.CreateItemCommentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	comments, err := h.reviews.CreateItemComments(c.Request.Context(), middleware.GetActor(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, comments)
}
