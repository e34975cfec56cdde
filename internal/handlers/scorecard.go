package handlers

import (
	"github.com/arenaworks/peerview/internal/services"
	"github.com/arenaworks/peerview/pkg/response"
	"github.com/gin-gonic/gin"
)

type ScorecardHandler struct {
	scorecards *services.ScorecardService
}

func NewScorecardHandler(scorecards *services.ScorecardService) *ScorecardHandler {
	return &ScorecardHandler{scorecards: scorecards}
}

// List returns paginated scorecards
// GET /api/scorecards
func (h *ScorecardHandler) List(c *gin.Context) {
	var req services.ScorecardListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.scorecards.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// GetByID returns a scorecard with its full question tree
// GET /api/scorecards/:id
func (h *ScorecardHandler) GetByID(c *gin.Context) {
	scorecard, err := h.scorecards.GetByID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, scorecard)
}

// Create creates a scorecard (admin only)
// POST /api/scorecards
func (h *ScorecardHandler) Create(c *gin.Context) {
	var req services.CreateScorecardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	scorecard, err := h.scorecards.Create(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, scorecard)
}
