package handler

import (
	"net/http"

	"phcportal/internal/middleware"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	auth              *middleware.Authenticator
}

func NewStatisticsHandler(statisticsService service.StatisticsService, auth *middleware.Authenticator) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, auth: auth}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/statistics")
	{
		statsGroup.GET("", h.auth.RequireAuth(), h.GetStatistics)
	}
}

// @Summary      Get Dashboard Statistics
// @Description  Counts of users, PHCs, staff, content and today's attendance for the admin dashboard
// @Tags         Statistics
// @Produce      json
// @Success      200 {object} response.Response{data=model.DashboardStatistics}
// @Failure      401 {object} response.Response "Unauthorized"
// @Failure      500 {object} response.Response "Internal server error"
// @Security     BearerAuth
// @Router       /statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	stats, err := h.statisticsService.Dashboard(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
