package handler

import (
	"net/http"

	"phcportal/internal/middleware"
	"phcportal/internal/policy"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	activityService service.ActivityService
	auth            *middleware.Authenticator
}

func NewActivityHandler(activityService service.ActivityService, auth *middleware.Authenticator) *ActivityHandler {
	return &ActivityHandler{activityService: activityService, auth: auth}
}

func (h *ActivityHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/activity-logs")
	group.Use(h.auth.RequireView(policy.ResourceActivityLogs))
	{
		group.GET("", h.GetActivityLogs)
		group.GET("/stats", h.GetActivityStats)
	}
}

// GetActivityLogs retrieves paginated activity entries with their users preloaded
// @Summary      Get activity logs
// @Description  Lists the audit trail newest first. Super admin activity is only shown to super admins.
// @Tags         activity
// @Security     BearerAuth
// @Produce      json
// @Param        user_id        query     string  false  "Only entries by this user"
// @Param        activity_type  query     string  false  "Activity type, e.g. login or staff_create"
// @Param        from           query     string  false  "From date (YYYY-MM-DD)"
// @Param        to             query     string  false  "To date, inclusive (YYYY-MM-DD)"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Number of items per page (default 20)"
// @Success      200            {object}  response.Response{data=[]service.ActivityLogResponse}
// @Router       /activity-logs [get]
func (h *ActivityHandler) GetActivityLogs(c *gin.Context) {
	from, err := dateQuery(c, "from", false)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	to, err := dateQuery(c, "to", true)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	params, page := pageOf(c)
	logs, total, err := h.activityService.List(c.Request.Context(), actorOf(c), service.ActivityLogFilter{
		UserID: c.Query("user_id"),
		Type:   c.Query("activity_type"),
		From:   from,
		To:     to,
		Page:   page,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, logs, total)
}

// GetActivityStats returns totals per activity type
// @Summary      Activity statistics
// @Tags         activity
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.ActivityStats}
// @Router       /activity-logs/stats [get]
func (h *ActivityHandler) GetActivityStats(c *gin.Context) {
	stats, err := h.activityService.Stats(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
