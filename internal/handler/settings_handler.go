package handler

import (
	"net/http"

	"phcportal/internal/middleware"
	"phcportal/internal/policy"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	settingsService service.SettingsService
	auth            *middleware.Authenticator
}

func NewSettingsHandler(settingsService service.SettingsService, auth *middleware.Authenticator) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, auth: auth}
}

func (h *SettingsHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/settings", h.auth.RequireView(policy.ResourceSettings))
	{
		group.GET("", h.GetSettings)
		group.PUT("", h.UpdateSettings)
	}

	invitations := router.Group("/invitations", h.auth.RequireView(policy.ResourceUsers))
	{
		invitations.GET("", h.ListInvitations)
		invitations.POST("", h.CreateInvitation)
	}
}

// GetSettings handles GET /settings
// @Summary      Get settings
// @Description  Every role can read the settings; read_only is false only for super admins.
// @Tags         settings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.SettingsResponse}
// @Router       /settings [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, settings))
}

// UpdateSettings handles PUT /settings
// @Summary      Update settings
// @Tags         settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.UpdateSettingsRequest  true  "Changed fields"
// @Success      200      {object}  response.Response{data=service.SettingsResponse}
// @Failure      403      {object}  response.Response "Only super admins"
// @Router       /settings [put]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req service.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	settings, err := h.settingsService.Update(c.Request.Context(), actorOf(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, settings))
}

// ListInvitations handles GET /invitations
// @Summary      List invitations
// @Tags         settings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.InvitationResponse}
// @Router       /invitations [get]
func (h *SettingsHandler) ListInvitations(c *gin.Context) {
	params, page := pageOf(c)
	invs, total, err := h.settingsService.ListInvitations(c.Request.Context(), actorOf(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, invs, total)
}

// CreateInvitation handles POST /invitations
// @Summary      Create invitation
// @Tags         settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateInvitationRequest  true  "Invitation"
// @Success      201      {object}  response.Response{data=service.InvitationResponse}
// @Router       /invitations [post]
func (h *SettingsHandler) CreateInvitation(c *gin.Context) {
	var req service.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	inv, err := h.settingsService.CreateInvitation(c.Request.Context(), actorOf(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, inv))
}
