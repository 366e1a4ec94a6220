package handler

import (
	"phcportal/internal/middleware"
	"phcportal/internal/policy"
	ws "phcportal/internal/websocket"

	"github.com/gin-gonic/gin"
)

// RealtimeHandler upgrades dashboard clients to the websocket event stream. Only roles that
// may view attendance receive clock and code events.
type RealtimeHandler struct {
	hub  *ws.Hub
	auth *middleware.Authenticator
}

func NewRealtimeHandler(hub *ws.Hub, auth *middleware.Authenticator) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, auth: auth}
}

func (h *RealtimeHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/ws", h.auth.RequireView(policy.ResourceAttendance), h.Serve)
}

func (h *RealtimeHandler) Serve(c *gin.Context) {
	ws.ServeWs(h.hub, c, actorOf(c).Role)
}
