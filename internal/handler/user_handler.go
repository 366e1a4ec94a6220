package handler

import (
	"net/http"

	"phcportal/internal/middleware"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
	auth        *middleware.Authenticator
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(userService service.UserService, auth *middleware.Authenticator) *UserHandler {
	return &UserHandler{userService: userService, auth: auth}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup.
// PHC administrators reach these routes too, so visibility is decided per account in the service.
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users", h.auth.RequireAuth())
	{
		users.GET("", h.ListUsers)
		users.GET("/role-options", h.RoleOptions)
		users.GET("/:id", h.GetUserByID)
		users.PUT("/:id", h.UpdateUser)
		users.POST("/:id/approve", h.ApproveUser)
		users.POST("/:id/reject", h.RejectUser)
		users.PUT("/:id/role", h.ChangeRole)
		users.DELETE("/:id", h.DeleteUser)
	}
}

// ListUsers handles GET /users
// @Summary      List users
// @Description  Lists the accounts the caller may see. Super admins are hidden from everyone else.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "pending, approved or rejected"
// @Param        role    query     string  false  "Role filter"
// @Param        search  query     string  false  "Name, email or username"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response{data=[]service.UserResponse}
// @Failure      403     {object}  response.Response
// @Router       /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	params, page := pageOf(c)
	users, total, err := h.userService.ListUsers(c.Request.Context(), actorOf(c), service.UserListFilter{
		Status: c.Query("status"),
		Role:   c.Query("role"),
		Search: c.Query("search"),
		Page:   page,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, users, total)
}

// RoleOptions lists the roles the caller may assign and filter by
// @Summary      Role options
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.RoleOptionsResponse}
// @Router       /users/role-options [get]
func (h *UserHandler) RoleOptions(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.userService.RoleOptions(actorOf(c))))
}

// GetUserByID handles GET /users/:id
// @Summary      Get user by ID
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Router       /users/{id} [get]
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// UpdateUser handles PUT /users/:id
// @Summary      Update user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.UpdateUserRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.userService.UpdateUser(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// ApproveUser handles POST /users/:id/approve
// @Summary      Approve user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      403  {object}  response.Response
// @Router       /users/{id}/approve [post]
func (h *UserHandler) ApproveUser(c *gin.Context) {
	user, err := h.userService.ApproveUser(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// RejectUser handles POST /users/:id/reject
// @Summary      Reject user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      403  {object}  response.Response
// @Router       /users/{id}/reject [post]
func (h *UserHandler) RejectUser(c *gin.Context) {
	user, err := h.userService.RejectUser(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// ChangeRole handles PUT /users/:id/role
// @Summary      Change role
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.ChangeRoleRequest  true  "New role"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      403      {object}  response.Response
// @Router       /users/{id}/role [put]
func (h *UserHandler) ChangeRole(c *gin.Context) {
	var req service.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.userService.ChangeRole(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeleteUser handles DELETE /users/:id
// @Summary      Delete user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "User deleted"}))
}
