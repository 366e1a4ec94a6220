package handler

import (
	"net/http"

	"phcportal/internal/middleware"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService     service.AuthService
	settingsService service.SettingsService
	auth            *middleware.Authenticator
}

func NewAuthHandler(authService service.AuthService, settingsService service.SettingsService, auth *middleware.Authenticator) *AuthHandler {
	return &AuthHandler{authService: authService, settingsService: settingsService, auth: auth}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.GET("/signup-settings", h.SignupSettings)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.auth.OptionalAuth(), h.Logout)
		authGroup.GET("/me", h.auth.RequireAuth(), h.Me)
		authGroup.PUT("/me", h.auth.RequireAuth(), h.UpdateProfile)
	}
}

// Signup registers a new account
// @Summary      Sign up
// @Description  Creates an account. Depending on the signup settings it starts pending or needs an invitation code.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SignupRequest  true  "Signup payload"
// @Success      201      {object}  response.Response{data=service.SignupResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response "Signups are closed"
// @Failure      409      {object}  response.Response
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.authService.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// SignupSettings tells the signup page which fields to show
// @Summary      Signup settings
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.SignupSettings}
// @Router       /auth/signup-settings [get]
func (h *AuthHandler) SignupSettings(c *gin.Context) {
	settings, err := h.settingsService.SignupSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, settings))
}

// Login handles POST /auth/login to authenticate and return a JWT token
// @Summary      Login user
// @Description  Authenticates an approved account by email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginUserRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response "Account not approved"
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	tokenRes, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	// Set tokens as HttpOnly cookies
	h.auth.SetTokenCookies(c, tokenRes.Token, tokenRes.RefreshToken)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// Refresh rotates the refresh token
// @Summary      Refresh tokens
// @Description  Exchanges a refresh token (cookie or body) for a new token pair. The old refresh token is revoked.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshTokenRequest  false  "Refresh token when no cookie is sent"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      401      {object}  response.Response
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshCookie)
	if token == "" {
		var req service.RefreshTokenRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}

	tokenRes, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		h.auth.ClearTokenCookies(c)
		respondError(c, err)
		return
	}
	h.auth.SetTokenCookies(c, tokenRes.Token, tokenRes.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tokenRes))
}

// Logout revokes the refresh token and clears the cookies
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshCookie)
	if token == "" {
		var req service.RefreshTokenRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}

	var userID *uuid.UUID
	if actor, ok := middleware.CurrentActor(c); ok {
		id := actor.ID
		userID = &id
	}
	if err := h.authService.Logout(c.Request.Context(), userID, token); err != nil {
		respondError(c, err)
		return
	}
	h.auth.ClearTokenCookies(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out"}))
}

// Me returns the signed-in user with the navigation the role matrix allows
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.MeResponse}
// @Failure      401  {object}  response.Response
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	me, err := h.authService.Me(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, me))
}

// UpdateProfile edits the signed-in user's own profile
// @Summary      Update own profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.UpdateProfileRequest  true  "Profile fields"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Router       /auth/me [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.authService.UpdateProfile(c.Request.Context(), actorOf(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}
