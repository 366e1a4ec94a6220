package handler

import (
	"net/http"

	"phcportal/internal/middleware"
	"phcportal/internal/policy"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type PHCHandler struct {
	phcService service.PHCService
	auth       *middleware.Authenticator
}

func NewPHCHandler(phcService service.PHCService, auth *middleware.Authenticator) *PHCHandler {
	return &PHCHandler{phcService: phcService, auth: auth}
}

func (h *PHCHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/public/phcs", h.ListPublicPHCs)
	router.GET("/public/phcs/:id", h.GetPHC)

	group := router.Group("/phcs", h.auth.RequireView(policy.ResourcePHCs))
	{
		group.GET("", h.ListPHCs)
		group.GET("/:id", h.GetPHC)
		group.POST("", h.CreatePHC)
		group.PUT("/:id", h.UpdatePHC)
		group.DELETE("/:id", h.DeletePHC)
	}
}

func phcFilter(c *gin.Context, page service.Page) service.PHCListFilter {
	return service.PHCListFilter{
		Search: c.Query("search"),
		LGA:    c.Query("lga"),
		Ward:   c.Query("ward"),
		Status: c.Query("status"),
		Page:   page,
	}
}

// ListPHCs handles GET /phcs
// @Summary      List PHCs
// @Tags         phcs
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Name or address"
// @Param        lga     query     string  false  "LGA"
// @Param        ward    query     string  false  "Ward"
// @Param        status  query     string  false  "active or inactive"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response{data=[]service.PHCResponse}
// @Router       /phcs [get]
func (h *PHCHandler) ListPHCs(c *gin.Context) {
	params, page := pageOf(c)
	phcs, total, err := h.phcService.List(c.Request.Context(), actorOf(c), phcFilter(c, page))
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, phcs, total)
}

// ListPublicPHCs handles GET /public/phcs
// @Summary      List active PHCs
// @Description  Facility directory for the public site. Only active PHCs are returned.
// @Tags         public
// @Produce      json
// @Param        search  query     string  false  "Name or address"
// @Param        lga     query     string  false  "LGA"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response{data=[]service.PHCResponse}
// @Router       /public/phcs [get]
func (h *PHCHandler) ListPublicPHCs(c *gin.Context) {
	params, page := pageOf(c)
	phcs, total, err := h.phcService.ListPublic(c.Request.Context(), phcFilter(c, page))
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, phcs, total)
}

// GetPHC handles GET /phcs/:id
// @Summary      Get PHC
// @Tags         phcs
// @Produce      json
// @Param        id   path      string  true  "PHC ID"
// @Success      200  {object}  response.Response{data=service.PHCResponse}
// @Failure      404  {object}  response.Response
// @Router       /phcs/{id} [get]
func (h *PHCHandler) GetPHC(c *gin.Context) {
	phc, err := h.phcService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, phc))
}

// CreatePHC handles POST /phcs
// @Summary      Create PHC
// @Description  Accepts JSON or a multipart form with an optional "image" file.
// @Tags         phcs
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.PHCRequest  true  "PHC"
// @Success      201      {object}  response.Response{data=service.PHCResponse}
// @Failure      400      {object}  response.Response
// @Failure      502      {object}  response.Response "Image upload failed"
// @Router       /phcs [post]
func (h *PHCHandler) CreatePHC(c *gin.Context) {
	var req service.PHCRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	img, closeImg, err := imageOf(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	defer closeImg()

	phc, err := h.phcService.Create(c.Request.Context(), actorOf(c), req, img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, phc))
}

// UpdatePHC handles PUT /phcs/:id
// @Summary      Update PHC
// @Tags         phcs
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string              true  "PHC ID"
// @Param        payload  body      service.PHCRequest  true  "PHC"
// @Success      200      {object}  response.Response{data=service.PHCResponse}
// @Router       /phcs/{id} [put]
func (h *PHCHandler) UpdatePHC(c *gin.Context) {
	var req service.PHCRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	img, closeImg, err := imageOf(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	defer closeImg()

	phc, err := h.phcService.Update(c.Request.Context(), actorOf(c), c.Param("id"), req, img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, phc))
}

// DeletePHC handles DELETE /phcs/:id
// @Summary      Delete PHC
// @Tags         phcs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "PHC ID"
// @Success      200  {object}  response.Response
// @Router       /phcs/{id} [delete]
func (h *PHCHandler) DeletePHC(c *gin.Context) {
	if err := h.phcService.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "PHC deleted"}))
}
