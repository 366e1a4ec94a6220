package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"phcportal/internal/middleware"
	"phcportal/internal/policy"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type StaffHandler struct {
	staffService service.StaffService
	emailService service.StaffEmailService
	auth         *middleware.Authenticator
}

func NewStaffHandler(staffService service.StaffService, emailService service.StaffEmailService, auth *middleware.Authenticator) *StaffHandler {
	return &StaffHandler{staffService: staffService, emailService: emailService, auth: auth}
}

func (h *StaffHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Staff request their own mailbox from the public site.
	router.POST("/staff-emails", h.CreateStaffEmail)

	group := router.Group("/staff", h.auth.RequireView(policy.ResourceStaff))
	{
		group.GET("", h.SearchStaff)
		group.GET("/stats", h.StaffStats)
		group.GET("/export", h.ExportStaff)
		group.GET("/emails", h.ListStaffEmails)
		group.GET("/:id", h.GetStaff)
		group.POST("", h.CreateStaff)
		group.PUT("/:id", h.UpdateStaff)
		group.DELETE("/:id", h.DeleteStaff)
	}
}

func optionalInt(c *gin.Context, key string) (*int, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.New(key + " must be a number")
	}
	return &n, nil
}

func staffFilter(c *gin.Context) (service.StaffSearchFilter, error) {
	minAge, err := optionalInt(c, "min_age")
	if err != nil {
		return service.StaffSearchFilter{}, err
	}
	maxAge, err := optionalInt(c, "max_age")
	if err != nil {
		return service.StaffSearchFilter{}, err
	}
	return service.StaffSearchFilter{
		Search: c.Query("search"),
		Sex:    c.Query("sex"),
		LGA:    c.Query("lga"),
		Tier:   c.Query("tier"),
		Cadre:  c.Query("cadre"),
		MinAge: minAge,
		MaxAge: maxAge,
	}, nil
}

// SearchStaff handles GET /staff
// @Summary      Search staff
// @Description  Searches the nominal roll by name, PSN or rank with optional sex, LGA, tier, cadre and age filters.
// @Tags         staff
// @Produce      json
// @Security     BearerAuth
// @Param        search   query     string  false  "Name, PSN or rank"
// @Param        sex      query     string  false  "Male or Female"
// @Param        lga      query     string  false  "LGA"
// @Param        tier     query     string  false  "Tier"
// @Param        cadre    query     string  false  "Cadre"
// @Param        min_age  query     int     false  "Minimum age"
// @Param        max_age  query     int     false  "Maximum age"
// @Param        page     query     int     false  "Page number"
// @Param        limit    query     int     false  "Page size"
// @Success      200      {object}  response.Response{data=[]service.StaffResponse}
// @Router       /staff [get]
func (h *StaffHandler) SearchStaff(c *gin.Context) {
	filter, err := staffFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	params, page := pageOf(c)
	filter.Page = page
	staff, total, err := h.staffService.Search(c.Request.Context(), actorOf(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, staff, total)
}

// StaffStats handles GET /staff/stats
// @Summary      Staff statistics
// @Tags         staff
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.StaffStats}
// @Router       /staff/stats [get]
func (h *StaffHandler) StaffStats(c *gin.Context) {
	stats, err := h.staffService.Stats(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// ExportStaff handles GET /staff/export
// @Summary      Export staff
// @Tags         staff
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Success      200  {file}  file
// @Router       /staff/export [get]
func (h *StaffHandler) ExportStaff(c *gin.Context) {
	filter, err := staffFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	data, err := h.staffService.Export(c.Request.Context(), actorOf(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	sendWorkbook(c, "staff-"+time.Now().Format("20060102")+".xlsx", data)
}

// GetStaff handles GET /staff/:id
// @Summary      Get staff
// @Tags         staff
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Staff ID"
// @Success      200  {object}  response.Response{data=service.StaffResponse}
// @Failure      404  {object}  response.Response
// @Router       /staff/{id} [get]
func (h *StaffHandler) GetStaff(c *gin.Context) {
	st, err := h.staffService.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, st))
}

// CreateStaff handles POST /staff
// @Summary      Create staff
// @Tags         staff
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.StaffRequest  true  "Staff"
// @Success      201      {object}  response.Response{data=service.StaffResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response "PSN already registered"
// @Router       /staff [post]
func (h *StaffHandler) CreateStaff(c *gin.Context) {
	var req service.StaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := h.staffService.Create(c.Request.Context(), actorOf(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, st))
}

// UpdateStaff handles PUT /staff/:id
// @Summary      Update staff
// @Tags         staff
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                true  "Staff ID"
// @Param        payload  body      service.StaffRequest  true  "Staff"
// @Success      200      {object}  response.Response{data=service.StaffResponse}
// @Router       /staff/{id} [put]
func (h *StaffHandler) UpdateStaff(c *gin.Context) {
	var req service.StaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := h.staffService.Update(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, st))
}

// DeleteStaff handles DELETE /staff/:id
// @Summary      Delete staff
// @Tags         staff
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Staff ID"
// @Success      200  {object}  response.Response
// @Router       /staff/{id} [delete]
func (h *StaffHandler) DeleteStaff(c *gin.Context) {
	if err := h.staffService.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Staff deleted"}))
}

// CreateStaffEmail provisions an official mailbox for a staff member
// @Summary      Create staff email
// @Description  Verifies PSN and sex against the nominal roll, records the address and creates the mailbox on the mail host when configured.
// @Tags         staff-emails
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateStaffEmailRequest  true  "Mailbox request"
// @Success      201      {object}  response.Response{data=service.CreateStaffEmailResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response "Staff not found"
// @Failure      409      {object}  response.Response "An email already exists for this PSN"
// @Router       /staff-emails [post]
func (h *StaffHandler) CreateStaffEmail(c *gin.Context) {
	var req service.CreateStaffEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.emailService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// ListStaffEmails handles GET /staff/emails
// @Summary      List staff emails
// @Tags         staff-emails
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "PSN or email"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response{data=[]service.StaffEmailResponse}
// @Router       /staff/emails [get]
func (h *StaffHandler) ListStaffEmails(c *gin.Context) {
	params, page := pageOf(c)
	emails, total, err := h.emailService.List(c.Request.Context(), actorOf(c), c.Query("search"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, emails, total)
}
