package handler

import (
	"net/http"
	"time"

	"phcportal/internal/middleware"
	"phcportal/internal/policy"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AttendanceHandler struct {
	attendanceService service.AttendanceService
	auth              *middleware.Authenticator
}

func NewAttendanceHandler(attendanceService service.AttendanceService, auth *middleware.Authenticator) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService, auth: auth}
}

func (h *AttendanceHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Kiosk endpoints: staff identify themselves with PSN, sex and the displayed code.
	public := router.Group("/attendance")
	{
		public.POST("/verify", h.VerifyStaff)
		public.POST("/clock-in", h.ClockIn)
		public.POST("/clock-out", h.ClockOut)
	}

	admin := router.Group("/attendance", h.auth.RequireView(policy.ResourceAttendance))
	{
		admin.POST("/codes", h.GenerateCode)
		admin.GET("/codes/active", h.ActiveCode)
		admin.GET("/records", h.ListRecords)
		admin.GET("/records/export", h.ExportRecords)
		admin.GET("/summary", h.Summary)
	}
}

// GenerateCode issues a new approval code and retires the previous one
// @Summary      Generate approval code
// @Description  Creates a 6-digit code valid for 30 seconds. Any earlier code stops working immediately.
// @Tags         attendance
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  response.Response{data=service.ApprovalCodeResponse}
// @Failure      403  {object}  response.Response
// @Router       /attendance/codes [post]
func (h *AttendanceHandler) GenerateCode(c *gin.Context) {
	code, err := h.attendanceService.GenerateCode(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, code))
}

// ActiveCode returns the code currently shown on the approval screen
// @Summary      Current approval code
// @Tags         attendance
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.ApprovalCodeResponse}
// @Failure      404  {object}  response.Response "No active code"
// @Router       /attendance/codes/active [get]
func (h *AttendanceHandler) ActiveCode(c *gin.Context) {
	code, err := h.attendanceService.ActiveCode(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, code))
}

// VerifyStaff looks a staff member up before they clock in or out
// @Summary      Verify staff
// @Tags         attendance
// @Accept       json
// @Produce      json
// @Param        payload  body      service.StaffIdentityRequest  true  "PSN and gender"
// @Success      200      {object}  response.Response{data=service.StaffVerificationResponse}
// @Failure      404      {object}  response.Response
// @Router       /attendance/verify [post]
func (h *AttendanceHandler) VerifyStaff(c *gin.Context) {
	var req service.StaffIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.attendanceService.VerifyStaff(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// ClockIn opens an attendance record
// @Summary      Clock in
// @Tags         attendance
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ClockRequest  true  "PSN, gender and approval code"
// @Success      201      {object}  response.Response{data=service.AttendanceRecordResponse}
// @Failure      400      {object}  response.Response "Invalid or expired code"
// @Failure      404      {object}  response.Response "Staff not found"
// @Failure      409      {object}  response.Response "Already clocked in"
// @Router       /attendance/clock-in [post]
func (h *AttendanceHandler) ClockIn(c *gin.Context) {
	var req service.ClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.attendanceService.ClockIn(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rec))
}

// ClockOut closes the open attendance record
// @Summary      Clock out
// @Tags         attendance
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ClockRequest  true  "PSN, gender and approval code"
// @Success      200      {object}  response.Response{data=service.AttendanceRecordResponse}
// @Failure      400      {object}  response.Response "Invalid or expired code"
// @Failure      409      {object}  response.Response "Not clocked in"
// @Router       /attendance/clock-out [post]
func (h *AttendanceHandler) ClockOut(c *gin.Context) {
	var req service.ClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.attendanceService.ClockOut(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rec))
}

func (h *AttendanceHandler) listFilter(c *gin.Context) (service.AttendanceListFilter, error) {
	from, err := dateQuery(c, "from", false)
	if err != nil {
		return service.AttendanceListFilter{}, err
	}
	to, err := dateQuery(c, "to", true)
	if err != nil {
		return service.AttendanceListFilter{}, err
	}
	return service.AttendanceListFilter{
		From:   from,
		To:     to,
		Status: c.Query("status"),
		Search: c.Query("search"),
	}, nil
}

// ListRecords lists attendance records newest first
// @Summary      List attendance records
// @Tags         attendance
// @Produce      json
// @Security     BearerAuth
// @Param        from    query     string  false  "From date (YYYY-MM-DD)"
// @Param        to      query     string  false  "To date, inclusive (YYYY-MM-DD)"
// @Param        status  query     string  false  "clocked_in or clocked_out"
// @Param        search  query     string  false  "Staff name or PSN"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response{data=[]service.AttendanceRecordResponse}
// @Router       /attendance/records [get]
func (h *AttendanceHandler) ListRecords(c *gin.Context) {
	filter, err := h.listFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	params, page := pageOf(c)
	filter.Page = page
	records, total, err := h.attendanceService.ListRecords(c.Request.Context(), actorOf(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, records, total)
}

// ExportRecords downloads the filtered records as a spreadsheet
// @Summary      Export attendance records
// @Tags         attendance
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        from    query  string  false  "From date (YYYY-MM-DD)"
// @Param        to      query  string  false  "To date, inclusive (YYYY-MM-DD)"
// @Param        status  query  string  false  "clocked_in or clocked_out"
// @Success      200     {file}  file
// @Router       /attendance/records/export [get]
func (h *AttendanceHandler) ExportRecords(c *gin.Context) {
	filter, err := h.listFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	data, err := h.attendanceService.ExportRecords(c.Request.Context(), actorOf(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	sendWorkbook(c, "attendance-"+time.Now().Format("20060102")+".xlsx", data)
}

// Summary returns the day's attendance counters
// @Summary      Attendance summary
// @Tags         attendance
// @Produce      json
// @Security     BearerAuth
// @Param        date  query     string  false  "Day (YYYY-MM-DD), defaults to today"
// @Success      200   {object}  response.Response{data=service.AttendanceSummary}
// @Router       /attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	day := time.Now()
	if d, err := dateQuery(c, "date", false); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	} else if d != nil {
		day = *d
	}
	summary, err := h.attendanceService.Summary(c.Request.Context(), actorOf(c), day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}
