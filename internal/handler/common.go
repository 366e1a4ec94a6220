package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"phcportal/internal/middleware"
	"phcportal/internal/policy"
	"phcportal/internal/service"
	"phcportal/pkg/pagination"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// statusOf maps a service error kind to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status its kind maps to. Unclassified errors are logged
// and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)

	var existing *service.ExistingEmailError
	if errors.As(err, &existing) {
		c.JSON(status, response.ErrorWithDetails(status, existing.Error(), gin.H{"existing_email": existing.Email}))
		return
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "Internal server error"
	}
	c.JSON(status, response.Error(status, msg))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}

// actorOf returns the principal set by the auth middleware.
func actorOf(c *gin.Context) policy.Actor {
	actor, _ := middleware.CurrentActor(c)
	return actor
}

func pageOf(c *gin.Context) (pagination.Params, service.Page) {
	p := pagination.Parse(c)
	return p, service.Page{Page: p.Page, Limit: p.Limit}
}

func paged(c *gin.Context, p pagination.Params, data interface{}, total int64) {
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, data, p.Meta(total)))
}

// dateQuery reads an optional YYYY-MM-DD (or RFC3339) query parameter. endOfDay moves a bare
// date to the start of the following day so it can be used as an exclusive bound.
func dateQuery(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return nil, errors.New("invalid " + key + " format, expected YYYY-MM-DD")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// imageOf returns the optional "image" file of a multipart form. The returned func closes
// it and is always safe to defer.
func imageOf(c *gin.Context) (*service.ImageUpload, func(), error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &service.ImageUpload{Filename: fh.Filename, Body: f}, func() { f.Close() }, nil
}

func sendWorkbook(c *gin.Context, name string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
