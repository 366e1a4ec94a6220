package handler

import (
	"net/http"

	"phcportal/internal/middleware"
	"phcportal/internal/policy"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
)

// ContentHandler serves the blog and the photo gallery, both the admin screens and the
// public site.
type ContentHandler struct {
	blogService    service.BlogService
	galleryService service.GalleryService
	auth           *middleware.Authenticator
}

func NewContentHandler(blogService service.BlogService, galleryService service.GalleryService, auth *middleware.Authenticator) *ContentHandler {
	return &ContentHandler{blogService: blogService, galleryService: galleryService, auth: auth}
}

func (h *ContentHandler) RegisterRoutes(router *gin.RouterGroup) {
	public := router.Group("/public")
	{
		public.GET("/posts", h.ListPublishedPosts)
		public.GET("/posts/:id", h.GetPublishedPost)
		public.GET("/gallery", h.ListPublicGallery)
		public.GET("/blog-categories", h.Categories)
	}

	blog := router.Group("/blog", h.auth.RequireView(policy.ResourceBlog))
	{
		blog.GET("", h.ListPosts)
		blog.GET("/:id", h.GetPost)
		blog.POST("", h.CreatePost)
		blog.PUT("/:id", h.UpdatePost)
		blog.DELETE("/:id", h.DeletePost)
	}

	gallery := router.Group("/gallery", h.auth.RequireView(policy.ResourceGallery))
	{
		gallery.GET("", h.ListGallery)
		gallery.POST("", h.CreateGalleryImage)
		gallery.PUT("/:id", h.UpdateGalleryImage)
		gallery.DELETE("/:id", h.DeleteGalleryImage)
	}
}

func contentFilter(c *gin.Context, page service.Page) service.ContentListFilter {
	return service.ContentListFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     page,
	}
}

// ListPublishedPosts handles GET /public/posts
// @Summary      Published posts
// @Tags         public
// @Produce      json
// @Param        category  query     string  false  "Category"
// @Param        search    query     string  false  "Title or excerpt"
// @Param        page      query     int     false  "Page number"
// @Param        limit     query     int     false  "Page size"
// @Success      200       {object}  response.Response{data=[]service.BlogPostResponse}
// @Router       /public/posts [get]
func (h *ContentHandler) ListPublishedPosts(c *gin.Context) {
	params, page := pageOf(c)
	posts, total, err := h.blogService.ListPublished(c.Request.Context(), contentFilter(c, page))
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, posts, total)
}

// GetPublishedPost handles GET /public/posts/:id
// @Summary      Published post
// @Description  Returns the post with its markdown rendered to HTML.
// @Tags         public
// @Produce      json
// @Param        id   path      string  true  "Post ID"
// @Success      200  {object}  response.Response{data=service.BlogPostResponse}
// @Failure      404  {object}  response.Response
// @Router       /public/posts/{id} [get]
func (h *ContentHandler) GetPublishedPost(c *gin.Context) {
	post, err := h.blogService.GetPublished(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, post))
}

// Categories handles GET /public/blog-categories
// @Summary      Blog categories
// @Tags         public
// @Produce      json
// @Success      200  {object}  response.Response{data=[]string}
// @Router       /public/blog-categories [get]
func (h *ContentHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.blogService.Categories()))
}

// ListPosts handles GET /blog
// @Summary      List posts
// @Tags         blog
// @Produce      json
// @Security     BearerAuth
// @Param        status    query     string  false  "draft, published or archived"
// @Param        category  query     string  false  "Category"
// @Param        search    query     string  false  "Title or excerpt"
// @Success      200       {object}  response.Response{data=[]service.BlogPostResponse}
// @Router       /blog [get]
func (h *ContentHandler) ListPosts(c *gin.Context) {
	params, page := pageOf(c)
	posts, total, err := h.blogService.List(c.Request.Context(), actorOf(c), contentFilter(c, page))
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, posts, total)
}

// GetPost handles GET /blog/:id
// @Summary      Get post
// @Tags         blog
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Post ID"
// @Success      200  {object}  response.Response{data=service.BlogPostResponse}
// @Router       /blog/{id} [get]
func (h *ContentHandler) GetPost(c *gin.Context) {
	post, err := h.blogService.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, post))
}

// CreatePost handles POST /blog
// @Summary      Create post
// @Description  Accepts JSON or a multipart form with an optional "image" file.
// @Tags         blog
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.BlogPostRequest  true  "Post"
// @Success      201      {object}  response.Response{data=service.BlogPostResponse}
// @Failure      400      {object}  response.Response
// @Router       /blog [post]
func (h *ContentHandler) CreatePost(c *gin.Context) {
	var req service.BlogPostRequest
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

	post, err := h.blogService.Create(c.Request.Context(), actorOf(c), req, img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, post))
}

// UpdatePost handles PUT /blog/:id
// @Summary      Update post
// @Tags         blog
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true  "Post ID"
// @Param        payload  body      service.BlogPostRequest  true  "Post"
// @Success      200      {object}  response.Response{data=service.BlogPostResponse}
// @Router       /blog/{id} [put]
func (h *ContentHandler) UpdatePost(c *gin.Context) {
	var req service.BlogPostRequest
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

	post, err := h.blogService.Update(c.Request.Context(), actorOf(c), c.Param("id"), req, img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, post))
}

// DeletePost handles DELETE /blog/:id
// @Summary      Delete post
// @Tags         blog
// @Security     BearerAuth
// @Param        id   path      string  true  "Post ID"
// @Success      200  {object}  response.Response
// @Router       /blog/{id} [delete]
func (h *ContentHandler) DeletePost(c *gin.Context) {
	if err := h.blogService.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Post deleted"}))
}

// ListPublicGallery handles GET /public/gallery
// @Summary      Public gallery
// @Tags         public
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.GalleryImageResponse}
// @Router       /public/gallery [get]
func (h *ContentHandler) ListPublicGallery(c *gin.Context) {
	params, page := pageOf(c)
	images, total, err := h.galleryService.ListPublic(c.Request.Context(), contentFilter(c, page))
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, images, total)
}

// ListGallery handles GET /gallery
// @Summary      List gallery images
// @Tags         gallery
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.GalleryImageResponse}
// @Router       /gallery [get]
func (h *ContentHandler) ListGallery(c *gin.Context) {
	params, page := pageOf(c)
	images, total, err := h.galleryService.List(c.Request.Context(), actorOf(c), contentFilter(c, page))
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, params, images, total)
}

// CreateGalleryImage handles POST /gallery
// @Summary      Upload gallery image
// @Tags         gallery
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        title        formData  string  true   "Title"
// @Param        description  formData  string  false  "Description"
// @Param        image        formData  file    true   "Image"
// @Success      201          {object}  response.Response{data=service.GalleryImageResponse}
// @Router       /gallery [post]
func (h *ContentHandler) CreateGalleryImage(c *gin.Context) {
	var req service.GalleryImageRequest
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

	entry, err := h.galleryService.Create(c.Request.Context(), actorOf(c), req, img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, entry))
}

// UpdateGalleryImage handles PUT /gallery/:id
// @Summary      Update gallery image
// @Tags         gallery
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Image ID"
// @Success      200  {object}  response.Response{data=service.GalleryImageResponse}
// @Router       /gallery/{id} [put]
func (h *ContentHandler) UpdateGalleryImage(c *gin.Context) {
	var req service.GalleryImageRequest
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

	entry, err := h.galleryService.Update(c.Request.Context(), actorOf(c), c.Param("id"), req, img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}

// DeleteGalleryImage handles DELETE /gallery/:id
// @Summary      Delete gallery image
// @Tags         gallery
// @Security     BearerAuth
// @Param        id   path      string  true  "Image ID"
// @Success      200  {object}  response.Response
// @Router       /gallery/{id} [delete]
func (h *ContentHandler) DeleteGalleryImage(c *gin.Context) {
	if err := h.galleryService.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Image deleted"}))
}
