package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
	"phcportal/internal/storage"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

const excerptLength = 200

// Raw HTML inside posts is escaped.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
)

var youtubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

type BlogPostRequest struct {
	Title      string `json:"title" form:"title" binding:"required,max=255"`
	Excerpt    string `json:"excerpt" form:"excerpt"`
	Content    string `json:"content" form:"content" binding:"required"`
	Category   string `json:"category" form:"category" binding:"required"`
	YouTubeURL string `json:"youtube_url" form:"youtube_url"`
	Status     string `json:"status" form:"status" binding:"omitempty,oneof=draft published archived"`
}

type ContentListFilter struct {
	Status   string
	Category string
	Search   string
	Page     Page
}

type AuthorResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

type BlogPostResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Excerpt     string          `json:"excerpt"`
	Content     string          `json:"content"`
	ContentHTML string          `json:"content_html,omitempty"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	YouTubeURL  string          `json:"youtube_url"`
	Status      string          `json:"status"`
	Author      *AuthorResponse `json:"author"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

type BlogService interface {
	Create(ctx context.Context, actor policy.Actor, req BlogPostRequest, img *ImageUpload) (*BlogPostResponse, error)
	Update(ctx context.Context, actor policy.Actor, id string, req BlogPostRequest, img *ImageUpload) (*BlogPostResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
	Get(ctx context.Context, actor policy.Actor, id string) (*BlogPostResponse, error)
	List(ctx context.Context, actor policy.Actor, filter ContentListFilter) ([]BlogPostResponse, int64, error)
	ListPublished(ctx context.Context, filter ContentListFilter) ([]BlogPostResponse, int64, error)
	GetPublished(ctx context.Context, id string) (*BlogPostResponse, error)
	Categories() []string
}

type blogService struct {
	repo         repository.BlogRepository
	activityRepo repository.ActivityRepository
	txManager    repository.TransactionManager
	store        storage.Store
	policy       *policy.Policy
	now          func() time.Time
}

func NewBlogService(repo repository.BlogRepository, activityRepo repository.ActivityRepository, txManager repository.TransactionManager, store storage.Store, pol *policy.Policy) BlogService {
	return &blogService{
		repo:         repo,
		activityRepo: activityRepo,
		txManager:    txManager,
		store:        store,
		policy:       pol,
		now:          time.Now,
	}
}

// YouTubeEmbedURL accepts watch, short, shorts and embed links and returns the embed form.
// An empty input yields an empty result.
func YouTubeEmbedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", invalid("Invalid YouTube URL")
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		}
	}
	id = strings.TrimSuffix(id, "/")
	if !youtubeID.MatchString(id) {
		return "", invalid("Invalid YouTube URL")
	}
	return "https://www.youtube.com/embed/" + id, nil
}

// makeExcerpt takes the first paragraph of content, cut at a word boundary.
func makeExcerpt(content string) string {
	text := strings.TrimSpace(content)
	if i := strings.Index(text, "\n\n"); i >= 0 {
		text = text[:i]
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= excerptLength {
		return text
	}
	runes := []rune(text)[:excerptLength]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > excerptLength/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return buf.String()
}

func authorOf(u *model.User) *AuthorResponse {
	if u == nil {
		return nil
	}
	return &AuthorResponse{ID: u.ID.String(), FullName: u.FullName}
}

func toBlogResponse(p *model.BlogPost) *BlogPostResponse {
	return &BlogPostResponse{
		ID:         p.ID.String(),
		Title:      p.Title,
		Excerpt:    p.Excerpt,
		Content:    p.Content,
		Category:   p.Category,
		ImageURL:   p.ImageURL,
		YouTubeURL: p.YouTubeURL,
		Status:     p.Status,
		Author:     authorOf(p.Author),
		CreatedAt:  formatTime(p.CreatedAt),
		UpdatedAt:  formatTime(p.UpdatedAt),
	}
}

func (s *blogService) apply(p *model.BlogPost, req BlogPostRequest) error {
	if !model.IsBlogCategory(req.Category) {
		return invalid("Unknown category %q", req.Category)
	}
	embed, err := YouTubeEmbedURL(req.YouTubeURL)
	if err != nil {
		return err
	}
	p.Title = strings.TrimSpace(req.Title)
	p.Content = req.Content
	p.Category = req.Category
	p.YouTubeURL = embed
	p.Excerpt = strings.TrimSpace(req.Excerpt)
	if p.Excerpt == "" {
		p.Excerpt = makeExcerpt(req.Content)
	}
	if req.Status != "" {
		p.Status = req.Status
	}
	if p.Status == "" {
		p.Status = model.PostStatusDraft
	}
	return nil
}

func (s *blogService) Create(ctx context.Context, actor policy.Actor, req BlogPostRequest, img *ImageUpload) (*BlogPostResponse, error) {
	if !s.policy.CanMutate(actor, policy.ResourceBlog, nil) {
		return nil, forbidden("Access denied: you cannot manage blog posts")
	}
	post := &model.BlogPost{AuthorID: userRef(actor.ID)}
	if err := s.apply(post, req); err != nil {
		return nil, err
	}

	err := saveWithImage(ctx, s.store, storage.BucketBlogImages, "posts", img, s.now(), func(obj *storage.Object) error {
		if obj != nil {
			post.ImageURL, post.ImagePath = obj.PublicURL, obj.Path
		}
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.repo.Create(txCtx, post); err != nil {
				return fmt.Errorf("failed to create post: %w", err)
			}
			return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityBlogPostCreate,
				"Created blog post "+post.Title, map[string]interface{}{"post_id": post.ID.String(), "status": post.Status})
		})
	})
	if err != nil {
		return nil, err
	}
	return toBlogResponse(post), nil
}

func (s *blogService) find(ctx context.Context, id string) (*model.BlogPost, error) {
	pid, err := parseID(id, "post")
	if err != nil {
		return nil, err
	}
	post, err := s.repo.FindByID(ctx, pid)
	if err != nil {
		return nil, lookupErr(err, "post")
	}
	return post, nil
}

func (s *blogService) Update(ctx context.Context, actor policy.Actor, id string, req BlogPostRequest, img *ImageUpload) (*BlogPostResponse, error) {
	if !s.policy.CanMutate(actor, policy.ResourceBlog, nil) {
		return nil, forbidden("Access denied: you cannot manage blog posts")
	}
	post, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(post, req); err != nil {
		return nil, err
	}

	oldPath := post.ImagePath
	err = saveWithImage(ctx, s.store, storage.BucketBlogImages, "posts", img, s.now(), func(obj *storage.Object) error {
		if obj != nil {
			post.ImageURL, post.ImagePath = obj.PublicURL, obj.Path
		}
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.repo.Update(txCtx, post); err != nil {
				return fmt.Errorf("failed to update post: %w", err)
			}
			return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityBlogPostUpdate,
				"Updated blog post "+post.Title, map[string]interface{}{"post_id": post.ID.String(), "status": post.Status})
		})
	})
	if err != nil {
		return nil, err
	}
	if img != nil && oldPath != post.ImagePath {
		replacedObject(s.store, storage.BucketBlogImages, oldPath)
	}
	return toBlogResponse(post), nil
}

func (s *blogService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if !s.policy.CanMutate(actor, policy.ResourceBlog, nil) {
		return forbidden("Access denied: you cannot manage blog posts")
	}
	post, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, post.ID); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityBlogPostDelete,
			"Deleted blog post "+post.Title, map[string]interface{}{"post_id": post.ID.String()})
	})
	if err != nil {
		return err
	}
	replacedObject(s.store, storage.BucketBlogImages, post.ImagePath)
	return nil
}

func (s *blogService) Get(ctx context.Context, actor policy.Actor, id string) (*BlogPostResponse, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceBlog) {
		return nil, forbidden("Access denied: blog")
	}
	post, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toBlogResponse(post), nil
}

func (s *blogService) list(ctx context.Context, filter ContentListFilter) ([]BlogPostResponse, int64, error) {
	page := filter.Page.normalize()
	posts, total, err := s.repo.List(ctx, repository.ContentFilter{
		Status:   filter.Status,
		Category: filter.Category,
		Search:   strings.TrimSpace(filter.Search),
		Offset:   page.offset(),
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch posts: %w", err)
	}
	res := make([]BlogPostResponse, 0, len(posts))
	for i := range posts {
		res = append(res, *toBlogResponse(&posts[i]))
	}
	return res, total, nil
}

func (s *blogService) List(ctx context.Context, actor policy.Actor, filter ContentListFilter) ([]BlogPostResponse, int64, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceBlog) {
		return nil, 0, forbidden("Access denied: blog")
	}
	return s.list(ctx, filter)
}

func (s *blogService) ListPublished(ctx context.Context, filter ContentListFilter) ([]BlogPostResponse, int64, error) {
	filter.Status = model.PostStatusPublished
	return s.list(ctx, filter)
}

// GetPublished returns a published post with its markdown rendered to HTML.
func (s *blogService) GetPublished(ctx context.Context, id string) (*BlogPostResponse, error) {
	post, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status != model.PostStatusPublished {
		return nil, notFound("post")
	}
	res := toBlogResponse(post)
	res.ContentHTML = renderMarkdown(post.Content)
	return res, nil
}

func (s *blogService) Categories() []string {
	out := make([]string, len(model.BlogCategories))
	copy(out, model.BlogCategories)
	return out
}
