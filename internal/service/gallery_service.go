package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
	"phcportal/internal/storage"
)

type GalleryImageRequest struct {
	Title       string `json:"title" form:"title" binding:"required,max=255"`
	Description string `json:"description" form:"description"`
	Status      string `json:"status" form:"status" binding:"omitempty,oneof=active archived"`
}

type GalleryImageResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Status      string          `json:"status"`
	Author      *AuthorResponse `json:"author"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

type GalleryService interface {
	Create(ctx context.Context, actor policy.Actor, req GalleryImageRequest, img *ImageUpload) (*GalleryImageResponse, error)
	Update(ctx context.Context, actor policy.Actor, id string, req GalleryImageRequest, img *ImageUpload) (*GalleryImageResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
	List(ctx context.Context, actor policy.Actor, filter ContentListFilter) ([]GalleryImageResponse, int64, error)
	ListPublic(ctx context.Context, filter ContentListFilter) ([]GalleryImageResponse, int64, error)
}

type galleryService struct {
	repo         repository.GalleryRepository
	activityRepo repository.ActivityRepository
	txManager    repository.TransactionManager
	store        storage.Store
	policy       *policy.Policy
	now          func() time.Time
}

func NewGalleryService(repo repository.GalleryRepository, activityRepo repository.ActivityRepository, txManager repository.TransactionManager, store storage.Store, pol *policy.Policy) GalleryService {
	return &galleryService{
		repo:         repo,
		activityRepo: activityRepo,
		txManager:    txManager,
		store:        store,
		policy:       pol,
		now:          time.Now,
	}
}

func toGalleryResponse(g *model.GalleryImage) *GalleryImageResponse {
	return &GalleryImageResponse{
		ID:          g.ID.String(),
		Title:       g.Title,
		Description: g.Description,
		ImageURL:    g.ImageURL,
		Status:      g.Status,
		Author:      authorOf(g.Author),
		CreatedAt:   formatTime(g.CreatedAt),
		UpdatedAt:   formatTime(g.UpdatedAt),
	}
}

func applyGallery(g *model.GalleryImage, req GalleryImageRequest) {
	g.Title = strings.TrimSpace(req.Title)
	g.Description = strings.TrimSpace(req.Description)
	if req.Status != "" {
		g.Status = req.Status
	}
	if g.Status == "" {
		g.Status = model.GalleryStatusActive
	}
}

// Create requires an image; a gallery entry without one has nothing to show.
func (s *galleryService) Create(ctx context.Context, actor policy.Actor, req GalleryImageRequest, img *ImageUpload) (*GalleryImageResponse, error) {
	if !s.policy.CanMutate(actor, policy.ResourceGallery, nil) {
		return nil, forbidden("Access denied: you cannot manage the gallery")
	}
	if img == nil {
		return nil, invalid("An image file is required")
	}
	entry := &model.GalleryImage{AuthorID: userRef(actor.ID)}
	applyGallery(entry, req)

	err := saveWithImage(ctx, s.store, storage.BucketGallery, "images", img, s.now(), func(obj *storage.Object) error {
		entry.ImageURL, entry.ImagePath = obj.PublicURL, obj.Path
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.repo.Create(txCtx, entry); err != nil {
				return fmt.Errorf("failed to save gallery image: %w", err)
			}
			return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityGalleryCreate,
				"Uploaded gallery image "+entry.Title, map[string]interface{}{"image_id": entry.ID.String(), "image": describeUpload(obj)})
		})
	})
	if err != nil {
		return nil, err
	}
	return toGalleryResponse(entry), nil
}

func (s *galleryService) find(ctx context.Context, id string) (*model.GalleryImage, error) {
	gid, err := parseID(id, "gallery image")
	if err != nil {
		return nil, err
	}
	entry, err := s.repo.FindByID(ctx, gid)
	if err != nil {
		return nil, lookupErr(err, "gallery image")
	}
	return entry, nil
}

func (s *galleryService) Update(ctx context.Context, actor policy.Actor, id string, req GalleryImageRequest, img *ImageUpload) (*GalleryImageResponse, error) {
	if !s.policy.CanMutate(actor, policy.ResourceGallery, nil) {
		return nil, forbidden("Access denied: you cannot manage the gallery")
	}
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	applyGallery(entry, req)

	oldPath := entry.ImagePath
	err = saveWithImage(ctx, s.store, storage.BucketGallery, "images", img, s.now(), func(obj *storage.Object) error {
		if obj != nil {
			entry.ImageURL, entry.ImagePath = obj.PublicURL, obj.Path
		}
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.repo.Update(txCtx, entry); err != nil {
				return fmt.Errorf("failed to update gallery image: %w", err)
			}
			return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityGalleryUpdate,
				"Updated gallery image "+entry.Title, map[string]interface{}{"image_id": entry.ID.String()})
		})
	})
	if err != nil {
		return nil, err
	}
	if img != nil && oldPath != entry.ImagePath {
		replacedObject(s.store, storage.BucketGallery, oldPath)
	}
	return toGalleryResponse(entry), nil
}

func (s *galleryService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if !s.policy.CanMutate(actor, policy.ResourceGallery, nil) {
		return forbidden("Access denied: you cannot manage the gallery")
	}
	entry, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, entry.ID); err != nil {
			return fmt.Errorf("failed to delete gallery image: %w", err)
		}
		return recordActivity(txCtx, s.activityRepo, userRef(actor.ID), model.ActivityGalleryDelete,
			"Deleted gallery image "+entry.Title, map[string]interface{}{"image_id": entry.ID.String()})
	})
	if err != nil {
		return err
	}
	replacedObject(s.store, storage.BucketGallery, entry.ImagePath)
	return nil
}

func (s *galleryService) list(ctx context.Context, filter ContentListFilter) ([]GalleryImageResponse, int64, error) {
	page := filter.Page.normalize()
	images, total, err := s.repo.List(ctx, repository.ContentFilter{
		Status: filter.Status,
		Search: strings.TrimSpace(filter.Search),
		Offset: page.offset(),
		Limit:  page.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch gallery: %w", err)
	}
	res := make([]GalleryImageResponse, 0, len(images))
	for i := range images {
		res = append(res, *toGalleryResponse(&images[i]))
	}
	return res, total, nil
}

func (s *galleryService) List(ctx context.Context, actor policy.Actor, filter ContentListFilter) ([]GalleryImageResponse, int64, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceGallery) {
		return nil, 0, forbidden("Access denied: gallery")
	}
	return s.list(ctx, filter)
}

func (s *galleryService) ListPublic(ctx context.Context, filter ContentListFilter) ([]GalleryImageResponse, int64, error) {
	filter.Status = model.GalleryStatusActive
	return s.list(ctx, filter)
}
