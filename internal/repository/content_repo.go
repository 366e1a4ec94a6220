package repository

import (
	"context"

	"phcportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContentFilter struct {
	Status   string
	Category string
	Search   string
	Offset   int
	Limit    int
}

type BlogRepository interface {
	Create(ctx context.Context, post *model.BlogPost) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.BlogPost, error)
	List(ctx context.Context, filter ContentFilter) ([]model.BlogPost, int64, error)
	Update(ctx context.Context, post *model.BlogPost) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type GalleryRepository interface {
	Create(ctx context.Context, image *model.GalleryImage) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.GalleryImage, error)
	List(ctx context.Context, filter ContentFilter) ([]model.GalleryImage, int64, error)
	Update(ctx context.Context, image *model.GalleryImage) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type blogRepository struct {
	db *gorm.DB
}

func NewBlogRepository(db *gorm.DB) BlogRepository {
	return &blogRepository{db: db}
}

func (r *blogRepository) Create(ctx context.Context, post *model.BlogPost) error {
	return GetDB(ctx, r.db).Omit("Author").Create(post).Error
}

func (r *blogRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.BlogPost, error) {
	var post model.BlogPost
	if err := GetDB(ctx, r.db).Preload("Author").First(&post, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *blogRepository) List(ctx context.Context, filter ContentFilter) ([]model.BlogPost, int64, error) {
	var posts []model.BlogPost
	var total int64

	query := GetDB(ctx, r.db).Model(&model.BlogPost{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("title ILIKE ? OR excerpt ILIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Author").Order("created_at DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *blogRepository) Update(ctx context.Context, post *model.BlogPost) error {
	return GetDB(ctx, r.db).Omit("Author").Save(post).Error
}

func (r *blogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.BlogPost{}).Error
}

type galleryRepository struct {
	db *gorm.DB
}

func NewGalleryRepository(db *gorm.DB) GalleryRepository {
	return &galleryRepository{db: db}
}

func (r *galleryRepository) Create(ctx context.Context, image *model.GalleryImage) error {
	return GetDB(ctx, r.db).Omit("Author").Create(image).Error
}

func (r *galleryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.GalleryImage, error) {
	var image model.GalleryImage
	if err := GetDB(ctx, r.db).Preload("Author").First(&image, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *galleryRepository) List(ctx context.Context, filter ContentFilter) ([]model.GalleryImage, int64, error) {
	var images []model.GalleryImage
	var total int64

	query := GetDB(ctx, r.db).Model(&model.GalleryImage{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Author").Order("created_at DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&images).Error; err != nil {
		return nil, 0, err
	}
	return images, total, nil
}

func (r *galleryRepository) Update(ctx context.Context, image *model.GalleryImage) error {
	return GetDB(ctx, r.db).Omit("Author").Save(image).Error
}

func (r *galleryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.GalleryImage{}).Error
}
