package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

const (
	GalleryStatusActive   = "active"
	GalleryStatusArchived = "archived"
)

type BlogPost struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title      string     `gorm:"type:varchar(255);not null" json:"title"`
	Excerpt    string     `gorm:"type:text" json:"excerpt"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	Category   string     `gorm:"type:varchar(100);index" json:"category"`
	ImageURL   string     `gorm:"type:text" json:"image_url"`
	ImagePath  string     `gorm:"type:text" json:"-"`
	YouTubeURL string     `gorm:"column:youtube_url;type:text" json:"youtube_url"`
	AuthorID   *uuid.UUID `gorm:"type:uuid;index" json:"author_id"`
	Author     *User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:SET NULL" json:"author,omitempty"`
	Status     string     `gorm:"type:varchar(20);not null;default:draft;index" json:"status"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type GalleryImage struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	ImageURL    string     `gorm:"type:text;not null" json:"image_url"`
	ImagePath   string     `gorm:"type:text;not null" json:"-"`
	AuthorID    *uuid.UUID `gorm:"type:uuid;index" json:"author_id"`
	Author      *User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:SET NULL" json:"author,omitempty"`
	Status      string     `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
