package models

import (
	"time"

	"github.com/google/uuid"
)

// Podcast is the content entity audio and page logs hang off. Full podcast
// CRUD lives in the web layer; the analytics core only needs the identity
// columns it joins and groups by.
type Podcast struct {
	Slug      string    `gorm:"primaryKey;size:100"`
	Name      string    `gorm:"not null;size:100"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Podcast) TableName() string {
	return "podcasts"
}

// Episode carries the audio metadata play estimation depends on:
// AudioFileLength scales byte counts into fractions, DurationSeconds scales
// fractions into listening time.
type Episode struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PodcastSlug string    `gorm:"not null;index"`
	Podcast     Podcast   `gorm:"foreignKey:PodcastSlug;references:Slug;constraint:OnDelete:CASCADE"`
	Slug        string    `gorm:"not null;index"`
	Name        string    `gorm:"not null;size:100"`
	Number      int

	// AudioFile is the stored audio object name; replayed access-log rows
	// are matched to episodes by suffix match against it.
	AudioFile       string `gorm:"size:200"`
	AudioFileLength int64
	DurationSeconds float64

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Episode) TableName() string {
	return "episodes"
}

// Post is a non-audio podcast content entry. It exists here so content
// request logs can reference either subtype through a ContentRef.
type Post struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PodcastSlug string    `gorm:"not null;index"`
	Podcast     Podcast   `gorm:"foreignKey:PodcastSlug;references:Slug;constraint:OnDelete:CASCADE"`
	Slug        string    `gorm:"not null;index"`
	Name        string    `gorm:"not null;size:100"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (Post) TableName() string {
	return "posts"
}

// ContentKind tags which concrete subtype a ContentRef points at.
type ContentKind string

const (
	ContentEpisode ContentKind = "episode"
	ContentPost    ContentKind = "post"
)

// ContentRef is the tagged reference used where a log row may point at
// either an episode or a post. It is resolved once at the boundary where
// the web layer hands data to this core.
type ContentRef struct {
	Kind ContentKind
	ID   uuid.UUID
}
