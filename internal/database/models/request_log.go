package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestLogFields is embedded by every request-log table. Rows are created
// at request time (or backfilled from a replayed access log) and never
// updated afterwards, except for the remote-host and GeoIP backfill jobs.
type RequestLogFields struct {
	ID      uint      `gorm:"primaryKey;autoIncrement"`
	Created time.Time `gorm:"not null;index"`

	PathInfo           string `gorm:"size:200"`
	RemoteAddr         string `gorm:"size:50;index"`
	RemoteAddrCategory string `gorm:"size:20"`
	RemoteHost         string `gorm:"size:100"`

	UserAgent     string     `gorm:"size:200"`
	UserAgentID   *uint      `gorm:"index"`
	UserAgentData *UserAgent `gorm:"foreignKey:UserAgentID"`

	GeoIPAddr *string `gorm:"size:50;index"`
	Geo       *GeoIP  `gorm:"foreignKey:GeoIPAddr;references:IP"`

	Referrer         string `gorm:"size:100"`
	ReferrerCategory string `gorm:"size:20"`
	ReferrerName     string `gorm:"size:100"`

	IsBot bool `gorm:"index"`
}

// PodcastRequestLog records a hit on a podcast's landing page.
type PodcastRequestLog struct {
	RequestLogFields
	PodcastSlug string  `gorm:"not null;index"`
	Podcast     Podcast `gorm:"foreignKey:PodcastSlug;references:Slug;constraint:OnDelete:CASCADE"`
}

func (PodcastRequestLog) TableName() string {
	return "podcast_request_logs"
}

// PodcastRssRequestLog records a fetch of a podcast's RSS feed.
type PodcastRssRequestLog struct {
	RequestLogFields
	PodcastSlug string  `gorm:"not null;index"`
	Podcast     Podcast `gorm:"foreignKey:PodcastSlug;references:Slug;constraint:OnDelete:CASCADE"`
}

func (PodcastRssRequestLog) TableName() string {
	return "podcast_rss_request_logs"
}

// PodcastContentRequestLog records a hit on an episode or post page.
type PodcastContentRequestLog struct {
	RequestLogFields
	ContentID   uuid.UUID   `gorm:"type:uuid;not null;index"`
	ContentKind ContentKind `gorm:"size:10;not null"`
}

func (PodcastContentRequestLog) TableName() string {
	return "podcast_content_request_logs"
}

// EpisodeAudioRequestLog records one byte-range response against an
// episode's audio file. Unlike the page logs it is not embedded from
// RequestLogFields: replayed log windows overlap, so rows carry a natural
// unique key on (remote_addr, created) and re-ingestion updates in place.
// Two genuine plays from one address in the same millisecond would collide;
// accepted limitation of the replay source's clock resolution.
type EpisodeAudioRequestLog struct {
	ID      uint      `gorm:"primaryKey;autoIncrement"`
	Created time.Time `gorm:"not null;uniqueIndex:idx_audio_log_natural_key,sort:desc"`

	PathInfo           string `gorm:"size:200"`
	RemoteAddr         string `gorm:"size:50;uniqueIndex:idx_audio_log_natural_key"`
	RemoteAddrCategory string `gorm:"size:20"`
	RemoteHost         string `gorm:"size:100"`

	UserAgent     string     `gorm:"size:200"`
	UserAgentID   *uint      `gorm:"index"`
	UserAgentData *UserAgent `gorm:"foreignKey:UserAgentID"`

	GeoIPAddr *string `gorm:"size:50;index"`
	Geo       *GeoIP  `gorm:"foreignKey:GeoIPAddr;references:IP"`

	Referrer         string `gorm:"size:100"`
	ReferrerCategory string `gorm:"size:20"`
	ReferrerName     string `gorm:"size:100"`

	IsBot bool `gorm:"index"`

	EpisodeID uuid.UUID `gorm:"type:uuid;not null;index"`
	Episode   Episode   `gorm:"foreignKey:EpisodeID;constraint:OnDelete:CASCADE"`

	DurationMs       float64
	ResponseBodySize int64
	StatusCode       int
}

func (EpisodeAudioRequestLog) TableName() string {
	return "episode_audio_request_logs"
}
