package models

import (
	"time"

	"gorm.io/gorm"
)

// Podcast represents a subscribed show feed
type Podcast struct {
	gorm.Model
	Title       string    `json:"title" gorm:"not null"`
	Author      string    `json:"author"`
	Description string    `json:"description" gorm:"type:text"`
	FeedURL     string    `json:"feed_url" gorm:"uniqueIndex;not null"`
	ImageURL    string    `json:"image_url"`
	Language    string    `json:"language"`
	Active      bool      `json:"active" gorm:"default:true"`
	LastSyncAt  time.Time `json:"last_sync_at"`
	Episodes    []Episode `json:"episodes,omitempty" gorm:"foreignKey:PodcastID"`
}

// TableName specifies the table name for Podcast
func (Podcast) TableName() string {
	return "podcasts"
}

// Episode represents a single podcast installment synced from a feed.
// Episodes are created by the feed sync path and are read-only to the
// transcript pipeline.
type Episode struct {
	gorm.Model
	PodcastID   uint   `json:"podcast_id" gorm:"not null;index"`
	GUID        string `json:"guid" gorm:"uniqueIndex;not null"`
	Title       string `json:"title"`
	Description string `json:"description" gorm:"type:text"`

	AudioURL        string `json:"audio_url" gorm:"not null;column:audio_url"`
	EnclosureType   string `json:"enclosure_type"`
	EnclosureLength int64  `json:"enclosure_length"`
	Duration        *int   `json:"duration"` // seconds, nullable

	PublishedAt time.Time `json:"published_at" gorm:"index"`

	// Feed metadata, denormalized so the worker can log show context
	// without an extra lookup.
	FeedURL   string `json:"feed_url"`
	FeedTitle string `json:"feed_title"`

	Podcast *Podcast `json:"podcast,omitempty" gorm:"foreignKey:PodcastID"`
}

// TableName specifies the table name for Episode
func (Episode) TableName() string {
	return "episodes"
}
