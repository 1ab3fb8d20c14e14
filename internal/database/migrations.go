package database

import (
	"gorm.io/gorm"

	"github.com/Eboreg/spodcat-backend/internal/database/models"
)

func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Podcast{},
		&models.Episode{},
		&models.Post{},
		&models.UserAgent{},
		&models.GeoIP{},
		&models.PodcastRequestLog{},
		&models.PodcastRssRequestLog{},
		&models.PodcastContentRequestLog{},
		&models.EpisodeAudioRequestLog{},
	)
}
