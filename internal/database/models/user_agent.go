package models

import "time"

// UserAgent is the deduplicated store of classified user-agent strings,
// keyed by the raw header value. Log rows reference it instead of repeating
// the classification columns; rows never change once created.
type UserAgent struct {
	ID  uint   `gorm:"primaryKey;autoIncrement"`
	Raw string `gorm:"uniqueIndex;not null;size:200"`

	Type           string `gorm:"size:10;index"` // bot, app, library, browser
	Name           string `gorm:"size:100"`
	IsBot          bool
	DeviceName     string `gorm:"size:100"`
	DeviceCategory string `gorm:"size:20"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserAgent) TableName() string {
	return "user_agents"
}
