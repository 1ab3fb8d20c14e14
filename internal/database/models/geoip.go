package models

import "time"

// GeoIP caches one external GeoIP lookup per distinct address. The row is
// created at most once per IP; concurrent creators tolerate the unique
// conflict and re-read.
type GeoIP struct {
	IP      string `gorm:"primaryKey;size:50"`
	City    string `gorm:"size:100"`
	Region  string `gorm:"size:100"`
	Country string `gorm:"size:10;index"`
	Org     string `gorm:"size:100"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (GeoIP) TableName() string {
	return "geo_ips"
}
