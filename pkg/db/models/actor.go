package models

import (
	"time"

	"gorm.io/datatypes"
)

// Actor is the legacy actor row. Metadata holds the denormalized profile
// document the web client reads (profile_image, headshot, ...).
type Actor struct {
	ID        string         `gorm:"column:id;type:text;primaryKey"`
	Email     string         `gorm:"column:email;type:text;not null;index"`
	Name      string         `gorm:"column:name;type:text"`
	AvatarURL *string        `gorm:"column:avatar_url;type:text"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Actor) TableName() string { return "actors" }
