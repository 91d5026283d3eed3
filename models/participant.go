package models

import (
	"time"

	"gorm.io/gorm"
)

// ParticipantMirror is a local read-only copy of an identity owned by the
// profile service, kept fresh by the participant sync worker. Classification
// resolves display names from here first.
type ParticipantMirror struct {
	ID             string  `json:"id" gorm:"primaryKey"` // local UUID
	ExternalUserID string  `json:"external_user_id" gorm:"uniqueIndex;not null"`
	DisplayName    string  `json:"display_name"`
	Country        string  `json:"country,omitempty"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	AccountStatus  string  `json:"account_status"`

	Timestamps
}

// Timestamps is the shared created/updated/soft-delete embed.
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
