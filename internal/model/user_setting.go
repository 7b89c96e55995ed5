package model

import "time"

// UserSetting holds per-user AI provider keys, AES-GCM encrypted at rest.
type UserSetting struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	AnthropicAPIKeyEnc   string    `gorm:"type:varchar(1024)" json:"-"`
	GeminiAPIKeyEnc      string    `gorm:"type:varchar(1024)" json:"-"`
	HuggingFaceAPIKeyEnc string    `gorm:"type:varchar(1024)" json:"-"`
	PreferredModel       string    `gorm:"type:varchar(128)" json:"preferred_model"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (UserSetting) TableName() string { return "user_settings" }
