package model

import "time"

// Activity is an append-only audit row written by every mutating endpoint.
type Activity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index:idx_activities_user_id" json:"user_id"`
	ProjectID   *uint     `gorm:"index:idx_activities_project_id" json:"project_id"`
	Action      string    `gorm:"type:varchar(64);not null" json:"action"`
	EntityType  string    `gorm:"type:varchar(32);not null;index:idx_activities_entity,priority:1" json:"entity_type"`
	EntityID    uint      `gorm:"index:idx_activities_entity,priority:2" json:"entity_id"`
	Description string    `gorm:"type:text" json:"description"`
	Metadata    JSONMap   `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt   time.Time `gorm:"index:idx_activities_created_at" json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Activity) TableName() string { return "activities" }
