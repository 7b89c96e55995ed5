package model

import "time"

const (
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
)

type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(128);not null;uniqueIndex:uk_projects_name" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CustomerID  *uint     `gorm:"index:idx_projects_customer_id" json:"customer_id"`
	OwnerID     uint      `gorm:"not null;index:idx_projects_owner_id" json:"owner_id"`
	Status      string    `gorm:"type:varchar(10);default:active;index:idx_projects_status" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Owner    *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (Project) TableName() string { return "projects" }
