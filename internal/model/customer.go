package model

import "time"

type Customer struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(128);not null;index:idx_customers_name" json:"name"`
	ContactName string    `gorm:"type:varchar(128)" json:"contact_name"`
	Email       string    `gorm:"type:varchar(255)" json:"email"`
	Phone       string    `gorm:"type:varchar(32)" json:"phone"`
	Industry    string    `gorm:"type:varchar(64)" json:"industry"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
