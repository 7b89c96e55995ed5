package model

import "time"

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
	TaskStatusBlocked    = "blocked"
)

type ImplementationTask struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RequirementID  uint      `gorm:"not null;index:idx_tasks_requirement_id" json:"requirement_id"`
	Title          string    `gorm:"type:varchar(256);not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	System         string    `gorm:"type:varchar(128)" json:"system"`
	Status         string    `gorm:"type:varchar(16);default:todo;index:idx_tasks_status" json:"status"`
	Priority       string    `gorm:"type:varchar(16);default:medium" json:"priority"`
	EstimatedHours float64   `json:"estimated_hours"`
	AssigneeID     *uint     `gorm:"index:idx_tasks_assignee_id" json:"assignee_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Requirement *Requirement `gorm:"foreignKey:RequirementID" json:"requirement,omitempty"`
	Assignee    *User        `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	RoleEfforts []RoleEffort `gorm:"foreignKey:TaskID" json:"role_efforts,omitempty"`
}

func (ImplementationTask) TableName() string { return "implementation_tasks" }

// RoleEffort costs part of a task against a delivery role, e.g. 6h of "backend" at 95/h.
type RoleEffort struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TaskID     uint      `gorm:"not null;index:idx_role_efforts_task_id" json:"task_id"`
	Role       string    `gorm:"type:varchar(64);not null" json:"role"`
	Hours      float64   `gorm:"not null" json:"hours"`
	HourlyRate float64   `json:"hourly_rate"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (RoleEffort) TableName() string { return "role_efforts" }

func (r RoleEffort) Cost() float64 { return r.Hours * r.HourlyRate }
