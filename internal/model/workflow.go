package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NodeTypeStart   = "start"
	NodeTypeEnd     = "end"
	NodeTypeTask    = "task"
	NodeTypeGateway = "gateway"
	NodeTypeEvent   = "event"
)

const (
	WorkflowSourceManual = "manual"
	WorkflowSourceAI     = "ai"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type WorkflowNode struct {
	ID       string   `json:"id" binding:"required"`
	Type     string   `json:"type" binding:"required,oneof=start end task gateway event"`
	Label    string   `json:"label"`
	Position Position `json:"position"`
}

type WorkflowEdge struct {
	ID     string `json:"id"`
	Source string `json:"source" binding:"required"`
	Target string `json:"target" binding:"required"`
	Label  string `json:"label,omitempty"`
}

type Workflow struct {
	ID            uint                              `gorm:"primaryKey" json:"id"`
	ProjectID     uint                              `gorm:"not null;index:idx_workflows_project_id" json:"project_id"`
	RequirementID *uint                             `gorm:"index:idx_workflows_requirement_id" json:"requirement_id"`
	Name          string                            `gorm:"type:varchar(128);not null" json:"name"`
	Description   string                            `gorm:"type:text" json:"description"`
	Nodes         datatypes.JSONSlice[WorkflowNode] `json:"nodes"`
	Edges         datatypes.JSONSlice[WorkflowEdge] `json:"edges"`
	Source        string                            `gorm:"type:varchar(16);default:manual" json:"source"`
	CreatedBy     uint                              `json:"created_by"`
	CreatedAt     time.Time                         `json:"created_at"`
	UpdatedAt     time.Time                         `json:"updated_at"`

	Project     *Project     `gorm:"foreignKey:ProjectID" json:"-"`
	Requirement *Requirement `gorm:"foreignKey:RequirementID" json:"-"`
}

func (Workflow) TableName() string { return "workflows" }
