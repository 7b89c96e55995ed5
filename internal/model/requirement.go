package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

const (
	RequirementStatusDraft       = "draft"
	RequirementStatusInReview    = "in_review"
	RequirementStatusApproved    = "approved"
	RequirementStatusRejected    = "rejected"
	RequirementStatusImplemented = "implemented"
)

// GherkinSteps is the structured Given/When/Then form of an acceptance criterion.
type GherkinSteps struct {
	Scenario string   `json:"scenario"`
	Given    []string `json:"given"`
	When     []string `json:"when"`
	Then     []string `json:"then"`
	And      []string `json:"and,omitempty"`
}

type AcceptanceCriterion struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Status      string        `json:"status,omitempty"`
	Gherkin     *GherkinSteps `json:"gherkin,omitempty"`
}

type AcceptanceCriteria []AcceptanceCriterion

func (a AcceptanceCriteria) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return jsonValue(a)
}

func (a *AcceptanceCriteria) Scan(value interface{}) error {
	if value == nil {
		*a = AcceptanceCriteria{}
		return nil
	}
	return scanJSON(value, a)
}

type ExpertReview struct {
	Rating      int       `json:"rating"`
	Summary     string    `json:"summary"`
	Strengths   []string  `json:"strengths"`
	Weaknesses  []string  `json:"weaknesses"`
	Suggestions []string  `json:"suggestions"`
	Model       string    `json:"model,omitempty"`
	ReviewedAt  time.Time `json:"reviewed_at"`
}

type JSONExpertReview struct {
	Data *ExpertReview
}

func (j JSONExpertReview) Value() (driver.Value, error) {
	if j.Data == nil {
		return nil, nil
	}
	return jsonValue(j.Data)
}

func (j *JSONExpertReview) Scan(value interface{}) error {
	if value == nil {
		j.Data = nil
		return nil
	}
	var review ExpertReview
	if err := scanJSON(value, &review); err != nil {
		return err
	}
	j.Data = &review
	return nil
}

func (j JSONExpertReview) MarshalJSON() ([]byte, error) {
	if j.Data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(j.Data)
}

type Requirement struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	ProjectID          uint               `gorm:"not null;uniqueIndex:uk_requirements_project_code,priority:1" json:"project_id"`
	InputDataID        *uint              `gorm:"index:idx_requirements_input_data_id" json:"input_data_id"`
	Code               string             `gorm:"type:varchar(32);not null;uniqueIndex:uk_requirements_project_code,priority:2" json:"code"`
	Title              string             `gorm:"type:varchar(256);not null" json:"title"`
	Description        string             `gorm:"type:text" json:"description"`
	Category           string             `gorm:"type:varchar(64)" json:"category"`
	Priority           string             `gorm:"type:varchar(16);default:medium" json:"priority"`
	Status             string             `gorm:"type:varchar(20);default:draft;index:idx_requirements_status" json:"status"`
	AcceptanceCriteria AcceptanceCriteria `gorm:"type:json" json:"acceptance_criteria"`
	ExpertReview       JSONExpertReview   `gorm:"type:json" json:"expert_review"`
	CreatorID          uint               `gorm:"not null;index:idx_requirements_creator_id" json:"creator_id"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`

	Project   *Project   `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	InputData *InputData `gorm:"foreignKey:InputDataID" json:"input_data,omitempty"`
	Creator   *User      `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
}

func (Requirement) TableName() string { return "requirements" }
