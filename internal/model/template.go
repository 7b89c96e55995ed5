package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	FieldTypeText      = "text"
	FieldTypeMultiline = "multiline"
)

// TemplateField is a placeholder box on a template page; units are millimetres.
type TemplateField struct {
	Name     string  `json:"name" binding:"required"`
	Type     string  `json:"type"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"font_size"`
}

type StaticText struct {
	Page     int     `json:"page"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"font_size"`
}

type TemplatePage struct {
	Fields []TemplateField `json:"fields"`
}

type TemplateSchema struct {
	PageSize    string         `json:"page_size"`
	Orientation string         `json:"orientation"`
	Pages       []TemplatePage `json:"pages"`
	StaticText  []StaticText   `json:"static_text,omitempty"`
}

// FieldNames returns every placeholder name in page order.
func (s TemplateSchema) FieldNames() []string {
	var names []string
	for _, p := range s.Pages {
		for _, f := range p.Fields {
			names = append(names, f.Name)
		}
	}
	return names
}

type DocumentTemplate struct {
	ID          uint                               `gorm:"primaryKey" json:"id"`
	Name        string                             `gorm:"type:varchar(128);not null" json:"name"`
	Description string                             `gorm:"type:text" json:"description"`
	Category    string                             `gorm:"type:varchar(64)" json:"category"`
	Schema      datatypes.JSONType[TemplateSchema] `json:"schema"`
	CreatedBy   uint                               `json:"created_by"`
	CreatedAt   time.Time                          `json:"created_at"`
	UpdatedAt   time.Time                          `json:"updated_at"`

	FieldMappings []FieldMapping `gorm:"foreignKey:TemplateID" json:"field_mappings,omitempty"`
}

func (DocumentTemplate) TableName() string { return "document_templates" }

const (
	MappingKindDatabase = "database"
	MappingKindAI       = "ai"
	MappingKindStatic   = "static"
)

// FieldMapping binds a template placeholder to a column, an AI prompt, or a fixed value.
type FieldMapping struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TemplateID  uint      `gorm:"not null;uniqueIndex:uk_field_mappings_template_field,priority:1" json:"template_id"`
	FieldName   string    `gorm:"type:varchar(128);not null;uniqueIndex:uk_field_mappings_template_field,priority:2" json:"field_name"`
	Kind        string    `gorm:"type:varchar(16);not null" json:"kind"`
	DataSource  string    `gorm:"type:varchar(64)" json:"data_source,omitempty"`
	DataField   string    `gorm:"type:varchar(64)" json:"data_field,omitempty"`
	AIPrompt    string    `gorm:"type:text" json:"ai_prompt,omitempty"`
	StaticValue string    `gorm:"type:text" json:"static_value,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (FieldMapping) TableName() string { return "field_mappings" }

const (
	DocumentStatusPending   = "pending"
	DocumentStatusGenerated = "generated"
	DocumentStatusFailed    = "failed"
)

type Document struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TemplateID   uint      `gorm:"not null;index:idx_documents_template_id" json:"template_id"`
	ProjectID    uint      `gorm:"not null;index:idx_documents_project_id" json:"project_id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Status       string    `gorm:"type:varchar(16);default:pending" json:"status"`
	StorageKey   string    `gorm:"type:varchar(512)" json:"-"`
	SizeBytes    int64     `json:"size_bytes"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	GeneratedBy  uint      `json:"generated_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Template *DocumentTemplate `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	Project  *Project          `gorm:"foreignKey:ProjectID" json:"-"`
}

func (Document) TableName() string { return "documents" }
