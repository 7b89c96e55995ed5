package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reqforge/backend/internal/ai"
	"github.com/reqforge/backend/internal/document"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/storage"
	"github.com/reqforge/backend/pkg/llmjson"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// contextRequirements caps how many requirements go into the AI project summary.
const contextRequirements = 30

type DocumentService struct {
	db        *gorm.DB
	store     storage.Store
	providers ai.Providers
	schema    *SchemaService
}

func NewDocumentService(db *gorm.DB, store storage.Store, providers ai.Providers) *DocumentService {
	return &DocumentService{db: db, store: store, providers: providers, schema: NewSchemaService(db)}
}

type GenerateDocumentInput struct {
	TemplateID uint
	ProjectID  uint
	Name       string
	UserID     uint
}

// Generate resolves every mapped field for the project, renders the PDF and
// stores it. Rendering, storage and provider failures are kept on a failed
// Document row rather than returned; a missing API key is returned before
// anything is written.
func (s *DocumentService) Generate(ctx context.Context, in GenerateDocumentInput) (*model.Document, error) {
	var tmpl model.DocumentTemplate
	if err := s.db.Preload("FieldMappings").First(&tmpl, in.TemplateID).Error; err != nil {
		return nil, err
	}
	var project model.Project
	if err := s.db.Preload("Customer").First(&project, in.ProjectID).Error; err != nil {
		return nil, fmt.Errorf("40401:project %d does not exist", in.ProjectID)
	}

	var gen ai.Generator
	for _, m := range tmpl.FieldMappings {
		if m.Kind == model.MappingKindAI {
			g, err := s.providers.Author(ctx, in.UserID)
			if err != nil {
				return nil, err
			}
			gen = g
			break
		}
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = fmt.Sprintf("%s - %s", tmpl.Name, project.Name)
	}
	doc := &model.Document{
		TemplateID:  tmpl.ID,
		ProjectID:   project.ID,
		Name:        name,
		Status:      model.DocumentStatusPending,
		GeneratedBy: in.UserID,
	}
	if err := s.db.Create(doc).Error; err != nil {
		return nil, err
	}

	size, key, genErr := s.build(ctx, &tmpl, &project, gen, name)
	updates := map[string]interface{}{}
	if genErr != nil {
		zap.L().Warn("document generation failed", zap.Uint("document_id", doc.ID), zap.Error(genErr))
		updates["status"] = model.DocumentStatusFailed
		updates["error_message"] = genErr.Error()
	} else {
		updates["status"] = model.DocumentStatusGenerated
		updates["storage_key"] = key
		updates["size_bytes"] = size
	}
	if err := s.db.Model(doc).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetByID(doc.ID)
}

func (s *DocumentService) build(ctx context.Context, tmpl *model.DocumentTemplate, project *model.Project, gen ai.Generator, title string) (int64, string, error) {
	values, err := s.resolve(ctx, tmpl.FieldMappings, project, gen)
	if err != nil {
		return 0, "", err
	}
	pdf, err := document.Render(title, tmpl.Schema.Data(), values)
	if err != nil {
		return 0, "", err
	}
	key := storage.DocumentKey(project.ID)
	size, err := s.store.Put(ctx, key, bytes.NewReader(pdf), "application/pdf")
	if err != nil {
		return 0, "", fmt.Errorf("store document: %w", err)
	}
	return size, key, nil
}

func (s *DocumentService) resolve(ctx context.Context, mappings []model.FieldMapping, project *model.Project, gen ai.Generator) (map[string]string, error) {
	values := make(map[string]string, len(mappings))
	var projectContext string
	for _, m := range mappings {
		switch m.Kind {
		case model.MappingKindStatic:
			values[m.FieldName] = m.StaticValue
		case model.MappingKindDatabase:
			v, err := s.columnValue(project, m.DataSource, m.DataField)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", m.FieldName, err)
			}
			values[m.FieldName] = v
		case model.MappingKindAI:
			if projectContext == "" {
				projectContext = s.projectContext(project)
			}
			out, err := gen.Generate(ctx, ai.SystemAnalyst, ai.BuildDocumentFieldPrompt(m.AIPrompt, projectContext))
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", m.FieldName, err)
			}
			var field struct {
				Text string `json:"text"`
			}
			if err := llmjson.Decode(out, &field); err != nil {
				field.Text = strings.TrimSpace(out)
			}
			values[m.FieldName] = field.Text
		}
	}
	return values, nil
}

// columnValue reads table.column scoped to the project. Tables holding many
// rows per project yield their values joined by newlines.
func (s *DocumentService) columnValue(project *model.Project, table, column string) (string, error) {
	if !s.schema.HasColumn(table, column) {
		return "", fmt.Errorf("unknown column %s.%s", table, column)
	}
	sel := fmt.Sprintf("COALESCE(CAST(t.%s AS TEXT), '')", column)
	query := s.db.Table(table + " t").Select(sel)
	switch table {
	case "projects":
		query = query.Where("t.id = ?", project.ID)
	case "customers":
		if project.CustomerID == nil {
			return "", nil
		}
		query = query.Where("t.id = ?", *project.CustomerID)
	case "requirements":
		query = query.Where("t.project_id = ?", project.ID).Order("t.code asc")
	case "implementation_tasks":
		query = query.Joins("JOIN requirements r ON r.id = t.requirement_id").
			Where("r.project_id = ?", project.ID).Order("r.code asc, t.id asc")
	case "input_data":
		query = query.Where("t.project_id = ?", project.ID).Order("t.id asc")
	default:
		return "", fmt.Errorf("unsupported table %s", table)
	}
	var vals []string
	if err := query.Scan(&vals).Error; err != nil {
		return "", err
	}
	out := vals[:0]
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (s *DocumentService) projectContext(project *model.Project) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n", project.Name)
	if project.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", project.Description)
	}
	if project.Customer != nil {
		fmt.Fprintf(&sb, "Customer: %s", project.Customer.Name)
		if project.Customer.Industry != "" {
			fmt.Fprintf(&sb, " (%s)", project.Customer.Industry)
		}
		sb.WriteString("\n")
	}
	var reqs []model.Requirement
	s.db.Select("code", "title", "priority", "status").Where("project_id = ?", project.ID).
		Order("code asc").Limit(contextRequirements).Find(&reqs)
	if len(reqs) > 0 {
		sb.WriteString("Requirements:\n")
		for _, r := range reqs {
			fmt.Fprintf(&sb, "- %s %s [%s, %s]\n", r.Code, r.Title, r.Priority, r.Status)
		}
	}
	return sb.String()
}

func (s *DocumentService) List(projectID uint, page, pageSize int) ([]model.Document, int64, error) {
	query := s.db.Model(&model.Document{}).Where("project_id = ?", projectID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Document
	if err := query.Preload("Template").Order("created_at desc, id desc").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *DocumentService) GetByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := s.db.Preload("Template").First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *DocumentService) Open(ctx context.Context, id uint) (*model.Document, *storage.Object, error) {
	doc, err := s.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if doc.Status != model.DocumentStatusGenerated || doc.StorageKey == "" {
		return nil, nil, fmt.Errorf("40401:document %d has no generated file", id)
	}
	obj, err := s.store.Open(ctx, doc.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return doc, obj, nil
}

func (s *DocumentService) Delete(ctx context.Context, id uint) error {
	doc, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(&model.Document{}, id).Error; err != nil {
		return err
	}
	if doc.StorageKey != "" {
		if err := s.store.Delete(ctx, doc.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			zap.L().Warn("delete stored document", zap.String("key", doc.StorageKey), zap.Error(err))
		}
	}
	return nil
}
