package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TemplateService struct {
	db     *gorm.DB
	store  storage.Store
	schema *SchemaService
}

func NewTemplateService(db *gorm.DB, store storage.Store) *TemplateService {
	return &TemplateService{db: db, store: store, schema: NewSchemaService(db)}
}

func validateSchema(s *model.TemplateSchema) error {
	switch s.PageSize {
	case "":
		s.PageSize = "A4"
	case "A4", "Letter":
	default:
		return fmt.Errorf("40001:unsupported page size %q", s.PageSize)
	}
	switch s.Orientation {
	case "":
		s.Orientation = "P"
	case "P", "L":
	default:
		return fmt.Errorf("40001:unsupported orientation %q", s.Orientation)
	}
	seen := map[string]bool{}
	for pi, p := range s.Pages {
		for fi, f := range p.Fields {
			if strings.TrimSpace(f.Name) == "" {
				return fmt.Errorf("40001:page %d field %d has no name", pi+1, fi+1)
			}
			if seen[f.Name] {
				return fmt.Errorf("40001:duplicate field name %q", f.Name)
			}
			seen[f.Name] = true
			switch f.Type {
			case "":
				s.Pages[pi].Fields[fi].Type = model.FieldTypeText
			case model.FieldTypeText, model.FieldTypeMultiline:
			default:
				return fmt.Errorf("40001:field %q has unsupported type %q", f.Name, f.Type)
			}
		}
	}
	return nil
}

func (s *TemplateService) Create(t *model.DocumentTemplate) error {
	schema := t.Schema.Data()
	if err := validateSchema(&schema); err != nil {
		return err
	}
	t.Schema = datatypes.NewJSONType(schema)
	return s.db.Create(t).Error
}

func (s *TemplateService) List(keyword, category string, page, pageSize int) ([]model.DocumentTemplate, int64, error) {
	query := s.db.Model(&model.DocumentTemplate{})
	if keyword != "" {
		query = query.Where("LOWER(name) LIKE ?"+likeEscape, containsPattern(keyword))
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.DocumentTemplate
	if err := query.Order("updated_at desc, id desc").Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *TemplateService) GetByID(id uint) (*model.DocumentTemplate, error) {
	var t model.DocumentTemplate
	if err := s.db.Preload("FieldMappings", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TemplateService) Update(id uint, updates map[string]interface{}) (*model.DocumentTemplate, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}
	if schema, ok := updates["schema"].(model.TemplateSchema); ok {
		if err := validateSchema(&schema); err != nil {
			return nil, err
		}
		updates["schema"] = datatypes.NewJSONType(schema)
	}
	if len(updates) > 0 {
		if err := s.db.Model(&model.DocumentTemplate{ID: id}).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(id)
}

// Delete removes field mappings and generated documents before the template.
func (s *TemplateService) Delete(ctx context.Context, id uint) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	var keys []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Document{}).Where("template_id = ? AND storage_key <> ''", id).
			Pluck("storage_key", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&model.FieldMapping{}).Error; err != nil {
			return fmt.Errorf("delete field mappings: %w", err)
		}
		if err := tx.Where("template_id = ?", id).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("delete documents: %w", err)
		}
		return tx.Delete(&model.DocumentTemplate{}, id).Error
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil && !errors.Is(err, storage.ErrNotFound) {
			zap.L().Warn("delete stored document", zap.String("key", k), zap.Error(err))
		}
	}
	return nil
}

func (s *TemplateService) validateMapping(fields map[string]bool, m *model.FieldMapping) error {
	if !fields[m.FieldName] {
		return fmt.Errorf("40001:template has no field %q", m.FieldName)
	}
	switch m.Kind {
	case model.MappingKindStatic:
	case model.MappingKindAI:
		if strings.TrimSpace(m.AIPrompt) == "" {
			return fmt.Errorf("40001:field %q needs an ai_prompt", m.FieldName)
		}
	case model.MappingKindDatabase:
		if !IsMappableTable(m.DataSource) {
			return fmt.Errorf("40001:field %q maps to unsupported table %q", m.FieldName, m.DataSource)
		}
		if m.DataField == "" || !s.schema.HasColumn(m.DataSource, m.DataField) {
			return fmt.Errorf("40001:field %q maps to unknown column %s.%s", m.FieldName, m.DataSource, m.DataField)
		}
	default:
		return fmt.Errorf("40001:field %q has unsupported mapping kind %q", m.FieldName, m.Kind)
	}
	return nil
}

// ReplaceFieldMappings swaps the template's whole mapping set.
func (s *TemplateService) ReplaceFieldMappings(templateID uint, mappings []model.FieldMapping) ([]model.FieldMapping, error) {
	t, err := s.GetByID(templateID)
	if err != nil {
		return nil, err
	}
	fields := map[string]bool{}
	for _, name := range t.Schema.Data().FieldNames() {
		fields[name] = true
	}
	seen := map[string]bool{}
	for i := range mappings {
		m := &mappings[i]
		m.ID = 0
		m.TemplateID = templateID
		if seen[m.FieldName] {
			return nil, fmt.Errorf("40001:field %q is mapped twice", m.FieldName)
		}
		seen[m.FieldName] = true
		if err := s.validateMapping(fields, m); err != nil {
			return nil, err
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", templateID).Delete(&model.FieldMapping{}).Error; err != nil {
			return err
		}
		if len(mappings) == 0 {
			return nil
		}
		return tx.Create(&mappings).Error
	})
	if err != nil {
		return nil, err
	}
	return s.FieldMappings(templateID)
}

func (s *TemplateService) FieldMappings(templateID uint) ([]model.FieldMapping, error) {
	var count int64
	if err := s.db.Model(&model.DocumentTemplate{}).Where("id = ?", templateID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	list := []model.FieldMapping{}
	if err := s.db.Where("template_id = ?", templateID).Order("id asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
