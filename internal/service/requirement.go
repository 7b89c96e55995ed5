package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/reqforge/backend/internal/model"
	"gorm.io/gorm"
)

const requirementCodePrefix = "REQ-"

type RequirementService struct {
	db *gorm.DB
}

func NewRequirementService(db *gorm.DB) *RequirementService {
	return &RequirementService{db: db}
}

// nextCode returns REQ-NNN one past the highest number used in the project.
func nextCode(tx *gorm.DB, projectID uint) (string, error) {
	var codes []string
	if err := tx.Model(&model.Requirement{}).Where("project_id = ? AND code LIKE ?", projectID, requirementCodePrefix+"%").
		Pluck("code", &codes).Error; err != nil {
		return "", err
	}
	highest := 0
	for _, c := range codes {
		n, err := strconv.Atoi(strings.TrimPrefix(c, requirementCodePrefix))
		if err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", requirementCodePrefix, highest+1), nil
}

// Create allocates the next requirement code; a concurrent insert that wins
// the same code triggers a retry.
func (s *RequirementService) Create(req *model.Requirement) error {
	var project model.Project
	if err := s.db.Select("id").First(&project, req.ProjectID).Error; err != nil {
		return err
	}
	if req.InputDataID != nil {
		var count int64
		if err := s.db.Model(&model.InputData{}).Where("id = ? AND project_id = ?", *req.InputDataID, req.ProjectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("40401:input data %d does not belong to the project", *req.InputDataID)
		}
	}
	if req.Status == "" {
		req.Status = model.RequirementStatusDraft
	}
	if req.Priority == "" {
		req.Priority = "medium"
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.db.Transaction(func(tx *gorm.DB) error {
			code, err := nextCode(tx, req.ProjectID)
			if err != nil {
				return err
			}
			req.Code = code
			return tx.Create(req).Error
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		req.ID = 0
	}
	return err
}

type RequirementFilter struct {
	Status      string
	Priority    string
	Category    string
	Keyword     string
	InputDataID *uint
}

func (s *RequirementService) List(projectID uint, f RequirementFilter, page, pageSize int, sortBy, order string) ([]model.Requirement, int64, error) {
	query := s.db.Model(&model.Requirement{}).Where("project_id = ?", projectID)
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		query = query.Where("priority = ?", f.Priority)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.InputDataID != nil {
		query = query.Where("input_data_id = ?", *f.InputDataID)
	}
	if f.Keyword != "" {
		like := containsPattern(f.Keyword)
		query = query.Where("LOWER(code) LIKE ?"+likeEscape+" OR LOWER(title) LIKE ?"+likeEscape, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch sortBy {
	case "code", "title", "priority", "status", "created_at", "updated_at":
	default:
		sortBy = "code"
	}
	if order != "desc" {
		order = "asc"
	}

	var reqs []model.Requirement
	if err := query.Preload("Creator").Order(sortBy + " " + order).
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

// ListAll returns every requirement of a project in code order.
func (s *RequirementService) ListAll(projectID uint) ([]model.Requirement, error) {
	var reqs []model.Requirement
	if err := s.db.Where("project_id = ?", projectID).Order("code asc").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (s *RequirementService) GetByID(id uint) (*model.Requirement, error) {
	var req model.Requirement
	if err := s.db.Preload("Creator").Preload("Project").First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// Update applies a partial update and returns the requirement before and after.
func (s *RequirementService) Update(id uint, updates map[string]interface{}) (before, after *model.Requirement, err error) {
	before, err = s.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if len(updates) > 0 {
		if err := s.db.Model(&model.Requirement{ID: id}).Updates(updates).Error; err != nil {
			return nil, nil, err
		}
	}
	after, err = s.GetByID(id)
	return before, after, err
}

func (s *RequirementService) SetAcceptanceCriteria(id uint, criteria model.AcceptanceCriteria) (*model.Requirement, error) {
	if criteria == nil {
		criteria = model.AcceptanceCriteria{}
	}
	if err := s.db.Model(&model.Requirement{ID: id}).Update("acceptance_criteria", criteria).Error; err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *RequirementService) SetExpertReview(id uint, review *model.ExpertReview) (*model.Requirement, error) {
	if err := s.db.Model(&model.Requirement{ID: id}).Update("expert_review", model.JSONExpertReview{Data: review}).Error; err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Delete removes role efforts, tasks and workflows before the requirement.
func (s *RequirementService) Delete(_ context.Context, id uint) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&model.ImplementationTask{}).Select("id").Where("requirement_id = ?", id)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&model.RoleEffort{}).Error; err != nil {
			return fmt.Errorf("delete role efforts: %w", err)
		}
		if err := tx.Where("requirement_id = ?", id).Delete(&model.ImplementationTask{}).Error; err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if err := tx.Where("requirement_id = ?", id).Delete(&model.Workflow{}).Error; err != nil {
			return fmt.Errorf("delete workflows: %w", err)
		}
		return tx.Delete(&model.Requirement{}, id).Error
	})
}
