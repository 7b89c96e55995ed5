package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProjectService struct {
	db    *gorm.DB
	store storage.Store
}

func NewProjectService(db *gorm.DB, store storage.Store) *ProjectService {
	return &ProjectService{db: db, store: store}
}

func (s *ProjectService) checkCustomer(customerID *uint) error {
	if customerID == nil {
		return nil
	}
	var count int64
	if err := s.db.Model(&model.Customer{}).Where("id = ?", *customerID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("40401:customer %d does not exist", *customerID)
	}
	return nil
}

func (s *ProjectService) Create(name, description string, customerID *uint, ownerID uint) (*model.Project, error) {
	name = strings.TrimSpace(name)
	var count int64
	if err := s.db.Model(&model.Project{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("40005:project name already exists")
	}
	if err := s.checkCustomer(customerID); err != nil {
		return nil, err
	}

	project := &model.Project{
		Name:        name,
		Description: description,
		CustomerID:  customerID,
		OwnerID:     ownerID,
		Status:      model.ProjectStatusActive,
	}
	if err := s.db.Create(project).Error; err != nil {
		return nil, err
	}
	return s.GetByID(project.ID)
}

func (s *ProjectService) List(keyword, status string, customerID *uint, page, pageSize int, sortBy, order string) ([]model.Project, int64, error) {
	query := s.db.Model(&model.Project{})
	if keyword != "" {
		like := containsPattern(keyword)
		query = query.Where("LOWER(name) LIKE ?"+likeEscape+" OR LOWER(description) LIKE ?"+likeEscape, like, like)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch sortBy {
	case "name", "created_at", "updated_at":
	default:
		sortBy = "updated_at"
	}
	if order != "asc" {
		order = "desc"
	}

	var projects []model.Project
	err := query.Preload("Owner").Preload("Customer").Order(sortBy + " " + order).Order("id " + order).
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&projects).Error
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (s *ProjectService) GetByID(id uint) (*model.Project, error) {
	var project model.Project
	if err := s.db.Preload("Owner").Preload("Customer").First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *ProjectService) Exists(id uint) error {
	var count int64
	if err := s.db.Model(&model.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *ProjectService) Update(id uint, updates map[string]interface{}) (*model.Project, error) {
	if err := s.Exists(id); err != nil {
		return nil, err
	}
	if name, ok := updates["name"]; ok {
		var count int64
		if err := s.db.Model(&model.Project{}).Where("name = ? AND id <> ?", name, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, fmt.Errorf("40005:project name already exists")
		}
	}
	if cid, ok := updates["customer_id"].(*uint); ok {
		if err := s.checkCustomer(cid); err != nil {
			return nil, err
		}
	}
	if len(updates) > 0 {
		if err := s.db.Model(&model.Project{ID: id}).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(id)
}

// Delete removes the project and everything under it in dependency order,
// then drops the stored objects of its input data and documents.
func (s *ProjectService) Delete(ctx context.Context, id uint) error {
	if err := s.Exists(id); err != nil {
		return err
	}

	var keys []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		reqIDs := tx.Model(&model.Requirement{}).Select("id").Where("project_id = ?", id)
		taskIDs := tx.Model(&model.ImplementationTask{}).Select("id").Where("requirement_id IN (?)", reqIDs)

		var inputKeys []string
		if err := tx.Model(&model.InputData{}).Where("project_id = ? AND storage_key <> ''", id).Pluck("storage_key", &inputKeys).Error; err != nil {
			return err
		}
		var docKeys []string
		if err := tx.Model(&model.Document{}).Where("project_id = ? AND storage_key <> ''", id).Pluck("storage_key", &docKeys).Error; err != nil {
			return err
		}
		keys = append(inputKeys, docKeys...)

		steps := []struct {
			name  string
			query *gorm.DB
			model interface{}
		}{
			{"role efforts", tx.Where("task_id IN (?)", taskIDs), &model.RoleEffort{}},
			{"tasks", tx.Where("requirement_id IN (?)", reqIDs), &model.ImplementationTask{}},
			{"workflows", tx.Where("project_id = ?", id), &model.Workflow{}},
			{"requirements", tx.Where("project_id = ?", id), &model.Requirement{}},
			{"documents", tx.Where("project_id = ?", id), &model.Document{}},
			{"input data", tx.Where("project_id = ?", id), &model.InputData{}},
			{"activities", tx.Where("project_id = ?", id), &model.Activity{}},
		}
		for _, st := range steps {
			if err := st.query.Delete(st.model).Error; err != nil {
				return fmt.Errorf("delete %s: %w", st.name, err)
			}
		}
		return tx.Delete(&model.Project{}, id).Error
	})
	if err != nil {
		return err
	}

	s.dropObjects(ctx, keys)
	return nil
}

func (s *ProjectService) dropObjects(ctx context.Context, keys []string) {
	if s.store == nil {
		return
	}
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil && !errors.Is(err, storage.ErrNotFound) {
			zap.L().Warn("delete stored object", zap.String("key", k), zap.Error(err))
		}
	}
}

type ProjectStats struct {
	Requirements       int64            `json:"requirements"`
	RequirementsByStat map[string]int64 `json:"requirements_by_status"`
	WithCriteria       int64            `json:"requirements_with_criteria"`
	Tasks              int64            `json:"tasks"`
	TasksByStatus      map[string]int64 `json:"tasks_by_status"`
	EstimatedHours     float64          `json:"estimated_hours"`
	EffortHours        float64          `json:"effort_hours"`
	EffortCost         float64          `json:"effort_cost"`
	InputData          int64            `json:"input_data"`
	Workflows          int64            `json:"workflows"`
	Documents          int64            `json:"documents"`
}

type statusCount struct {
	Status string
	Count  int64
}

func (s *ProjectService) Stats(projectID uint) (*ProjectStats, error) {
	if err := s.Exists(projectID); err != nil {
		return nil, err
	}
	st := &ProjectStats{
		RequirementsByStat: map[string]int64{},
		TasksByStatus:      map[string]int64{},
	}

	var reqRows []statusCount
	if err := s.db.Model(&model.Requirement{}).Select("status, COUNT(*) AS count").
		Where("project_id = ?", projectID).Group("status").Scan(&reqRows).Error; err != nil {
		return nil, err
	}
	for _, r := range reqRows {
		st.RequirementsByStat[r.Status] = r.Count
		st.Requirements += r.Count
	}
	if err := s.db.Model(&model.Requirement{}).
		Where("project_id = ? AND acceptance_criteria IS NOT NULL AND CAST(acceptance_criteria AS TEXT) NOT IN ('[]', 'null')", projectID).
		Count(&st.WithCriteria).Error; err != nil {
		return nil, err
	}

	reqIDs := s.db.Model(&model.Requirement{}).Select("id").Where("project_id = ?", projectID)
	var taskRows []statusCount
	if err := s.db.Model(&model.ImplementationTask{}).Select("status, COUNT(*) AS count").
		Where("requirement_id IN (?)", reqIDs).Group("status").Scan(&taskRows).Error; err != nil {
		return nil, err
	}
	for _, r := range taskRows {
		st.TasksByStatus[r.Status] = r.Count
		st.Tasks += r.Count
	}
	if err := s.db.Model(&model.ImplementationTask{}).Select("COALESCE(SUM(estimated_hours), 0)").
		Where("requirement_id IN (?)", reqIDs).Scan(&st.EstimatedHours).Error; err != nil {
		return nil, err
	}

	summary, err := roleEffortSummary(s.db, projectID)
	if err != nil {
		return nil, err
	}
	for _, r := range summary {
		st.EffortHours += r.Hours
		st.EffortCost += r.Cost
	}

	if err := s.db.Model(&model.InputData{}).Where("project_id = ?", projectID).Count(&st.InputData).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&model.Workflow{}).Where("project_id = ?", projectID).Count(&st.Workflows).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&model.Document{}).Where("project_id = ?", projectID).Count(&st.Documents).Error; err != nil {
		return nil, err
	}
	return st, nil
}
