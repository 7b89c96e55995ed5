package service

import (
	"github.com/reqforge/backend/internal/model"
	"gorm.io/gorm"
)

type TaskService struct {
	db *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{db: db}
}

// Create stores a task together with any role efforts it carries.
func (s *TaskService) Create(task *model.ImplementationTask) error {
	var count int64
	if err := s.db.Model(&model.Requirement{}).Where("id = ?", task.RequirementID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	if task.Status == "" {
		task.Status = model.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	return s.db.Create(task).Error
}

// CreateBatch inserts generated tasks in one transaction.
func (s *TaskService) CreateBatch(tasks []*model.ImplementationTask) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, t := range tasks {
			if t.Status == "" {
				t.Status = model.TaskStatusTodo
			}
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *TaskService) ListByRequirement(requirementID uint, status string) ([]model.ImplementationTask, error) {
	query := s.db.Where("requirement_id = ?", requirementID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var tasks []model.ImplementationTask
	if err := query.Preload("RoleEfforts").Preload("Assignee").Order("id asc").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskService) GetByID(id uint) (*model.ImplementationTask, error) {
	var task model.ImplementationTask
	if err := s.db.Preload("RoleEfforts").Preload("Assignee").Preload("Requirement").First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) Update(id uint, updates map[string]interface{}) (*model.ImplementationTask, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.db.Model(&model.ImplementationTask{ID: id}).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(id)
}

func (s *TaskService) Delete(id uint) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&model.RoleEffort{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ImplementationTask{}, id).Error
	})
}

// ProjectIDOf resolves the project a task belongs to through its requirement.
func (s *TaskService) ProjectIDOf(taskID uint) (uint, error) {
	var projectID uint
	err := s.db.Model(&model.Requirement{}).Select("requirements.project_id").
		Joins("JOIN implementation_tasks ON implementation_tasks.requirement_id = requirements.id").
		Where("implementation_tasks.id = ?", taskID).Scan(&projectID).Error
	if err == nil && projectID == 0 {
		err = gorm.ErrRecordNotFound
	}
	return projectID, err
}

func (s *TaskService) AddRoleEffort(effort *model.RoleEffort) error {
	if _, err := s.GetByID(effort.TaskID); err != nil {
		return err
	}
	return s.db.Create(effort).Error
}

func (s *TaskService) ListRoleEfforts(taskID uint) ([]model.RoleEffort, error) {
	if _, err := s.GetByID(taskID); err != nil {
		return nil, err
	}
	var efforts []model.RoleEffort
	if err := s.db.Where("task_id = ?", taskID).Order("id asc").Find(&efforts).Error; err != nil {
		return nil, err
	}
	return efforts, nil
}

func (s *TaskService) GetRoleEffort(id uint) (*model.RoleEffort, error) {
	var effort model.RoleEffort
	if err := s.db.First(&effort, id).Error; err != nil {
		return nil, err
	}
	return &effort, nil
}

func (s *TaskService) UpdateRoleEffort(id uint, updates map[string]interface{}) (*model.RoleEffort, error) {
	if _, err := s.GetRoleEffort(id); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.db.Model(&model.RoleEffort{ID: id}).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetRoleEffort(id)
}

func (s *TaskService) DeleteRoleEffort(id uint) error {
	res := s.db.Delete(&model.RoleEffort{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RoleEffortRow is one line of a project's effort summary.
type RoleEffortRow struct {
	Role  string  `json:"role"`
	Hours float64 `json:"hours"`
	Cost  float64 `json:"cost"`
	Tasks int64   `json:"tasks"`
}

func roleEffortSummary(db *gorm.DB, projectID uint) ([]RoleEffortRow, error) {
	var rows []RoleEffortRow
	err := db.Model(&model.RoleEffort{}).
		Select("role_efforts.role AS role, SUM(role_efforts.hours) AS hours, "+
			"SUM(role_efforts.hours * role_efforts.hourly_rate) AS cost, COUNT(DISTINCT role_efforts.task_id) AS tasks").
		Joins("JOIN implementation_tasks ON implementation_tasks.id = role_efforts.task_id").
		Joins("JOIN requirements ON requirements.id = implementation_tasks.requirement_id").
		Where("requirements.project_id = ?", projectID).
		Group("role_efforts.role").Order("role_efforts.role asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RoleEffortSummary groups a project's role efforts by role.
func (s *TaskService) RoleEffortSummary(projectID uint) ([]RoleEffortRow, error) {
	var count int64
	if err := s.db.Model(&model.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return roleEffortSummary(s.db, projectID)
}
