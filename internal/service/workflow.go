package service

import (
	"fmt"

	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/workflow"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WorkflowService struct {
	db *gorm.DB
}

func NewWorkflowService(db *gorm.DB) *WorkflowService {
	return &WorkflowService{db: db}
}

// validateGraph rejects duplicate node ids and edges to unknown nodes, and
// fills in missing edge ids.
func validateGraph(nodes []model.WorkflowNode, edges []model.WorkflowEdge) error {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return fmt.Errorf("40001:workflow node id is required")
		}
		if ids[n.ID] {
			return fmt.Errorf("40001:duplicate workflow node id %q", n.ID)
		}
		ids[n.ID] = true
	}
	for i := range edges {
		e := &edges[i]
		if !ids[e.Source] || !ids[e.Target] {
			return fmt.Errorf("40001:edge %s -> %s references an unknown node", e.Source, e.Target)
		}
		if e.ID == "" {
			e.ID = fmt.Sprintf("e%d", i+1)
		}
	}
	return nil
}

func (s *WorkflowService) checkRequirement(projectID uint, requirementID *uint) error {
	if requirementID == nil {
		return nil
	}
	var count int64
	if err := s.db.Model(&model.Requirement{}).Where("id = ? AND project_id = ?", *requirementID, projectID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("40401:requirement %d does not belong to the project", *requirementID)
	}
	return nil
}

func (s *WorkflowService) Create(wf *model.Workflow) error {
	var count int64
	if err := s.db.Model(&model.Project{}).Where("id = ?", wf.ProjectID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	if err := s.checkRequirement(wf.ProjectID, wf.RequirementID); err != nil {
		return err
	}
	if err := validateGraph(wf.Nodes, wf.Edges); err != nil {
		return err
	}
	if wf.Nodes == nil {
		wf.Nodes = datatypes.JSONSlice[model.WorkflowNode]{}
	}
	if wf.Edges == nil {
		wf.Edges = datatypes.JSONSlice[model.WorkflowEdge]{}
	}
	if wf.Source == "" {
		wf.Source = model.WorkflowSourceManual
	}
	return s.db.Create(wf).Error
}

func (s *WorkflowService) List(projectID uint, requirementID *uint) ([]model.Workflow, error) {
	query := s.db.Where("project_id = ?", projectID)
	if requirementID != nil {
		query = query.Where("requirement_id = ?", *requirementID)
	}
	var wfs []model.Workflow
	if err := query.Order("id asc").Find(&wfs).Error; err != nil {
		return nil, err
	}
	return wfs, nil
}

func (s *WorkflowService) GetByID(id uint) (*model.Workflow, error) {
	var wf model.Workflow
	if err := s.db.First(&wf, id).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

// Update merges the supplied columns; nodes and edges are validated as a pair
// against whatever the other half currently holds.
func (s *WorkflowService) Update(id uint, updates map[string]interface{}) (*model.Workflow, error) {
	current, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	nodes, hasNodes := updates["nodes"].([]model.WorkflowNode)
	edges, hasEdges := updates["edges"].([]model.WorkflowEdge)
	if hasNodes || hasEdges {
		if !hasNodes {
			nodes = current.Nodes
		}
		if !hasEdges {
			edges = current.Edges
		}
		if err := validateGraph(nodes, edges); err != nil {
			return nil, err
		}
		updates["nodes"] = datatypes.JSONSlice[model.WorkflowNode](nodes)
		updates["edges"] = datatypes.JSONSlice[model.WorkflowEdge](edges)
	}
	if rid, ok := updates["requirement_id"].(*uint); ok {
		if err := s.checkRequirement(current.ProjectID, rid); err != nil {
			return nil, err
		}
	}
	if len(updates) > 0 {
		if err := s.db.Model(&model.Workflow{ID: id}).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(id)
}

// ApplyLayout recomputes node positions and saves them.
func (s *WorkflowService) ApplyLayout(id uint) (*model.Workflow, error) {
	wf, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	nodes := workflow.Layout(wf.Nodes, wf.Edges)
	if err := s.db.Model(&model.Workflow{ID: id}).
		Update("nodes", datatypes.JSONSlice[model.WorkflowNode](nodes)).Error; err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *WorkflowService) Delete(id uint) error {
	res := s.db.Delete(&model.Workflow{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
