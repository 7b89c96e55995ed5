package service

import (
	"context"
	"time"

	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/sse"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const EventActivity = "activity"

type ActivityService struct {
	db  *gorm.DB
	hub *sse.Hub
}

func NewActivityService(db *gorm.DB, hub *sse.Hub) *ActivityService {
	return &ActivityService{db: db, hub: hub}
}

// Record persists an activity row and pushes it to the project's live stream.
// Failures are logged and never fail the calling request.
func (s *ActivityService) Record(ctx context.Context, a *model.Activity) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if err := s.db.Create(a).Error; err != nil {
		zap.L().Error("record activity", zap.String("action", a.Action), zap.Error(err))
		return
	}
	if s.hub != nil && a.ProjectID != nil {
		s.hub.Broadcast(ctx, *a.ProjectID, EventActivity, a)
	}
}

type ActivityFilter struct {
	ProjectID  *uint
	UserID     *uint
	EntityType string
	EntityID   *uint
	Action     string
	Since      *time.Time
	Until      *time.Time
}

func (s *ActivityService) List(f ActivityFilter, page, pageSize int) ([]model.Activity, int64, error) {
	query := s.db.Model(&model.Activity{})
	if f.ProjectID != nil {
		query = query.Where("project_id = ?", *f.ProjectID)
	}
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.EntityType != "" {
		query = query.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != nil {
		query = query.Where("entity_id = ?", *f.EntityID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.Since != nil {
		query = query.Where("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		query = query.Where("created_at <= ?", *f.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []model.Activity
	err := query.Preload("User").Order("created_at desc, id desc").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *ActivityService) Hub() *sse.Hub { return s.hub }
