package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reqforge/backend/internal/model"
	"gorm.io/gorm"
)

type InviteService struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewInviteService(db *gorm.DB, ttlHours int) *InviteService {
	if ttlHours <= 0 {
		ttlHours = 72
	}
	return &InviteService{db: db, ttl: time.Duration(ttlHours) * time.Hour}
}

func checkInvite(inv *model.Invite, now time.Time) error {
	if inv.AcceptedAt != nil {
		return fmt.Errorf("40006:invite has already been used")
	}
	if inv.Expired(now) {
		return fmt.Errorf("40006:invite has expired")
	}
	return nil
}

// Create issues an invite. Managers may not hand out the admin role.
func (s *InviteService) Create(email, role string, inviter *model.User) (*model.Invite, error) {
	if !model.IsValidRole(role) {
		return nil, fmt.Errorf("40001:unknown role %q", role)
	}
	if role == model.RoleAdmin && inviter.Role != model.RoleAdmin {
		return nil, fmt.Errorf("40301:only admins can invite admins")
	}
	email = normalizeEmail(email)

	var count int64
	if err := s.db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("40007:email already registered")
	}

	invite := &model.Invite{
		Email:     email,
		Role:      role,
		Token:     uuid.NewString(),
		InvitedBy: inviter.ID,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.db.Create(invite).Error; err != nil {
		return nil, err
	}
	return invite, nil
}

func (s *InviteService) List(pendingOnly bool, page, pageSize int) ([]model.Invite, int64, error) {
	query := s.db.Model(&model.Invite{})
	if pendingOnly {
		query = query.Where("accepted_at IS NULL AND expires_at > ?", time.Now())
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var invites []model.Invite
	err := query.Preload("Inviter").Order("created_at desc, id desc").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&invites).Error
	if err != nil {
		return nil, 0, err
	}
	return invites, total, nil
}

func (s *InviteService) Delete(id uint) error {
	res := s.db.Delete(&model.Invite{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Validate looks up a token for the public registration page.
func (s *InviteService) Validate(token string) (*model.Invite, error) {
	var invite model.Invite
	if err := s.db.Where("token = ?", token).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("40406:invite not found")
		}
		return nil, err
	}
	if err := checkInvite(&invite, time.Now()); err != nil {
		return nil, err
	}
	return &invite, nil
}
