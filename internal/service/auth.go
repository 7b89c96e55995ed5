package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/session"
	jwtpkg "github.com/reqforge/backend/pkg/jwt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	db        *gorm.DB
	sessions  *session.Store
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(db *gorm.DB, sessions *session.Store, jwtSecret string, expireHours int) *AuthService {
	if expireHours <= 0 {
		expireHours = 72
	}
	return &AuthService{
		db:        db,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		tokenTTL:  time.Duration(expireHours) * time.Hour,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. The first account becomes admin and needs no
// invite; every later one must present a usable invite for the same email.
func (s *AuthService) Register(email, name, password, inviteToken string) (*model.User, error) {
	email = normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Status:       model.UserStatusActive,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("40007:email already registered")
		}

		var users int64
		if err := tx.Model(&model.User{}).Count(&users).Error; err != nil {
			return err
		}
		if users == 0 {
			user.Role = model.RoleAdmin
			return tx.Create(user).Error
		}

		if inviteToken == "" {
			return fmt.Errorf("40006:an invite is required to register")
		}
		var invite model.Invite
		if err := tx.Where("token = ?", inviteToken).First(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("40006:invite not found")
			}
			return err
		}
		if err := checkInvite(&invite, time.Now()); err != nil {
			return err
		}
		if normalizeEmail(invite.Email) != email {
			return fmt.Errorf("40006:invite was issued for a different email")
		}

		user.Role = invite.Role
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		now := time.Now()
		res := tx.Model(&model.Invite{}).Where("id = ? AND accepted_at IS NULL", invite.ID).Update("accepted_at", &now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("40006:invite has already been used")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and starts the user's single active session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, time.Time, error) {
	var user model.User
	if err := s.db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", time.Time{}, fmt.Errorf("40106:invalid email or password")
		}
		return nil, "", time.Time{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", time.Time{}, fmt.Errorf("40106:invalid email or password")
	}
	if user.Status == model.UserStatusDisabled {
		return nil, "", time.Time{}, fmt.Errorf("40304:account disabled")
	}

	sid, err := s.sessions.Start(ctx, user.ID, s.tokenTTL)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	token, expireAt, err := jwtpkg.GenerateToken(s.jwtSecret, user.ID, user.Role, sid, s.tokenTTL)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("generate token: %w", err)
	}

	now := time.Now()
	if err := s.db.Model(&user).Update("last_login_at", &now).Error; err != nil {
		zap.L().Warn("record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now
	return &user, token, expireAt, nil
}

func (s *AuthService) Logout(ctx context.Context, userID uint, sessionID string) error {
	return s.sessions.End(ctx, userID, sessionID)
}

func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) ListUsers(keyword, role string, status *int, page, pageSize int) ([]model.User, int64, error) {
	query := s.db.Model(&model.User{})
	if keyword != "" {
		like := containsPattern(keyword)
		query = query.Where("LOWER(name) LIKE ?"+likeEscape+" OR LOWER(email) LIKE ?"+likeEscape, like, like)
	}
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	if err := query.Order("created_at desc, id desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *AuthService) UpdateRole(userID uint, role string) (*model.User, error) {
	if !model.IsValidRole(role) {
		return nil, fmt.Errorf("40001:unknown role %q", role)
	}
	var user model.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	if user.Role == model.RoleAdmin && role != model.RoleAdmin {
		if err := s.ensureAnotherAdmin(user.ID); err != nil {
			return nil, err
		}
	}
	if err := s.db.Model(&user).Update("role", role).Error; err != nil {
		return nil, err
	}
	user.Role = role
	return &user, nil
}

// UpdateUserStatus disables or re-enables an account; disabling ends its session.
func (s *AuthService) UpdateUserStatus(ctx context.Context, userID uint, status int) (*model.User, error) {
	if status != model.UserStatusActive && status != model.UserStatusDisabled {
		return nil, fmt.Errorf("40001:status must be 0 or 1")
	}
	var user model.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	if status == model.UserStatusDisabled && user.Role == model.RoleAdmin {
		if err := s.ensureAnotherAdmin(user.ID); err != nil {
			return nil, err
		}
	}
	if err := s.db.Model(&user).Update("status", status).Error; err != nil {
		return nil, err
	}
	user.Status = status
	if status == model.UserStatusDisabled {
		if err := s.sessions.Revoke(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func (s *AuthService) ensureAnotherAdmin(exceptID uint) error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ? AND status = ? AND id <> ?", model.RoleAdmin, model.UserStatusActive, exceptID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("40003:at least one active admin is required")
	}
	return nil
}
