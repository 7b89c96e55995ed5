package service

import (
	"fmt"

	"github.com/reqforge/backend/internal/model"
	"gorm.io/gorm"
)

type CustomerService struct {
	db *gorm.DB
}

func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{db: db}
}

func (s *CustomerService) Create(c *model.Customer) error {
	return s.db.Create(c).Error
}

func (s *CustomerService) List(keyword string, page, pageSize int) ([]model.Customer, int64, error) {
	query := s.db.Model(&model.Customer{})
	if keyword != "" {
		like := containsPattern(keyword)
		query = query.Where("LOWER(name) LIKE ?"+likeEscape+" OR LOWER(contact_name) LIKE ?"+likeEscape+
			" OR LOWER(industry) LIKE ?"+likeEscape, like, like, like)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Customer
	if err := query.Order("name asc, id asc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *CustomerService) GetByID(id uint) (*model.Customer, error) {
	var c model.Customer
	if err := s.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CustomerService) Update(id uint, updates map[string]interface{}) (*model.Customer, error) {
	c, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.db.Model(c).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(id)
}

// Delete refuses while any project still references the customer.
func (s *CustomerService) Delete(id uint) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	var count int64
	if err := s.db.Model(&model.Project{}).Where("customer_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("40009:customer is referenced by %d project(s)", count)
	}
	return s.db.Delete(&model.Customer{}, id).Error
}
