package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/service"
)

type CustomerHandler struct {
	recorder
	customerService *service.CustomerService
}

func NewCustomerHandler(customerService *service.CustomerService, activity *service.ActivityService) *CustomerHandler {
	return &CustomerHandler{recorder: recorder{activity}, customerService: customerService}
}

// POST /customers
func (h *CustomerHandler) Create(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required,max=128"`
		ContactName string `json:"contact_name" binding:"max=128"`
		Email       string `json:"email" binding:"omitempty,email,max=255"`
		Phone       string `json:"phone" binding:"max=32"`
		Industry    string `json:"industry" binding:"max=64"`
		Notes       string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	customer := &model.Customer{
		Name:        req.Name,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Industry:    req.Industry,
		Notes:       req.Notes,
	}
	if err := h.customerService.Create(customer); err != nil {
		respondError(c, err, "")
		return
	}
	h.record(c, nil, "customer.created", "customer", customer.ID, customer.Name, nil)
	Created(c, customer)
}

// GET /customers
func (h *CustomerHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)
	list, total, err := h.customerService.List(c.Query("keyword"), page, pageSize)
	if err != nil {
		respondError(c, err, "")
		return
	}
	SuccessPaged(c, list, total, page, pageSize)
}

// GET /customers/:id
func (h *CustomerHandler) Get(c *gin.Context) {
	customer, err := h.customerService.GetByID(parseID(c.Param("id")))
	if err != nil {
		respondError(c, err, "customer not found")
		return
	}
	Success(c, customer)
}

// PUT /customers/:id
func (h *CustomerHandler) Update(c *gin.Context) {
	id := parseID(c.Param("id"))
	var req struct {
		Name        *string `json:"name" binding:"omitempty,min=1,max=128"`
		ContactName *string `json:"contact_name" binding:"omitempty,max=128"`
		Email       *string `json:"email" binding:"omitempty,max=255"`
		Phone       *string `json:"phone" binding:"omitempty,max=32"`
		Industry    *string `json:"industry" binding:"omitempty,max=64"`
		Notes       *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.ContactName != nil {
		updates["contact_name"] = *req.ContactName
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Industry != nil {
		updates["industry"] = *req.Industry
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	customer, err := h.customerService.Update(id, updates)
	if err != nil {
		respondError(c, err, "customer not found")
		return
	}
	h.record(c, nil, "customer.updated", "customer", id, customer.Name, nil)
	Success(c, customer)
}

// DELETE /customers/:id
func (h *CustomerHandler) Delete(c *gin.Context) {
	id := parseID(c.Param("id"))
	if err := h.customerService.Delete(id); err != nil {
		respondError(c, err, "customer not found")
		return
	}
	h.record(c, nil, "customer.deleted", "customer", id, "", nil)
	Success(c, nil)
}
