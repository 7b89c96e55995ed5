package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/service"
)

type SettingHandler struct {
	settingService *service.SettingService
}

func NewSettingHandler(settingService *service.SettingService) *SettingHandler {
	return &SettingHandler{settingService: settingService}
}

// GET /settings/ai
func (h *SettingHandler) Get(c *gin.Context) {
	settings, err := h.settingService.Get(middleware.GetCurrentUserID(c))
	if err != nil {
		respondError(c, err, "")
		return
	}
	Success(c, settings)
}

// PUT /settings/ai
func (h *SettingHandler) Update(c *gin.Context) {
	var req service.AISettings
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	settings, err := h.settingService.Upsert(middleware.GetCurrentUserID(c), req)
	if err != nil {
		respondError(c, err, "")
		return
	}
	Success(c, settings)
}
