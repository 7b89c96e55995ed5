package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/service"
)

type SearchHandler struct {
	searchService *service.SearchService
	schemaService *service.SchemaService
}

func NewSearchHandler(searchService *service.SearchService, schemaService *service.SchemaService) *SearchHandler {
	return &SearchHandler{searchService: searchService, schemaService: schemaService}
}

// GET /search
func (h *SearchHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	var projectID uint
	if id := optionalID(c, "project_id"); id != nil {
		projectID = *id
	}
	results, err := h.searchService.Search(c.Query("q"), projectID, limit, middleware.IsAdmin(c))
	if err != nil {
		respondError(c, err, "")
		return
	}
	if results == nil {
		results = []service.SearchResult{}
	}
	Success(c, gin.H{"query": c.Query("q"), "results": results})
}

// GET /schema/tables
func (h *SearchHandler) Tables(c *gin.Context) {
	Success(c, h.schemaService.Tables())
}

// GET /schema/tables/:name/columns
func (h *SearchHandler) Columns(c *gin.Context) {
	cols, err := h.schemaService.Columns(c.Param("name"))
	if err != nil {
		respondError(c, err, "table not found")
		return
	}
	Success(c, cols)
}
