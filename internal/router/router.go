package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reqforge/backend/internal/handler"
	"github.com/reqforge/backend/internal/middleware"
	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	DB           *gorm.DB
	Sessions     *session.Store
	Logger       *zap.Logger
	Auth         middleware.AuthConfig
	AllowOrigins []string

	HealthHandler      *handler.HealthHandler
	AuthHandler        *handler.AuthHandler
	UserHandler        *handler.UserHandler
	InviteHandler      *handler.InviteHandler
	CustomerHandler    *handler.CustomerHandler
	ProjectHandler     *handler.ProjectHandler
	InputDataHandler   *handler.InputDataHandler
	RequirementHandler *handler.RequirementHandler
	GenerationHandler  *handler.GenerationHandler
	TaskHandler        *handler.TaskHandler
	ActivityHandler    *handler.ActivityHandler
	WorkflowHandler    *handler.WorkflowHandler
	SearchHandler      *handler.SearchHandler
	TemplateHandler    *handler.TemplateHandler
	DocumentHandler    *handler.DocumentHandler
	SettingHandler     *handler.SettingHandler
}

func Setup(r *gin.Engine, deps Deps) {
	handler.RegisterValidation()

	r.Use(middleware.RequestLogger(deps.Logger), middleware.Recovery(deps.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Public routes (no auth)
	api.GET("/health", deps.HealthHandler.Check)
	api.POST("/auth/register", deps.AuthHandler.Register)
	api.POST("/auth/login", deps.AuthHandler.Login)
	api.GET("/invites/:token", deps.InviteHandler.Validate)

	// Authenticated routes
	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(deps.Auth, deps.DB, deps.Sessions))

	manager := middleware.RequireRole(model.RoleManager)
	editor := middleware.RequireRole(model.RoleManager, model.RoleAnalyst)
	{
		// Auth
		authed.POST("/auth/logout", deps.AuthHandler.Logout)
		authed.GET("/auth/me", deps.AuthHandler.GetMe)

		// Admin routes
		users := authed.Group("/users")
		users.Use(middleware.RequireAdmin())
		{
			users.GET("", deps.UserHandler.ListUsers)
			users.PUT("/:id/role", deps.UserHandler.UpdateUserRole)
			users.PUT("/:id/status", deps.UserHandler.UpdateUserStatus)
		}

		invites := authed.Group("/invites")
		invites.Use(manager)
		{
			invites.POST("", deps.InviteHandler.Create)
			invites.GET("", deps.InviteHandler.List)
			invites.DELETE("/:id", deps.InviteHandler.Delete)
		}

		// Customers
		customers := authed.Group("/customers")
		{
			customers.POST("", manager, deps.CustomerHandler.Create)
			customers.GET("", deps.CustomerHandler.List)
			customers.GET("/:id", deps.CustomerHandler.Get)
			customers.PUT("/:id", manager, deps.CustomerHandler.Update)
			customers.DELETE("/:id", manager, deps.CustomerHandler.Delete)
		}

		// Projects
		projects := authed.Group("/projects")
		{
			projects.POST("", manager, deps.ProjectHandler.Create)
			projects.GET("", deps.ProjectHandler.List)
			projects.GET("/:id", deps.ProjectHandler.GetDetail)
			projects.PUT("/:id", manager, deps.ProjectHandler.Update)
			projects.DELETE("/:id", manager, deps.ProjectHandler.Delete)
			projects.GET("/:id/stats", deps.ProjectHandler.Stats)
			projects.GET("/:id/role-effort", deps.ProjectHandler.RoleEffort)

			projects.POST("/:id/input-data", editor, deps.InputDataHandler.Upload)
			projects.GET("/:id/input-data", deps.InputDataHandler.List)

			projects.POST("/:id/requirements", editor, deps.RequirementHandler.Create)
			projects.GET("/:id/requirements", deps.RequirementHandler.List)
			projects.POST("/:id/acceptance-criteria/generate", editor, deps.GenerationHandler.BatchAcceptanceCriteria)

			projects.POST("/:id/workflows", editor, deps.WorkflowHandler.Create)
			projects.GET("/:id/workflows", deps.WorkflowHandler.List)

			projects.GET("/:id/documents", deps.DocumentHandler.List)

			projects.GET("/:id/activities", deps.ActivityHandler.ListByProject)
			projects.GET("/:id/activities/stream", deps.ActivityHandler.Stream)
		}

		// Input data (standalone)
		inputs := authed.Group("/input-data")
		{
			inputs.GET("/:id", deps.InputDataHandler.Get)
			inputs.GET("/:id/content", deps.InputDataHandler.Content)
			inputs.PUT("/:id", editor, deps.InputDataHandler.Update)
			inputs.DELETE("/:id", editor, deps.InputDataHandler.Delete)
			inputs.POST("/:id/derive-requirements", editor, deps.GenerationHandler.DeriveRequirements)
		}

		// Requirements (standalone)
		reqs := authed.Group("/requirements")
		{
			reqs.GET("/:id", deps.RequirementHandler.Get)
			reqs.PUT("/:id", editor, deps.RequirementHandler.Update)
			reqs.DELETE("/:id", editor, deps.RequirementHandler.Delete)
			reqs.PUT("/:id/acceptance-criteria", editor, deps.RequirementHandler.SetAcceptanceCriteria)
			reqs.POST("/:id/acceptance-criteria/generate", editor, deps.GenerationHandler.AcceptanceCriteria)
			reqs.POST("/:id/tasks/generate", editor, deps.GenerationHandler.Tasks)
			reqs.POST("/:id/workflows/generate", editor, deps.GenerationHandler.Workflow)
			reqs.POST("/:id/expert-review", editor, deps.GenerationHandler.ExpertReview)
			reqs.POST("/:id/contradictions", editor, deps.GenerationHandler.Contradictions)

			reqs.POST("/:id/tasks", editor, deps.TaskHandler.Create)
			reqs.GET("/:id/tasks", deps.TaskHandler.List)
		}

		// Tasks and role efforts
		tasks := authed.Group("/tasks")
		{
			tasks.GET("/:id", deps.TaskHandler.Get)
			tasks.PUT("/:id", editor, deps.TaskHandler.Update)
			tasks.DELETE("/:id", editor, deps.TaskHandler.Delete)
			tasks.POST("/:id/role-efforts", editor, deps.TaskHandler.AddRoleEffort)
			tasks.GET("/:id/role-efforts", deps.TaskHandler.ListRoleEfforts)
		}
		authed.PUT("/role-efforts/:id", editor, deps.TaskHandler.UpdateRoleEffort)
		authed.DELETE("/role-efforts/:id", editor, deps.TaskHandler.DeleteRoleEffort)

		// Workflows (standalone)
		workflows := authed.Group("/workflows")
		{
			workflows.GET("/:id", deps.WorkflowHandler.Get)
			workflows.PUT("/:id", editor, deps.WorkflowHandler.Update)
			workflows.DELETE("/:id", editor, deps.WorkflowHandler.Delete)
			workflows.POST("/:id/layout", editor, deps.WorkflowHandler.Layout)
		}

		authed.GET("/activities", deps.ActivityHandler.List)

		// Search and schema
		authed.GET("/search", deps.SearchHandler.Search)
		authed.GET("/schema/tables", deps.SearchHandler.Tables)
		authed.GET("/schema/tables/:name/columns", deps.SearchHandler.Columns)

		// Templates and documents
		templates := authed.Group("/templates")
		{
			templates.POST("", manager, deps.TemplateHandler.Create)
			templates.GET("", deps.TemplateHandler.List)
			templates.GET("/:id", deps.TemplateHandler.Get)
			templates.PUT("/:id", manager, deps.TemplateHandler.Update)
			templates.DELETE("/:id", manager, deps.TemplateHandler.Delete)
			templates.GET("/:id/field-mappings", deps.TemplateHandler.FieldMappings)
			templates.PUT("/:id/field-mappings", manager, deps.TemplateHandler.ReplaceFieldMappings)
			templates.POST("/:id/documents", editor, deps.DocumentHandler.Generate)
		}

		documents := authed.Group("/documents")
		{
			documents.GET("/:id", deps.DocumentHandler.Get)
			documents.GET("/:id/download", deps.DocumentHandler.Download)
			documents.DELETE("/:id", editor, deps.DocumentHandler.Delete)
		}

		// Settings (per user)
		authed.GET("/settings/ai", deps.SettingHandler.Get)
		authed.PUT("/settings/ai", deps.SettingHandler.Update)
	}
}
